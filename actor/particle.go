package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Particle is the lower-dimensional variant of RigidBody: a point mass with
// no orientation or angular state. It shares the Integrable capability with
// RigidBody rather than any type hierarchy.
type Particle struct {
	inverseMass float64

	position     mgl64.Vec3
	velocity     mgl64.Vec3
	acceleration mgl64.Vec3

	damping float64

	forceAccum mgl64.Vec3
}

// NewParticle creates an immovable particle at the origin with no damping.
func NewParticle() *Particle {
	return &Particle{damping: 1.0}
}

// SetMass assigns a finite mass; zero or negative mass is rejected.
func (p *Particle) SetMass(mass float64) error {
	if mass <= 0 {
		return ErrNonPositiveMass
	}
	p.inverseMass = 1.0 / mass

	return nil
}

// SetInverseMass assigns the inverse mass directly; zero marks the particle
// immovable.
func (p *Particle) SetInverseMass(inverseMass float64) {
	p.inverseMass = math.Max(inverseMass, 0)
}

func (p *Particle) Mass() float64 {
	if p.inverseMass == 0 {
		return math.Inf(1)
	}

	return 1.0 / p.inverseMass
}

func (p *Particle) InverseMass() float64 {
	return p.inverseMass
}

func (p *Particle) HasFiniteMass() bool {
	return p.inverseMass > 0
}

func (p *Particle) SetPosition(position mgl64.Vec3) {
	p.position = position
}

func (p *Particle) Position() mgl64.Vec3 {
	return p.position
}

func (p *Particle) SetVelocity(velocity mgl64.Vec3) {
	p.velocity = velocity
}

func (p *Particle) Velocity() mgl64.Vec3 {
	return p.velocity
}

func (p *Particle) SetAcceleration(acceleration mgl64.Vec3) {
	p.acceleration = acceleration
}

func (p *Particle) Acceleration() mgl64.Vec3 {
	return p.acceleration
}

// SetDamping sets the per-step multiplicative velocity damping in [0,1].
func (p *Particle) SetDamping(damping float64) {
	p.damping = mgl64.Clamp(damping, 0, 1)
}

func (p *Particle) AddForce(force mgl64.Vec3) {
	p.forceAccum = p.forceAccum.Add(force)
}

func (p *Particle) ClearAccumulators() {
	p.forceAccum = mgl64.Vec3{}
}

// Integrate advances the particle by dt. No-op for immovable particles.
func (p *Particle) Integrate(dt float64) {
	if p.inverseMass == 0 {
		return
	}

	p.position = p.position.Add(p.velocity.Mul(dt))

	acceleration := p.acceleration.Add(p.forceAccum.Mul(p.inverseMass))
	p.velocity = p.velocity.Add(acceleration.Mul(dt))
	p.velocity = p.velocity.Mul(math.Pow(p.damping, dt))

	p.ClearAccumulators()
}
