package force

import (
	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Generator adds forces to one body, once per step, before integration.
type Generator interface {
	ApplyForce(body *actor.RigidBody, dt float64)
}

// Gravity applies a constant acceleration scaled by mass. Immovable bodies
// are ignored.
type Gravity struct {
	Gravity mgl64.Vec3
}

func NewGravity(gravity mgl64.Vec3) *Gravity {
	return &Gravity{Gravity: gravity}
}

func (g *Gravity) ApplyForce(body *actor.RigidBody, dt float64) {
	if !body.HasFiniteMass() {
		return
	}

	body.AddForce(g.Gravity.Mul(body.Mass()))
}

// Spring connects a body-local point to a point on another body with a
// Hooke spring.
type Spring struct {
	// ConnectionPoint is the attachment in the pulled body's local space;
	// OtherConnectionPoint in the other body's local space.
	ConnectionPoint      mgl64.Vec3
	OtherConnectionPoint mgl64.Vec3

	Other *actor.RigidBody

	SpringConstant float64
	RestLength     float64
}

func (s *Spring) ApplyForce(body *actor.RigidBody, dt float64) {
	lws := body.PointInWorldSpace(s.ConnectionPoint)
	ows := s.Other.PointInWorldSpace(s.OtherConnectionPoint)

	f := lws.Sub(ows)

	magnitude := f.Len()
	if magnitude == 0 {
		return
	}
	magnitude = (magnitude - s.RestLength) * s.SpringConstant

	f = f.Normalize().Mul(-magnitude)
	body.AddForceAtPoint(f, lws)
}

// Drag applies a velocity-dependent drag force k1·|v| + k2·|v|².
type Drag struct {
	K1 float64
	K2 float64
}

func (d *Drag) ApplyForce(body *actor.RigidBody, dt float64) {
	velocity := body.Velocity()

	speed := velocity.Len()
	if speed == 0 {
		return
	}

	coefficient := d.K1*speed + d.K2*speed*speed
	body.AddForce(velocity.Normalize().Mul(-coefficient))
}

type registration struct {
	body      *actor.RigidBody
	generator Generator
}

// Registry pairs bodies with the generators acting on them. The simulation
// loop calls ApplyForces once per step between clearing accumulators and
// integrating.
type Registry struct {
	registrations []registration
}

// Add registers a generator to act on a body.
func (r *Registry) Add(body *actor.RigidBody, generator Generator) {
	r.registrations = append(r.registrations, registration{body: body, generator: generator})
}

// Remove drops every registration of the given body/generator pairing.
func (r *Registry) Remove(body *actor.RigidBody, generator Generator) {
	n := 0
	for _, reg := range r.registrations {
		if reg.body == body && reg.generator == generator {
			continue
		}
		r.registrations[n] = reg
		n++
	}
	r.registrations = r.registrations[:n]
}

// Clear drops all registrations; bodies and generators are untouched.
func (r *Registry) Clear() {
	r.registrations = r.registrations[:0]
}

// ApplyForces invokes every registered generator on its body. Sleeping
// bodies are skipped so forces do not wake them every frame.
func (r *Registry) ApplyForces(dt float64) {
	for _, reg := range r.registrations {
		if !reg.body.IsAwake() {
			continue
		}
		reg.generator.ApplyForce(reg.body, dt)
	}
}
