package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestParticle_SetMass_RejectsNonPositive(t *testing.T) {
	p := NewParticle()

	if err := p.SetMass(0); err != ErrNonPositiveMass {
		t.Errorf("SetMass(0) = %v, want ErrNonPositiveMass", err)
	}
	if err := p.SetMass(4); err != nil {
		t.Errorf("SetMass(4) = %v, want nil", err)
	}
	if got := p.InverseMass(); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("InverseMass() = %v, want 0.25", got)
	}
}

func TestParticle_ImmovableIgnoresForces(t *testing.T) {
	p := NewParticle()
	p.SetPosition(mgl64.Vec3{1, 1, 1})

	p.AddForce(mgl64.Vec3{0, -1e6, 0})
	p.Integrate(1.0)

	if p.Position() != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("immovable particle moved to %v", p.Position())
	}
}

func TestParticle_IntegrateUnderGravity(t *testing.T) {
	p := NewParticle()
	if err := p.SetMass(2); err != nil {
		t.Fatal(err)
	}
	p.SetAcceleration(mgl64.Vec3{0, -10, 0})

	p.Integrate(0.1)

	if got := p.Velocity().Y(); math.Abs(got-(-1.0)) > 1e-12 {
		t.Errorf("velocity.Y = %v, want -1", got)
	}
}

func TestParticle_AccumulatorClearedAfterIntegrate(t *testing.T) {
	p := NewParticle()
	if err := p.SetMass(1); err != nil {
		t.Fatal(err)
	}

	p.AddForce(mgl64.Vec3{10, 0, 0})
	p.Integrate(0.1)
	p.Integrate(0.1)

	// The force acted on the first step only.
	if got := p.Velocity().X(); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("velocity.X = %v, want 1.0", got)
	}
}

func TestParticle_ImplementsIntegrable(t *testing.T) {
	var _ Integrable = NewParticle()
	var _ Integrable = NewRigidBody()
}
