package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// Helper to create a dynamic unit-mass body with a unit-sphere inertia
// tensor, awake and undamped.
func createDynamicBody(position mgl64.Vec3) *RigidBody {
	b := NewRigidBody()
	if err := b.SetMass(1.0); err != nil {
		panic(err)
	}
	i := 0.4 // solid sphere, m=1, r=1
	b.SetInertiaTensor(mgl64.Diag3(mgl64.Vec3{i, i, i}))
	b.SetPosition(position)
	b.CalculateDerivedData()

	return b
}

func TestRigidBody_SetMass_RejectsNonPositive(t *testing.T) {
	b := NewRigidBody()

	if err := b.SetMass(0); err != ErrNonPositiveMass {
		t.Errorf("SetMass(0) = %v, want ErrNonPositiveMass", err)
	}
	if err := b.SetMass(-3); err != ErrNonPositiveMass {
		t.Errorf("SetMass(-3) = %v, want ErrNonPositiveMass", err)
	}
	if err := b.SetMass(2); err != nil {
		t.Errorf("SetMass(2) = %v, want nil", err)
	}
	if got := b.Mass(); got != 2 {
		t.Errorf("Mass() = %v, want 2", got)
	}
}

func TestRigidBody_ImmovableBodyNeverMoves(t *testing.T) {
	b := NewRigidBody()
	b.SetInverseMass(0)
	b.SetPosition(mgl64.Vec3{1, 2, 3})
	b.CalculateDerivedData()

	originalPosition := b.Position()
	originalOrientation := b.Orientation()

	for _i_ := 0; _i_ < 100; _i_++ {
		b.AddForce(mgl64.Vec3{1e6, 0, 0})
		b.AddTorque(mgl64.Vec3{0, 1e6, 0})
		b.Integrate(1.0 / 60.0)
	}

	if b.Position() != originalPosition {
		t.Errorf("immovable body moved: %v -> %v", originalPosition, b.Position())
	}
	if b.Orientation() != originalOrientation {
		t.Errorf("immovable body rotated: %v -> %v", originalOrientation, b.Orientation())
	}
}

func TestRigidBody_IntegrateAdvancesPosition(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})
	b.SetVelocity(mgl64.Vec3{1, 0, 0})

	b.Integrate(0.5)

	if got := b.Position().X(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("position.X = %v, want 0.5", got)
	}
}

func TestRigidBody_ForceProducesAcceleration(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})

	b.AddForce(mgl64.Vec3{10, 0, 0})
	b.Integrate(0.1)

	// v = F * invMass * dt
	if got := b.Velocity().X(); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("velocity.X = %v, want 1.0", got)
	}

	// Accumulators are cleared after integration.
	b.Integrate(0.1)
	if got := b.Velocity().X(); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("velocity.X after second step = %v, accumulator not cleared", got)
	}
}

func TestRigidBody_ForceAtPointProducesTorque(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})

	// Push +x at a point above the centre: spins about -z.
	b.AddForceAtPoint(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})
	b.Integrate(0.1)

	if got := b.Rotation().Z(); got >= 0 {
		t.Errorf("rotation.Z = %v, want negative", got)
	}
	if got := b.Velocity().X(); got <= 0 {
		t.Errorf("velocity.X = %v, want positive", got)
	}
}

func TestRigidBody_OrientationStaysUnit(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})
	b.SetRotation(mgl64.Vec3{1, 2, 3})

	for _i_ := 0; _i_ < 500; _i_++ {
		b.Integrate(0.01)

		if norm := b.Orientation().Len(); math.Abs(norm-1) > 1e-9 {
			t.Fatalf("orientation norm drifted to %v", norm)
		}
	}
}

func TestRigidBody_DampingIsDurationIndependent(t *testing.T) {
	// One step of dt must damp exactly as much as two steps of dt/2.
	one := createDynamicBody(mgl64.Vec3{0, 0, 0})
	two := createDynamicBody(mgl64.Vec3{0, 0, 0})
	one.SetDamping(0.5, 1)
	two.SetDamping(0.5, 1)
	one.SetVelocity(mgl64.Vec3{8, 0, 0})
	two.SetVelocity(mgl64.Vec3{8, 0, 0})

	one.Integrate(0.5)

	two.Integrate(0.25)
	two.Integrate(0.25)

	if a, b := one.Velocity().X(), two.Velocity().X(); math.Abs(a-b) > 1e-9 {
		t.Errorf("damping depends on step size: %v vs %v", a, b)
	}
}

func TestRigidBody_SingularInertiaTensorLeavesInverseUnchanged(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})

	before := b.inverseInertiaTensor
	b.SetInertiaTensor(mgl64.Mat3{}) // singular

	if b.inverseInertiaTensor != before {
		t.Errorf("singular tensor changed the stored inverse")
	}
}

func TestRigidBody_TransformMatrixMapsLocalPoints(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{1, 2, 3})
	b.SetOrientation(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	b.CalculateDerivedData()

	// Local +x rotates onto +y, then translates.
	got := b.PointInWorldSpace(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{1, 3, 3}

	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("PointInWorldSpace = %v, want %v", got, want)
	}
}

func TestRigidBody_SleepStateMachine(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})

	if !b.IsAwake() {
		t.Fatal("new body should be awake")
	}

	// A still body settles below the motion threshold and sleeps.
	for i := 0; i < 600 && b.IsAwake(); i++ {
		b.Integrate(1.0 / 60.0)
	}
	if b.IsAwake() {
		t.Fatal("still body never fell asleep")
	}
	if b.Velocity() != (mgl64.Vec3{}) || b.Rotation() != (mgl64.Vec3{}) {
		t.Error("sleeping body kept velocity")
	}

	// Sleeping bodies are skipped by integration.
	b.SetVelocity(mgl64.Vec3{1, 0, 0})
	position := b.Position()
	b.Integrate(1.0 / 60.0)
	if b.Position() != position {
		t.Error("sleeping body integrated")
	}

	// Forces wake it up, seeded above the threshold.
	b.AddForce(mgl64.Vec3{1, 0, 0})
	if !b.IsAwake() {
		t.Error("force did not wake the body")
	}
}

func TestRigidBody_CannotSleepWhenDisabled(t *testing.T) {
	b := createDynamicBody(mgl64.Vec3{0, 0, 0})
	b.SetCanSleep(false)

	for _i_ := 0; _i_ < 600; _i_++ {
		b.Integrate(1.0 / 60.0)
	}

	if !b.IsAwake() {
		t.Error("body with sleeping disabled fell asleep")
	}
}
