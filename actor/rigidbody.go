package actor

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrNonPositiveMass is returned when a finite-mass setter receives a mass
// that is zero or negative. Immovable bodies are expressed through
// SetInverseMass(0), never through a zero mass.
var ErrNonPositiveMass = errors.New("actor: mass must be positive")

// SleepEpsilon is the motion threshold below which a body is put to sleep.
// Raising it sends bodies to sleep sooner at the cost of visible early rest.
var SleepEpsilon = 0.3

// motionBaseBias controls the rolling average of body motion used by the
// sleep system. The actual per-step bias is motionBaseBias^dt, so the decay
// is duration independent.
const motionBaseBias = 0.5

// ActivityState is the sleep state machine of a body.
type ActivityState uint8

const (
	// Awake bodies are integrated and respond to forces and impulses.
	Awake ActivityState = iota
	// Asleep bodies are skipped by integration and force application until
	// woken, either explicitly or by a contact with an awake body.
	Asleep
)

// Integrable is the capability shared by RigidBody and Particle: anything
// with force accumulation and a finite-mass test that can be advanced one
// time step.
type Integrable interface {
	Integrate(dt float64)
	AddForce(force mgl64.Vec3)
	HasFiniteMass() bool
	ClearAccumulators()
}

// RigidBody holds the kinematic state of one simulated body plus the data
// derived from it (world inertia tensor, transform matrix).
//
// All accessors return copies; the only mutators of position and orientation
// outside this package are the explicit correction methods used by the
// contact resolver.
type RigidBody struct {
	inverseMass float64

	position    mgl64.Vec3
	orientation mgl64.Quat

	velocity mgl64.Vec3
	rotation mgl64.Vec3 // angular velocity, rad/s

	linearDamping  float64
	angularDamping float64

	// Constant acceleration (typically gravity) applied every step in
	// addition to accumulated forces.
	acceleration          mgl64.Vec3
	lastFrameAcceleration mgl64.Vec3

	forceAccum  mgl64.Vec3
	torqueAccum mgl64.Vec3

	// Inverse inertia tensor in body space, and its world-space image
	// recomputed whenever the orientation changes.
	inverseInertiaTensor      mgl64.Mat3
	inverseInertiaTensorWorld mgl64.Mat3

	// Cached rotation+translation matrix mapping body-local points to
	// world space.
	transformMatrix mgl64.Mat4

	state    ActivityState
	canSleep bool
	motion   float64
}

// NewRigidBody creates an awake body at the origin with identity orientation
// and no damping. The body is immovable (inverse mass zero) until a mass is
// assigned.
func NewRigidBody() *RigidBody {
	b := &RigidBody{
		orientation:    mgl64.QuatIdent(),
		linearDamping:  1.0,
		angularDamping: 1.0,
		canSleep:       true,
		state:          Awake,
		// Seeded like a fresh wake-up, so a body released at rest gets a
		// settle period before it may sleep.
		motion: 2 * SleepEpsilon,
	}
	b.CalculateDerivedData()

	return b
}

// SetMass assigns a finite mass. Zero or negative mass is a precondition
// violation; use SetInverseMass(0) for immovable bodies.
func (b *RigidBody) SetMass(mass float64) error {
	if mass <= 0 {
		return ErrNonPositiveMass
	}
	b.inverseMass = 1.0 / mass

	return nil
}

// SetInverseMass assigns the inverse mass directly. Zero marks the body
// immovable.
func (b *RigidBody) SetInverseMass(inverseMass float64) {
	b.inverseMass = math.Max(inverseMass, 0)
}

// Mass returns the body mass, +Inf for immovable bodies.
func (b *RigidBody) Mass() float64 {
	if b.inverseMass == 0 {
		return math.Inf(1)
	}

	return 1.0 / b.inverseMass
}

func (b *RigidBody) InverseMass() float64 {
	return b.inverseMass
}

// HasFiniteMass reports whether the body can be moved by forces and impulses.
func (b *RigidBody) HasFiniteMass() bool {
	return b.inverseMass > 0
}

// SetInertiaTensor stores the inverse of the given body-space inertia
// tensor. A singular tensor is silently ignored and the stored inverse kept;
// callers wanting a non-rotating body pass a zero matrix to
// SetInverseInertiaTensor instead.
func (b *RigidBody) SetInertiaTensor(inertiaTensor mgl64.Mat3) {
	if inertiaTensor.Det() == 0 {
		return
	}
	b.inverseInertiaTensor = inertiaTensor.Inv()
}

// SetInverseInertiaTensor stores the body-space inverse inertia tensor
// as-is. A zero matrix makes the body unable to rotate.
func (b *RigidBody) SetInverseInertiaTensor(inverseInertiaTensor mgl64.Mat3) {
	b.inverseInertiaTensor = inverseInertiaTensor
}

// InverseInertiaTensorWorld returns the inverse inertia tensor rotated into
// world space, valid as of the last CalculateDerivedData.
func (b *RigidBody) InverseInertiaTensorWorld() mgl64.Mat3 {
	return b.inverseInertiaTensorWorld
}

func (b *RigidBody) SetPosition(position mgl64.Vec3) {
	b.position = position
}

func (b *RigidBody) Position() mgl64.Vec3 {
	return b.position
}

// SetOrientation normalizes and stores the given orientation. A zero
// quaternion is replaced by identity.
func (b *RigidBody) SetOrientation(orientation mgl64.Quat) {
	b.orientation = normalizeOrientation(orientation)
}

func (b *RigidBody) Orientation() mgl64.Quat {
	return b.orientation
}

func (b *RigidBody) SetVelocity(velocity mgl64.Vec3) {
	b.velocity = velocity
}

func (b *RigidBody) Velocity() mgl64.Vec3 {
	return b.velocity
}

// SetRotation sets the angular velocity.
func (b *RigidBody) SetRotation(rotation mgl64.Vec3) {
	b.rotation = rotation
}

// Rotation returns the angular velocity.
func (b *RigidBody) Rotation() mgl64.Vec3 {
	return b.rotation
}

// AddVelocity is a scoped in-place mutator used by the contact resolver when
// applying impulses.
func (b *RigidBody) AddVelocity(delta mgl64.Vec3) {
	b.velocity = b.velocity.Add(delta)
}

// AddRotation is a scoped in-place mutator used by the contact resolver when
// applying impulses.
func (b *RigidBody) AddRotation(delta mgl64.Vec3) {
	b.rotation = b.rotation.Add(delta)
}

// MovePosition translates the body, used by the interpenetration phase of
// the resolver.
func (b *RigidBody) MovePosition(delta mgl64.Vec3) {
	b.position = b.position.Add(delta)
}

// RotateOrientation applies a small rotation given as a scaled axis vector,
// used by the interpenetration phase of the resolver. The orientation is
// renormalized on the next CalculateDerivedData.
func (b *RigidBody) RotateOrientation(rotation mgl64.Vec3, scale float64) {
	omega := mgl64.Quat{W: 0, V: rotation.Mul(scale)}
	b.orientation = b.orientation.Add(omega.Mul(b.orientation).Scale(0.5))
}

// SetDamping sets the per-step multiplicative velocity damping, both in
// [0,1]. 1 means no damping.
func (b *RigidBody) SetDamping(linearDamping, angularDamping float64) {
	b.linearDamping = mgl64.Clamp(linearDamping, 0, 1)
	b.angularDamping = mgl64.Clamp(angularDamping, 0, 1)
}

// SetAcceleration sets the constant acceleration (e.g. gravity) applied
// every step.
func (b *RigidBody) SetAcceleration(acceleration mgl64.Vec3) {
	b.acceleration = acceleration
}

func (b *RigidBody) Acceleration() mgl64.Vec3 {
	return b.acceleration
}

// LastFrameAcceleration returns the total linear acceleration of the
// previous integration step, used by the resolver to cancel
// acceleration-induced closing velocity at resting contacts.
func (b *RigidBody) LastFrameAcceleration() mgl64.Vec3 {
	return b.lastFrameAcceleration
}

// TransformMatrix returns the cached local-to-world transform.
func (b *RigidBody) TransformMatrix() mgl64.Mat4 {
	return b.transformMatrix
}

// PointInWorldSpace maps a body-local point to world space using the cached
// transform.
func (b *RigidBody) PointInWorldSpace(point mgl64.Vec3) mgl64.Vec3 {
	return b.transformMatrix.Mul4x1(point.Vec4(1)).Vec3()
}

// AddForce accumulates a force acting through the centre of mass and wakes
// the body.
func (b *RigidBody) AddForce(force mgl64.Vec3) {
	b.forceAccum = b.forceAccum.Add(force)
	b.SetAwake(true)
}

// AddTorque accumulates a torque and wakes the body.
func (b *RigidBody) AddTorque(torque mgl64.Vec3) {
	b.torqueAccum = b.torqueAccum.Add(torque)
	b.SetAwake(true)
}

// AddForceAtPoint accumulates a force acting at a world-space point,
// producing both force and torque.
func (b *RigidBody) AddForceAtPoint(force, point mgl64.Vec3) {
	arm := point.Sub(b.position)
	b.forceAccum = b.forceAccum.Add(force)
	b.torqueAccum = b.torqueAccum.Add(arm.Cross(force))
	b.SetAwake(true)
}

// AddForceAtBodyPoint accumulates a force acting at a body-local point.
func (b *RigidBody) AddForceAtBodyPoint(force, point mgl64.Vec3) {
	b.AddForceAtPoint(force, b.PointInWorldSpace(point))
}

// ClearAccumulators zeroes the force and torque accumulators.
func (b *RigidBody) ClearAccumulators() {
	b.forceAccum = mgl64.Vec3{}
	b.torqueAccum = mgl64.Vec3{}
}

// CalculateDerivedData restores the unit-quaternion invariant and refreshes
// the transform matrix and world-space inverse inertia tensor. Must be
// called after any direct change to position or orientation.
func (b *RigidBody) CalculateDerivedData() {
	b.orientation = normalizeOrientation(b.orientation)

	b.transformMatrix = mgl64.Translate3D(
		b.position.X(), b.position.Y(), b.position.Z(),
	).Mul4(b.orientation.Mat4())

	// I_world^-1 = R * I_local^-1 * R^T
	rotation := b.orientation.Mat4().Mat3()
	b.inverseInertiaTensorWorld = rotation.
		Mul3(b.inverseInertiaTensor).
		Mul3(rotation.Transpose())
}

// Integrate advances the body state by dt using semi-implicit Euler. It is
// a no-op for immovable or sleeping bodies.
func (b *RigidBody) Integrate(dt float64) {
	if b.inverseMass == 0 || b.state == Asleep {
		return
	}

	b.position = b.position.Add(b.velocity.Mul(dt))

	b.lastFrameAcceleration = b.acceleration.Add(b.forceAccum.Mul(b.inverseMass))
	b.velocity = b.velocity.Add(b.lastFrameAcceleration.Mul(dt))

	angularAcceleration := b.inverseInertiaTensorWorld.Mul3x1(b.torqueAccum)
	b.rotation = b.rotation.Add(angularAcceleration.Mul(dt))

	// The angular velocity acts as a pure quaternion derivative. This is a
	// linear approximation that drifts off the unit sphere, corrected by
	// the renormalization in CalculateDerivedData.
	omega := mgl64.Quat{W: 0, V: b.rotation}
	b.orientation = b.orientation.Add(omega.Mul(b.orientation).Scale(0.5 * dt))

	// Continuous damping formulation, duration independent.
	b.velocity = b.velocity.Mul(math.Pow(b.linearDamping, dt))
	b.rotation = b.rotation.Mul(math.Pow(b.angularDamping, dt))

	b.CalculateDerivedData()
	b.ClearAccumulators()

	if b.canSleep {
		b.updateActivity(dt)
	}
}

// IsAwake reports whether the body participates in integration.
func (b *RigidBody) IsAwake() bool {
	return b.state == Awake
}

// SetAwake transitions the sleep state machine. Waking seeds the motion
// average above the sleep threshold so the body is not put straight back to
// sleep; sleeping zeroes the velocities so the body stays put.
func (b *RigidBody) SetAwake(awake bool) {
	if awake {
		b.state = Awake
		b.motion = 2 * SleepEpsilon
		return
	}

	b.state = Asleep
	b.motion = 0
	b.velocity = mgl64.Vec3{}
	b.rotation = mgl64.Vec3{}
}

// SetCanSleep controls whether the body may ever be put to sleep. Disabling
// it wakes the body if needed.
func (b *RigidBody) SetCanSleep(canSleep bool) {
	b.canSleep = canSleep
	if !canSleep && b.state == Asleep {
		b.SetAwake(true)
	}
}

func (b *RigidBody) CanSleep() bool {
	return b.canSleep
}

// updateActivity folds the current kinetic energy proxy into the rolling
// motion average and puts the body to sleep once it settles under the
// threshold.
func (b *RigidBody) updateActivity(dt float64) {
	currentMotion := b.velocity.Dot(b.velocity) + b.rotation.Dot(b.rotation)

	bias := math.Pow(motionBaseBias, dt)
	b.motion = bias*b.motion + (1-bias)*currentMotion

	if b.motion > 10*SleepEpsilon {
		// Keep the average bounded so a fast body does not need a long
		// settle period once it slows down.
		b.motion = 10 * SleepEpsilon
	}
	if b.motion < SleepEpsilon {
		b.SetAwake(false)
	}
}

func normalizeOrientation(q mgl64.Quat) mgl64.Quat {
	if q.Len() == 0 {
		return mgl64.QuatIdent()
	}

	return q.Normalize()
}
