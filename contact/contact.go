package contact

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// velocityLimit is the closing speed under which restitution is ignored so
// resting contacts do not gain energy from micro-bounces.
const velocityLimit = 0.25

// Contact is one point of contact between two bodies, or between a body and
// a static half-space (Bodies[1] nil). The normal points from Bodies[1]
// toward Bodies[0] by convention.
type Contact struct {
	Bodies [2]*actor.RigidBody

	Normal      mgl64.Vec3
	Point       mgl64.Vec3
	Penetration float64

	Friction    float64
	Restitution float64

	// Derived once per batch before resolution.

	// basis maps contact space to world space; its first column is the
	// contact normal, the other two are tangents.
	basis       mgl64.Mat3
	relativePos [2]mgl64.Vec3

	// Closing velocity at the contact point, in contact coordinates.
	contactVelocity      mgl64.Vec3
	desiredDeltaVelocity float64
}

// SetBodyData binds the contact to its bodies and combined material
// properties.
func (c *Contact) SetBodyData(one, two *actor.RigidBody, friction, restitution float64) {
	c.Bodies[0] = one
	c.Bodies[1] = two
	c.Friction = friction
	c.Restitution = restitution
}

// calculateInternals computes the derived data used during resolution.
func (c *Contact) calculateInternals(dt float64) {
	if c.Bodies[0] == nil {
		c.swapBodies()
	}

	c.calculateContactBasis()

	c.relativePos[0] = c.Point.Sub(c.Bodies[0].Position())
	if c.Bodies[1] != nil {
		c.relativePos[1] = c.Point.Sub(c.Bodies[1].Position())
	}

	c.contactVelocity = c.localVelocity(0, dt)
	if c.Bodies[1] != nil {
		c.contactVelocity = c.contactVelocity.Sub(c.localVelocity(1, dt))
	}

	c.calculateDesiredDeltaVelocity(dt)
}

// swapBodies flips the contact so Bodies[0] is always set, reversing the
// normal to keep the convention intact.
func (c *Contact) swapBodies() {
	c.Normal = c.Normal.Mul(-1)
	c.Bodies[0], c.Bodies[1] = c.Bodies[1], c.Bodies[0]
}

// matchAwakeState wakes a sleeping body when its counterpart is awake.
// Contacts with the static world never wake a body on their own.
func (c *Contact) matchAwakeState() {
	if c.Bodies[1] == nil {
		return
	}

	awake0 := c.Bodies[0].IsAwake()
	awake1 := c.Bodies[1].IsAwake()

	if awake0 != awake1 {
		if awake0 {
			c.Bodies[1].SetAwake(true)
		} else {
			c.Bodies[0].SetAwake(true)
		}
	}
}

// calculateContactBasis builds the orthonormal contact frame. The second
// axis is chosen against the world axis least aligned with the normal, so
// the construction stays stable when the normal is near a world axis.
func (c *Contact) calculateContactBasis() {
	var tangent0, tangent1 mgl64.Vec3
	n := c.Normal

	if math.Abs(n.X()) > math.Abs(n.Y()) {
		s := 1.0 / math.Sqrt(n.Z()*n.Z()+n.X()*n.X())

		tangent0 = mgl64.Vec3{n.Z() * s, 0, -n.X() * s}
		tangent1 = mgl64.Vec3{
			n.Y() * tangent0.X(),
			n.Z()*tangent0.X() - n.X()*tangent0.Z(),
			-n.Y() * tangent0.X(),
		}
	} else {
		s := 1.0 / math.Sqrt(n.Z()*n.Z()+n.Y()*n.Y())

		tangent0 = mgl64.Vec3{0, -n.Z() * s, n.Y() * s}
		tangent1 = mgl64.Vec3{
			n.Y()*tangent0.Z() - n.Z()*tangent0.Y(),
			-n.X() * tangent0.Z(),
			n.X() * tangent0.Y(),
		}
	}

	c.basis = mgl64.Mat3FromCols(n, tangent0, tangent1)
}

// localVelocity returns the velocity of the contact point on one body, in
// contact coordinates, including the planar velocity induced by the last
// frame's acceleration (it feeds the friction calculation).
func (c *Contact) localVelocity(index int, dt float64) mgl64.Vec3 {
	body := c.Bodies[index]

	velocity := body.Rotation().Cross(c.relativePos[index]).Add(body.Velocity())
	contactVelocity := c.basis.Transpose().Mul3x1(velocity)

	accVelocity := c.basis.Transpose().Mul3x1(body.LastFrameAcceleration().Mul(dt))
	accVelocity[0] = 0

	return contactVelocity.Add(accVelocity)
}

// calculateDesiredDeltaVelocity computes the change in closing velocity the
// velocity phase must produce: full rebound for fast impacts, a near-zero
// bias for resting contacts, with acceleration-induced velocity removed so
// resting stacks do not gain energy.
func (c *Contact) calculateDesiredDeltaVelocity(dt float64) {
	accVelocity := 0.0
	if c.Bodies[0].IsAwake() {
		accVelocity += c.Bodies[0].LastFrameAcceleration().Mul(dt).Dot(c.Normal)
	}
	if c.Bodies[1] != nil && c.Bodies[1].IsAwake() {
		accVelocity -= c.Bodies[1].LastFrameAcceleration().Mul(dt).Dot(c.Normal)
	}

	restitution := c.Restitution
	if math.Abs(c.contactVelocity.X()) < velocityLimit {
		restitution = 0
	}

	c.desiredDeltaVelocity = -c.contactVelocity.X() -
		restitution*(c.contactVelocity.X()-accVelocity)
}

// applyPositionChange moves and rotates the bodies to remove the given
// penetration, splitting the correction in proportion to each body's
// inverse mass and inverse inertia along the normal. It returns the linear
// and angular change applied to each body so the caller can refresh the
// penetration of neighbouring contacts.
func (c *Contact) applyPositionChange(penetration float64) (linearChange, angularChange [2]mgl64.Vec3) {
	// Cap on how much of the correction may be taken as rotation; large
	// angular corrections overshoot on long thin bodies.
	const angularLimit = 0.2

	var linearMove, angularMove [2]float64
	var linearInertia, angularInertia [2]float64
	totalInertia := 0.0

	for i, body := range c.Bodies {
		if body == nil {
			continue
		}

		inverseInertia := body.InverseInertiaTensorWorld()

		// How much a unit impulse along the normal rotates the body,
		// measured as point velocity at the contact.
		angularInertiaWorld := c.relativePos[i].Cross(c.Normal)
		angularInertiaWorld = inverseInertia.Mul3x1(angularInertiaWorld)
		angularInertiaWorld = angularInertiaWorld.Cross(c.relativePos[i])
		angularInertia[i] = angularInertiaWorld.Dot(c.Normal)

		linearInertia[i] = body.InverseMass()

		totalInertia += linearInertia[i] + angularInertia[i]
	}

	if totalInertia <= 0 {
		return linearChange, angularChange
	}

	for i, body := range c.Bodies {
		if body == nil {
			continue
		}

		sign := 1.0
		if i == 1 {
			sign = -1
		}
		angularMove[i] = sign * penetration * (angularInertia[i] / totalInertia)
		linearMove[i] = sign * penetration * (linearInertia[i] / totalInertia)

		// Limit the angular part by the size of the lever arm projected
		// off the normal.
		projection := c.relativePos[i].Add(
			c.Normal.Mul(-c.relativePos[i].Dot(c.Normal)))
		maxMagnitude := angularLimit * projection.Len()

		if angularMove[i] < -maxMagnitude {
			totalMove := angularMove[i] + linearMove[i]
			angularMove[i] = -maxMagnitude
			linearMove[i] = totalMove - angularMove[i]
		} else if angularMove[i] > maxMagnitude {
			totalMove := angularMove[i] + linearMove[i]
			angularMove[i] = maxMagnitude
			linearMove[i] = totalMove - angularMove[i]
		}

		if angularMove[i] == 0 || angularInertia[i] == 0 {
			angularChange[i] = mgl64.Vec3{}
		} else {
			targetDirection := c.relativePos[i].Cross(c.Normal)
			angularChange[i] = body.InverseInertiaTensorWorld().
				Mul3x1(targetDirection).
				Mul(angularMove[i] / angularInertia[i])
		}

		linearChange[i] = c.Normal.Mul(linearMove[i])

		body.MovePosition(linearChange[i])
		body.RotateOrientation(angularChange[i], 1)

		// Sleeping bodies will not integrate, so refresh their derived
		// data here or the correction is invisible to the next step.
		if !body.IsAwake() {
			body.CalculateDerivedData()
		}
	}

	return linearChange, angularChange
}

// applyVelocityChange computes and applies the collision impulse, returning
// the velocity and rotation change of each body so the caller can refresh
// neighbouring contacts.
func (c *Contact) applyVelocityChange() (velocityChange, rotationChange [2]mgl64.Vec3) {
	var impulseContact mgl64.Vec3
	if c.Friction == 0 {
		impulseContact = c.frictionlessImpulse()
	} else {
		impulseContact = c.frictionImpulse()
	}

	impulse := c.basis.Mul3x1(impulseContact)

	body0 := c.Bodies[0]
	velocityChange[0] = impulse.Mul(body0.InverseMass())
	rotationChange[0] = body0.InverseInertiaTensorWorld().
		Mul3x1(c.relativePos[0].Cross(impulse))

	body0.AddVelocity(velocityChange[0])
	body0.AddRotation(rotationChange[0])

	if body1 := c.Bodies[1]; body1 != nil {
		velocityChange[1] = impulse.Mul(-body1.InverseMass())
		rotationChange[1] = body1.InverseInertiaTensorWorld().
			Mul3x1(impulse.Cross(c.relativePos[1]))

		body1.AddVelocity(velocityChange[1])
		body1.AddRotation(rotationChange[1])
	}

	return velocityChange, rotationChange
}

// frictionlessImpulse computes the impulse along the contact normal only,
// using the effective inverse mass at the contact.
func (c *Contact) frictionlessImpulse() mgl64.Vec3 {
	deltaVelocity := deltaVelocityPerUnitImpulse(c.Bodies[0], c.relativePos[0], c.Normal)
	if c.Bodies[1] != nil {
		deltaVelocity += deltaVelocityPerUnitImpulse(c.Bodies[1], c.relativePos[1], c.Normal)
	}

	if deltaVelocity <= 0 {
		return mgl64.Vec3{}
	}

	return mgl64.Vec3{c.desiredDeltaVelocity / deltaVelocity, 0, 0}
}

func deltaVelocityPerUnitImpulse(body *actor.RigidBody, relativePos, normal mgl64.Vec3) float64 {
	deltaVelWorld := relativePos.Cross(normal)
	deltaVelWorld = body.InverseInertiaTensorWorld().Mul3x1(deltaVelWorld)
	deltaVelWorld = deltaVelWorld.Cross(relativePos)

	return deltaVelWorld.Dot(normal) + body.InverseMass()
}

// frictionImpulse computes the full three-axis impulse: normal response
// plus tangential friction clamped by Coulomb's law.
func (c *Contact) frictionImpulse() mgl64.Vec3 {
	body0 := c.Bodies[0]
	inverseMass := body0.InverseMass()

	// Velocity change per unit impulse, as a matrix in world coordinates,
	// built from the skew-symmetric cross product form.
	impulseToTorque := skewSymmetric(c.relativePos[0])
	deltaVelWorld := impulseToTorque.
		Mul3(body0.InverseInertiaTensorWorld()).
		Mul3(impulseToTorque).
		Mul(-1)

	if body1 := c.Bodies[1]; body1 != nil {
		impulseToTorque1 := skewSymmetric(c.relativePos[1])
		deltaVelWorld1 := impulseToTorque1.
			Mul3(body1.InverseInertiaTensorWorld()).
			Mul3(impulseToTorque1).
			Mul(-1)

		deltaVelWorld = deltaVelWorld.Add(deltaVelWorld1)
		inverseMass += body1.InverseMass()
	}

	deltaVelocity := c.basis.Transpose().Mul3(deltaVelWorld).Mul3(c.basis)
	deltaVelocity = deltaVelocity.Add(mgl64.Diag3(mgl64.Vec3{inverseMass, inverseMass, inverseMass}))

	if deltaVelocity.Det() == 0 {
		// Degenerate response matrix, fall back to the normal-only
		// impulse.
		return c.frictionlessImpulse()
	}
	impulseMatrix := deltaVelocity.Inv()

	velKill := mgl64.Vec3{
		c.desiredDeltaVelocity,
		-c.contactVelocity.Y(),
		-c.contactVelocity.Z(),
	}

	impulseContact := impulseMatrix.Mul3x1(velKill)

	planarImpulse := math.Sqrt(
		impulseContact.Y()*impulseContact.Y() +
			impulseContact.Z()*impulseContact.Z())

	if planarImpulse > impulseContact.X()*c.Friction {
		// Dynamic friction: direction kept, magnitude clamped to the
		// friction cone, normal impulse recomputed for the coupled
		// system.
		impulseContact[1] /= planarImpulse
		impulseContact[2] /= planarImpulse

		normalResponse := deltaVelocity.At(0, 0) +
			deltaVelocity.At(0, 1)*c.Friction*impulseContact.Y() +
			deltaVelocity.At(0, 2)*c.Friction*impulseContact.Z()

		impulseContact[0] = c.desiredDeltaVelocity / normalResponse
		impulseContact[1] *= c.Friction * impulseContact.X()
		impulseContact[2] *= c.Friction * impulseContact.X()
	}

	return impulseContact
}

func skewSymmetric(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0, -v.Z(), v.Y()},
		mgl64.Vec3{v.Z(), 0, -v.X()},
		mgl64.Vec3{-v.Y(), v.X(), 0},
	)
}
