package collide

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType tags the geometric variant of a Primitive.
type ShapeType int

const (
	ShapeSphere ShapeType = iota
	ShapeBox
	ShapePlane
)

// Surface carries the material properties combined into contacts when two
// primitives touch.
type Surface struct {
	Friction    float64
	Restitution float64
}

// Primitive is a collision shape bound to a rigid body. It is a tagged
// variant: only the fields of its ShapeType are meaningful. The detector
// never mutates primitives beyond the cached transform refreshed by
// CalculateInternals.
type Primitive struct {
	Type    ShapeType
	Body    *actor.RigidBody // nil for static planes
	Surface Surface

	// Sphere
	Radius float64

	// Box
	HalfExtents mgl64.Vec3

	// Plane half-space: points p with Normal·p < Offset are inside.
	Normal mgl64.Vec3
	Offset float64

	// Placement of the shape relative to the body origin.
	offset mgl64.Mat4

	// Derived per step.
	transform mgl64.Mat4
	aabb      AABB
}

// NewSphere creates a sphere primitive owned by the given body.
func NewSphere(body *actor.RigidBody, radius float64, surface Surface) *Primitive {
	p := &Primitive{
		Type:    ShapeSphere,
		Body:    body,
		Surface: surface,
		Radius:  radius,
		offset:  mgl64.Ident4(),
	}
	p.CalculateInternals()

	return p
}

// NewBox creates an oriented box primitive owned by the given body.
func NewBox(body *actor.RigidBody, halfExtents mgl64.Vec3, surface Surface) *Primitive {
	p := &Primitive{
		Type:        ShapeBox,
		Body:        body,
		Surface:     surface,
		HalfExtents: halfExtents,
		offset:      mgl64.Ident4(),
	}
	p.CalculateInternals()

	return p
}

// NewPlane creates a static half-space. The normal must be unit length;
// points with Normal·p < Offset are inside the solid half.
func NewPlane(normal mgl64.Vec3, offset float64, surface Surface) *Primitive {
	p := &Primitive{
		Type:    ShapePlane,
		Surface: surface,
		Normal:  normal,
		Offset:  offset,
		offset:  mgl64.Ident4(),
	}
	p.CalculateInternals()

	return p
}

// SetOffset places the shape relative to its body's origin.
func (p *Primitive) SetOffset(offset mgl64.Mat4) {
	p.offset = offset
	p.CalculateInternals()
}

// CalculateInternals refreshes the cached world transform and AABB from the
// owning body. Call once per step after integration, before detection.
func (p *Primitive) CalculateInternals() {
	if p.Body != nil {
		p.transform = p.Body.TransformMatrix().Mul4(p.offset)
	} else {
		p.transform = p.offset
	}
	p.computeAABB()
}

// Transform returns the cached local-to-world transform of the shape.
func (p *Primitive) Transform() mgl64.Mat4 {
	return p.transform
}

// Axis returns one basis axis of the cached transform; index 3 is the
// world-space position of the shape.
func (p *Primitive) Axis(index int) mgl64.Vec3 {
	return p.transform.Col(index).Vec3()
}

// GetAABB returns the bounding box computed by the last CalculateInternals.
func (p *Primitive) GetAABB() AABB {
	return p.aabb
}

func (p *Primitive) computeAABB() {
	switch p.Type {
	case ShapeSphere:
		radiusVec := mgl64.Vec3{p.Radius, p.Radius, p.Radius}
		centre := p.Axis(3)
		p.aabb = AABB{Min: centre.Sub(radiusVec), Max: centre.Add(radiusVec)}

	case ShapeBox:
		// Project the rotated half extents on each world axis.
		centre := p.Axis(3)
		var extent mgl64.Vec3
		for i := 0; i < 3; i++ {
			extent[i] = math.Abs(p.Axis(0)[i])*p.HalfExtents.X() +
				math.Abs(p.Axis(1)[i])*p.HalfExtents.Y() +
				math.Abs(p.Axis(2)[i])*p.HalfExtents.Z()
		}
		p.aabb = AABB{Min: centre.Sub(extent), Max: centre.Add(extent)}

	case ShapePlane:
		// A slab along the normal, unbounded in the tangent directions.
		const infinity = 1e10
		point := p.Normal.Mul(p.Offset)
		min := point.Sub(p.Normal.Mul(1.0))
		max := point
		for i := 0; i < 3; i++ {
			if math.Abs(p.Normal[i]) < 1.0 {
				min[i] = -infinity
				max[i] = infinity
			}
		}
		p.aabb = AABB{Min: min, Max: max}
	}
}

// SphereInertia returns the inertia tensor of a solid sphere.
func SphereInertia(mass, radius float64) mgl64.Mat3 {
	i := 0.4 * mass * radius * radius

	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

// BoxInertia returns the inertia tensor of a solid box with the given half
// extents.
func BoxInertia(mass float64, halfExtents mgl64.Vec3) mgl64.Mat3 {
	x := halfExtents.X() * 2
	y := halfExtents.Y() * 2
	z := halfExtents.Z() * 2

	factor := mass / 12.0

	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}
