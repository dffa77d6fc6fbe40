package collide

import (
	"math"

	"github.com/akmonengine/quill/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// detectFunc runs one narrow-phase test, appends 0+ contacts to the batch
// and returns the count added. Detect functions never mutate body state.
type detectFunc func(a, b *Primitive, batch *contact.Batch) int

// pairDispatch maps ordered shape-type pairs to their test. Both argument
// orders are registered so callers never need to sort a pair; unsupported
// combinations (plane against plane) simply have no entry.
var pairDispatch = map[[2]ShapeType]detectFunc{
	{ShapeSphere, ShapeSphere}: sphereAndSphere,
	{ShapeSphere, ShapePlane}:  sphereAndHalfSpace,
	{ShapePlane, ShapeSphere}:  swapped(sphereAndHalfSpace),
	{ShapeBox, ShapePlane}:     boxAndHalfSpace,
	{ShapePlane, ShapeBox}:     swapped(boxAndHalfSpace),
	{ShapeBox, ShapeSphere}:    boxAndSphere,
	{ShapeSphere, ShapeBox}:    swapped(boxAndSphere),
	{ShapeBox, ShapeBox}:       boxAndBox,
}

func swapped(fn detectFunc) detectFunc {
	return func(a, b *Primitive, batch *contact.Batch) int {
		return fn(b, a, batch)
	}
}

// Detect runs the narrow-phase test for a pair of primitives, appending any
// contacts to the batch and returning the number added.
func Detect(a, b *Primitive, batch *contact.Batch) int {
	if !batch.HasRoom() {
		return 0
	}

	fn, ok := pairDispatch[[2]ShapeType{a.Type, b.Type}]
	if !ok {
		return 0
	}

	return fn(a, b, batch)
}

// combineSurfaces averages the material properties of the two primitives.
func combineSurfaces(a, b *Primitive) (friction, restitution float64) {
	return (a.Surface.Friction + b.Surface.Friction) / 2,
		(a.Surface.Restitution + b.Surface.Restitution) / 2
}

func transformPoint(m mgl64.Mat4, point mgl64.Vec3) mgl64.Vec3 {
	return m.Mul4x1(point.Vec4(1)).Vec3()
}

func sphereAndSphere(a, b *Primitive, batch *contact.Batch) int {
	positionA := a.Axis(3)
	positionB := b.Axis(3)

	midline := positionA.Sub(positionB)
	size := midline.Len()

	if size >= a.Radius+b.Radius {
		return 0
	}

	c := &contact.Contact{}
	if size <= 0 {
		// Coincident centres: any normal works, pick a stable one
		// instead of dividing by zero.
		c.Normal = mgl64.Vec3{0, 1, 0}
		c.Point = positionA
		c.Penetration = a.Radius + b.Radius
	} else {
		c.Normal = midline.Mul(1.0 / size)
		c.Point = positionA.Sub(midline.Mul(0.5))
		c.Penetration = a.Radius + b.Radius - size
	}

	friction, restitution := combineSurfaces(a, b)
	c.SetBodyData(a.Body, b.Body, friction, restitution)

	if !batch.Add(c) {
		return 0
	}

	return 1
}

func sphereAndHalfSpace(sphere, plane *Primitive, batch *contact.Batch) int {
	position := sphere.Axis(3)

	// Signed distance of the sphere surface to the plane.
	distance := plane.Normal.Dot(position) - sphere.Radius - plane.Offset
	if distance >= 0 {
		return 0
	}

	c := &contact.Contact{
		Normal:      plane.Normal,
		Point:       position.Sub(plane.Normal.Mul(distance + sphere.Radius)),
		Penetration: -distance,
	}

	friction, restitution := combineSurfaces(sphere, plane)
	c.SetBodyData(sphere.Body, plane.Body, friction, restitution)

	if !batch.Add(c) {
		return 0
	}

	return 1
}

// boxVertices are the half-extent sign combinations of the 8 box corners.
var boxVertices = [8]mgl64.Vec3{
	{1, 1, 1}, {-1, 1, 1}, {1, -1, 1}, {-1, -1, 1},
	{1, 1, -1}, {-1, 1, -1}, {1, -1, -1}, {-1, -1, -1},
}

// boxAndHalfSpace emits one contact per box vertex inside the half-space,
// up to 8, which is what makes resting boxes stack stably.
func boxAndHalfSpace(box, plane *Primitive, batch *contact.Batch) int {
	friction, restitution := combineSurfaces(box, plane)
	added := 0

	for _, signs := range boxVertices {
		vertex := transformPoint(box.Transform(), mgl64.Vec3{
			signs.X() * box.HalfExtents.X(),
			signs.Y() * box.HalfExtents.Y(),
			signs.Z() * box.HalfExtents.Z(),
		})

		distance := vertex.Dot(plane.Normal)
		if distance > plane.Offset {
			continue
		}

		c := &contact.Contact{
			Normal: plane.Normal,
			// The vertex projected back onto the plane surface.
			Point:       vertex.Add(plane.Normal.Mul(plane.Offset - distance)),
			Penetration: plane.Offset - distance,
		}
		c.SetBodyData(box.Body, plane.Body, friction, restitution)

		if !batch.Add(c) {
			return added
		}
		added++
	}

	return added
}

func boxAndSphere(box, sphere *Primitive, batch *contact.Batch) int {
	centre := sphere.Axis(3)
	relCentre := transformPoint(box.Transform().Inv(), centre)

	// Early out on any separated axis.
	if math.Abs(relCentre.X())-sphere.Radius > box.HalfExtents.X() ||
		math.Abs(relCentre.Y())-sphere.Radius > box.HalfExtents.Y() ||
		math.Abs(relCentre.Z())-sphere.Radius > box.HalfExtents.Z() {
		return 0
	}

	closest := mgl64.Vec3{
		mgl64.Clamp(relCentre.X(), -box.HalfExtents.X(), box.HalfExtents.X()),
		mgl64.Clamp(relCentre.Y(), -box.HalfExtents.Y(), box.HalfExtents.Y()),
		mgl64.Clamp(relCentre.Z(), -box.HalfExtents.Z(), box.HalfExtents.Z()),
	}

	// Centre inside the box: clamp changed nothing, push the closest
	// point out through the nearest face instead.
	inside := closest == relCentre
	if inside {
		nearest := 0
		nearestDepth := math.Inf(1)
		for i := 0; i < 3; i++ {
			depth := box.HalfExtents[i] - math.Abs(relCentre[i])
			if depth < nearestDepth {
				nearestDepth = depth
				nearest = i
			}
		}
		closest[nearest] = math.Copysign(box.HalfExtents[nearest], relCentre[nearest])
	}

	offset := closest.Sub(relCentre)
	distanceSquared := offset.Dot(offset)
	if !inside && distanceSquared > sphere.Radius*sphere.Radius {
		return 0
	}

	closestWorld := transformPoint(box.Transform(), closest)
	distance := math.Sqrt(distanceSquared)

	c := &contact.Contact{Point: closestWorld}
	if distance > 0 {
		c.Normal = closestWorld.Sub(centre).Mul(1.0 / distance)
	} else {
		// Centre exactly on a face; use that face's outward axis.
		c.Normal = box.Axis(1)
	}

	if inside {
		c.Normal = c.Normal.Mul(-1)
		c.Penetration = sphere.Radius + distance
	} else {
		c.Penetration = sphere.Radius - distance
	}

	friction, restitution := combineSurfaces(box, sphere)
	c.SetBodyData(box.Body, sphere.Body, friction, restitution)

	if !batch.Add(c) {
		return 0
	}

	return 1
}

// transformToAxis projects the box half extents onto an axis.
func transformToAxis(box *Primitive, axis mgl64.Vec3) float64 {
	return box.HalfExtents.X()*math.Abs(axis.Dot(box.Axis(0))) +
		box.HalfExtents.Y()*math.Abs(axis.Dot(box.Axis(1))) +
		box.HalfExtents.Z()*math.Abs(axis.Dot(box.Axis(2)))
}

// penetrationOnAxis returns the overlap of the two boxes projected onto the
// axis; negative means the axis separates them.
func penetrationOnAxis(a, b *Primitive, axis, toCentre mgl64.Vec3) float64 {
	projectA := transformToAxis(a, axis)
	projectB := transformToAxis(b, axis)

	distance := math.Abs(toCentre.Dot(axis))

	return projectA + projectB - distance
}

// satState tracks the axis of minimum overlap across the 15 candidate axes.
// Face axes are tested first and the comparison is strict, so a numerically
// equal overlap keeps the face axis over the edge axis.
type satState struct {
	bestOverlap float64
	bestCase    int
}

// tryAxis folds one candidate axis into the state. It reports false when
// the axis separates the boxes; near-zero axes (parallel edges) are skipped
// rather than normalized into noise.
func (s *satState) tryAxis(a, b *Primitive, axis, toCentre mgl64.Vec3, index int) bool {
	if axis.Dot(axis) < 1e-4 {
		return true
	}
	axis = axis.Normalize()

	overlap := penetrationOnAxis(a, b, axis, toCentre)
	if overlap < 0 {
		return false
	}
	if overlap < s.bestOverlap {
		s.bestOverlap = overlap
		s.bestCase = index
	}

	return true
}

// fillPointFaceBoxBox emits the face-contact case: the axis of minimum
// overlap is a face normal of box a, and the contact point is the vertex of
// box b deepest along it.
func fillPointFaceBoxBox(a, b *Primitive, toCentre mgl64.Vec3, batch *contact.Batch, best int, penetration float64) int {
	normal := a.Axis(best)
	if normal.Dot(toCentre) > 0 {
		normal = normal.Mul(-1)
	}

	vertex := b.HalfExtents
	for i := 0; i < 3; i++ {
		if b.Axis(i).Dot(normal) < 0 {
			vertex[i] = -vertex[i]
		}
	}

	c := &contact.Contact{
		Normal:      normal,
		Point:       transformPoint(b.Transform(), vertex),
		Penetration: penetration,
	}

	friction, restitution := combineSurfaces(a, b)
	c.SetBodyData(a.Body, b.Body, friction, restitution)

	if !batch.Add(c) {
		return 0
	}

	return 1
}

// edgeContactPoint finds the point of closest approach between two edges,
// given a point on each edge, its direction and half length. When the edges
// are near parallel or the closest approach falls outside an edge, the
// useOne flag decides which edge midpoint to fall back on.
func edgeContactPoint(pOne, dOne mgl64.Vec3, oneSize float64, pTwo, dTwo mgl64.Vec3, twoSize float64, useOne bool) mgl64.Vec3 {
	smOne := dOne.Dot(dOne)
	smTwo := dTwo.Dot(dTwo)
	dpOneTwo := dTwo.Dot(dOne)

	toSt := pOne.Sub(pTwo)
	dpStaOne := dOne.Dot(toSt)
	dpStaTwo := dTwo.Dot(toSt)

	denominator := smOne*smTwo - dpOneTwo*dpOneTwo

	// Parallel edges have no unique closest point.
	if math.Abs(denominator) < 1e-4 {
		if useOne {
			return pOne
		}
		return pTwo
	}

	mua := (dpOneTwo*dpStaTwo - smTwo*dpStaOne) / denominator
	mub := (smOne*dpStaTwo - dpOneTwo*dpStaOne) / denominator

	if mua > oneSize || mua < -oneSize || mub > twoSize || mub < -twoSize {
		if useOne {
			return pOne
		}
		return pTwo
	}

	cOne := pOne.Add(dOne.Mul(mua))
	cTwo := pTwo.Add(dTwo.Mul(mub))

	return cOne.Mul(0.5).Add(cTwo.Mul(0.5))
}

// boxAndBox runs the separating-axis test over the 15 candidate axes (6
// face normals, 9 edge-edge cross products). Separation on any axis means
// no contact; otherwise the axis of minimum overlap decides between a
// point-face and an edge-edge contact. One contact is emitted per pair.
func boxAndBox(a, b *Primitive, batch *contact.Batch) int {
	toCentre := b.Axis(3).Sub(a.Axis(3))

	state := satState{bestOverlap: math.MaxFloat64, bestCase: -1}

	for i := 0; i < 3; i++ {
		if !state.tryAxis(a, b, a.Axis(i), toCentre, i) {
			return 0
		}
	}
	for i := 0; i < 3; i++ {
		if !state.tryAxis(a, b, b.Axis(i), toCentre, 3+i) {
			return 0
		}
	}

	// Remember the best of the face axes for the edge-edge fallback
	// decision.
	bestSingleAxis := state.bestCase

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := a.Axis(i).Cross(b.Axis(j))
			if !state.tryAxis(a, b, axis, toCentre, 6+i*3+j) {
				return 0
			}
		}
	}

	if state.bestCase < 0 {
		// Every candidate axis was degenerate; treat as no contact
		// rather than guessing a normal.
		return 0
	}

	switch {
	case state.bestCase < 3:
		return fillPointFaceBoxBox(a, b, toCentre, batch, state.bestCase, state.bestOverlap)

	case state.bestCase < 6:
		return fillPointFaceBoxBox(b, a, toCentre.Mul(-1), batch, state.bestCase-3, state.bestOverlap)

	default:
		best := state.bestCase - 6
		aAxisIndex := best / 3
		bAxisIndex := best % 3
		aAxis := a.Axis(aAxisIndex)
		bAxis := b.Axis(bAxisIndex)

		axis := aAxis.Cross(bAxis).Normalize()
		if axis.Dot(toCentre) > 0 {
			axis = axis.Mul(-1)
		}

		// Midpoints of the two contributing edges.
		ptOnOneEdge := a.HalfExtents
		ptOnTwoEdge := b.HalfExtents
		for i := 0; i < 3; i++ {
			if i == aAxisIndex {
				ptOnOneEdge[i] = 0
			} else if a.Axis(i).Dot(axis) > 0 {
				ptOnOneEdge[i] = -ptOnOneEdge[i]
			}

			if i == bAxisIndex {
				ptOnTwoEdge[i] = 0
			} else if b.Axis(i).Dot(axis) < 0 {
				ptOnTwoEdge[i] = -ptOnTwoEdge[i]
			}
		}

		pOne := transformPoint(a.Transform(), ptOnOneEdge)
		pTwo := transformPoint(b.Transform(), ptOnTwoEdge)

		vertex := edgeContactPoint(
			pOne, aAxis, a.HalfExtents[aAxisIndex],
			pTwo, bAxis, b.HalfExtents[bAxisIndex],
			bestSingleAxis > 2,
		)

		c := &contact.Contact{
			Normal:      axis,
			Point:       vertex,
			Penetration: state.bestOverlap,
		}

		friction, restitution := combineSurfaces(a, b)
		c.SetBodyData(a.Body, b.Body, friction, restitution)

		if !batch.Add(c) {
			return 0
		}

		return 1
	}
}
