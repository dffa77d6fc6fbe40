package quill

import (
	"math"
	"sort"

	"github.com/akmonengine/quill/collide"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey addresses one cell of the broad-phase grid.
type CellKey struct {
	X, Y, Z int
}

// Cell holds the indices of the primitives overlapping it.
type Cell struct {
	primitiveIndices []int
}

// Pair is a candidate colliding pair for the narrow phase. A and B index
// the world's primitive list, A < B.
type Pair struct {
	A, B *collide.Primitive
}

// SpatialGrid is a uniform hashed grid used as broad phase: it prunes the
// candidate pairs fed to the narrow phase to those whose AABBs share a
// cell. Planes are unbounded, so pairs involving a plane bypass the AABB
// test and are always forwarded.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
}

// NewSpatialGrid creates a grid; numCells is rounded up to a power of two
// so cell hashing reduces to a mask.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].primitiveIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert records a primitive in every cell its AABB touches. Planes are not
// inserted; they pair with everything instead.
func (sg *SpatialGrid) Insert(index int, primitive *collide.Primitive) {
	if primitive.Type == collide.ShapePlane {
		return
	}

	aabb := primitive.GetAABB()
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})

				sg.cells[cellIdx].primitiveIndices = append(
					sg.cells[cellIdx].primitiveIndices,
					index,
				)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].primitiveIndices = sg.cells[i].primitiveIndices[:0]
	}
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].primitiveIndices) > 1 {
			sort.Ints(sg.cells[i].primitiveIndices)
		}
	}
}

// FindPairs walks the grid and returns the candidate pairs in index order,
// so the contact list derived from them is reproducible. Pairs where
// neither body can move, and pairs where both bodies are asleep, are
// dropped here.
func (sg *SpatialGrid) FindPairs(primitives []*collide.Primitive) []Pair {
	pairs := make([]Pair, 0, len(primitives)/2)
	seen := make([]int, len(primitives))
	for i := range seen {
		seen[i] = -1
	}

	for index, primitive := range primitives {
		// Planes pair with every non-plane primitive.
		if primitive.Type == collide.ShapePlane {
			for otherIdx, other := range primitives {
				if other.Type == collide.ShapePlane {
					continue
				}
				if !pairAlive(primitive, other) {
					continue
				}
				if otherIdx < index {
					pairs = append(pairs, Pair{A: other, B: primitive})
				} else {
					pairs = append(pairs, Pair{A: primitive, B: other})
				}
			}
			continue
		}

		aabb := primitive.GetAABB()
		minCell := sg.worldToCell(aabb.Min)
		maxCell := sg.worldToCell(aabb.Max)

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, otherIdx := range sg.cells[cellIdx].primitiveIndices {
						// Each unordered pair once, lowest index first.
						if otherIdx <= index || seen[otherIdx] == index {
							continue
						}
						seen[otherIdx] = index

						other := primitives[otherIdx]
						if !pairAlive(primitive, other) {
							continue
						}

						if aabb.Overlaps(other.GetAABB()) {
							pairs = append(pairs, Pair{A: primitive, B: other})
						}
					}
				}
			}
		}
	}

	return pairs
}

// pairAlive filters pairs the resolver could never act on.
func pairAlive(a, b *collide.Primitive) bool {
	aMoves := a.Body != nil && a.Body.HasFiniteMass()
	bMoves := b.Body != nil && b.Body.HasFiniteMass()
	if !aMoves && !bMoves {
		return false
	}

	aAsleep := a.Body == nil || !a.Body.IsAwake()
	bAsleep := b.Body == nil || !b.Body.IsAwake()

	return !aAsleep || !bAsleep
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
