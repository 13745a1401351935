package quill

import (
	"math"
	"sort"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultCellSize = 2.0
	DefaultNumCells = 1024

	// bodies spanning more cells than this are tested against every body
	maxCellsPerBody = 64

	// cell coordinates are clamped to this range
	maxCellCoordinate = 1 << 40
)

// CellKey is the integer coordinate of a grid cell
type CellKey struct {
	X, Y, Z int
}

type Cell struct {
	bodyIndices []int
}

// Pair is a couple of bodies whose world bounds overlap
type Pair struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	indexA, indexB int
}

// SpatialGrid is a uniform hashed grid used as broad phase
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	// indices of the bodies too large for the grid
	large []int
	seen  []bool
}

// NewSpatialGrid creates a grid; numCells is rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
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

// Insert adds the body to every cell its world bounds cover. Bodies without
// shape are ignored.
func (sg *SpatialGrid) Insert(bodyIndex int, body *actor.RigidBody) {
	if !body.HasShape() {
		return
	}

	minCell, maxCell := sg.cellRange(body.Shape().GetBoundsWorld())
	if cellCount(minCell, maxCell) > maxCellsPerBody {
		sg.large = append(sg.large, bodyIndex)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].bodyIndices = append(sg.cells[cellIdx].bodyIndices, bodyIndex)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.large = sg.large[:0]
}

// FindPairs returns the candidate pairs ordered by body index. Kinematic
// pairs and pairs of sleeping bodies are left out.
func (sg *SpatialGrid) FindPairs(bodies []*actor.RigidBody) []Pair {
	pairs := make([]Pair, 0, len(bodies))

	if cap(sg.seen) < len(bodies) {
		sg.seen = make([]bool, len(bodies))
	}
	sg.seen = sg.seen[:len(bodies)]

	isLarge := make([]bool, len(bodies))
	for _, idx := range sg.large {
		isLarge[idx] = true
	}

	addPair := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		a, b := bodies[i], bodies[j]

		if a.IsKinematic() && b.IsKinematic() {
			return
		}
		if !a.IsAwake() && !b.IsAwake() {
			return
		}
		if a.Shape().GetBoundsWorld().Overlaps(b.Shape().GetBoundsWorld()) {
			pairs = append(pairs, Pair{BodyA: a, BodyB: b, indexA: i, indexB: j})
		}
	}

	for bodyIdx, body := range bodies {
		if !body.HasShape() {
			continue
		}

		// Large bodies never appear in cells: they test every body
		// themselves, except large ones already walked
		if isLarge[bodyIdx] {
			for otherIdx, other := range bodies {
				if otherIdx == bodyIdx || !other.HasShape() || (isLarge[otherIdx] && otherIdx < bodyIdx) {
					continue
				}
				addPair(bodyIdx, otherIdx)
			}
			continue
		}

		clear(sg.seen)
		minCell, maxCell := sg.cellRange(body.Shape().GetBoundsWorld())
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					for _, otherIdx := range sg.cells[sg.hashCell(CellKey{x, y, z})].bodyIndices {
						// Each pair is reported once, from its lowest index
						if otherIdx <= bodyIdx || sg.seen[otherIdx] {
							continue
						}
						sg.seen[otherIdx] = true
						addPair(bodyIdx, otherIdx)
					}
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].indexA != pairs[j].indexA {
			return pairs[i].indexA < pairs[j].indexA
		}
		return pairs[i].indexB < pairs[j].indexB
	})

	return pairs
}

func (sg *SpatialGrid) cellRange(bounds actor.AABB) (CellKey, CellKey) {
	return sg.worldToCell(bounds.Min), sg.worldToCell(bounds.Max)
}

// cellCount multiplies in float64, the spans of huge bounds overflow int
func cellCount(minCell, maxCell CellKey) float64 {
	span := func(low, high int) float64 {
		return float64(high) - float64(low) + 1
	}

	return span(minCell.X, maxCell.X) * span(minCell.Y, maxCell.Y) * span(minCell.Z, maxCell.Z)
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: sg.toCell(pos.X()),
		Y: sg.toCell(pos.Y()),
		Z: sg.toCell(pos.Z()),
	}
}

// toCell clamps the coordinate so that converting it to int stays defined
func (sg *SpatialGrid) toCell(coordinate float64) int {
	cell := math.Floor(coordinate / sg.cellSize)
	switch {
	case math.IsNaN(cell):
		return 0
	case cell > maxCellCoordinate:
		return maxCellCoordinate
	case cell < -maxCellCoordinate:
		return -maxCellCoordinate
	}

	return int(cell)
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}

// BroadPhase rebuilds the grid from the bodies and returns the candidate pairs
func BroadPhase(grid *SpatialGrid, bodies []*actor.RigidBody) []Pair {
	grid.Clear()
	for i, body := range bodies {
		grid.Insert(i, body)
	}

	return grid.FindPairs(bodies)
}
