package epa

import (
	"fmt"
	"sync"

	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Face is a triangle of the expanding polytope
type Face struct {
	Points   [3]mgl64.Vec3
	Normal   mgl64.Vec3 // unit, pointing out of the polytope
	Distance float64    // from the origin to the face plane, never negative
}

// EdgeEntry counts how many visible faces share an edge.
// An edge is on the horizon if it appears exactly once.
type EdgeEntry struct {
	A, B  mgl64.Vec3
	Count int
}

// PolytopeBuilder manages polytope expansion with reusable buffers.
type PolytopeBuilder struct {
	faces []Face

	// scratch buffers, reused across iterations
	kept           []Face
	edges          []EdgeEntry
	visibleIndices []int

	// interior stays inside the polytope while it grows
	interior mgl64.Vec3
}

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			faces:          make([]Face, 0, polytopeInitialCapacity),
			kept:           make([]Face, 0, polytopeInitialCapacity),
			edges:          make([]EdgeEntry, 0, polytopeInitialCapacity),
			visibleIndices: make([]int, 0, polytopeInitialCapacity),
		}
	},
}

func (b *PolytopeBuilder) Reset() {
	b.faces = b.faces[:0]
	b.kept = b.kept[:0]
	b.edges = b.edges[:0]
	b.visibleIndices = b.visibleIndices[:0]
	b.interior = mgl64.Vec3{}
}

func (b *PolytopeBuilder) Faces() []Face {
	return b.faces
}

// BuildInitialFaces creates the 4 faces of the GJK tetrahedron
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return fmt.Errorf("%w: %d points", ErrInvalidSimplex, simplex.Count)
	}

	p0, p1, p2, p3 := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]

	e1, e2, e3 := p1.Sub(p0), p2.Sub(p0), p3.Sub(p0)
	volume := e1.Dot(e2.Cross(e3))
	if volume*volume <= flatEpsilon*e1.LenSqr()*e2.LenSqr()*e3.LenSqr() {
		return fmt.Errorf("%w: flat tetrahedron", ErrInvalidSimplex)
	}

	b.interior = p0.Add(p1).Add(p2).Add(p3).Mul(0.25)

	candidates := [4][3]mgl64.Vec3{
		{p0, p1, p2},
		{p0, p2, p3},
		{p0, p3, p1},
		{p1, p3, p2},
	}
	for _, c := range candidates {
		face, ok := b.createFaceOutward(c[0], c[1], c[2])
		if !ok {
			return fmt.Errorf("%w: flat tetrahedron", ErrInvalidSimplex)
		}
		b.faces = append(b.faces, face)
	}

	return nil
}

// createFaceOutward orients the face normal away from the polytope interior
func (b *PolytopeBuilder) createFaceOutward(p0, p1, p2 mgl64.Vec3) (Face, bool) {
	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	length := normal.Len()
	if length < 1e-12 {
		return Face{}, false
	}
	normal = normal.Mul(1.0 / length)

	if normal.Dot(p0.Sub(b.interior)) < 0 {
		normal = normal.Mul(-1)
		p1, p2 = p2, p1
	}

	distance := p0.Dot(normal)
	if distance < 0 {
		distance = 0
	}

	return Face{Points: [3]mgl64.Vec3{p0, p1, p2}, Normal: normal, Distance: distance}, true
}

// FindClosestFaceIndex returns the face closest to the origin, the first one on ties.
// Returns -1 if no faces exist.
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	if len(b.faces) == 0 {
		return -1
	}

	closestIndex := 0
	for i := 1; i < len(b.faces); i++ {
		if b.faces[i].Distance < b.faces[closestIndex].Distance {
			closestIndex = i
		}
	}

	return closestIndex
}

// AddPoint expands the polytope with a support point: faces it can see are
// removed and the horizon is connected to it. It returns false when no face
// sees the point, which means the polytope cannot grow any more.
func (b *PolytopeBuilder) AddPoint(support mgl64.Vec3) bool {
	b.findVisibleFaces(support)
	if len(b.visibleIndices) == 0 {
		return false
	}

	b.findHorizonEdges()
	b.removeVisibleFaces()

	for _, edge := range b.edges {
		if edge.Count != 1 {
			continue
		}
		if face, ok := b.createFaceOutward(edge.A, edge.B, support); ok {
			b.faces = append(b.faces, face)
		}
	}

	return len(b.faces) > 0
}

func (b *PolytopeBuilder) findVisibleFaces(support mgl64.Vec3) {
	b.visibleIndices = b.visibleIndices[:0]

	for i := range b.faces {
		face := &b.faces[i]
		if face.Normal.Dot(support.Sub(face.Points[0])) > visibilityEpsilon {
			b.visibleIndices = append(b.visibleIndices, i)
		}
	}
}

// findHorizonEdges counts the undirected edges of the visible faces, in face order.
func (b *PolytopeBuilder) findHorizonEdges() {
	b.edges = b.edges[:0]

	for _, faceIndex := range b.visibleIndices {
		face := &b.faces[faceIndex]
		edges := [3][2]mgl64.Vec3{
			{face.Points[0], face.Points[1]},
			{face.Points[1], face.Points[2]},
			{face.Points[2], face.Points[0]},
		}

		for _, edge := range edges {
			if i := b.findEdgeIndex(edge[0], edge[1]); i >= 0 {
				b.edges[i].Count++
				continue
			}
			b.edges = append(b.edges, EdgeEntry{A: edge[0], B: edge[1], Count: 1})
		}
	}
}

func (b *PolytopeBuilder) findEdgeIndex(edgeA, edgeB mgl64.Vec3) int {
	for i := range b.edges {
		edge := &b.edges[i]
		if (edge.A == edgeA && edge.B == edgeB) || (edge.A == edgeB && edge.B == edgeA) {
			return i
		}
	}
	return -1
}

// removeVisibleFaces compacts the face list, keeping the order of the others
func (b *PolytopeBuilder) removeVisibleFaces() {
	b.kept = b.kept[:0]
	next := 0

	for i := range b.faces {
		if next < len(b.visibleIndices) && b.visibleIndices[next] == i {
			next++
			continue
		}
		b.kept = append(b.kept, b.faces[i])
	}

	b.faces, b.kept = b.kept, b.faces
}
