package gjk

import "github.com/go-gl/mathgl/mgl64"

// Simplex represents a set of 1-4 points in the Minkowski difference space.
// The newest point is always at index 0, older points are shifted back.
// Size progression: 1 point → 2 points (line) → 3 points (triangle) → 4 points (tetrahedron)
type Simplex struct {
	Points [4]mgl64.Vec3
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

// PushFront inserts point at index 0. Pushing onto a full simplex is a logic error.
func (s *Simplex) PushFront(point mgl64.Vec3) {
	if s.Count >= len(s.Points) {
		panic("gjk: push on a full simplex")
	}

	copy(s.Points[1:s.Count+1], s.Points[:s.Count])
	s.Points[0] = point
	s.Count++
}

// Set replaces the content with the given points, newest first.
func (s *Simplex) Set(points ...mgl64.Vec3) {
	s.Count = copy(s.Points[:], points)
}

// Slice returns the active points, newest first
func (s *Simplex) Slice() []mgl64.Vec3 {
	return s.Points[:s.Count]
}

// contains reports whether point is within epsilon, relative to its length,
// of one of the active points
func (s *Simplex) contains(point mgl64.Vec3, epsilon float64) bool {
	limit := epsilon * max(1, point.Len())
	for _, p := range s.Points[:s.Count] {
		if p.Sub(point).LenSqr() <= limit*limit {
			return true
		}
	}
	return false
}
