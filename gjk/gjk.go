// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) algorithm for collision detection.
//
// GJK detects whether two convex shapes overlap by testing if their Minkowski difference
// contains the origin. The algorithm builds a simplex incrementally, converging toward
// the origin in typically 3-6 iterations.
//
// Tie policy: shapes must overlap by more than Tolerance along every search direction.
// Exactly touching shapes are reported as disjoint.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultMaxSteps = 64

	// Tolerance is the distance a support point must reach past the origin
	Tolerance = 1e-9

	// squared sine of the angle under which a triangle or tetrahedron is flat
	degenerateEpsilon = 1e-14

	// relative distance under which the origin lies on a tetrahedron face
	enclosedEpsilon = 1e-10

	// relative distance under which a support point repeats a simplex point
	duplicateEpsilon = 1e-10
)

// ErrIterationLimit is returned when GJK gives no answer within MaxSteps
var ErrIterationLimit = errors.New("gjk: iteration limit reached")

// GJK holds the state of one intersection query. It can be reused with Reset.
type GJK struct {
	Simplex   Simplex
	Direction mgl64.Vec3

	MaxSteps int
	Steps    int

	// Diagnostic counters of the simplex reduction cases
	TestLines        int
	TestTriangles    int
	TestTetrahedrons int
}

func New() *GJK {
	return &GJK{MaxSteps: DefaultMaxSteps}
}

func (g *GJK) Reset() {
	g.Simplex.Reset()
	g.Direction = mgl64.Vec3{}
	g.Steps = 0
	g.TestLines = 0
	g.TestTriangles = 0
	g.TestTetrahedrons = 0
}

// Run reports whether the two shapes overlap. Both shapes must have their
// cache data up to date. On intersection the simplex is a tetrahedron
// enclosing the origin, usable as EPA's initial polytope.
//
// Exceeding MaxSteps returns ErrIterationLimit; callers treat the pair as
// non-colliding for the step.
func (g *GJK) Run(shapeA, shapeB actor.Shape) (bool, error) {
	g.Reset()

	maxSteps := g.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	// Starting toward the other shape typically reduces iterations
	g.Direction = shapeB.GetTransformWorld().Position.Sub(shapeA.GetTransformWorld().Position)
	if g.Direction.LenSqr() < 1e-18 {
		g.Direction = mgl64.Vec3{1, 0, 0}
	}

	first := actor.FindSupportPoint(g.Direction, shapeA, shapeB)
	if first.Dot(g.Direction.Normalize()) <= Tolerance {
		return false, nil
	}
	g.Simplex.PushFront(first)
	g.Direction = first.Mul(-1)

	for {
		g.Steps++
		if g.Steps > maxSteps {
			return false, fmt.Errorf("%w after %d steps", ErrIterationLimit, maxSteps)
		}

		point := actor.FindSupportPoint(g.Direction, shapeA, shapeB)

		// The new point does not pass the origin: the origin cannot be enclosed
		if point.Dot(g.Direction) <= Tolerance*g.Direction.Len() {
			return false, nil
		}

		// No progress: the origin lies on the current feature
		if g.Simplex.contains(point, duplicateEpsilon) {
			return g.encloseFeature(shapeA, shapeB), nil
		}

		g.Simplex.PushFront(point)

		if g.nextSimplex() {
			return true, nil
		}
	}
}

// nextSimplex reduces the simplex to the feature closest to the origin and
// updates the search direction. It returns true once the origin is enclosed.
func (g *GJK) nextSimplex() bool {
	switch g.Simplex.Count {
	case 2:
		return g.line()
	case 3:
		return g.triangle()
	case 4:
		return g.tetrahedron()
	}

	return false
}

func (g *GJK) line() bool {
	g.TestLines++

	a := g.Simplex.Points[0]
	b := g.Simplex.Points[1]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-18 || ab.Dot(ao) <= 0 {
		g.Simplex.Set(a)
		g.Direction = ao
		return false
	}

	g.Direction = tripleProduct(ab, ao, ab)
	if g.Direction.LenSqr() <= degenerateEpsilon*ab.LenSqr()*ab.LenSqr()*ao.LenSqr() {
		// origin on the segment: keep searching sideways
		g.Direction = perpendicular(ab)
	}

	return false
}

func (g *GJK) triangle() bool {
	g.TestTriangles++

	a := g.Simplex.Points[0]
	b := g.Simplex.Points[1]
	c := g.Simplex.Points[2]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	// Collinear points: drop the oldest one
	if abc.LenSqr() <= degenerateEpsilon*ab.LenSqr()*ac.LenSqr() {
		g.Simplex.Set(a, b)
		return g.line()
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		if ac.Dot(ao) > 0 {
			g.Simplex.Set(a, c)
			g.Direction = tripleProduct(ac, ao, ac)
			if g.Direction.LenSqr() < 1e-24 {
				g.Direction = perpendicular(ac)
			}
			return false
		}

		g.Simplex.Set(a, b)
		return g.line()
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		g.Simplex.Set(a, b)
		return g.line()
	}

	if abc.Dot(ao) > 0 {
		g.Direction = abc
	} else {
		// Below, reverse order to keep the winding facing the origin
		g.Simplex.Set(a, c, b)
		g.Direction = abc.Mul(-1)
	}

	return false
}

// tetrahedron is the only case that can enclose the origin. Face normals are
// oriented away from the opposite vertex.
func (g *GJK) tetrahedron() bool {
	g.TestTetrahedrons++

	a := g.Simplex.Points[0]
	b := g.Simplex.Points[1]
	c := g.Simplex.Points[2]
	d := g.Simplex.Points[3]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	// Coplanar points: drop the oldest one
	volume := ab.Dot(ac.Cross(ad))
	if volume*volume <= degenerateEpsilon*ab.LenSqr()*ac.LenSqr()*ad.LenSqr() {
		g.Simplex.Set(a, b, c)
		return g.triangle()
	}

	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}
	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}
	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	// The origin on a face or an edge is enclosed
	outside := func(normal mgl64.Vec3) bool {
		return normal.Dot(ao) > enclosedEpsilon*normal.Len()*ao.Len()
	}

	if outside(abc) {
		g.Simplex.Set(a, b, c)
		return g.triangle()
	}
	if outside(acd) {
		g.Simplex.Set(a, c, d)
		return g.triangle()
	}
	if outside(adb) {
		g.Simplex.Set(a, d, b)
		return g.triangle()
	}

	return true
}

// encloseFeature completes a segment or triangle holding the origin into a
// tetrahedron. The shapes only overlap if their Minkowski difference extends
// past the origin on both sides of the feature, otherwise they are touching.
func (g *GJK) encloseFeature(shapeA, shapeB actor.Shape) bool {
	passes := func(direction mgl64.Vec3) (mgl64.Vec3, bool) {
		point := actor.FindSupportPoint(direction, shapeA, shapeB)
		return point, point.Dot(direction) > Tolerance*direction.Len()
	}

	var sides [2]mgl64.Vec3
	switch g.Simplex.Count {
	case 2:
		ab := g.Simplex.Points[1].Sub(g.Simplex.Points[0])
		sides[0] = perpendicular(ab)
		sides[1] = ab.Cross(sides[0])
	case 3:
		a, b, c := g.Simplex.Points[0], g.Simplex.Points[1], g.Simplex.Points[2]
		sides[0] = b.Sub(a).Cross(c.Sub(a))
	default:
		return false
	}

	var points []mgl64.Vec3
	for _, side := range sides {
		if side.LenSqr() == 0 {
			continue
		}
		point, ok := passes(side)
		if !ok {
			return false
		}
		if _, ok := passes(side.Mul(-1)); !ok {
			return false
		}
		points = append(points, point)
	}

	points = append(points, g.Simplex.Slice()...)
	if len(points) != 4 {
		return false
	}
	g.Simplex.Set(points...)

	a := g.Simplex.Points[0]
	ab, ac, ad := g.Simplex.Points[1].Sub(a), g.Simplex.Points[2].Sub(a), g.Simplex.Points[3].Sub(a)
	volume := ab.Dot(ac.Cross(ad))
	return volume*volume > degenerateEpsilon*ab.LenSqr()*ac.LenSqr()*ad.LenSqr()
}

// tripleProduct returns (a x b) x c
func tripleProduct(a, b, c mgl64.Vec3) mgl64.Vec3 {
	return a.Cross(b).Cross(c)
}

// perpendicular returns a vector orthogonal to v, built from the least aligned axis
func perpendicular(v mgl64.Vec3) mgl64.Vec3 {
	axis := mgl64.Vec3{1, 0, 0}
	x, y, z := math.Abs(v.X()), math.Abs(v.Y()), math.Abs(v.Z())

	if y < x && y <= z {
		axis = mgl64.Vec3{0, 1, 0}
	} else if z < x && z < y {
		axis = mgl64.Vec3{0, 0, 1}
	}

	return v.Cross(axis)
}
