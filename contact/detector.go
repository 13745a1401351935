package contact

import (
	"log/slog"
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/clip"
	"github.com/akmonengine/quill/epa"
	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Detector runs the narrow phase on body pairs. It keeps scratch state
// between calls and must not be shared between goroutines.
type Detector struct {
	gjk    *gjk.GJK
	cb     clip.CyrusBeck
	sh     clip.SutherlandHodgman
	logger *slog.Logger
}

// NewDetector returns a detector capping GJK at maxSteps (0 uses the default).
// A nil logger falls back to slog.Default().
func NewDetector(maxSteps int, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	g := gjk.New()
	if maxSteps > 0 {
		g.MaxSteps = maxSteps
	}

	return &Detector{gjk: g, logger: logger}
}

// Check tests a and b and adds a manifold to manager when they overlap.
// It reports whether a manifold was added.
func (d *Detector) Check(manager *Manager, a, b *actor.RigidBody) bool {
	if a == nil || b == nil || a == b {
		return false
	}
	if a.IsKinematic() && b.IsKinematic() {
		d.logger.Debug("skipping kinematic pair", "bodyA", a.ID, "bodyB", b.ID)
		return false
	}
	if !a.HasShape() || !b.HasShape() {
		d.logger.Debug("skipping pair without shape", "bodyA", a.ID, "bodyB", b.ID)
		return false
	}

	shapeA, shapeB := a.Shape(), b.Shape()
	if shapeA.GetCollisionGroups()&shapeB.GetCollisionGroups() == 0 {
		return false
	}

	hit, err := d.gjk.Run(shapeA, shapeB)
	if err != nil {
		d.logger.Warn("gjk gave no answer",
			"bodyA", a.ID, "bodyB", b.ID, "error", err,
			"lines", d.gjk.TestLines, "triangles", d.gjk.TestTriangles, "tetrahedrons", d.gjk.TestTetrahedrons)
		return false
	}
	if !hit {
		return false
	}

	normal, depth, epaSteps, ok := d.penetration(a, b)
	if !ok {
		return false
	}

	manifold := Manifold{
		BodyA:    a,
		BodyB:    b,
		Normal:   normal,
		GJKSteps: d.gjk.Steps,
		EPASteps: epaSteps,
	}
	friction := CombineFriction(shapeA, shapeB)
	restitution := CombineRestitution(shapeA, shapeB)

	for _, point := range d.contactPoints(shapeA, shapeB, normal) {
		manifold.AddContact(Contact{
			Point:             point,
			Normal:            normal,
			Penetration:       depth,
			PointAfterResolve: point,
			Friction:          friction,
			Restitution:       restitution,
		})
	}

	manager.Add(manifold)

	return true
}

// penetration selects the contact normal (A toward B) and depth of an
// overlapping pair. Curved pairs are solved analytically, boxes through EPA.
func (d *Detector) penetration(a, b *actor.RigidBody) (mgl64.Vec3, float64, int, bool) {
	shapeA, shapeB := a.Shape(), b.Shape()

	sphereA, aIsSphere := shapeA.(*actor.Sphere)
	sphereB, bIsSphere := shapeB.(*actor.Sphere)
	boxA, aIsBox := shapeA.(*actor.Box)
	boxB, bIsBox := shapeB.(*actor.Box)

	var normal mgl64.Vec3
	var depth float64

	switch {
	case aIsSphere && bIsSphere:
		normal, depth = sphereSphere(sphereA, sphereB)
	case aIsBox && bIsSphere:
		normal, depth = boxSphere(boxA, sphereB)
	case aIsSphere && bIsBox:
		normal, depth = boxSphere(boxB, sphereA)
		normal = normal.Mul(-1)
	default:
		result, err := epa.EPA(shapeA, shapeB, &d.gjk.Simplex)
		if err != nil {
			d.logger.Warn("epa failed", "bodyA", a.ID, "bodyB", b.ID, "error", err)
			return mgl64.Vec3{}, 0, 0, false
		}
		return result.Normal, result.Depth, result.Iterations, result.Depth > 0
	}

	return normal, depth, 0, depth > 0
}

func sphereSphere(a, b *actor.Sphere) (mgl64.Vec3, float64) {
	delta := b.Center().Sub(a.Center())
	distance := delta.Len()
	depth := a.Radius() + b.Radius() - distance

	if distance < 1e-12 {
		return mgl64.Vec3{0, 1, 0}, depth
	}

	return delta.Mul(1.0 / distance), depth
}

// boxSphere returns the normal from the box toward the sphere. A center
// inside the box is pushed out through the face of least penetration.
func boxSphere(box *actor.Box, sphere *actor.Sphere) (mgl64.Vec3, float64) {
	transform := box.GetTransformWorld()
	halfExtents := box.HalfExtents()
	center := transform.DirectionToLocal(sphere.Center().Sub(transform.Position))

	var closest mgl64.Vec3
	for i := 0; i < 3; i++ {
		closest[i] = math.Max(-halfExtents[i], math.Min(halfExtents[i], center[i]))
	}

	delta := center.Sub(closest)
	if distance := delta.Len(); distance > 1e-12 {
		return transform.Rotation.Rotate(delta.Mul(1.0 / distance)), sphere.Radius() - distance
	}

	axis := 0
	separation := math.Inf(1)
	for i := 0; i < 3; i++ {
		if s := halfExtents[i] - math.Abs(center[i]); s < separation {
			separation = s
			axis = i
		}
	}

	var local mgl64.Vec3
	local[axis] = 1
	if center[axis] < 0 {
		local[axis] = -1
	}

	return transform.Rotation.Rotate(local), sphere.Radius() + separation
}

// contactPoints clips the features of both shapes facing each other along
// normal. The result holds at most MaxContacts points.
func (d *Detector) contactPoints(shapeA, shapeB actor.Shape, normal mgl64.Vec3) []mgl64.Vec3 {
	featureA := shapeA.GetContactFeature(normal)
	featureB := shapeB.GetContactFeature(normal.Mul(-1))

	var points []mgl64.Vec3

	switch {
	case featureB.IsVertex():
		points = featureB.Vertices
	case featureA.IsVertex():
		points = featureA.Vertices
	case featureA.IsFace() && featureB.IsFace():
		points = d.sh.Run(featureA.Vertices, featureA.Normal, featureB.Vertices)
	case featureA.IsEdge() && featureB.IsFace():
		points = d.cb.Run(featureB.Vertices, featureB.Normal, featureA.Vertices, featureA.Vertices[1].Sub(featureA.Vertices[0]))
	case featureA.IsFace() && featureB.IsEdge():
		points = d.cb.Run(featureA.Vertices, featureA.Normal, featureB.Vertices, featureB.Vertices[1].Sub(featureB.Vertices[0]))
	case featureA.IsEdge() && featureB.IsEdge():
		pa, pb := closestPointsSegments(featureA.Vertices[0], featureA.Vertices[1], featureB.Vertices[0], featureB.Vertices[1])
		points = []mgl64.Vec3{pa.Add(pb).Mul(0.5)}
	}

	if len(points) == 0 {
		return []mgl64.Vec3{shapeB.GetExtremePointWorld(normal.Mul(-1))}
	}
	if len(points) > MaxContacts {
		points = reduceTo4(points, normal)
	}

	return points
}

// closestPointsSegments returns the closest points between segments p1q1 and p2q2
func closestPointsSegments(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	const epsilon = 1e-12
	var s, t float64

	switch {
	case a <= epsilon && e <= epsilon:
		return p1, p2
	case a <= epsilon:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= epsilon {
			s = clamp01(-c / a)
			break
		}

		b := d1.Dot(d2)
		if denom := a*e - b*b; denom > epsilon {
			s = clamp01((b*f - c*e) / denom)
		}
		t = (b*s + f) / e

		if t < 0 {
			t = 0
			s = clamp01(-c / a)
		} else if t > 1 {
			t = 1
			s = clamp01((b - c) / a)
		}
	}

	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}

// reduceTo4 keeps the extreme points along the tangent basis, in the order
// min x, max x, min y, max y, without duplicates.
func reduceTo4(points []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	tangent1, tangent2 := tangentBasis(normal)

	var extremes [4]int
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)

	for i, p := range points {
		x := p.Dot(tangent1)
		y := p.Dot(tangent2)

		if x < minX {
			minX, extremes[0] = x, i
		}
		if x > maxX {
			maxX, extremes[1] = x, i
		}
		if y < minY {
			minY, extremes[2] = y, i
		}
		if y > maxY {
			maxY, extremes[3] = y, i
		}
	}

	result := make([]mgl64.Vec3, 0, MaxContacts)
	for i, index := range extremes {
		duplicate := false
		for _, previous := range extremes[:i] {
			if previous == index {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, points[index])
		}
	}

	return result
}
