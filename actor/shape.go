package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	}
	return "unknown"
}

const (
	DefaultFriction        = 1.0
	DefaultRestitution     = 0.25
	DefaultCollisionGroups = uint32(0xFFFFFFFF)

	// FeatureAlignmentTolerance is the largest local direction component for which
	// a box axis is considered perpendicular to the query direction. Below it, both
	// sides of the axis belong to the contact feature (edge or face).
	FeatureAlignmentTolerance = 1e-2
)

// Shape is the interface that all collision shapes must implement
type Shape interface {
	Type() ShapeType

	// GetExtremePointWorld returns the world point of the shape that maximizes
	// the dot product with direction (the convex support function).
	GetExtremePointWorld(direction mgl64.Vec3) mgl64.Vec3
	// GetContactFeature returns the world-space vertex, edge or face of the shape
	// the most aligned with direction.
	GetContactFeature(direction mgl64.Vec3) Feature

	// UpdateCacheData composes the rigid body transform with the shape local
	// transform, then refreshes the world bounds.
	UpdateCacheData(transform Transform)
	UpdateBounds()
	CalculateInertiaTensor(mass float64)
	ComputeMass(density float64) float64

	GetBoundsLocal() AABB
	GetBoundsWorld() AABB
	GetInertiaTensorInverse() mgl64.Mat3
	GetTransformLocal() Transform
	SetTransformLocal(transform Transform)
	GetTransformWorld() Transform

	GetFriction() float64
	SetFriction(friction float64)
	GetRestitution() float64
	SetRestitution(restitution float64)
	GetCollisionGroups() uint32
	SetCollisionGroups(groups uint32)
}

// Feature is a convex piece of a shape boundary: 1 vertex, 2 for an edge, 3+ for a face.
// Face vertices are ordered counter-clockwise around Normal.
type Feature struct {
	Vertices []mgl64.Vec3
	// Normal is the outward face normal for faces, the query direction otherwise.
	Normal mgl64.Vec3
}

func (f Feature) IsVertex() bool {
	return len(f.Vertices) == 1
}

func (f Feature) IsEdge() bool {
	return len(f.Vertices) == 2
}

func (f Feature) IsFace() bool {
	return len(f.Vertices) >= 3
}

// FindSupportPoint returns the support point of the Minkowski difference A - B.
func FindSupportPoint(direction mgl64.Vec3, shapeA, shapeB Shape) mgl64.Vec3 {
	return shapeA.GetExtremePointWorld(direction).Sub(shapeB.GetExtremePointWorld(direction.Mul(-1)))
}

// shape holds the data shared by every shape variant
type shape struct {
	boundsLocal AABB
	boundsWorld AABB

	friction        float64
	restitution     float64
	collisionGroups uint32

	inertiaTensorInverse mgl64.Mat3

	transformLocal Transform
	transformWorld Transform
}

func newShape(boundsLocal AABB) shape {
	return shape{
		boundsLocal:          boundsLocal,
		boundsWorld:          boundsLocal,
		friction:             DefaultFriction,
		restitution:          DefaultRestitution,
		collisionGroups:      DefaultCollisionGroups,
		inertiaTensorInverse: mgl64.Ident3(),
		transformLocal:       NewTransform(),
		transformWorld:       NewTransform(),
	}
}

func (s *shape) updateTransformWorld(transform Transform) {
	s.transformWorld = transform.Compose(s.transformLocal)
}

func (s *shape) GetBoundsLocal() AABB {
	return s.boundsLocal
}

// GetBoundsWorld is only valid after UpdateCacheData ran for the current transform.
func (s *shape) GetBoundsWorld() AABB {
	return s.boundsWorld
}

func (s *shape) GetInertiaTensorInverse() mgl64.Mat3 {
	return s.inertiaTensorInverse
}

func (s *shape) GetTransformLocal() Transform {
	return s.transformLocal
}

// SetTransformLocal sets the shape offset relative to its rigid body.
// The owner must call UpdateCacheData afterwards.
func (s *shape) SetTransformLocal(transform Transform) {
	s.transformLocal = NewTransformAt(transform.Position, transform.Rotation)
}

func (s *shape) GetTransformWorld() Transform {
	return s.transformWorld
}

func (s *shape) GetFriction() float64 {
	return s.friction
}

func (s *shape) SetFriction(friction float64) {
	s.friction = friction
}

func (s *shape) GetRestitution() float64 {
	return s.restitution
}

func (s *shape) SetRestitution(restitution float64) {
	s.restitution = restitution
}

func (s *shape) GetCollisionGroups() uint32 {
	return s.collisionGroups
}

func (s *shape) SetCollisionGroups(groups uint32) {
	s.collisionGroups = groups
}

func diagonalInverse(diagonal mgl64.Vec3) mgl64.Mat3 {
	var inverse mgl64.Vec3
	for i := 0; i < 3; i++ {
		if diagonal[i] > 0 && !math.IsInf(diagonal[i], 1) {
			inverse[i] = 1.0 / diagonal[i]
		}
	}

	return mgl64.Diag3(inverse)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	shape
	halfExtents mgl64.Vec3
}

// NewBox creates a box from its half extents
func NewBox(halfExtents mgl64.Vec3) *Box {
	return &Box{
		shape:       newShape(AABB{Min: halfExtents.Mul(-1), Max: halfExtents}),
		halfExtents: halfExtents,
	}
}

// NewBoxSize creates a box from its full width, height and depth
func NewBoxSize(width, height, depth float64) *Box {
	return NewBox(mgl64.Vec3{width * 0.5, height * 0.5, depth * 0.5})
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

func (b *Box) HalfExtents() mgl64.Vec3 {
	return b.halfExtents
}

func (b *Box) Size() mgl64.Vec3 {
	return b.halfExtents.Mul(2)
}

// Resize changes the half extents. The owner must call UpdateCacheData afterwards.
func (b *Box) Resize(halfExtents mgl64.Vec3) {
	b.halfExtents = halfExtents
	b.boundsLocal = AABB{Min: halfExtents.Mul(-1), Max: halfExtents}
}

func (b *Box) UpdateCacheData(transform Transform) {
	b.updateTransformWorld(transform)
	b.UpdateBounds()
}

func (b *Box) UpdateBounds() {
	b.boundsWorld = b.boundsLocal.Transform(b.transformWorld)
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.halfExtents.X() * b.halfExtents.Y() * b.halfExtents.Z()

	return density * volume
}

func (b *Box) CalculateInertiaTensor(mass float64) {
	x := b.halfExtents.X() * 2
	y := b.halfExtents.Y() * 2
	z := b.halfExtents.Z() * 2

	// I = (m/12) * (dimension1² + dimension2²)
	factor := mass / 12.0
	b.inertiaTensorInverse = diagonalInverse(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

func (b *Box) GetExtremePointWorld(direction mgl64.Vec3) mgl64.Vec3 {
	local := b.transformWorld.DirectionToLocal(direction)
	hx, hy, hz := b.halfExtents.X(), b.halfExtents.Y(), b.halfExtents.Z()

	if local.X() < 0 {
		hx = -hx
	}
	if local.Y() < 0 {
		hy = -hy
	}
	if local.Z() < 0 {
		hz = -hz
	}

	return b.transformWorld.PointToWorld(mgl64.Vec3{hx, hy, hz})
}

func (b *Box) GetContactFeature(direction mgl64.Vec3) Feature {
	local := b.transformWorld.DirectionToLocal(direction)
	if local.LenSqr() < 1e-16 {
		local = mgl64.Vec3{1, 0, 0}
	}
	local = local.Normalize()

	var corner mgl64.Vec3
	var free []int
	fixed := 0
	largest := -1.0

	for i := 0; i < 3; i++ {
		corner[i] = b.halfExtents[i]
		if local[i] < 0 {
			corner[i] = -corner[i]
		}

		if math.Abs(local[i]) < FeatureAlignmentTolerance {
			free = append(free, i)
			continue
		}
		if math.Abs(local[i]) > largest {
			largest = math.Abs(local[i])
			fixed = i
		}
	}

	var vertices []mgl64.Vec3
	normal := b.transformWorld.Rotation.Rotate(local)

	switch len(free) {
	case 0:
		vertices = []mgl64.Vec3{corner}
	case 1:
		k := free[0]
		p0, p1 := corner, corner
		p0[k] = b.halfExtents[k]
		p1[k] = -b.halfExtents[k]
		vertices = []mgl64.Vec3{p0, p1}
	default:
		u, v := free[0], free[1]
		var localNormal mgl64.Vec3
		localNormal[fixed] = math.Copysign(1, local[fixed])

		vertices = make([]mgl64.Vec3, 4)
		signs := [4][2]float64{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}}
		for i, s := range signs {
			p := corner
			p[u] = s[0] * b.halfExtents[u]
			p[v] = s[1] * b.halfExtents[v]
			vertices[i] = p
		}

		// Keep the winding counter-clockwise around the outward normal
		if vertices[1].Sub(vertices[0]).Cross(vertices[2].Sub(vertices[0])).Dot(localNormal) < 0 {
			vertices[1], vertices[3] = vertices[3], vertices[1]
		}
		normal = b.transformWorld.Rotation.Rotate(localNormal)
	}

	for i := range vertices {
		vertices[i] = b.transformWorld.PointToWorld(vertices[i])
	}

	return Feature{Vertices: vertices, Normal: normal}
}

// Sphere represents a spherical collision shape
type Sphere struct {
	shape
	radius float64
}

// NewSphere creates a sphere of the given radius
func NewSphere(radius float64) *Sphere {
	r := mgl64.Vec3{radius, radius, radius}

	return &Sphere{
		shape:  newShape(AABB{Min: r.Mul(-1), Max: r}),
		radius: radius,
	}
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

func (s *Sphere) Radius() float64 {
	return s.radius
}

// Center returns the sphere center in world space
func (s *Sphere) Center() mgl64.Vec3 {
	return s.transformWorld.Position
}

func (s *Sphere) UpdateCacheData(transform Transform) {
	s.updateTransformWorld(transform)
	s.UpdateBounds()
}

// UpdateBounds is not affected by rotation, only by position
func (s *Sphere) UpdateBounds() {
	s.boundsWorld = AABB{
		Min: s.transformWorld.Position.Add(s.boundsLocal.Min),
		Max: s.transformWorld.Position.Add(s.boundsLocal.Max),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	// Volume of sphere = (4/3) * π * r³
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.radius, 3)

	return density * volume
}

func (s *Sphere) CalculateInertiaTensor(mass float64) {
	// I = (2/5) * m * r²
	i := (2.0 / 5.0) * mass * s.radius * s.radius
	s.inertiaTensorInverse = diagonalInverse(mgl64.Vec3{i, i, i})
}

func (s *Sphere) GetExtremePointWorld(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-24 {
		return s.transformWorld.Position.Add(mgl64.Vec3{s.radius, 0, 0})
	}

	return s.transformWorld.Position.Add(direction.Normalize().Mul(s.radius))
}

func (s *Sphere) GetContactFeature(direction mgl64.Vec3) Feature {
	normal := mgl64.Vec3{1, 0, 0}
	if direction.LenSqr() >= 1e-24 {
		normal = direction.Normalize()
	}

	return Feature{
		Vertices: []mgl64.Vec3{s.GetExtremePointWorld(direction)},
		Normal:   normal,
	}
}
