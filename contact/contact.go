// Package contact turns overlapping body pairs into contact manifolds.
package contact

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxContacts is the capacity of a manifold
const MaxContacts = 4

// Contact is one point of contact between two bodies
type Contact struct {
	Point mgl64.Vec3
	// Normal points from body A toward body B
	Normal mgl64.Vec3
	// Penetration is positive when the shapes overlap
	Penetration float64
	// PointAfterResolve is Point moved by the location correction
	PointAfterResolve mgl64.Vec3

	Friction    float64
	Restitution float64
}

// Manifold gathers the contacts of one colliding pair for one step.
// Bodies are borrowed, a manifold never outlives the step it was built in.
type Manifold struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
	// Normal is shared by every contact of the manifold
	Normal mgl64.Vec3

	GJKSteps int
	EPASteps int

	contacts [MaxContacts]Contact
	count    int
}

// AddContact appends c, reporting false when the manifold is full
func (m *Manifold) AddContact(c Contact) bool {
	if m.count >= MaxContacts {
		return false
	}
	m.contacts[m.count] = c
	m.count++

	return true
}

// Contacts returns the contacts in insertion order. The slice aliases the
// manifold storage.
func (m *Manifold) Contacts() []Contact {
	return m.contacts[:m.count]
}

func (m *Manifold) Len() int {
	return m.count
}

// Penetration returns the depth of the first contact, 0 for an empty manifold
func (m *Manifold) Penetration() float64 {
	if m.count == 0 {
		return 0
	}
	return m.contacts[0].Penetration
}

// CombineFriction mixes the friction of two shapes with a geometric mean
func CombineFriction(a, b actor.Shape) float64 {
	return math.Sqrt(a.GetFriction() * b.GetFriction())
}

// CombineRestitution averages the restitution of two shapes
func CombineRestitution(a, b actor.Shape) float64 {
	return (a.GetRestitution() + b.GetRestitution()) / 2.0
}
