// Package solver resolves penetration by moving bodies out of contact.
package solver

import (
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// Solve corrects the location of the bodies of every manifold, once.
// Velocities are left untouched.
func Solve(manager *contact.Manager) {
	manifolds := manager.Manifolds()

	for i := range manifolds {
		m := &manifolds[i]
		if m.Len() == 0 || m.BodyA == nil || m.BodyB == nil || m.BodyA == m.BodyB {
			continue
		}
		if m.BodyA.IsTrigger || m.BodyB.IsTrigger {
			continue
		}

		kinematicA := m.BodyA.IsKinematic()
		kinematicB := m.BodyB.IsKinematic()

		switch {
		case kinematicA && kinematicB:
			continue
		case kinematicA:
			SolveSingle(m.BodyB, m, m.Penetration(), m.Normal)
		case kinematicB:
			SolveSingle(m.BodyA, m, m.Penetration(), m.Normal.Mul(-1))
		default:
			SolvePair(m)
		}
	}
}

// SolveSingle moves body by normal*penetration and records the moved contact points
func SolveSingle(body *actor.RigidBody, manifold *contact.Manifold, penetration float64, normal mgl64.Vec3) {
	offset := normal.Mul(penetration)
	body.SetLocation(body.Location().Add(offset))

	contacts := manifold.Contacts()
	for i := range contacts {
		contacts[i].PointAfterResolve = contacts[i].Point.Add(offset)
	}
}

// SolvePair splits the correction between two dynamic bodies by inverse mass:
// the lighter body moves further. Contact points follow body B.
func SolvePair(manifold *contact.Manifold) {
	bodyA, bodyB := manifold.BodyA, manifold.BodyB

	invMassA := bodyA.MassInverse()
	invMassB := bodyB.MassInverse()
	totalInvMass := invMassA + invMassB
	if totalInvMass <= 0 {
		return
	}

	correction := manifold.Normal.Mul(manifold.Penetration() / totalInvMass)
	offsetA := correction.Mul(-invMassA)
	offsetB := correction.Mul(invMassB)

	bodyA.SetLocation(bodyA.Location().Add(offsetA))
	bodyB.SetLocation(bodyB.Location().Add(offsetB))

	contacts := manifold.Contacts()
	for i := range contacts {
		contacts[i].PointAfterResolve = contacts[i].Point.Add(offsetB)
	}
}
