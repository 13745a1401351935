package actor

import "github.com/go-gl/mathgl/mgl64"

// GlobalForce is applied to every body of a world before integration
type GlobalForce interface {
	Apply(body *RigidBody)
}

// GlobalForceGravity pulls bodies with a uniform acceleration, whatever their mass
type GlobalForceGravity struct {
	Acceleration mgl64.Vec3
}

func NewGlobalForceGravity(acceleration mgl64.Vec3) *GlobalForceGravity {
	return &GlobalForceGravity{Acceleration: acceleration}
}

// Apply adds m * g at the body location, so no torque is produced.
// Sleeping bodies are left asleep.
func (g *GlobalForceGravity) Apply(body *RigidBody) {
	if !body.IsAwake() {
		return
	}
	body.AddForce(g.Acceleration.Mul(body.Mass()), body.Location())
}
