package solver

import (
	"math"
	"testing"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/contact"
	"github.com/go-gl/mathgl/mgl64"
)

func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

// Helper function to create a unit sphere body
func createSphereBody(position mgl64.Vec3, mass float64, kinematic bool) *actor.RigidBody {
	transform := actor.NewTransformAt(position, mgl64.QuatIdent())
	if kinematic {
		return actor.NewKinematicBody(transform, actor.NewSphere(1.0))
	}

	return actor.NewRigidBody(transform, actor.NewSphere(1.0), mass)
}

func createManifold(a, b *actor.RigidBody, normal mgl64.Vec3, penetration float64, points ...mgl64.Vec3) contact.Manifold {
	m := contact.Manifold{BodyA: a, BodyB: b, Normal: normal}
	for _, p := range points {
		m.AddContact(contact.Contact{
			Point:             p,
			Normal:            normal,
			Penetration:       penetration,
			PointAfterResolve: p,
		})
	}

	return m
}

func TestLocationSolver_SolveSingle(t *testing.T) {
	body := createSphereBody(mgl64.Vec3{0, 0, 1.5}, 1.0, false)
	body.VelocityLinear = mgl64.Vec3{0, 0, -3}

	m := createManifold(nil, body, mgl64.Vec3{0, 0, 1}, 0.5, mgl64.Vec3{0, 0, 0.5}, mgl64.Vec3{0.1, 0, 0.5})
	SolveSingle(body, &m, 0.5, mgl64.Vec3{0, 0, 1})

	if !vec3Equal(body.Location(), mgl64.Vec3{0, 0, 2}, 1e-12) {
		t.Errorf("Location() = %v, want (0, 0, 2)", body.Location())
	}
	if body.VelocityLinear != (mgl64.Vec3{0, 0, -3}) {
		t.Errorf("velocity changed to %v, correction must be purely positional", body.VelocityLinear)
	}
	for i, c := range m.Contacts() {
		if !vec3Equal(c.PointAfterResolve, c.Point.Add(mgl64.Vec3{0, 0, 0.5}), 1e-12) {
			t.Errorf("contact %d PointAfterResolve = %v, want %v shifted by 0.5", i, c.PointAfterResolve, c.Point)
		}
	}
	if !vec3Equal(body.Shape().GetBoundsWorld().Center(), mgl64.Vec3{0, 0, 2}, 1e-12) {
		t.Errorf("bounds were not refreshed: %v", body.Shape().GetBoundsWorld())
	}
}

func TestLocationSolver_Solve(t *testing.T) {
	tests := []struct {
		name                 string
		kinematicA           bool
		kinematicB           bool
		massA, massB         float64
		wantA, wantB         mgl64.Vec3
		wantPointAfterOffset mgl64.Vec3
	}{
		{
			name:                 "kinematic A moves B only",
			kinematicA:           true,
			massA:                1,
			massB:                1,
			wantA:                mgl64.Vec3{0, 0, 0},
			wantB:                mgl64.Vec3{0, 0, 2},
			wantPointAfterOffset: mgl64.Vec3{0, 0, 0.5},
		},
		{
			name:                 "kinematic B moves A against the normal",
			kinematicB:           true,
			massA:                1,
			massB:                1,
			wantA:                mgl64.Vec3{0, 0, -0.5},
			wantB:                mgl64.Vec3{0, 0, 1.5},
			wantPointAfterOffset: mgl64.Vec3{0, 0, -0.5},
		},
		{
			name:                 "equal masses split the correction",
			massA:                2,
			massB:                2,
			wantA:                mgl64.Vec3{0, 0, -0.25},
			wantB:                mgl64.Vec3{0, 0, 1.75},
			wantPointAfterOffset: mgl64.Vec3{0, 0, 0.25},
		},
		{
			name:                 "lighter body moves further",
			massA:                3,
			massB:                1,
			wantA:                mgl64.Vec3{0, 0, -0.125},
			wantB:                mgl64.Vec3{0, 0, 1.875},
			wantPointAfterOffset: mgl64.Vec3{0, 0, 0.375},
		},
		{
			name:                 "kinematic pair is skipped",
			kinematicA:           true,
			kinematicB:           true,
			massA:                1,
			massB:                1,
			wantA:                mgl64.Vec3{0, 0, 0},
			wantB:                mgl64.Vec3{0, 0, 1.5},
			wantPointAfterOffset: mgl64.Vec3{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createSphereBody(mgl64.Vec3{0, 0, 0}, tt.massA, tt.kinematicA)
			b := createSphereBody(mgl64.Vec3{0, 0, 1.5}, tt.massB, tt.kinematicB)

			manager := contact.NewManager()
			manager.Add(createManifold(a, b, mgl64.Vec3{0, 0, 1}, 0.5, mgl64.Vec3{0, 0, 0.5}))

			Solve(manager)

			if !vec3Equal(a.Location(), tt.wantA, 1e-12) {
				t.Errorf("A location = %v, want %v", a.Location(), tt.wantA)
			}
			if !vec3Equal(b.Location(), tt.wantB, 1e-12) {
				t.Errorf("B location = %v, want %v", b.Location(), tt.wantB)
			}

			c := manager.Manifolds()[0].Contacts()[0]
			want := c.Point.Add(tt.wantPointAfterOffset)
			if !vec3Equal(c.PointAfterResolve, want, 1e-12) {
				t.Errorf("PointAfterResolve = %v, want %v", c.PointAfterResolve, want)
			}
		})
	}
}

func TestLocationSolver_SkippedManifolds(t *testing.T) {
	t.Run("trigger pair", func(t *testing.T) {
		a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1, true)
		b := createSphereBody(mgl64.Vec3{0, 0, 1.5}, 1, false)
		b.IsTrigger = true

		manager := contact.NewManager()
		manager.Add(createManifold(a, b, mgl64.Vec3{0, 0, 1}, 0.5, mgl64.Vec3{0, 0, 0.5}))
		Solve(manager)

		if b.Location() != (mgl64.Vec3{0, 0, 1.5}) {
			t.Errorf("trigger body moved to %v", b.Location())
		}
	})

	t.Run("self pair", func(t *testing.T) {
		a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1, false)

		manager := contact.NewManager()
		manager.Add(createManifold(a, a, mgl64.Vec3{0, 0, 1}, 0.5, mgl64.Vec3{0, 0, 0.5}))
		Solve(manager)

		if a.Location() != (mgl64.Vec3{0, 0, 0}) {
			t.Errorf("self pair moved the body to %v", a.Location())
		}
	})

	t.Run("empty manifold", func(t *testing.T) {
		a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1, true)
		b := createSphereBody(mgl64.Vec3{0, 0, 1.5}, 1, false)

		manager := contact.NewManager()
		manager.Add(createManifold(a, b, mgl64.Vec3{0, 0, 1}, 0.5))
		Solve(manager)

		if b.Location() != (mgl64.Vec3{0, 0, 1.5}) {
			t.Errorf("empty manifold moved the body to %v", b.Location())
		}
	})
}

func TestLocationSolver_SpheresScenario(t *testing.T) {
	a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1, true)
	b := createSphereBody(mgl64.Vec3{0, 0, 1.5}, 1, false)

	manager := contact.NewManager()
	if !contact.NewDetector(0, nil).Check(manager, a, b) {
		t.Fatal("expected the spheres to collide")
	}
	if got := manager.Manifolds()[0].Penetration(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Penetration() = %v, want 0.5", got)
	}

	Solve(manager)

	if !vec3Equal(b.Location(), mgl64.Vec3{0, 0, 2}, 1e-9) {
		t.Errorf("dynamic sphere at %v, want (0, 0, 2)", b.Location())
	}
	if a.Location() != (mgl64.Vec3{0, 0, 0}) {
		t.Errorf("kinematic sphere moved to %v", a.Location())
	}

	// The spheres now touch: nothing left to resolve
	manager.Reset()
	if contact.NewDetector(0, nil).Check(manager, a, b) {
		t.Error("spheres still overlap after the correction")
	}
}
