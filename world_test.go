package quill

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestSphere(position mgl64.Vec3, radius float64, kinematic bool) *actor.RigidBody {
	transform := actor.NewTransformAt(position, mgl64.QuatIdent())
	if kinematic {
		return actor.NewKinematicBody(transform, actor.NewSphere(radius))
	}
	return actor.NewRigidBody(transform, actor.NewSphere(radius), 1.0)
}

func TestNewWorldDefaults(t *testing.T) {
	w := NewWorld(Settings{}, nil)

	if !w.IsPaused() {
		t.Error("a new world should start paused")
	}
	if w.GetTimeSpeed() != DEFAULT_TIME_SPEED {
		t.Errorf("GetTimeSpeed() = %v, want %v", w.GetTimeSpeed(), DEFAULT_TIME_SPEED)
	}
	if math.Abs(w.FixedTimeStep()-1.0/120.0) > 1e-15 {
		t.Errorf("FixedTimeStep() = %v, want 1/120", w.FixedTimeStep())
	}
	if w.Workers != DEFAULT_WORKERS {
		t.Errorf("Workers = %d, want %d", w.Workers, DEFAULT_WORKERS)
	}
}

func TestWorldBodies(t *testing.T) {
	var buffer bytes.Buffer
	w := NewWorld(Settings{}, slog.New(slog.NewTextHandler(&buffer, nil)))
	body := createTestSphere(mgl64.Vec3{}, 1, false)

	if err := w.AddBody(body); err != nil {
		t.Fatalf("AddBody() error = %v", err)
	}

	tests := []struct {
		name string
		body *actor.RigidBody
		want error
	}{
		{"nil body", nil, ErrNilBody},
		{"body without shape", actor.NewRigidBody(actor.NewTransform(), nil, 1), ErrNoShape},
		{"same body twice", body, ErrDuplicateBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.AddBody(tt.body); !errors.Is(err, tt.want) {
				t.Errorf("AddBody() error = %v, want %v", err, tt.want)
			}
		})
	}

	if len(w.Bodies()) != 1 {
		t.Errorf("Bodies() holds %d bodies, want 1", len(w.Bodies()))
	}
	if !strings.Contains(buffer.String(), "can't insert rigid body") {
		t.Errorf("rejected insertions were not logged: %q", buffer.String())
	}

	if err := w.RemoveBody(body); err != nil {
		t.Errorf("RemoveBody() error = %v", err)
	}
	if err := w.RemoveBody(body); !errors.Is(err, ErrBodyNotFound) {
		t.Errorf("RemoveBody() twice error = %v, want ErrBodyNotFound", err)
	}
	if len(w.Bodies()) != 0 {
		t.Errorf("Bodies() holds %d bodies after removal", len(w.Bodies()))
	}
}

func TestWorldGlobalForces(t *testing.T) {
	w := NewWorld(Settings{}, quietLogger())
	gravity := actor.NewGlobalForceGravity(mgl64.Vec3{0, -9.81, 0})

	if err := w.AddGlobalForce(gravity); err != nil {
		t.Fatalf("AddGlobalForce() error = %v", err)
	}
	if err := w.AddGlobalForce(gravity); !errors.Is(err, ErrDuplicateForce) {
		t.Errorf("AddGlobalForce() twice error = %v, want ErrDuplicateForce", err)
	}
	if err := w.AddGlobalForce(nil); !errors.Is(err, ErrNilForce) {
		t.Errorf("AddGlobalForce(nil) error = %v, want ErrNilForce", err)
	}
	if err := w.RemoveGlobalForce(gravity); err != nil {
		t.Errorf("RemoveGlobalForce() error = %v", err)
	}
	if err := w.RemoveGlobalForce(gravity); !errors.Is(err, ErrForceNotFound) {
		t.Errorf("RemoveGlobalForce() twice error = %v, want ErrForceNotFound", err)
	}
}

func TestWorldSimulateAccumulator(t *testing.T) {
	w := NewWorld(Settings{}, quietLogger())
	w.AddBody(createTestSphere(mgl64.Vec3{}, 1, false))

	if steps := w.Simulate(1.0 / 60.0); steps != 0 {
		t.Errorf("paused world ran %d steps", steps)
	}

	w.Resume()
	if w.IsPaused() {
		t.Fatal("Resume() did not unpause the world")
	}

	tests := []struct {
		name      string
		deltaTime float64
		want      int
	}{
		{"two steps in a 60 Hz frame", 1.0 / 60.0, 2},
		{"not enough time for a step", 1.0 / 240.0, 0},
		{"leftover time completes a step", 1.0 / 240.0, 1},
		{"negative time is ignored", -1, 0},
		{"long frames are capped", 10, maxStepsPerSimulate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if steps := w.Simulate(tt.deltaTime); steps != tt.want {
				t.Errorf("Simulate(%v) = %d steps, want %d", tt.deltaTime, steps, tt.want)
			}
		})
	}

	w.Pause()
	if steps := w.Simulate(1); steps != 0 {
		t.Errorf("paused world ran %d steps", steps)
	}
}

func TestWorldTimeSpeed(t *testing.T) {
	w := NewWorld(Settings{}, quietLogger())
	body := createTestSphere(mgl64.Vec3{}, 1, false)
	body.DampingLinear = 1
	w.AddBody(body)
	w.AddGlobalForce(actor.NewGlobalForceGravity(mgl64.Vec3{0, -10, 0}))

	w.SetTimeSpeed(2)
	if math.Abs(w.FixedTimeStep()-2.0/120.0) > 1e-15 {
		t.Errorf("FixedTimeStep() = %v, want 2/120", w.FixedTimeStep())
	}

	w.Resume()
	if steps := w.Simulate(1.0 / 60.0); steps != 2 {
		t.Fatalf("Simulate() ran %d steps, want 2 whatever the speed", steps)
	}

	// Two steps of 1/60 s of simulated time each
	if math.Abs(body.VelocityLinear.Y()+10.0/30.0) > 1e-9 {
		t.Errorf("VelocityLinear = %v, want -10/30 on Y", body.VelocityLinear)
	}
	if body.TotalForce() != (mgl64.Vec3{}) {
		t.Errorf("accumulators were not reset after the step: %v", body.TotalForce())
	}
}

func TestWorldSpheresScenario(t *testing.T) {
	w := NewWorld(Settings{}, quietLogger())
	capture := &eventCapture{}
	w.Events.Subscribe(COLLISION_ENTER, capture.capture)

	a := createTestSphere(mgl64.Vec3{0, 0, 0}, 1, true)
	b := createTestSphere(mgl64.Vec3{0, 0, 1.5}, 1, false)
	w.AddBody(a)
	w.AddBody(b)

	w.Step()

	if len(w.ContactManifolds()) != 1 {
		t.Fatalf("expected 1 manifold, got %d", len(w.ContactManifolds()))
	}
	m := w.ContactManifolds()[0]
	if math.Abs(m.Penetration()-0.5) > 1e-9 {
		t.Errorf("Penetration() = %v, want 0.5", m.Penetration())
	}
	if math.Abs(b.Location().Z()-2) > 1e-9 || a.Location() != (mgl64.Vec3{}) {
		t.Errorf("locations after the step: A %v, B %v", a.Location(), b.Location())
	}
	if capture.count() != 1 || !capture.hasEventType(COLLISION_ENTER) {
		t.Errorf("expected a COLLISION_ENTER event, got %v", capture.events)
	}

	far := NewWorld(Settings{}, quietLogger())
	far.AddBody(createTestSphere(mgl64.Vec3{0, 0, 0}, 1, true))
	far.AddBody(createTestSphere(mgl64.Vec3{0, 0, 3}, 1, false))
	far.Step()
	if len(far.ContactManifolds()) != 0 {
		t.Errorf("separated spheres produced %d manifolds", len(far.ContactManifolds()))
	}
}

func TestWorldBoxRestsOnGround(t *testing.T) {
	w := NewWorld(Settings{}, quietLogger())
	w.AddGlobalForce(actor.NewGlobalForceGravity(mgl64.Vec3{0, -9.81, 0}))

	ground := createTestGround()
	box := createTestBox(mgl64.Vec3{0.2, 0.6, -0.3}, mgl64.Vec3{0.5, 0.5, 0.5})
	w.AddBody(ground)
	w.AddBody(box)

	for range 60 {
		w.Step()
	}

	if math.Abs(box.Location().Y()-0.5) > 1e-2 {
		t.Errorf("box at %v, want resting at y = 0.5", box.Location())
	}
	if ground.Location() != (mgl64.Vec3{0, -0.5, 0}) {
		t.Errorf("kinematic ground moved to %v", ground.Location())
	}
	if len(w.ContactManifolds()) != 1 {
		t.Fatalf("expected 1 manifold, got %d", len(w.ContactManifolds()))
	}
	if n := w.ContactManifolds()[0].Len(); n != 4 {
		t.Errorf("expected 4 contacts under the box, got %d", n)
	}
}

func TestWorldWorkersAreDeterministic(t *testing.T) {
	build := func(workers int) *World {
		w := NewWorld(Settings{Workers: workers}, quietLogger())
		w.AddGlobalForce(actor.NewGlobalForceGravity(mgl64.Vec3{0, -9.81, 0}))
		w.AddBody(createTestGround())
		for i := range 12 {
			body := createTestBox(mgl64.Vec3{float64(i%4) * 1.5, 0.6 + float64(i/4)*1.2, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
			body.VelocityAngular = mgl64.Vec3{0, 0.1 * float64(i), 0}
			w.AddBody(body)
		}
		return w
	}

	single := build(1)
	parallel := build(4)
	for range 30 {
		single.Step()
		parallel.Step()
	}

	for i := range single.Bodies() {
		a, b := single.Bodies()[i], parallel.Bodies()[i]
		if a.Location() != b.Location() || a.Rotation() != b.Rotation() {
			t.Errorf("body %d differs: %v / %v", i, a.Location(), b.Location())
		}
	}
}
