// Package quill runs a rigid body simulation: fixed time steps of global
// forces, integration, narrow phase contact generation and location correction.
package quill

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/contact"
)

const (
	DEFAULT_WORKERS          = 1
	DEFAULT_STEPS_PER_SECOND = 120
	DEFAULT_TIME_SPEED       = 1.0

	// maxStepsPerSimulate bounds the catch up after a long frame
	maxStepsPerSimulate = 32
)

var (
	ErrNilBody        = errors.New("quill: nil rigid body")
	ErrNoShape        = errors.New("quill: rigid body does not have a shape")
	ErrDuplicateBody  = errors.New("quill: rigid body already present")
	ErrBodyNotFound   = errors.New("quill: rigid body not found")
	ErrNilForce       = errors.New("quill: nil global force")
	ErrDuplicateForce = errors.New("quill: global force already present")
	ErrForceNotFound  = errors.New("quill: global force not found")
)

// Settings tunes a World. The zero value of a field selects its default.
type Settings struct {
	StepsPerSecond int
	TimeSpeed      float64
	GJKMaxSteps    int
	Workers        int
	CellSize       float64
}

type World struct {
	// Workers is the number of goroutines used for integration
	Workers int

	Events Events

	bodies []*actor.RigidBody
	forces []actor.GlobalForce

	grid     *SpatialGrid
	detector *contact.Detector
	manager  *contact.Manager
	logger   *slog.Logger

	stepsPerSecond int
	timeSpeed      float64
	fixedTimeStep  float64
	accumulator    float64
	isPaused       bool
}

// NewWorld creates a paused world. A nil logger falls back to slog.Default().
func NewWorld(settings Settings, logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.StepsPerSecond <= 0 {
		settings.StepsPerSecond = DEFAULT_STEPS_PER_SECOND
	}
	if settings.TimeSpeed <= 0 {
		settings.TimeSpeed = DEFAULT_TIME_SPEED
	}

	w := &World{
		Workers:        max(DEFAULT_WORKERS, settings.Workers),
		Events:         NewEvents(),
		grid:           NewSpatialGrid(settings.CellSize, DefaultNumCells),
		detector:       contact.NewDetector(settings.GJKMaxSteps, logger),
		manager:        contact.NewManager(),
		logger:         logger,
		stepsPerSecond: settings.StepsPerSecond,
		isPaused:       true,
	}
	w.SetTimeSpeed(settings.TimeSpeed)

	return w
}

// AddBody adds a rigid body with a shape to the world
func (w *World) AddBody(body *actor.RigidBody) error {
	if body == nil {
		w.logger.Error("can't insert rigid body", "error", ErrNilBody)
		return ErrNilBody
	}
	if !body.HasShape() {
		w.logger.Error("can't insert rigid body", "body", body.ID, "error", ErrNoShape)
		return ErrNoShape
	}
	if slices.Contains(w.bodies, body) {
		w.logger.Error("can't insert rigid body", "body", body.ID, "error", ErrDuplicateBody)
		return ErrDuplicateBody
	}

	w.bodies = append(w.bodies, body)
	return nil
}

// RemoveBody removes a rigid body and its tracked events
func (w *World) RemoveBody(body *actor.RigidBody) error {
	k := slices.Index(w.bodies, body)
	if body == nil || k < 0 {
		w.logger.Error("can't find rigid body", "error", ErrBodyNotFound)
		return ErrBodyNotFound
	}

	w.bodies = slices.Delete(w.bodies, k, k+1)
	w.Events.forget(body)

	return nil
}

// Bodies returns the bodies in insertion order. The slice must not be modified.
func (w *World) Bodies() []*actor.RigidBody {
	return w.bodies
}

func (w *World) AddGlobalForce(force actor.GlobalForce) error {
	if force == nil {
		w.logger.Error("can't insert global force", "error", ErrNilForce)
		return ErrNilForce
	}
	if slices.Contains(w.forces, force) {
		w.logger.Error("can't insert global force", "error", ErrDuplicateForce)
		return ErrDuplicateForce
	}

	w.forces = append(w.forces, force)
	return nil
}

func (w *World) RemoveGlobalForce(force actor.GlobalForce) error {
	k := slices.Index(w.forces, force)
	if k < 0 {
		w.logger.Error("can't find global force", "error", ErrForceNotFound)
		return ErrForceNotFound
	}

	w.forces = slices.Delete(w.forces, k, k+1)
	return nil
}

// ContactManifolds returns the manifolds of the last step
func (w *World) ContactManifolds() []contact.Manifold {
	return w.manager.Manifolds()
}

func (w *World) GetTimeSpeed() float64 {
	return w.timeSpeed
}

// SetTimeSpeed scales simulated time. The number of steps per real second
// stays the same, each step covers speed times more time.
func (w *World) SetTimeSpeed(speed float64) {
	w.timeSpeed = speed
	w.fixedTimeStep = speed / float64(w.stepsPerSecond)
}

// FixedTimeStep returns the simulated duration of one step
func (w *World) FixedTimeStep() float64 {
	return w.fixedTimeStep
}

func (w *World) IsPaused() bool {
	return w.isPaused
}

func (w *World) Pause() {
	w.isPaused = true
}

// Resume restarts the simulation with an empty accumulator
func (w *World) Resume() {
	if !w.isPaused {
		return
	}

	w.accumulator = 0
	w.isPaused = false
}

// Simulate advances the world by deltaTime seconds of real time and returns
// the number of fixed steps run. A paused world does nothing.
func (w *World) Simulate(deltaTime float64) int {
	if w.isPaused || deltaTime <= 0 || w.fixedTimeStep <= 0 {
		return 0
	}

	w.accumulator += deltaTime * w.timeSpeed

	steps := 0
	for w.accumulator >= w.fixedTimeStep {
		if steps == maxStepsPerSimulate {
			w.logger.Warn("simulation is late, dropping time", "dropped", w.accumulator)
			w.accumulator = 0
			break
		}

		w.step(w.fixedTimeStep)
		w.accumulator -= w.fixedTimeStep
		steps++
	}

	return steps
}

// Step runs a single fixed step, paused or not
func (w *World) Step() {
	w.step(w.fixedTimeStep)
}
