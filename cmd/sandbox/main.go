// Command sandbox loads a scene, runs the simulation for a number of frames
// and logs what happens to the bodies.
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/config"
)

//go:embed scene.yaml
var defaultScene []byte

func main() {
	var (
		scenePath = flag.String("scene", "", "YAML scene file, the built-in scene when empty.")
		frames    = flag.Int("frames", 240, "Number of frames to simulate.")
		fps       = flag.Float64("fps", 60, "Frame rate fed to the simulation.")
		every     = flag.Int("every", 30, "Log body states every N frames, 0 disables.")
		workers   = flag.Int("workers", 0, "Integration goroutines, the scene value when 0.")
		speed     = flag.Float64("speed", 0, "Time speed, the scene value when 0.")
		verbose   = flag.Bool("verbose", false, "Log debug messages and stay events.")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *scenePath, *frames, *fps, *every, *workers, *speed); err != nil {
		logger.Error("sandbox failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, scenePath string, frames int, fps float64, every, workers int, speed float64) error {
	if frames < 0 || fps <= 0 {
		return fmt.Errorf("invalid frames %d or fps %v", frames, fps)
	}

	scene, err := loadScene(scenePath)
	if err != nil {
		return err
	}
	if workers > 0 {
		scene.Physics.Workers = workers
	}
	if speed > 0 {
		scene.Physics.TimeSpeed = speed
	}

	world, err := scene.Build(logger)
	if err != nil {
		return err
	}

	names := make(map[uint64]string, len(world.Bodies()))
	for i, body := range world.Bodies() {
		name := scene.Bodies[i].Name
		if name == "" {
			name = fmt.Sprintf("body%d", i)
		}
		names[body.ID] = name
	}
	subscribe(logger, world, names)

	logger.Info("scene loaded",
		"bodies", len(world.Bodies()),
		"step", world.FixedTimeStep(),
		"workers", world.Workers,
	)

	world.Resume()
	steps := 0
	for frame := 1; frame <= frames; frame++ {
		steps += world.Simulate(1.0 / fps)

		if every > 0 && frame%every == 0 {
			logStates(logger, world, names, frame)
		}
	}

	logger.Info("simulation done", "frames", frames, "steps", steps, "manifolds", len(world.ContactManifolds()))
	return nil
}

func loadScene(path string) (config.Scene, error) {
	if path == "" {
		return config.Parse(defaultScene)
	}

	return config.Load(path)
}

func subscribe(logger *slog.Logger, world *quill.World, names map[uint64]string) {
	pair := func(msg string, a, b *actor.RigidBody) {
		logger.Info(msg, "a", names[a.ID], "b", names[b.ID])
	}

	world.Events.Subscribe(quill.COLLISION_ENTER, func(e quill.Event) {
		ev := e.(quill.CollisionEnterEvent)
		pair("collision enter", ev.BodyA, ev.BodyB)
	})
	world.Events.Subscribe(quill.COLLISION_STAY, func(e quill.Event) {
		ev := e.(quill.CollisionStayEvent)
		logger.Debug("collision stay", "a", names[ev.BodyA.ID], "b", names[ev.BodyB.ID])
	})
	world.Events.Subscribe(quill.COLLISION_EXIT, func(e quill.Event) {
		ev := e.(quill.CollisionExitEvent)
		pair("collision exit", ev.BodyA, ev.BodyB)
	})
	world.Events.Subscribe(quill.TRIGGER_ENTER, func(e quill.Event) {
		ev := e.(quill.TriggerEnterEvent)
		pair("trigger enter", ev.BodyA, ev.BodyB)
	})
	world.Events.Subscribe(quill.TRIGGER_EXIT, func(e quill.Event) {
		ev := e.(quill.TriggerExitEvent)
		pair("trigger exit", ev.BodyA, ev.BodyB)
	})
	world.Events.Subscribe(quill.ON_SLEEP, func(e quill.Event) {
		logger.Info("sleep", "body", names[e.(quill.SleepEvent).Body.ID])
	})
	world.Events.Subscribe(quill.ON_WAKE, func(e quill.Event) {
		logger.Info("wake", "body", names[e.(quill.WakeEvent).Body.ID])
	})
}

func logStates(logger *slog.Logger, world *quill.World, names map[uint64]string, frame int) {
	for _, body := range world.Bodies() {
		if body.IsKinematic() {
			continue
		}
		logger.Info("body",
			"frame", frame,
			"name", names[body.ID],
			"location", body.Location(),
			"velocity", body.VelocityLinear,
			"awake", body.IsAwake(),
		)
	}

	for _, m := range world.ContactManifolds() {
		logger.Debug("manifold",
			"a", names[m.BodyA.ID],
			"b", names[m.BodyB.ID],
			"contacts", m.Len(),
			"penetration", m.Penetration(),
			"gjk_steps", m.GJKSteps,
			"epa_steps", m.EPASteps,
		)
	}
}
