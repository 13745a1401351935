package quill

import (
	"sync"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/solver"
)

// task splits data in workersCount chunks, each handled by its own goroutine
func task[T any](workersCount int, data []T, fn func(data T)) {
	if len(data) == 0 {
		return
	}
	if workersCount <= 1 {
		for _, d := range data {
			fn(d)
		}
		return
	}

	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for start := 0; start < dataSize; start += chunkSize {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}(start, min(start+chunkSize, dataSize))
	}
	wg.Wait()
}

// step runs one fixed time step: forces, integration, contacts, location
// correction, then accumulator reset.
func (w *World) step(dt float64) {
	w.integrate(dt)
	w.collectContacts()

	w.Events.recordManifolds(w.manager)
	solver.Solve(w.manager)

	w.prepare()

	w.Events.processSleepEvents(w.bodies)
	w.Events.flush()
}

func (w *World) integrate(dt float64) {
	task(w.Workers, w.bodies, func(body *actor.RigidBody) {
		for _, force := range w.forces {
			force.Apply(body)
		}
		body.Integrate(dt)
	})
}

// collectContacts runs the narrow phase on every broad phase pair, in order
func (w *World) collectContacts() {
	w.manager.Reset()

	for _, pair := range BroadPhase(w.grid, w.bodies) {
		w.detector.Check(w.manager, pair.BodyA, pair.BodyB)
	}
}

func (w *World) prepare() {
	for _, body := range w.bodies {
		body.ResetAccumulators()
	}
}
