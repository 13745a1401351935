package quill

import (
	"cmp"
	"maps"
	"slices"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/contact"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

// Event is implemented by every event sent to listeners
type Event interface {
	Type() EventType
}

// ContactPair holds the two bodies of a collision or trigger event, lower ID first
type ContactPair struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (p ContactPair) key() pairKey {
	return pairKey{idA: p.BodyA.ID, idB: p.BodyB.ID}
}

func (p ContactPair) isTrigger() bool {
	return p.BodyA.IsTrigger || p.BodyB.IsTrigger
}

func (p ContactPair) isSleeping() bool {
	return !p.BodyA.IsAwake() && !p.BodyB.IsAwake()
}

type pairKey struct {
	idA, idB uint64
}

func (k pairKey) has(id uint64) bool {
	return k.idA == id || k.idB == id
}

func makeContactPair(bodyA, bodyB *actor.RigidBody) ContactPair {
	if bodyB.ID < bodyA.ID {
		bodyA, bodyB = bodyB, bodyA
	}

	return ContactPair{BodyA: bodyA, BodyB: bodyB}
}

type TriggerEnterEvent struct{ ContactPair }
type TriggerStayEvent struct{ ContactPair }
type TriggerExitEvent struct{ ContactPair }
type CollisionEnterEvent struct{ ContactPair }
type CollisionStayEvent struct{ ContactPair }
type CollisionExitEvent struct{ ContactPair }

func (TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }
func (TriggerStayEvent) Type() EventType { return TRIGGER_STAY }
func (TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }
func (CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }
func (CollisionStayEvent) Type() EventType { return COLLISION_STAY }
func (CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

type SleepEvent struct {
	Body *actor.RigidBody
}

type WakeEvent struct {
	Body *actor.RigidBody
}

func (SleepEvent) Type() EventType { return ON_SLEEP }
func (WakeEvent) Type() EventType { return ON_WAKE }

// EventListener is called synchronously at the end of a step
type EventListener func(event Event)

// Events diffs the touching pairs of two consecutive steps and the sleep
// state of every body, then dispatches the resulting events at flush.
type Events struct {
	listeners map[EventType][]EventListener
	pending   []Event

	touching map[pairKey]ContactPair
	touched  map[pairKey]ContactPair

	asleep map[uint64]bool
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		pending:   make([]Event, 0, 64),
		touching:  make(map[pairKey]ContactPair),
		touched:   make(map[pairKey]ContactPair),
		asleep:    make(map[uint64]bool),
	}
}

func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordManifolds marks the body pair of every manifold as touching this step
func (e *Events) recordManifolds(manager *contact.Manager) {
	for _, m := range manager.Manifolds() {
		pair := makeContactPair(m.BodyA, m.BodyB)
		e.touching[pair.key()] = pair
	}
}

// forget drops a removed body without emitting exit events for it
func (e *Events) forget(body *actor.RigidBody) {
	delete(e.asleep, body.ID)
	maps.DeleteFunc(e.touching, func(key pairKey, _ ContactPair) bool { return key.has(body.ID) })
	maps.DeleteFunc(e.touched, func(key pairKey, _ ContactPair) bool { return key.has(body.ID) })
}

func orderedPairs(pairs map[pairKey]ContactPair) []ContactPair {
	keys := slices.SortedFunc(maps.Keys(pairs), func(a, b pairKey) int {
		if c := cmp.Compare(a.idA, b.idA); c != 0 {
			return c
		}
		return cmp.Compare(a.idB, b.idB)
	})

	ordered := make([]ContactPair, len(keys))
	for i, key := range keys {
		ordered[i] = pairs[key]
	}
	return ordered
}

// diffPairs queues enter and stay events for the pairs touching now, and exit
// events for the pairs that touched last step only. Pairs of two sleeping
// bodies keep touching silently until one of them wakes up.
func (e *Events) diffPairs() {
	for _, pair := range orderedPairs(e.touching) {
		if pair.isSleeping() {
			continue
		}

		_, stayed := e.touched[pair.key()]
		switch {
		case stayed && pair.isTrigger():
			e.pending = append(e.pending, TriggerStayEvent{pair})
		case stayed:
			e.pending = append(e.pending, CollisionStayEvent{pair})
		case pair.isTrigger():
			e.pending = append(e.pending, TriggerEnterEvent{pair})
		default:
			e.pending = append(e.pending, CollisionEnterEvent{pair})
		}
	}

	for _, pair := range orderedPairs(e.touched) {
		if _, ok := e.touching[pair.key()]; ok {
			continue
		}
		// The broad phase skips sleeping pairs: they still touch
		if pair.isSleeping() {
			e.touching[pair.key()] = pair
			continue
		}
		if pair.isTrigger() {
			e.pending = append(e.pending, TriggerExitEvent{pair})
		} else {
			e.pending = append(e.pending, CollisionExitEvent{pair})
		}
	}

	e.touched, e.touching = e.touching, e.touched
	clear(e.touching)
}

// processSleepEvents queues a sleep or wake event for every body whose state
// changed. A body seen for the first time is only recorded.
func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		sleeping := !body.IsAwake()
		was, known := e.asleep[body.ID]
		e.asleep[body.ID] = sleeping

		switch {
		case !known || was == sleeping:
		case sleeping:
			e.pending = append(e.pending, SleepEvent{Body: body})
		default:
			e.pending = append(e.pending, WakeEvent{Body: body})
		}
	}
}

// flush diffs the pairs and calls the listeners, in queue order
func (e *Events) flush() {
	e.diffPairs()

	for _, event := range e.pending {
		for _, listener := range e.listeners[event.Type()] {
			listener(event)
		}
	}
	e.pending = e.pending[:0]
}
