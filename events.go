package tendon

import (
	"sync"

	"github.com/akmonengine/tendon/actor"
	"github.com/akmonengine/tendon/constraint"
)

const (
	ON_JOINT_BREAK EventType = iota
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case ON_JOINT_BREAK:
		return "joint_break"
	case ON_SLEEP:
		return "sleep"
	case ON_WAKE:
		return "wake"
	}
	return "unknown"
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// JointBreakEvent is sent when a joint exceeded its break force or torque.
// The handle stays valid until the joint is removed.
type JointBreakEvent struct {
	Joint constraint.JointHandle
}

func (e JointBreakEvent) Type() EventType { return ON_JOINT_BREAK }

// Sleep/Wake events
type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush. Joints may break from several workers.
	mu     sync.Mutex
	buffer []Event

	sleepStates map[*actor.RigidBody]bool
}

func NewEvents() *Events {
	return &Events{
		listeners:   make(map[EventType][]EventListener),
		buffer:      make([]Event, 0, 256),
		sleepStates: make(map[*actor.RigidBody]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// emitBreak buffers a break event, called from the joint break callback
func (e *Events) emitBreak(handle constraint.JointHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buffer = append(e.buffer, JointBreakEvent{Joint: handle})
}

// forget drops the tracked sleep state of a removed body
func (e *Events) forget(body *actor.RigidBody) {
	delete(e.sleepStates, body)
}

func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		trackedState, exists := e.sleepStates[body]
		if !exists {
			e.sleepStates[body] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body] = false
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
