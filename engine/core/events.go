package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed. Data is a *KeyEvent.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released. Data is a *KeyEvent.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS. Data is a *SystemEvent.
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The window gained input focus.
	EVENT_CODE_FOCUS_GAINED SystemEventCode = 0x09

	// The window lost input focus.
	EVENT_CODE_FOCUS_LOST SystemEventCode = 0x0A

	// A native audio object was destroyed. Data is an *AudioEvent.
	EVENT_CODE_AUDIO_OBJECT_DESTROYED SystemEventCode = 0x10

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type   SystemEventCode
	Sender interface{}
	Data   interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
	Pressed bool
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AudioEvent struct {
	Kind   string
	Name   string
	Handle uintptr
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem dispatches engine events to registered listeners. Listeners
// are invoked on the goroutine calling Fire, outside of the internal lock.
type EventSystem struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventSystem() *EventSystem {
	return &EventSystem{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener combos will not be registered again and will cause this to return false.
 */
func (es *EventSystem) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, e := range es.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code `%d`", code)
			return false
		}
	}
	es.registered[code] = append(es.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 */
func (es *EventSystem) Unregister(code SystemEventCode, listener interface{}) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(context EventContext) bool {
	es.mu.RLock()
	events := append([]*registeredEvent(nil), es.registered[context.Type]...)
	es.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (es *EventSystem) Shutdown() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.registered = make(map[SystemEventCode][]*registeredEvent)
	return nil
}
