package platform

import (
	"sync"
	"time"

	"github.com/spaghettifunk/metronome/engine/containers"
	"github.com/spaghettifunk/metronome/engine/core"
)

const eventQueueSize = 256

type Config struct {
	Name   string
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// Platform owns the window (if any) and turns OS messages into engine
// events and input state.
type Platform interface {
	Startup(cfg Config) error
	// PumpMessages processes pending OS messages. It returns false once the
	// user asked to close the window.
	PumpMessages() bool
	HasFocus() bool
	IsMinimized() bool
	// NeedsMainLoop reports whether the platform has to own the loop, in
	// which case the engine hands its frame function to RunMainLoop.
	NeedsMainLoop() bool
	// RunMainLoop calls frame until it returns false.
	RunMainLoop(frame func() bool) error
	Sleep(d time.Duration)
	RequiredInstanceExtensions() []string
	Shutdown() error
}

type EventKind uint8

const (
	EventKey EventKind = iota + 1
	EventResize
	EventFocus
	EventMinimize
	EventClose
)

// Event is a window message waiting to be dispatched.
type Event struct {
	Kind      EventKind
	Key       core.KeyCode
	Pressed   bool
	Width     uint32
	Height    uint32
	Focused   bool
	Minimized bool
}

// dispatcher queues window messages and replays them into the event system
// and input state from PumpMessages.
type dispatcher struct {
	mu     sync.Mutex
	queue  *containers.RingQueue[Event]
	events *core.EventSystem
	input  *core.InputState

	focused        bool
	minimized      bool
	closeRequested bool
}

func newDispatcher(events *core.EventSystem, input *core.InputState) *dispatcher {
	return &dispatcher{
		queue:   containers.NewRingQueue[Event](eventQueueSize),
		events:  events,
		input:   input,
		focused: true,
	}
}

func (d *dispatcher) push(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.queue.Enqueue(e); err != nil {
		core.LogWarn("platform: dropping window event %d: %s", e.Kind, err)
	}
}

// dispatch drains the queue. It returns false once a close was requested.
func (d *dispatcher) dispatch() bool {
	for {
		d.mu.Lock()
		e, err := d.queue.Dequeue()
		d.mu.Unlock()
		if err != nil {
			break
		}
		d.handle(e)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closeRequested
}

func (d *dispatcher) handle(e Event) {
	switch e.Kind {
	case EventKey:
		if d.input != nil {
			d.input.ProcessKey(e.Key, e.Pressed)
		}
	case EventResize:
		d.fire(core.EVENT_CODE_RESIZED, &core.SystemEvent{WindowWidth: e.Width, WindowHeight: e.Height})
	case EventFocus:
		d.mu.Lock()
		d.focused = e.Focused
		d.mu.Unlock()
		code := core.EVENT_CODE_FOCUS_LOST
		if e.Focused {
			code = core.EVENT_CODE_FOCUS_GAINED
		}
		d.fire(code, nil)
	case EventMinimize:
		d.mu.Lock()
		d.minimized = e.Minimized
		d.mu.Unlock()
	case EventClose:
		d.mu.Lock()
		d.closeRequested = true
		d.mu.Unlock()
		d.fire(core.EVENT_CODE_APPLICATION_QUIT, nil)
	}
}

func (d *dispatcher) fire(code core.SystemEventCode, data interface{}) {
	if d.events == nil {
		return
	}
	d.events.Fire(core.EventContext{Type: code, Sender: d, Data: data})
}

func (d *dispatcher) hasFocus() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

func (d *dispatcher) isMinimized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minimized
}
