package platform

import (
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/metronome/engine/core"
)

// Headless runs without a window. Window messages are injected with Post,
// which makes it the platform of choice for servers, CI and tests.
type Headless struct {
	*dispatcher
	mainLoop bool
	started  atomic.Bool
	sleep    func(time.Duration)
}

type HeadlessOption func(*Headless)

// WithMainLoop makes the platform own the loop, the way browser and mobile
// targets do.
func WithMainLoop() HeadlessOption {
	return func(h *Headless) {
		h.mainLoop = true
	}
}

// WithSleeper replaces time.Sleep.
func WithSleeper(fn func(time.Duration)) HeadlessOption {
	return func(h *Headless) {
		h.sleep = fn
	}
}

func NewHeadless(events *core.EventSystem, input *core.InputState, opts ...HeadlessOption) *Headless {
	h := &Headless{
		dispatcher: newDispatcher(events, input),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Headless) Startup(cfg Config) error {
	h.started.Store(true)
	core.LogInfo("headless platform started for `%s`", cfg.Name)
	return nil
}

// Post queues a window message for the next PumpMessages.
func (h *Headless) Post(e Event) {
	h.push(e)
}

func (h *Headless) PumpMessages() bool {
	if !h.started.Load() {
		return false
	}
	return h.dispatch()
}

func (h *Headless) HasFocus() bool {
	return h.hasFocus()
}

func (h *Headless) IsMinimized() bool {
	return h.isMinimized()
}

func (h *Headless) NeedsMainLoop() bool {
	return h.mainLoop
}

func (h *Headless) RunMainLoop(frame func() bool) error {
	for h.started.Load() && frame() {
	}
	return nil
}

func (h *Headless) Sleep(d time.Duration) {
	h.sleep(d)
}

func (h *Headless) RequiredInstanceExtensions() []string {
	return nil
}

func (h *Headless) Shutdown() error {
	h.started.Store(false)
	return nil
}
