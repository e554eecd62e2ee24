package pacer

import (
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/metronome/engine/core"
)

// Clock returns monotonic samples measured from an arbitrary origin.
type Clock interface {
	Sample() time.Duration
}

// Hooks are the collaborators driven by Tick. Any of them may be nil.
type Hooks struct {
	// PollEvents runs once per tick, right before the update phase.
	PollEvents func()
	// IsActive reports whether the window has focus; inactive games sleep
	// InactiveSleepTime at the start of each tick.
	IsActive  func() bool
	Update    func(GameTime) error
	BeginDraw func() bool
	Draw      func(GameTime) error
	EndDraw   func() error
}

type Option func(*FramePacer)

// WithClock replaces the wall clock. The default is a started core.Clock.
func WithClock(c Clock) Option {
	return func(p *FramePacer) {
		p.clock = c
	}
}

// WithSleep replaces the function used for the 1ms and inactive sleeps.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *FramePacer) {
		p.sleep = fn
	}
}

// WithSpin replaces the short busy wait used for the last stretch of a frame.
func WithSpin(fn func()) Option {
	return func(p *FramePacer) {
		p.spin = fn
	}
}

// WithSleepPrecisionFloor sets the smallest sleep observation the estimator
// accepts.
func WithSleepPrecisionFloor(d time.Duration) Option {
	return func(p *FramePacer) {
		p.sleepFloor = d
	}
}

func defaultClock() Clock {
	c := core.NewClock()
	c.Start()
	return c
}

var spinCounter atomic.Uint32

// spinOnce burns a few hundred nanoseconds without yielding the thread.
func spinOnce() {
	for i := 0; i < 64; i++ {
		spinCounter.Add(1)
	}
}
