package engine

import (
	"time"

	"github.com/spaghettifunk/metronome/engine/audio"
	"github.com/spaghettifunk/metronome/engine/audio/mixer"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/pacer"
	"github.com/spaghettifunk/metronome/engine/platform"
	"github.com/spaghettifunk/metronome/engine/renderer"
)

// Option overrides one of the collaborators the engine would otherwise pick
// from the configuration.
type Option func(*Engine)

// WithPlatform builds the platform from the engine's event system and input
// state.
func WithPlatform(fn func(*core.EventSystem, *core.InputState) platform.Platform) Option {
	return func(e *Engine) {
		e.platform = fn(e.events, e.input)
	}
}

func WithDevice(d renderer.Device) Option {
	return func(e *Engine) {
		e.device = d
	}
}

// WithAudioOutput replaces the speaker output of the mixer.
func WithAudioOutput(out mixer.Output) Option {
	return func(e *Engine) {
		e.audioOutput = out
	}
}

// WithLifetime shares the shutdown phase with the caller, usually a signal
// handler.
func WithLifetime(l *audio.Lifetime) Option {
	return func(e *Engine) {
		e.lifetime = l
	}
}

// WithClock drives the frame pacer from c instead of the wall clock.
func WithClock(c pacer.Clock) Option {
	return func(e *Engine) {
		e.clock = c
		e.pacerOptions = append(e.pacerOptions, pacer.WithClock(c))
	}
}

// WithSleep replaces the sleep used by the frame pacer.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) {
		e.pacerOptions = append(e.pacerOptions, pacer.WithSleep(fn))
	}
}

// WithSpin replaces the busy wait used by the frame pacer.
func WithSpin(fn func()) Option {
	return func(e *Engine) {
		e.pacerOptions = append(e.pacerOptions, pacer.WithSpin(fn))
	}
}
