package engine

import (
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/pacer"
)

// Game is what the engine drives. Every callback may be nil.
type Game struct {
	// Config defaults to config.Default().
	Config       *config.Config
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnDraw       Draw
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func(e *Engine) error
type Update func(gameTime pacer.GameTime) error
type Draw func(gameTime pacer.GameTime) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
