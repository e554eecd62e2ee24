package testbed

import (
	"time"

	"github.com/spaghettifunk/metronome/engine"
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/pacer"
)

const (
	clickBank = "sfx"
	clickCue  = "click"
	fpsPeriod = 5 * time.Second
)

// TestGame plays a cue on SPACE, toggles the time step mode on F and reports
// frame rate and slow frames.
type TestGame struct {
	*engine.Game
	engine *engine.Engine

	runningSlowly bool
	lastReport    time.Duration
	updates       int
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
		},
	}
	tg.State = tg
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnDraw = tg.Draw
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	g.engine = e
	e.Events().Register(core.EVENT_CODE_AUDIO_OBJECT_DESTROYED, g, g.onAudioDestroyed)
	return nil
}

func (g *TestGame) Update(gameTime pacer.GameTime) error {
	g.updates++
	input := g.engine.Input()

	if input.KeyPressed(core.KEY_SPACE) {
		if as := g.engine.Audio(); as != nil {
			if err := as.PlayCue(clickBank, clickCue); err != nil {
				core.LogWarn("could not play `%s`: %s", clickCue, err)
			}
		}
	}
	if input.KeyPressed(core.KEY_F) {
		p := g.engine.Pacer()
		p.SetFixedTimeStep(!p.IsFixedTimeStep())
		core.LogInfo("fixed time step: %t", p.IsFixedTimeStep())
	}

	if gameTime.IsRunningSlowly != g.runningSlowly {
		g.runningSlowly = gameTime.IsRunningSlowly
		if g.runningSlowly {
			core.LogWarn("running slowly, update lag %d", g.engine.Pacer().UpdateLag())
		} else {
			core.LogInfo("caught up")
		}
	}
	return nil
}

func (g *TestGame) Draw(gameTime pacer.GameTime) error {
	if gameTime.TotalGameTime-g.lastReport < fpsPeriod {
		return nil
	}
	g.lastReport = gameTime.TotalGameTime
	fps, frameMS := g.engine.Metrics().Frame()
	core.LogInfo("fps %.1f, frame %.2fms, %d updates, sleep precision %s",
		fps, frameMS, g.updates, g.engine.Pacer().WorstCaseSleepPrecision())
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed ran %d updates", g.updates)
	return nil
}

func (g *TestGame) onAudioDestroyed(ctx core.EventContext) bool {
	if ae, ok := ctx.Data.(*core.AudioEvent); ok && ae.Name != "" {
		core.LogDebug("audio %s `%s` destroyed", ae.Kind, ae.Name)
	}
	return false
}
