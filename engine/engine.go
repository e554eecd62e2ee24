package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/metronome/engine/assets"
	"github.com/spaghettifunk/metronome/engine/audio"
	"github.com/spaghettifunk/metronome/engine/audio/mixer"
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/pacer"
	"github.com/spaghettifunk/metronome/engine/platform"
	"github.com/spaghettifunk/metronome/engine/renderer"
	"github.com/spaghettifunk/metronome/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return "uninitialized"
}

var ErrWrongStage = errors.New("engine is in the wrong stage")

type Engine struct {
	stage        atomic.Uint32
	gameInstance *Game
	cfg          *config.Config

	exitRequested atomic.Bool
	shutdownOnce  sync.Once
	shutdownErr   error

	platform     platform.Platform
	device       renderer.Device
	events       *core.EventSystem
	input        *core.InputState
	metrics      *core.FrameMetrics
	assetManager *assets.AssetManager
	audio        *AudioSystem
	audioOutput  mixer.Output
	lifetime     *audio.Lifetime

	pacer        *pacer.FramePacer
	pacerOptions []pacer.Option
	clock        pacer.Clock
	lastDraw     time.Duration

	width  uint32
	height uint32
}

func New(g *Game, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: game is nil", core.ErrInvalidArgument)
	}
	if g.Config == nil {
		g.Config = config.Default()
	}
	if err := g.Config.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if g.Config.Application.LogLevel != "" {
		if err := core.SetLogLevel(g.Config.Application.LogLevel); err != nil {
			return nil, err
		}
	}

	events := core.NewEventSystem()
	e := &Engine{
		gameInstance: g,
		cfg:          g.Config,
		events:       events,
		input:        core.NewInputState(events),
		metrics:      core.NewFrameMetrics(),
		width:        g.Config.Application.Width,
		height:       g.Config.Application.Height,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.platform == nil {
		if e.cfg.Application.Headless {
			e.platform = platform.NewHeadless(e.events, e.input)
		} else {
			e.platform = platform.NewWindow(e.events, e.input)
		}
	}
	if e.lifetime == nil {
		e.lifetime = audio.NewLifetime()
	}
	if e.clock == nil {
		c := core.NewClock()
		c.Start()
		e.clock = c
		e.pacerOptions = append(e.pacerOptions, pacer.WithClock(c))
	}
	return e, nil
}

func (e *Engine) Initialize() error {
	if !e.stage.CompareAndSwap(uint32(EngineStageUninitialized), uint32(EngineStageInitializing)) {
		return e.stageError("initialize")
	}

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	app := e.cfg.Application
	if err := e.platform.Startup(platform.Config{
		Name:   app.Name,
		X:      app.StartPosX,
		Y:      app.StartPosY,
		Width:  app.Width,
		Height: app.Height,
	}); err != nil {
		return err
	}

	if e.device == nil {
		if err := e.createDevice(); err != nil {
			return err
		}
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	e.assetManager = am

	if e.cfg.Audio.Enabled {
		if err := e.initializeAudio(); err != nil {
			return err
		}
	}

	e.pacer = pacer.NewFramePacer(pacer.Hooks{
		PollEvents: e.pollEvents,
		IsActive:   e.isActive,
		Update:     e.update,
		BeginDraw:  e.beginDraw,
		Draw:       e.draw,
		EndDraw:    e.endDraw,
	}, append(e.pacerOptions, pacer.WithSleepPrecisionFloor(e.cfg.Timing.SleepPrecisionFloor.Std()))...)
	if err := e.configurePacer(); err != nil {
		return err
	}

	if g := e.gameInstance; g.FnInitialize != nil {
		if err := g.FnInitialize(e); err != nil {
			return err
		}
	}
	if g := e.gameInstance; g.FnOnResize != nil {
		if err := g.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.stage.Store(uint32(EngineStageInitialized))
	core.LogInfo("engine initialized")
	return nil
}

func (e *Engine) createDevice() error {
	if e.cfg.Application.Headless {
		e.device = renderer.NewNullDevice()
		return nil
	}
	d, err := vulkan.NewDevice(vulkan.Config{
		ApplicationName: e.cfg.Application.Name,
		Extensions:      e.platform.RequiredInstanceExtensions(),
		Minimized:       e.platform.IsMinimized,
		Debug:           e.cfg.Application.LogLevel == "debug",
	})
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	e.device = d
	return nil
}

func (e *Engine) initializeAudio() error {
	ac := e.cfg.Audio
	if err := e.assetManager.Initialize(ac.ContentDir, ac.WatchContent); err != nil {
		return fmt.Errorf("audio content `%s`: %w", ac.ContentDir, err)
	}

	output := e.audioOutput
	if output == nil {
		if e.cfg.Application.Headless {
			output = mixer.NewSilentOutput(ac.SampleRate)
		} else if speaker, err := mixer.NewSpeakerOutput(ac.SampleRate); err != nil {
			core.LogWarn("no audio device, continuing silently: %s", err)
			output = mixer.NewSilentOutput(ac.SampleRate)
		} else {
			output = speaker
		}
	}

	as, err := NewAudioSystem(ac, e.lifetime, output, e.assetManager, e.events)
	if err != nil {
		return err
	}
	e.audio = as
	return as.Initialize()
}

func (e *Engine) configurePacer() error {
	t := e.cfg.Timing
	if err := e.pacer.SetTargetElapsedTime(t.TargetElapsedTime.Std()); err != nil {
		return err
	}
	if err := e.pacer.SetInactiveSleepTime(t.InactiveSleepTime.Std()); err != nil {
		return err
	}
	if err := e.pacer.SetMaxElapsedTime(t.MaxElapsedTime.Std()); err != nil {
		return err
	}
	e.pacer.SetFixedTimeStep(t.FixedTimeStep)
	return nil
}

// Run drives ticks until Exit is called, the window is closed or a tick
// fails. On platforms that own the main loop the frame function is handed to
// them instead.
func (e *Engine) Run() error {
	if !e.stage.CompareAndSwap(uint32(EngineStageInitialized), uint32(EngineStageRunning)) {
		return e.stageError("run")
	}
	if err := e.pacer.Reset(); err != nil {
		return err
	}
	e.lastDraw = e.clock.Sample()

	var runErr error
	frame := func() bool {
		if e.exitRequested.Load() {
			return false
		}
		if err := e.Tick(); err != nil {
			runErr = err
			return false
		}
		return !e.exitRequested.Load()
	}

	if e.platform.NeedsMainLoop() {
		if err := e.platform.RunMainLoop(frame); err != nil {
			return err
		}
	} else {
		for frame() {
		}
	}

	if runErr != nil {
		core.LogError("game loop stopped: %s", runErr)
	}
	return runErr
}

// Tick runs one pacer tick: zero or more updates and at most one draw.
func (e *Engine) Tick() error {
	if e.pacer == nil {
		return fmt.Errorf("tick: %w (%s)", ErrWrongStage, e.Stage())
	}
	return e.pacer.Tick()
}

// RunOneFrame ticks once outside of Run, for tools and tests that step the
// game by hand.
func (e *Engine) RunOneFrame() error {
	switch e.Stage() {
	case EngineStageInitialized, EngineStageRunning:
		return e.Tick()
	}
	return e.stageError("run one frame")
}

// stageError reports a call made in the wrong stage. After Shutdown every
// such call fails with core.ErrObjectDisposed.
func (e *Engine) stageError(op string) error {
	stage := e.Stage()
	if stage == EngineStageShuttingDown {
		return fmt.Errorf("%s: %w", op, core.ErrObjectDisposed)
	}
	return fmt.Errorf("%s: %w (%s)", op, ErrWrongStage, stage)
}

// Exit asks the loop to stop before the next tick. Safe from any goroutine.
func (e *Engine) Exit() {
	e.exitRequested.Store(true)
}

func (e *Engine) IsExiting() bool {
	return e.exitRequested.Load()
}

func (e *Engine) pollEvents() {
	if !e.platform.PumpMessages() {
		e.Exit()
	}
}

func (e *Engine) isActive() bool {
	return e.platform.HasFocus() && !e.platform.IsMinimized()
}

func (e *Engine) update(gameTime pacer.GameTime) error {
	if e.audio != nil {
		if err := e.audio.Update(); err != nil {
			return err
		}
	}
	if g := e.gameInstance; g.FnUpdate != nil {
		if err := g.FnUpdate(gameTime); err != nil {
			return err
		}
	}
	e.input.Update()
	return nil
}

func (e *Engine) beginDraw() bool {
	if e.platform.IsMinimized() {
		return false
	}
	return e.device.BeginDraw()
}

func (e *Engine) draw(gameTime pacer.GameTime) error {
	if g := e.gameInstance; g.FnDraw != nil {
		if err := g.FnDraw(gameTime); err != nil {
			return err
		}
	}
	now := e.clock.Sample()
	e.metrics.Update(now - e.lastDraw)
	e.lastDraw = now
	return nil
}

func (e *Engine) endDraw() error {
	if err := e.device.EndDraw(); err != nil {
		return err
	}
	return e.device.Present()
}

// Shutdown tears everything down in reverse order of creation. Only the first
// call does any work.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.Exit()
		e.stage.Store(uint32(EngineStageShuttingDown))
		core.LogInfo("engine shutting down")

		var errs []error
		if g := e.gameInstance; g.FnShutdown != nil {
			errs = append(errs, g.FnShutdown())
		}
		if e.audio != nil {
			errs = append(errs, e.audio.Shutdown())
		}
		if e.assetManager != nil {
			errs = append(errs, e.assetManager.Shutdown())
		}
		if e.pacer != nil {
			e.pacer.Dispose()
		}
		if e.device != nil {
			errs = append(errs, e.device.Destroy())
		}
		errs = append(errs, e.platform.Shutdown())
		errs = append(errs, e.events.Shutdown())
		e.shutdownErr = errors.Join(errs...)
	})
	return e.shutdownErr
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Exit()
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		e.Exit()
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok || (se.WindowWidth == e.width && se.WindowHeight == e.height) {
		return false
	}
	e.width, e.height = se.WindowWidth, se.WindowHeight
	core.LogDebug("window resize: %d, %d", e.width, e.height)
	if e.width == 0 || e.height == 0 {
		// minimized
		return true
	}
	if g := e.gameInstance; g.FnOnResize != nil {
		if err := g.FnOnResize(e.width, e.height); err != nil {
			core.LogError("resize: %s", err)
		}
	}
	return false
}

func (e *Engine) Stage() Stage {
	return Stage(e.stage.Load())
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Input() *core.InputState {
	return e.input
}

func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

func (e *Engine) Pacer() *pacer.FramePacer {
	return e.pacer
}

// Audio is nil when audio is disabled.
func (e *Engine) Audio() *AudioSystem {
	return e.audio
}

func (e *Engine) Lifetime() *audio.Lifetime {
	return e.lifetime
}

func (e *Engine) Platform() platform.Platform {
	return e.platform
}

func (e *Engine) Device() renderer.Device {
	return e.device
}
