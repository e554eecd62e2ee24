package testbed

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/metronome/engine"
	"github.com/spaghettifunk/metronome/engine/audio/mixer"
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/platform"
	"github.com/spaghettifunk/metronome/engine/renderer"
)

func init() {
	core.SetLogOutput(io.Discard)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *stepClock) Sample() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

func startTestGame(t *testing.T, cfg *config.Config) (*TestGame, *engine.Engine, *platform.Headless) {
	t.Helper()
	clock := &stepClock{}
	var headless *platform.Headless

	tg := NewTestGame(cfg)
	e, err := engine.New(tg.Game,
		engine.WithClock(clock),
		engine.WithSleep(clock.advance),
		engine.WithSpin(func() { clock.advance(100 * time.Microsecond) }),
		engine.WithDevice(renderer.NewNullDevice()),
		engine.WithAudioOutput(mixer.NewSilentOutput(cfg.Audio.SampleRate)),
		engine.WithPlatform(func(events *core.EventSystem, input *core.InputState) platform.Platform {
			headless = platform.NewHeadless(events, input)
			return headless
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Shutdown() })
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	return tg, e, headless
}

func headlessConfig() *config.Config {
	cfg := config.Default()
	cfg.Application.Headless = true
	cfg.Application.LogLevel = ""
	cfg.Audio.Enabled = false
	return cfg
}

func TestToggleFixedTimeStep(t *testing.T) {
	tg, e, headless := startTestGame(t, headlessConfig())

	headless.Post(platform.Event{Kind: platform.EventKey, Key: core.KEY_F, Pressed: true})
	if err := e.RunOneFrame(); err != nil {
		t.Fatal(err)
	}
	if e.Pacer().IsFixedTimeStep() {
		t.Fatal("fixed time step still on")
	}

	// holding the key does not toggle again
	if err := e.RunOneFrame(); err != nil {
		t.Fatal(err)
	}
	if e.Pacer().IsFixedTimeStep() {
		t.Fatal("held key toggled the mode back")
	}

	headless.Post(platform.Event{Kind: platform.EventKey, Key: core.KEY_F, Pressed: false})
	if err := e.RunOneFrame(); err != nil {
		t.Fatal(err)
	}
	headless.Post(platform.Event{Kind: platform.EventKey, Key: core.KEY_F, Pressed: true})
	if err := e.RunOneFrame(); err != nil {
		t.Fatal(err)
	}
	if !e.Pacer().IsFixedTimeStep() {
		t.Fatal("fixed time step not restored")
	}
	if tg.updates != 4 {
		t.Fatalf("updates = %d", tg.updates)
	}
}

func TestRunsUntilEscape(t *testing.T) {
	tg, e, headless := startTestGame(t, headlessConfig())
	for i := 0; i < 5; i++ {
		if err := e.RunOneFrame(); err != nil {
			t.Fatal(err)
		}
	}
	headless.Post(platform.Event{Kind: platform.EventKey, Key: core.KEY_ESCAPE, Pressed: true})
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if tg.updates != 6 {
		t.Fatalf("updates = %d", tg.updates)
	}
}

func TestPlaysBundledCue(t *testing.T) {
	cfg := headlessConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.ContentDir = "../assets/audio"
	cfg.Audio.WaveBanks = []string{"effects"}
	cfg.Audio.SoundBanks = []string{clickBank}
	_, e, _ := startTestGame(t, cfg)

	if err := e.Audio().PlayCue(clickBank, clickCue); err != nil {
		t.Fatal(err)
	}
	if err := e.Audio().PlayCue(clickBank, "missing"); err == nil {
		t.Fatal("expected an error for an unknown cue")
	}
	if err := e.RunOneFrame(); err != nil {
		t.Fatal(err)
	}
}
