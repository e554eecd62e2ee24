package audio

import (
	"fmt"
	"runtime"

	"github.com/spaghettifunk/metronome/engine/core"
)

const VolumeVariable = "Volume"

// Cue is a playable instance prepared from a sound bank.
type Cue struct {
	engine    *AudioEngine
	bank      *SoundBank
	obj       *object
	name      string
	disposing []func()
}

func (c *Cue) Name() string {
	return c.name
}

func (c *Cue) Handle() NativeHandle {
	return c.obj.Handle()
}

func (c *Cue) SoundBank() *SoundBank {
	return c.bank
}

func (c *Cue) IsDisposed() bool {
	return c.obj.IsDestroyed()
}

func (c *Cue) state() State {
	h := c.obj.Handle()
	if h == NullHandle {
		return 0
	}
	s, err := c.engine.native.CueState(h)
	if err != nil {
		return 0
	}
	return s
}

func (c *Cue) IsCreated() bool   { return c.state().Has(StateCreated) }
func (c *Cue) IsPreparing() bool { return c.state().Has(StatePreparing) }
func (c *Cue) IsPrepared() bool  { return c.state().Has(StatePrepared) }
func (c *Cue) IsPlaying() bool   { return c.state().Has(StatePlaying) }
func (c *Cue) IsPaused() bool    { return c.state().Has(StatePaused) }
func (c *Cue) IsStopping() bool  { return c.state().Has(StateStopping) }

// IsStopped is true for destroyed cues as well.
func (c *Cue) IsStopped() bool {
	if c.IsDisposed() {
		return true
	}
	return c.state().Has(StateStopped)
}

// Play starts a prepared cue.
func (c *Cue) Play() error {
	c.engine.gcSync.Lock()
	defer c.engine.gcSync.Unlock()

	if c.IsDisposed() || c.engine.disposed.Load() {
		return fmt.Errorf("play cue `%s`: %w", c.name, core.ErrObjectDisposed)
	}
	if err := c.engine.native.PlayPreparedCue(c.obj.Handle()); err != nil {
		return fmt.Errorf("play cue `%s`: %w", c.name, err)
	}
	return nil
}

func (c *Cue) Stop(immediate bool) {
	if h := c.obj.Handle(); h != NullHandle {
		if err := c.engine.native.StopCue(h, immediate); err != nil {
			core.LogDebug("stop cue `%s`: %s", c.name, err)
		}
	}
}

func (c *Cue) Pause() {
	if h := c.obj.Handle(); h != NullHandle {
		if err := c.engine.native.PauseCue(h, true); err != nil {
			core.LogDebug("pause cue `%s`: %s", c.name, err)
		}
	}
}

func (c *Cue) Resume() {
	if h := c.obj.Handle(); h != NullHandle {
		if err := c.engine.native.PauseCue(h, false); err != nil {
			core.LogDebug("resume cue `%s`: %s", c.name, err)
		}
	}
}

func (c *Cue) GetVariable(name string) float32 {
	h := c.obj.Handle()
	if h == NullHandle {
		return 0
	}
	v, err := c.engine.native.GetCueVariable(h, name)
	if err != nil {
		return 0
	}
	return v
}

func (c *Cue) SetVariable(name string, value float32) {
	if h := c.obj.Handle(); h != NullHandle {
		if err := c.engine.native.SetCueVariable(h, name, value); err != nil {
			core.LogDebug("cue `%s` variable `%s`: %s", c.name, name, err)
		}
	}
}

func (c *Cue) Volume() float32 {
	return c.GetVariable(VolumeVariable)
}

func (c *Cue) SetVolume(v float32) {
	c.SetVariable(VolumeVariable, v)
}

func (c *Cue) OnDisposing(fn func()) {
	c.engine.addDisposing(&c.disposing, fn)
}

func (c *Cue) Dispose() {
	c.engine.disposeObject(c.obj, &c.disposing, c.engine.native.DestroyCue)
	runtime.SetFinalizer(c, nil)
}

func (c *Cue) finalize() FinalizeAction {
	action := decideFinalize(c.engine.lifetime.IsExiting(), c.IsDisposed(), c.IsPlaying)
	if action == FinalizeReleased {
		c.engine.disposeObject(c.obj, &c.disposing, c.engine.native.DestroyCue)
	}
	return action
}

func finalizeCue(c *Cue) {
	if c.finalize() == FinalizeDeferred {
		runtime.SetFinalizer(c, finalizeCue)
	}
}
