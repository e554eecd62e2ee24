package audio

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spaghettifunk/metronome/engine/core"
)

// SoundBank is a collection of cues. Destroying it destroys every cue
// prepared from it.
type SoundBank struct {
	engine    *AudioEngine
	obj       *object
	name      string
	disposing []func()
}

func NewSoundBank(engine *AudioEngine, name string, manifest []byte) (*SoundBank, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: audio engine is nil", core.ErrInvalidArgument)
	}

	engine.gcSync.Lock()
	defer engine.gcSync.Unlock()

	if engine.disposed.Load() {
		return nil, core.ErrObjectDisposed
	}
	h, err := engine.native.CreateSoundBank(manifest)
	if err != nil {
		err = fmt.Errorf("could not create sound bank `%s`: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}

	sb := &SoundBank{
		engine: engine,
		obj:    newObject(KindSoundBank, h),
		name:   name,
	}
	if err := engine.track(sb.obj, engine.native.SoundBankState); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(sb, finalizeSoundBank)
	return sb, nil
}

func NewSoundBankFromFile(engine *AudioEngine, path string) (*SoundBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("could not read sound bank `%s`: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	return NewSoundBank(engine, path, data)
}

func (sb *SoundBank) Name() string {
	return sb.name
}

func (sb *SoundBank) Handle() NativeHandle {
	return sb.obj.Handle()
}

func (sb *SoundBank) IsDisposed() bool {
	return sb.obj.IsDestroyed()
}

// IsInUse reports whether any cue of this bank is still active.
func (sb *SoundBank) IsInUse() bool {
	h := sb.obj.Handle()
	if h == NullHandle {
		return false
	}
	s, err := sb.engine.native.SoundBankState(h)
	if err != nil {
		return false
	}
	return s.Has(StateInUse)
}

// GetCue prepares a new cue instance. The caller owns it and should Dispose
// it once done.
func (sb *SoundBank) GetCue(name string) (*Cue, error) {
	sb.engine.gcSync.Lock()
	defer sb.engine.gcSync.Unlock()

	if sb.IsDisposed() || sb.engine.disposed.Load() {
		return nil, fmt.Errorf("get cue `%s` from `%s`: %w", name, sb.name, core.ErrObjectDisposed)
	}
	h, err := sb.engine.native.PrepareCue(sb.obj.Handle(), name)
	if err != nil {
		return nil, fmt.Errorf("get cue `%s` from `%s`: %w", name, sb.name, err)
	}

	c := &Cue{
		engine: sb.engine,
		bank:   sb,
		obj:    newObject(KindCue, h),
		name:   name,
	}
	if err := sb.engine.track(c.obj, sb.engine.native.CueState); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(c, finalizeCue)
	return c, nil
}

// PlayCue starts a fire-and-forget instance of the named cue.
func (sb *SoundBank) PlayCue(name string) error {
	sb.engine.gcSync.Lock()
	defer sb.engine.gcSync.Unlock()

	if sb.IsDisposed() || sb.engine.disposed.Load() {
		return fmt.Errorf("play cue `%s` from `%s`: %w", name, sb.name, core.ErrObjectDisposed)
	}
	if err := sb.engine.native.PlayCue(sb.obj.Handle(), name); err != nil {
		return fmt.Errorf("play cue `%s` from `%s`: %w", name, sb.name, err)
	}
	return nil
}

func (sb *SoundBank) OnDisposing(fn func()) {
	sb.engine.addDisposing(&sb.disposing, fn)
}

func (sb *SoundBank) Dispose() {
	sb.engine.disposeObject(sb.obj, &sb.disposing, sb.engine.native.DestroySoundBank)
	runtime.SetFinalizer(sb, nil)
}

func (sb *SoundBank) finalize() FinalizeAction {
	action := decideFinalize(sb.engine.lifetime.IsExiting(), sb.IsDisposed(), sb.IsInUse)
	if action == FinalizeReleased {
		sb.engine.disposeObject(sb.obj, &sb.disposing, sb.engine.native.DestroySoundBank)
	}
	return action
}

func finalizeSoundBank(sb *SoundBank) {
	if sb.finalize() == FinalizeDeferred {
		runtime.SetFinalizer(sb, finalizeSoundBank)
	}
}
