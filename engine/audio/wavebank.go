package audio

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spaghettifunk/metronome/engine/core"
)

// WaveBank is a collection of waves that cues play from.
type WaveBank struct {
	engine    *AudioEngine
	obj       *object
	name      string
	disposing []func()
}

// NewWaveBank creates a wave bank from its manifest.
func NewWaveBank(engine *AudioEngine, name string, manifest []byte) (*WaveBank, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: audio engine is nil", core.ErrInvalidArgument)
	}

	engine.gcSync.Lock()
	defer engine.gcSync.Unlock()

	if engine.disposed.Load() {
		return nil, core.ErrObjectDisposed
	}
	h, err := engine.native.CreateWaveBank(manifest)
	if err != nil {
		err = fmt.Errorf("could not create wave bank `%s`: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}

	wb := &WaveBank{
		engine: engine,
		obj:    newObject(KindWaveBank, h),
		name:   name,
	}
	if err := engine.track(wb.obj, engine.native.WaveBankState); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(wb, finalizeWaveBank)
	return wb, nil
}

// NewWaveBankFromFile reads a wave bank manifest from disk.
func NewWaveBankFromFile(engine *AudioEngine, path string) (*WaveBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("could not read wave bank `%s`: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	return NewWaveBank(engine, path, data)
}

func (wb *WaveBank) Name() string {
	return wb.name
}

func (wb *WaveBank) Handle() NativeHandle {
	return wb.obj.Handle()
}

func (wb *WaveBank) IsDisposed() bool {
	return wb.obj.IsDestroyed()
}

func (wb *WaveBank) state() State {
	h := wb.obj.Handle()
	if h == NullHandle {
		return 0
	}
	s, err := wb.engine.native.WaveBankState(h)
	if err != nil {
		return 0
	}
	return s
}

func (wb *WaveBank) IsPrepared() bool {
	return wb.state().Has(StatePrepared)
}

// IsInUse reports whether a cue is currently playing waves from this bank.
func (wb *WaveBank) IsInUse() bool {
	return wb.state().Has(StateInUse)
}

func (wb *WaveBank) OnDisposing(fn func()) {
	wb.engine.addDisposing(&wb.disposing, fn)
}

func (wb *WaveBank) Dispose() {
	wb.engine.disposeObject(wb.obj, &wb.disposing, wb.engine.native.DestroyWaveBank)
	runtime.SetFinalizer(wb, nil)
}

func (wb *WaveBank) finalize() FinalizeAction {
	action := decideFinalize(wb.engine.lifetime.IsExiting(), wb.IsDisposed(), wb.IsInUse)
	if action == FinalizeReleased {
		wb.engine.disposeObject(wb.obj, &wb.disposing, wb.engine.native.DestroyWaveBank)
	}
	return action
}

func finalizeWaveBank(wb *WaveBank) {
	if wb.finalize() == FinalizeDeferred {
		runtime.SetFinalizer(wb, finalizeWaveBank)
	}
}
