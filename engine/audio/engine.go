package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spaghettifunk/metronome/engine/core"
)

// AudioEngine owns a native engine and the handle table of every object
// created through it.
type AudioEngine struct {
	ID uuid.UUID

	native   NativeEngine
	lifetime *Lifetime
	registry *HandleRegistry

	// gcSync serialises disposal and the native calls made on that path, for
	// the engine and every object created from it.
	gcSync         sync.Mutex
	disposed       atomic.Bool
	disposeStarted bool
	disposing      []func()
	reportedDrops  uint64

	// OnObjectDestroyed receives, during Update, the destroy notifications
	// that arrived since the previous Update.
	OnObjectDestroyed func(Notification)
}

func NewAudioEngine(native NativeEngine, lifetime *Lifetime) (*AudioEngine, error) {
	if native == nil {
		err := fmt.Errorf("%w: native audio engine is nil", core.ErrInvalidArgument)
		core.LogError("%s", err)
		return nil, err
	}
	if lifetime == nil {
		lifetime = NewLifetime()
	}

	ae := &AudioEngine{
		ID:       uuid.New(),
		native:   native,
		lifetime: lifetime,
		registry: NewHandleRegistry(),
	}
	if err := native.RegisterNotificationCallback(ae.registry.OnNativeDestroyNotification); err != nil {
		err = fmt.Errorf("%w: could not register the destroy notification: %v", core.ErrNativeInitialization, err)
		core.LogError("%s", err)
		return nil, err
	}

	core.LogDebug("audio engine %s created", ae.ID)
	return ae, nil
}

func (ae *AudioEngine) Registry() *HandleRegistry {
	return ae.registry
}

func (ae *AudioEngine) Lifetime() *Lifetime {
	return ae.lifetime
}

func (ae *AudioEngine) IsDisposed() bool {
	return ae.disposed.Load()
}

// Update lets the native engine do its periodic work and forwards the destroy
// notifications that arrived in the meantime.
func (ae *AudioEngine) Update() error {
	if ae.disposed.Load() {
		return core.ErrObjectDisposed
	}
	if err := ae.native.DoWork(); err != nil {
		return fmt.Errorf("audio engine update: %w", err)
	}
	ae.registry.drain(ae.OnObjectDestroyed)
	if dropped := ae.registry.Dropped(); dropped != ae.reportedDrops {
		core.LogWarn("audio engine %s: %d destroy notifications dropped, backlog of %d was full",
			ae.ID, dropped-ae.reportedDrops, destroyedBacklog)
		ae.reportedDrops = dropped
	}
	return nil
}

// DroppedNotifications counts destroy notifications that never reached
// OnObjectDestroyed because the backlog was full.
func (ae *AudioEngine) DroppedNotifications() uint64 {
	return ae.registry.Dropped()
}

func (ae *AudioEngine) GetGlobalVariable(name string) float32 {
	if ae.disposed.Load() {
		return 0
	}
	v, err := ae.native.GetGlobalVariable(name)
	if err != nil {
		core.LogDebug("global variable `%s`: %s", name, err)
		return 0
	}
	return v
}

func (ae *AudioEngine) SetGlobalVariable(name string, value float32) {
	if ae.disposed.Load() {
		return
	}
	if err := ae.native.SetGlobalVariable(name, value); err != nil {
		core.LogDebug("global variable `%s`: %s", name, err)
	}
}

// OnDisposing registers fn to run right before the engine shuts down.
func (ae *AudioEngine) OnDisposing(fn func()) {
	ae.addDisposing(&ae.disposing, fn)
}

func (ae *AudioEngine) addDisposing(handlers *[]func(), fn func()) {
	ae.gcSync.Lock()
	defer ae.gcSync.Unlock()
	*handlers = append(*handlers, fn)
}

// Leaks lists the objects that are still live and reachable. Anything here at
// Dispose time was never disposed by its owner.
func (ae *AudioEngine) Leaks() []Notification {
	return ae.registry.live()
}

// Dispose shuts the native engine down, which destroys every object it still
// owns. Calling it again does nothing. Disposing handlers run before the lock
// is taken, so they may dispose objects of this engine.
func (ae *AudioEngine) Dispose() {
	ae.gcSync.Lock()
	if ae.disposed.Load() || ae.disposeStarted {
		ae.gcSync.Unlock()
		return
	}
	ae.disposeStarted = true
	handlers := append([]func(){}, ae.disposing...)
	ae.gcSync.Unlock()

	for _, fn := range handlers {
		fn()
	}

	ae.gcSync.Lock()
	defer ae.gcSync.Unlock()

	for _, leak := range ae.registry.live() {
		core.LogWarn("audio engine %s: %s %#x was never disposed", ae.ID, leak.Kind, uintptr(leak.Handle))
	}
	if err := ae.native.ShutDown(); err != nil {
		core.LogError("audio engine %s shutdown: %s", ae.ID, err)
	}
	ae.disposed.Store(true)
	core.LogDebug("audio engine %s disposed", ae.ID)
}

// track registers a freshly created native object. If the native side already
// destroyed it before registration, the object starts out destroyed.
func (ae *AudioEngine) track(o *object, state func(NativeHandle) (State, error)) error {
	h := o.Handle()
	if err := ae.registry.register(h, o); err != nil {
		return err
	}
	if _, err := state(h); err != nil {
		ae.registry.Unregister(h)
		o.onDestroyed()
	}
	return nil
}

// disposeObject is the shared Dispose path of wave banks, sound banks and cues.
func (ae *AudioEngine) disposeObject(o *object, disposing *[]func(), destroy func(NativeHandle) error) {
	ae.gcSync.Lock()
	if o.IsDestroyed() || o.disposeStarted {
		ae.gcSync.Unlock()
		return
	}
	o.disposeStarted = true
	handlers := append([]func(){}, (*disposing)...)
	ae.gcSync.Unlock()

	for _, fn := range handlers {
		fn()
	}

	ae.gcSync.Lock()
	defer ae.gcSync.Unlock()

	h := o.Handle()
	switch {
	case o.IsDestroyed():
		// the native side got there first while the handlers ran
	case ae.disposed.Load():
		// a disposed engine sends no more notifications
		ae.registry.Unregister(h)
	default:
		if err := destroy(h); err != nil {
			// no notification follows a failed destroy
			core.LogWarn("destroy %s %#x: %s", o.kind, uintptr(h), err)
			ae.registry.Unregister(h)
		}
	}
	o.onDestroyed()
}
