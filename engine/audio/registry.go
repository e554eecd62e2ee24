package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/spaghettifunk/metronome/engine/core"
)

var ErrHandleRegistered = errors.New("handle already registered")

const destroyedBacklog = 256

type registryEntry struct {
	kind ObjectKind
	ref  weak.Pointer[object]
}

// HandleRegistry maps native handles to the objects wrapping them. Its lock
// is independent from the engine lock so that notifications never wait on a
// disposal in progress.
type HandleRegistry struct {
	mu      sync.Mutex
	entries map[NativeHandle]registryEntry

	// destroyed buffers notifications for the game goroutine; full means drop
	destroyed chan Notification
	dropped   atomic.Uint64
}

func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		entries:   make(map[NativeHandle]registryEntry),
		destroyed: make(chan Notification, destroyedBacklog),
	}
}

func (r *HandleRegistry) register(h NativeHandle, o *object) error {
	if h == NullHandle {
		return fmt.Errorf("%w: cannot register the null handle", core.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[h]; ok {
		err := fmt.Errorf("%w: %s %#x", ErrHandleRegistered, o.kind, uintptr(h))
		core.LogError("%s", err)
		return err
	}
	r.entries[h] = registryEntry{kind: o.kind, ref: weak.Make(o)}
	return nil
}

func (r *HandleRegistry) Unregister(h NativeHandle) {
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
}

// OnNativeDestroyNotification is the callback handed to the native engine.
// A live object moves to Destroyed, and the entry is removed whether or not
// the object was still around. Unknown handles are ignored.
func (r *HandleRegistry) OnNativeDestroyNotification(n Notification) {
	r.mu.Lock()
	entry, ok := r.entries[n.Handle]
	if ok {
		if o := entry.ref.Value(); o != nil && entry.kind == n.Kind {
			o.onDestroyed()
		}
		delete(r.entries, n.Handle)
	}
	r.mu.Unlock()

	if ok {
		select {
		case r.destroyed <- n:
		default:
			r.dropped.Add(1)
		}
	}
}

// Dropped counts the notifications that found the backlog full. The registry
// entry is gone but nobody was told during Update.
func (r *HandleRegistry) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *HandleRegistry) Contains(h NativeHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[h]
	return ok
}

func (r *HandleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// live returns the registered objects whose wrappers are still reachable.
func (r *HandleRegistry) live() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Notification
	for h, e := range r.entries {
		if o := e.ref.Value(); o != nil && !o.IsDestroyed() {
			out = append(out, Notification{Kind: e.kind, Handle: h})
		}
	}
	return out
}

// drain hands every buffered notification to fn.
func (r *HandleRegistry) drain(fn func(Notification)) {
	for {
		select {
		case n := <-r.destroyed:
			if fn != nil {
				fn(n)
			}
		default:
			return
		}
	}
}
