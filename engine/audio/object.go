package audio

import "sync/atomic"

// object is the part of a wave bank, sound bank or cue that the registry
// points at. The wrapper holds it strongly and the registry holds it weakly,
// so a wrapper resurrected by its finalizer still receives notifications.
type object struct {
	kind      ObjectKind
	handle    atomic.Uintptr
	destroyed atomic.Bool

	// guarded by the engine gcSync
	disposeStarted bool
}

func newObject(kind ObjectKind, h NativeHandle) *object {
	o := &object{kind: kind}
	o.handle.Store(uintptr(h))
	return o
}

func (o *object) Handle() NativeHandle {
	return NativeHandle(o.handle.Load())
}

// onDestroyed moves the object to its terminal state. It runs on the native
// callback path and must stay a pair of stores.
func (o *object) onDestroyed() {
	o.handle.Store(0)
	o.destroyed.Store(true)
}

func (o *object) IsDestroyed() bool {
	return o.destroyed.Load()
}

// FinalizeAction is what a finalizer decided to do with its object.
type FinalizeAction int

const (
	// FinalizeSkipped means the process is exiting and native state was left alone.
	FinalizeSkipped FinalizeAction = iota
	// FinalizeDeferred means the object is still in use and the finalizer was re-armed.
	FinalizeDeferred
	// FinalizeReleased means the object was disposed.
	FinalizeReleased
)

func (a FinalizeAction) String() string {
	switch a {
	case FinalizeSkipped:
		return "skipped"
	case FinalizeDeferred:
		return "deferred"
	case FinalizeReleased:
		return "released"
	}
	return "unknown"
}

func decideFinalize(exiting, destroyed bool, inUse func() bool) FinalizeAction {
	if exiting {
		return FinalizeSkipped
	}
	if !destroyed && inUse() {
		return FinalizeDeferred
	}
	return FinalizeReleased
}
