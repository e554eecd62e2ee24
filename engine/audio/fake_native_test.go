package audio

import (
	"errors"
	"sync"
)

var errUnknownHandle = errors.New("unknown handle")

type fakeObject struct {
	kind   ObjectKind
	state  State
	parent NativeHandle
	vars   map[string]float32
}

// fakeNative is an in-memory NativeEngine. In async mode notifications are
// held until deliver is called, like a native worker thread that lags behind.
type fakeNative struct {
	mu       sync.Mutex
	next     NativeHandle
	objects  map[NativeHandle]*fakeObject
	globals  map[string]float32
	callback NotificationCallback
	async    bool
	pending  []Notification
	destroys int
	doWork   int
	shutdown bool

	// failDestroy makes destroys fail without touching the object
	failDestroy bool
}

func newFakeNative(async bool) *fakeNative {
	return &fakeNative{
		objects: make(map[NativeHandle]*fakeObject),
		globals: make(map[string]float32),
		async:   async,
	}
}

func (f *fakeNative) RegisterNotificationCallback(cb NotificationCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = cb
	return nil
}

func (f *fakeNative) DoWork() error {
	f.mu.Lock()
	f.doWork++
	f.mu.Unlock()
	return nil
}

func (f *fakeNative) ShutDown() error {
	f.mu.Lock()
	var notes []Notification
	for h, o := range f.objects {
		notes = append(notes, Notification{Kind: o.kind, Handle: h})
	}
	f.objects = make(map[NativeHandle]*fakeObject)
	f.shutdown = true
	f.mu.Unlock()
	f.notify(notes...)
	return nil
}

func (f *fakeNative) GetGlobalVariable(name string) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.globals[name], nil
}

func (f *fakeNative) SetGlobalVariable(name string, value float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.globals[name] = value
	return nil
}

func (f *fakeNative) create(kind ObjectKind, parent NativeHandle, state State) NativeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.objects[f.next] = &fakeObject{kind: kind, state: state, parent: parent, vars: map[string]float32{VolumeVariable: 1}}
	return f.next
}

func (f *fakeNative) CreateWaveBank([]byte) (NativeHandle, error) {
	return f.create(KindWaveBank, NullHandle, StatePrepared), nil
}

func (f *fakeNative) CreateSoundBank([]byte) (NativeHandle, error) {
	return f.create(KindSoundBank, NullHandle, StatePrepared), nil
}

func (f *fakeNative) PrepareCue(sb NativeHandle, name string) (NativeHandle, error) {
	if _, err := f.state(sb); err != nil {
		return NullHandle, err
	}
	return f.create(KindCue, sb, StatePrepared), nil
}

func (f *fakeNative) PlayCue(sb NativeHandle, name string) error {
	h, err := f.PrepareCue(sb, name)
	if err != nil {
		return err
	}
	return f.PlayPreparedCue(h)
}

func (f *fakeNative) state(h NativeHandle) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[h]
	if !ok {
		return 0, errUnknownHandle
	}
	return o.state, nil
}

func (f *fakeNative) WaveBankState(h NativeHandle) (State, error)  { return f.state(h) }
func (f *fakeNative) SoundBankState(h NativeHandle) (State, error) { return f.state(h) }
func (f *fakeNative) CueState(h NativeHandle) (State, error)       { return f.state(h) }

func (f *fakeNative) setState(h NativeHandle, s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[h]
	if !ok {
		return errUnknownHandle
	}
	o.state = s
	return nil
}

func (f *fakeNative) PlayPreparedCue(h NativeHandle) error {
	return f.setState(h, StatePlaying)
}

func (f *fakeNative) StopCue(h NativeHandle, immediate bool) error {
	return f.setState(h, StateStopped)
}

func (f *fakeNative) PauseCue(h NativeHandle, paused bool) error {
	if paused {
		return f.setState(h, StatePaused)
	}
	return f.setState(h, StatePlaying)
}

func (f *fakeNative) GetCueVariable(h NativeHandle, name string) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[h]
	if !ok {
		return 0, errUnknownHandle
	}
	return o.vars[name], nil
}

func (f *fakeNative) SetCueVariable(h NativeHandle, name string, value float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[h]
	if !ok {
		return errUnknownHandle
	}
	o.vars[name] = value
	return nil
}

var errDestroyFailed = errors.New("destroy failed")

func (f *fakeNative) destroy(h NativeHandle) error {
	f.mu.Lock()
	if f.failDestroy {
		f.mu.Unlock()
		return errDestroyFailed
	}
	o, ok := f.objects[h]
	if !ok {
		f.mu.Unlock()
		return errUnknownHandle
	}
	f.destroys++
	notes := []Notification{{Kind: o.kind, Handle: h}}
	delete(f.objects, h)
	for ch, child := range f.objects {
		if child.parent == h {
			notes = append(notes, Notification{Kind: child.kind, Handle: ch})
			delete(f.objects, ch)
		}
	}
	f.mu.Unlock()
	f.notify(notes...)
	return nil
}

func (f *fakeNative) DestroyWaveBank(h NativeHandle) error  { return f.destroy(h) }
func (f *fakeNative) DestroySoundBank(h NativeHandle) error { return f.destroy(h) }
func (f *fakeNative) DestroyCue(h NativeHandle) error       { return f.destroy(h) }

func (f *fakeNative) notify(notes ...Notification) {
	f.mu.Lock()
	if f.async {
		f.pending = append(f.pending, notes...)
		f.mu.Unlock()
		return
	}
	cb := f.callback
	f.mu.Unlock()
	for _, n := range notes {
		cb(n)
	}
}

// deliver flushes notifications held in async mode.
func (f *fakeNative) deliver() {
	f.mu.Lock()
	notes := f.pending
	f.pending = nil
	cb := f.callback
	f.mu.Unlock()
	for _, n := range notes {
		cb(n)
	}
}

func (f *fakeNative) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroys
}

// forget drops h on the native side without notifying, like an object the
// native engine lost track of.
func (f *fakeNative) forget(h NativeHandle) {
	f.mu.Lock()
	delete(f.objects, h)
	f.mu.Unlock()
}
