package audio

import "fmt"

// NativeHandle identifies an object owned by the native audio engine. Zero is
// never a valid handle.
type NativeHandle uintptr

const NullHandle NativeHandle = 0

type ObjectKind uint8

const (
	KindWaveBank ObjectKind = iota + 1
	KindSoundBank
	KindCue
)

func (k ObjectKind) String() string {
	switch k {
	case KindWaveBank:
		return "wave bank"
	case KindSoundBank:
		return "sound bank"
	case KindCue:
		return "cue"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Notification is sent by the native engine after it destroyed an object.
type Notification struct {
	Kind   ObjectKind
	Handle NativeHandle
}

// NotificationCallback receives destroy notifications. It may run on any
// goroutine, including the one that requested the destruction.
type NotificationCallback func(Notification)

// State is a bit set describing a native object.
type State uint32

const (
	StateCreated State = 1 << iota
	StatePreparing
	StatePrepared
	StatePlaying
	StateStopping
	StateStopped
	StatePaused
	StateInUse
)

func (s State) Has(flag State) bool {
	return s&flag != 0
}

// NativeEngine is the service that owns wave banks, sound banks and cues.
// Destroying an object, either on request or on its own, must end with a
// Notification for every object that went away.
type NativeEngine interface {
	RegisterNotificationCallback(cb NotificationCallback) error
	DoWork() error
	ShutDown() error

	GetGlobalVariable(name string) (float32, error)
	SetGlobalVariable(name string, value float32) error

	CreateWaveBank(manifest []byte) (NativeHandle, error)
	DestroyWaveBank(h NativeHandle) error
	WaveBankState(h NativeHandle) (State, error)

	CreateSoundBank(manifest []byte) (NativeHandle, error)
	DestroySoundBank(h NativeHandle) error
	SoundBankState(h NativeHandle) (State, error)
	// PrepareCue creates a cue instance owned by the caller.
	PrepareCue(soundBank NativeHandle, name string) (NativeHandle, error)
	// PlayCue starts a fire-and-forget instance the engine destroys itself
	// once it finished.
	PlayCue(soundBank NativeHandle, name string) error

	PlayPreparedCue(h NativeHandle) error
	StopCue(h NativeHandle, immediate bool) error
	PauseCue(h NativeHandle, paused bool) error
	DestroyCue(h NativeHandle) error
	CueState(h NativeHandle) (State, error)
	GetCueVariable(h NativeHandle, name string) (float32, error)
	SetCueVariable(h NativeHandle, name string, value float32) error
}
