package core

import "sync"

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_PAUSE     KeyCode = 0x13
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_1         KeyCode = 0x31
	KEY_2         KeyCode = 0x32
	KEY_3         KeyCode = 0x33
	KEY_4         KeyCode = 0x34
	KEY_5         KeyCode = 0x35
	KEY_6         KeyCode = 0x36
	KEY_7         KeyCode = 0x37
	KEY_8         KeyCode = 0x38
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_B         KeyCode = 0x42
	KEY_C         KeyCode = 0x43
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_F         KeyCode = 0x46
	KEY_G         KeyCode = 0x47
	KEY_H         KeyCode = 0x48
	KEY_I         KeyCode = 0x49
	KEY_J         KeyCode = 0x4A
	KEY_K         KeyCode = 0x4B
	KEY_L         KeyCode = 0x4C
	KEY_M         KeyCode = 0x4D
	KEY_N         KeyCode = 0x4E
	KEY_O         KeyCode = 0x4F
	KEY_P         KeyCode = 0x50
	KEY_Q         KeyCode = 0x51
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_T         KeyCode = 0x54
	KEY_U         KeyCode = 0x55
	KEY_V         KeyCode = 0x56
	KEY_W         KeyCode = 0x57
	KEY_X         KeyCode = 0x58
	KEY_Y         KeyCode = 0x59
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F2        KeyCode = 0x71
	KEY_F3        KeyCode = 0x72
	KEY_F4        KeyCode = 0x73

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// InputState holds the current and previous keyboard state. The platform
// writes into it while pumping messages; the game reads it during Update.
type InputState struct {
	mu               sync.RWMutex
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	events           *EventSystem
}

func NewInputState(events *EventSystem) *InputState {
	return &InputState{events: events}
}

// Update copies current states to previous states. Called once per frame
// after the game has seen the input.
func (is *InputState) Update() {
	is.mu.Lock()
	defer is.mu.Unlock()
	is.keyboardPrevious = is.keyboardCurrent
}

func (is *InputState) IsKeyDown(key KeyCode) bool {
	is.mu.RLock()
	defer is.mu.RUnlock()
	return is.keyboardCurrent.Keys[key]
}

func (is *InputState) IsKeyUp(key KeyCode) bool {
	return !is.IsKeyDown(key)
}

func (is *InputState) WasKeyDown(key KeyCode) bool {
	is.mu.RLock()
	defer is.mu.RUnlock()
	return is.keyboardPrevious.Keys[key]
}

// KeyPressed reports a key that went down since the last Update.
func (is *InputState) KeyPressed(key KeyCode) bool {
	is.mu.RLock()
	defer is.mu.RUnlock()
	return is.keyboardCurrent.Keys[key] && !is.keyboardPrevious.Keys[key]
}

func (is *InputState) ProcessKey(key KeyCode, pressed bool) {
	is.mu.Lock()
	// Only handle this if the state actually changed.
	if is.keyboardCurrent.Keys[key] == pressed {
		is.mu.Unlock()
		return
	}
	is.keyboardCurrent.Keys[key] = pressed
	is.mu.Unlock()

	if is.events == nil {
		return
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	// Fire off an event for immediate processing.
	is.events.Fire(EventContext{
		Type:   code,
		Sender: is,
		Data:   &KeyEvent{KeyCode: key, Pressed: pressed},
	})
}
