package platform

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/metronome/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Window is the desktop platform backed by GLFW. The window is created
// without a client API so a Vulkan surface can be attached to it.
type Window struct {
	*dispatcher
	Window *glfw.Window
}

func NewWindow(events *core.EventSystem, input *core.InputState) *Window {
	return &Window{
		dispatcher: newDispatcher(events, input),
	}
}

func (p *Window) Startup(cfg Config) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return fmt.Errorf("%w: glfw: %v", core.ErrNativeInitialization, err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Name, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return fmt.Errorf("%w: window: %v", core.ErrNativeInitialization, err)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetFocusCallback(p.focusCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(cfg.X), int(cfg.Y))
	p.Window.Show()

	core.LogInfo("window `%s` created (%dx%d)", cfg.Name, cfg.Width, cfg.Height)
	return nil
}

func (p *Window) PumpMessages() bool {
	if p.Window == nil {
		return false
	}
	glfw.PollEvents()
	return p.dispatch()
}

func (p *Window) HasFocus() bool {
	return p.hasFocus()
}

func (p *Window) IsMinimized() bool {
	return p.isMinimized()
}

// GLFW lets the application own its loop on every desktop target.
func (p *Window) NeedsMainLoop() bool {
	return false
}

func (p *Window) RunMainLoop(frame func() bool) error {
	for frame() {
	}
	return nil
}

func (p *Window) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (p *Window) RequiredInstanceExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Window) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Window) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code := translateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	p.push(Event{Kind: EventKey, Key: code, Pressed: action == glfw.Press})
}

func (p *Window) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.push(Event{Kind: EventResize, Width: uint32(width), Height: uint32(height)})
}

func (p *Window) focusCallback(w *glfw.Window, focused bool) {
	p.push(Event{Kind: EventFocus, Focused: focused})
}

func (p *Window) iconifyCallback(w *glfw.Window, iconified bool) {
	p.push(Event{Kind: EventMinimize, Minimized: iconified})
}

func (p *Window) closeCallback(w *glfw.Window) {
	p.push(Event{Kind: EventClose})
}

var namedKeys = map[glfw.Key]core.KeyCode{
	glfw.KeyBackspace: core.KEY_BACKSPACE,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyPause:     core.KEY_PAUSE,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyF1:        core.KEY_F1,
	glfw.KeyF2:        core.KEY_F2,
	glfw.KeyF3:        core.KEY_F3,
	glfw.KeyF4:        core.KEY_F4,
}

func translateKey(key glfw.Key) core.KeyCode {
	// GLFW digits and letters share their ASCII values with our key codes.
	if (key >= glfw.Key0 && key <= glfw.Key9) || (key >= glfw.KeyA && key <= glfw.KeyZ) {
		return core.KeyCode(key)
	}
	if code, ok := namedKeys[key]; ok {
		return code
	}
	return core.KEY_UNKNOWN
}
