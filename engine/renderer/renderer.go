package renderer

import (
	"sync"

	"github.com/spaghettifunk/metronome/engine/core"
)

type RendererType uint8

const (
	Null RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Vulkan:
		return "vulkan"
	}
	return "null"
}

// Device is the graphics device the game loop draws with. BeginDraw returns
// false when the frame should be skipped, e.g. while the window is minimized;
// EndDraw and Present are only called after a successful BeginDraw.
type Device interface {
	BeginDraw() bool
	EndDraw() error
	Present() error
	Destroy() error
}

// NullDevice draws nothing. It counts frames and can be told to refuse
// BeginDraw, which makes it the device for headless runs and tests.
type NullDevice struct {
	mu          sync.Mutex
	refuse      bool
	destroyed   bool
	begun       uint64
	FrameNumber uint64
}

func NewNullDevice() *NullDevice {
	return &NullDevice{}
}

// Refuse makes BeginDraw report false until called again with false.
func (d *NullDevice) Refuse(refuse bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refuse = refuse
}

func (d *NullDevice) BeginDraw() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refuse || d.destroyed {
		return false
	}
	d.begun++
	return true
}

func (d *NullDevice) EndDraw() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return core.ErrObjectDisposed
	}
	return nil
}

func (d *NullDevice) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return core.ErrObjectDisposed
	}
	d.FrameNumber++
	return nil
}

func (d *NullDevice) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	return nil
}

// Frames returns how many frames were begun and presented.
func (d *NullDevice) Frames() (begun, presented uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begun, d.FrameNumber
}
