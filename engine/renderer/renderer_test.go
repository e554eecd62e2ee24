package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/metronome/engine/core"
)

func TestNullDeviceCountsFrames(t *testing.T) {
	d := NewNullDevice()
	for i := 0; i < 3; i++ {
		if !d.BeginDraw() {
			t.Fatal("BeginDraw refused")
		}
		if err := d.EndDraw(); err != nil {
			t.Fatal(err)
		}
		if err := d.Present(); err != nil {
			t.Fatal(err)
		}
	}
	begun, presented := d.Frames()
	if begun != 3 || presented != 3 {
		t.Fatalf("begun=%d presented=%d", begun, presented)
	}
}

func TestNullDeviceRefuse(t *testing.T) {
	d := NewNullDevice()
	d.Refuse(true)
	if d.BeginDraw() {
		t.Fatal("BeginDraw should be refused")
	}
	d.Refuse(false)
	if !d.BeginDraw() {
		t.Fatal("BeginDraw should succeed again")
	}
}

func TestNullDeviceDestroyed(t *testing.T) {
	d := NewNullDevice()
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
	if d.BeginDraw() {
		t.Fatal("destroyed device began a frame")
	}
	if err := d.Present(); !errors.Is(err, core.ErrObjectDisposed) {
		t.Fatalf("Present = %v", err)
	}
	if err := d.Destroy(); err != nil {
		t.Fatal("Destroy should be idempotent")
	}
}
