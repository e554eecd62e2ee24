package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestClockSampleIsMonotonic(t *testing.T) {
	c := NewClock()
	if got := c.Sample(); got != 0 {
		t.Fatalf("unstarted clock sampled %v", got)
	}
	c.Start()
	a := c.Sample()
	time.Sleep(time.Millisecond)
	b := c.Sample()
	if b < a {
		t.Fatalf("clock went backwards: %v then %v", a, b)
	}
	c.Stop()
	stopped := c.Elapsed()
	time.Sleep(time.Millisecond)
	if c.Sample() != stopped {
		t.Fatalf("stopped clock kept advancing")
	}
}

func TestSetLogLevel(t *testing.T) {
	SetLogOutput(io.Discard)
	for _, lvl := range []string{"debug", "INFO", " warn ", "error"} {
		if err := SetLogLevel(lvl); err != nil {
			t.Errorf("SetLogLevel(%q): %v", lvl, err)
		}
	}
	if err := SetLogLevel("loud"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetLogLevel(loud) = %v, want ErrInvalidArgument", err)
	}
	_ = SetLogLevel("debug")
}

func TestLogErrorKeepsPercentSigns(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(io.Discard)

	err := errors.New("bank `100%s` at 50%d")
	LogError("%s", err)
	if !strings.Contains(buf.String(), "bank `100%s` at 50%d") {
		t.Fatalf("log output = %q", buf.String())
	}
}

func TestEventSystemDispatch(t *testing.T) {
	es := NewEventSystem()
	var order []string

	first := func(ctx EventContext) bool { order = append(order, "first"); return false }
	second := func(ctx EventContext) bool { order = append(order, "second"); return true }
	third := func(ctx EventContext) bool { order = append(order, "third"); return false }

	if !es.Register(EVENT_CODE_APPLICATION_QUIT, "a", first) {
		t.Fatal("register a")
	}
	if es.Register(EVENT_CODE_APPLICATION_QUIT, "a", first) {
		t.Fatal("duplicate listener accepted")
	}
	es.Register(EVENT_CODE_APPLICATION_QUIT, "b", second)
	es.Register(EVENT_CODE_APPLICATION_QUIT, "c", third)

	if !es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}) {
		t.Fatal("event should be handled")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("dispatch order = %v", order)
	}

	if !es.Unregister(EVENT_CODE_APPLICATION_QUIT, "b") {
		t.Fatal("unregister b")
	}
	order = nil
	es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	if len(order) != 2 || order[1] != "third" {
		t.Fatalf("after unregister order = %v", order)
	}
	if es.Fire(EventContext{Type: EVENT_CODE_RESIZED}) {
		t.Fatal("no listener should mean unhandled")
	}
}

func TestInputStateFiresOnChangeOnly(t *testing.T) {
	es := NewEventSystem()
	is := NewInputState(es)
	pressed := 0
	es.Register(EVENT_CODE_KEY_PRESSED, t, func(ctx EventContext) bool {
		ke := ctx.Data.(*KeyEvent)
		if ke.KeyCode != KEY_SPACE {
			t.Errorf("key = %v", ke.KeyCode)
		}
		pressed++
		return true
	})

	is.ProcessKey(KEY_SPACE, true)
	is.ProcessKey(KEY_SPACE, true)
	if pressed != 1 {
		t.Fatalf("pressed fired %d times", pressed)
	}
	if !is.KeyPressed(KEY_SPACE) {
		t.Fatal("KeyPressed should be true before Update")
	}
	is.Update()
	if is.KeyPressed(KEY_SPACE) || !is.WasKeyDown(KEY_SPACE) || !is.IsKeyDown(KEY_SPACE) {
		t.Fatal("state after Update is wrong")
	}
}

func TestFrameMetricsFPS(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < 61; i++ {
		m.Update(20 * time.Millisecond)
	}
	fps, avg := m.Frame()
	if fps != 50 {
		t.Errorf("fps = %v, want 50", fps)
	}
	if avg < 19.9 || avg > 20.1 {
		t.Errorf("avg = %v, want ~20", avg)
	}
}
