package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/metronome/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[application]
name = "demo"
headless = true

[timing]
target_elapsed_time = "8ms"
fixed_time_step = false
sleep_precision_floor = "500us"

[audio]
content_dir = "content"
wave_banks = ["music"]
sound_banks = ["sfx", "ui"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Application.Name != "demo" || !cfg.Application.Headless {
		t.Fatalf("application = %+v", cfg.Application)
	}
	if cfg.Application.Width != 1280 {
		t.Fatalf("width default lost: %d", cfg.Application.Width)
	}
	if cfg.Timing.TargetElapsedTime.Std() != 8*time.Millisecond || cfg.Timing.FixedTimeStep {
		t.Fatalf("timing = %+v", cfg.Timing)
	}
	if cfg.Timing.SleepPrecisionFloor.Std() != 500*time.Microsecond {
		t.Fatalf("floor = %v", cfg.Timing.SleepPrecisionFloor.Std())
	}
	if cfg.Timing.MaxElapsedTime.Std() != 500*time.Millisecond {
		t.Fatalf("max elapsed default lost: %v", cfg.Timing.MaxElapsedTime.Std())
	}
	if len(cfg.Audio.SoundBanks) != 2 || cfg.Audio.WaveBanks[0] != "music" {
		t.Fatalf("audio = %+v", cfg.Audio)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"zero target":     "[timing]\ntarget_elapsed_time = \"0s\"\n",
		"negative target": "[timing]\ntarget_elapsed_time = \"-1ms\"\n",
		"bad duration":    "[timing]\ntarget_elapsed_time = \"soon\"\n",
		"huge floor":      "[timing]\nsleep_precision_floor = \"10ms\"\n",
		"zero width":      "[application]\nwidth = 0\n",
		"bad rate":        "[audio]\nsample_rate = 10\n",
		"not toml":        "[timing\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, core.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Application.Name = "round trip"
	cfg.Timing.TargetElapsedTime = Duration(10 * time.Millisecond)
	data, err := cfg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "metronome.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Application.Name != "round trip" || loaded.Timing.TargetElapsedTime.Std() != 10*time.Millisecond {
		t.Fatalf("loaded = %+v", loaded)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file should fail")
	}
}
