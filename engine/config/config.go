package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/metronome/engine/core"
)

// Duration is a time.Duration written as a Go duration string in TOML files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration `%s`: %v", core.ErrInvalidArgument, text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ApplicationConfig struct {
	Name      string `toml:"name"`
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	LogLevel  string `toml:"log_level"`
	Headless  bool   `toml:"headless"`
}

type TimingConfig struct {
	TargetElapsedTime   Duration `toml:"target_elapsed_time"`
	FixedTimeStep       bool     `toml:"fixed_time_step"`
	InactiveSleepTime   Duration `toml:"inactive_sleep_time"`
	MaxElapsedTime      Duration `toml:"max_elapsed_time"`
	SleepPrecisionFloor Duration `toml:"sleep_precision_floor"`
}

type AudioConfig struct {
	Enabled      bool     `toml:"enabled"`
	ContentDir   string   `toml:"content_dir"`
	WatchContent bool     `toml:"watch_content"`
	SampleRate   int      `toml:"sample_rate"`
	SoundFont    string   `toml:"sound_font"`
	WaveBanks    []string `toml:"wave_banks"`
	SoundBanks   []string `toml:"sound_banks"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Timing      TimingConfig      `toml:"timing"`
	Audio       AudioConfig       `toml:"audio"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:      "Metronome Testbed",
			StartPosX: 100,
			StartPosY: 100,
			Width:     1280,
			Height:    720,
			LogLevel:  "info",
		},
		Timing: TimingConfig{
			TargetElapsedTime: Duration(16666667 * time.Nanosecond),
			FixedTimeStep:     true,
			InactiveSleepTime: Duration(20 * time.Millisecond),
			MaxElapsedTime:    Duration(500 * time.Millisecond),
		},
		Audio: AudioConfig{
			Enabled:    true,
			ContentDir: "assets/audio",
			SampleRate: 44100,
		},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("could not read config `%s`: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		err = fmt.Errorf("config `%s`: %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("%w: window size %dx%d", core.ErrInvalidArgument, c.Application.Width, c.Application.Height)
	}
	if c.Timing.TargetElapsedTime <= 0 {
		return fmt.Errorf("%w: target_elapsed_time must be positive", core.ErrInvalidArgument)
	}
	if c.Timing.MaxElapsedTime <= 0 {
		return fmt.Errorf("%w: max_elapsed_time must be positive", core.ErrInvalidArgument)
	}
	if c.Timing.InactiveSleepTime < 0 || c.Timing.SleepPrecisionFloor < 0 {
		return fmt.Errorf("%w: sleep times must not be negative", core.ErrInvalidArgument)
	}
	if c.Timing.SleepPrecisionFloor > Duration(4*time.Millisecond) {
		return fmt.Errorf("%w: sleep_precision_floor above 4ms would never sleep", core.ErrInvalidArgument)
	}
	if c.Audio.Enabled {
		if c.Audio.ContentDir == "" {
			return fmt.Errorf("%w: audio.content_dir is empty", core.ErrInvalidArgument)
		}
		if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
			return fmt.Errorf("%w: audio.sample_rate %d", core.ErrInvalidArgument, c.Audio.SampleRate)
		}
	}
	return nil
}

// Encode writes the configuration back as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
