package mixer

import (
	"sync"
	"time"
)

// Output turns PCM buffers into voices.
type Output interface {
	NewVoice(pcm []byte, loop bool) (Voice, error)
	Close() error
}

// Voice is one buffer being played. Volume is linear in [0, 1].
type Voice interface {
	Play()
	Pause()
	Stop()
	SetVolume(v float64)
	// Finished reports that a non looping voice reached its end.
	Finished() bool
	Close() error
}

// SilentOutput plays nothing but keeps time, so cues start, run for their
// real length and finish. It is used for headless runs and tests.
type SilentOutput struct {
	sampleRate int
	now        func() time.Time
}

func NewSilentOutput(sampleRate int) *SilentOutput {
	return &SilentOutput{sampleRate: sampleRate, now: time.Now}
}

// WithClock replaces the wall clock used to advance voices.
func (o *SilentOutput) WithClock(now func() time.Time) *SilentOutput {
	o.now = now
	return o
}

func (o *SilentOutput) NewVoice(pcm []byte, loop bool) (Voice, error) {
	frames := len(pcm) / bytesPerFrame
	return &silentVoice{
		now:    o.now,
		length: time.Duration(frames) * time.Second / time.Duration(o.sampleRate),
		loop:   loop,
		volume: 1,
	}, nil
}

func (o *SilentOutput) Close() error {
	return nil
}

type silentVoice struct {
	mu      sync.Mutex
	now     func() time.Time
	length  time.Duration
	loop    bool
	volume  float64
	played  time.Duration
	since   time.Time
	playing bool
	stopped bool
}

func (v *silentVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.playing || v.stopped {
		return
	}
	v.playing = true
	v.since = v.now()
}

func (v *silentVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing {
		return
	}
	v.played += v.now().Sub(v.since)
	v.playing = false
}

func (v *silentVoice) Stop() {
	v.Pause()
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
}

func (v *silentVoice) SetVolume(volume float64) {
	v.mu.Lock()
	v.volume = volume
	v.mu.Unlock()
}

func (v *silentVoice) Finished() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loop {
		return false
	}
	played := v.played
	if v.playing {
		played += v.now().Sub(v.since)
	}
	return played >= v.length
}

func (v *silentVoice) Close() error {
	v.Stop()
	return nil
}
