package mixer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/spaghettifunk/metronome/engine/core"
)

// SpeakerOutput plays voices through the process wide ebiten audio context.
type SpeakerOutput struct {
	ctx *audio.Context
}

// NewSpeakerOutput reuses the current audio context when one exists, since
// ebiten allows only one per process.
func NewSpeakerOutput(sampleRate int) (*SpeakerOutput, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	if ctx.SampleRate() != sampleRate {
		return nil, fmt.Errorf("%w: audio context runs at %d Hz, mixer wants %d Hz",
			core.ErrNativeInitialization, ctx.SampleRate(), sampleRate)
	}
	return &SpeakerOutput{ctx: ctx}, nil
}

func (o *SpeakerOutput) NewVoice(pcm []byte, loop bool) (Voice, error) {
	var src io.Reader = bytes.NewReader(pcm)
	if loop {
		src = audio.NewInfiniteLoop(bytes.NewReader(pcm), int64(len(pcm)))
	}
	player, err := o.ctx.NewPlayer(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	return &speakerVoice{player: player, loop: loop}, nil
}

func (o *SpeakerOutput) Close() error {
	return nil
}

type speakerVoice struct {
	player  *audio.Player
	loop    bool
	started bool
	paused  bool
}

func (v *speakerVoice) Play() {
	v.started = true
	v.paused = false
	v.player.Play()
}

func (v *speakerVoice) Pause() {
	v.paused = true
	v.player.Pause()
}

func (v *speakerVoice) Stop() {
	v.Pause()
}

func (v *speakerVoice) SetVolume(volume float64) {
	v.player.SetVolume(volume)
}

func (v *speakerVoice) Finished() bool {
	return v.started && !v.paused && !v.loop && !v.player.IsPlaying()
}

func (v *speakerVoice) Close() error {
	return v.player.Close()
}
