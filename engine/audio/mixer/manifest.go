package mixer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/pelletier/go-toml/v2"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/math"
)

const (
	WaveBankExtension  = ".wavebank"
	SoundBankExtension = ".soundbank"

	bytesPerFrame = 4
	midiBlockSize = 1024
	// rendered after the last MIDI event so that notes can release
	midiTail = time.Second
	// longest MIDI entry rendered into memory
	maxMIDILength = 10 * time.Minute
)

type WaveEntryConfig struct {
	Name string `toml:"name"`
	File string `toml:"file"`
	MIDI string `toml:"midi"`
}

// WaveBankManifest lists the waves of a bank. Paths are relative to the
// content root of the mixer.
type WaveBankManifest struct {
	Name    string            `toml:"name"`
	Entries []WaveEntryConfig `toml:"entries"`
}

type CueConfig struct {
	Name     string   `toml:"name"`
	WaveBank string   `toml:"wave_bank"`
	Entry    string   `toml:"entry"`
	Volume   *float64 `toml:"volume"`
	Loop     bool     `toml:"loop"`
}

type SoundBankManifest struct {
	Name string      `toml:"name"`
	Cues []CueConfig `toml:"cues"`
}

func ParseWaveBankManifest(data []byte) (*WaveBankManifest, error) {
	var m WaveBankManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: wave bank manifest: %v", core.ErrInvalidArgument, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: wave bank manifest has no name", core.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: wave bank `%s` has an entry without a name", core.ErrInvalidArgument, m.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: wave bank `%s` has duplicate entry `%s`", core.ErrInvalidArgument, m.Name, e.Name)
		}
		seen[e.Name] = true
		if (e.File == "") == (e.MIDI == "") {
			return nil, fmt.Errorf("%w: entry `%s` of wave bank `%s` needs exactly one of file or midi", core.ErrInvalidArgument, e.Name, m.Name)
		}
	}
	return &m, nil
}

func ParseSoundBankManifest(data []byte) (*SoundBankManifest, error) {
	var m SoundBankManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: sound bank manifest: %v", core.ErrInvalidArgument, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: sound bank manifest has no name", core.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(m.Cues))
	for i, c := range m.Cues {
		if c.Name == "" || c.WaveBank == "" || c.Entry == "" {
			return nil, fmt.Errorf("%w: cue %d of sound bank `%s` needs name, wave_bank and entry", core.ErrInvalidArgument, i, m.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: sound bank `%s` has duplicate cue `%s`", core.ErrInvalidArgument, m.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Volume != nil && (*c.Volume < 0 || *c.Volume > 1) {
			return nil, fmt.Errorf("%w: cue `%s` volume %v is outside [0, 1]", core.ErrInvalidArgument, c.Name, *c.Volume)
		}
	}
	return &m, nil
}

func (c CueConfig) volume() float32 {
	if c.Volume == nil {
		return 1
	}
	return float32(*c.Volume)
}

// decodeWAV returns interleaved 16-bit stereo PCM at sampleRate.
func decodeWAV(data []byte, sampleRate int) ([]byte, error) {
	stream, err := wav.DecodeWithSampleRate(sampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(stream)
}

// renderMIDI synthesizes a whole MIDI file into interleaved 16-bit stereo PCM.
func renderMIDI(data []byte, soundFont *meltysynth.SoundFont, sampleRate int) ([]byte, error) {
	if soundFont == nil {
		return nil, fmt.Errorf("no sound font loaded")
	}
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, err
	}
	sequencer := meltysynth.NewMidiFileSequencer(synth)
	sequencer.Play(midi, false)

	length := math.Clamp(midi.GetLength()+midiTail, 0, maxMIDILength)
	frames := int(length.Seconds() * float64(sampleRate))
	pcm := make([]byte, 0, frames*bytesPerFrame)
	left := make([]float32, midiBlockSize)
	right := make([]float32, midiBlockSize)
	for rendered := 0; rendered < frames; rendered += midiBlockSize {
		n := min(midiBlockSize, frames-rendered)
		sequencer.Render(left[:n], right[:n])
		for i := 0; i < n; i++ {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(math.PCM16(left[i])))
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(math.PCM16(right[i])))
		}
	}
	return pcm, nil
}

func loadSoundFont(content fs.FS, path string) (*meltysynth.SoundFont, error) {
	data, err := fs.ReadFile(content, path)
	if err != nil {
		return nil, err
	}
	return meltysynth.NewSoundFont(bytes.NewReader(data))
}
