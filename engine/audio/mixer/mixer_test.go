package mixer

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/fstest"
	"time"

	"github.com/spaghettifunk/metronome/engine/audio"
	"github.com/spaghettifunk/metronome/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

// makeWAV builds a 16-bit stereo PCM file of the given length.
func makeWAV(sampleRate int, length time.Duration) []byte {
	frames := int(length.Seconds() * float64(sampleRate))
	dataSize := frames * 4
	b := make([]byte, 0, 44+dataSize)
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+dataSize))
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, 2)
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*4))
	b = binary.LittleEndian.AppendUint16(b, 4)
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(dataSize))
	for i := 0; i < frames; i++ {
		v := uint16(int16((i % 100) * 300))
		b = binary.LittleEndian.AppendUint16(b, v)
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

const waveManifest = `
name = "effects"

[[entries]]
name = "blip"
file = "waves/blip.wav"
`

const soundManifest = `
name = "sfx"

[[cues]]
name = "blip"
wave_bank = "effects"
entry = "blip"
volume = 0.5

[[cues]]
name = "hum"
wave_bank = "effects"
entry = "blip"
loop = true

[[cues]]
name = "ghost"
wave_bank = "missing"
entry = "blip"
`

type fixture struct {
	now    time.Time
	mixer  *Mixer
	engine *audio.AudioEngine
	waves  *audio.WaveBank
	sounds *audio.SoundBank
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Unix(0, 0)}
	content := fstest.MapFS{
		"waves/blip.wav": &fstest.MapFile{Data: makeWAV(DefaultSampleRate, 100*time.Millisecond)},
	}
	m, err := New(Settings{
		Content: content,
		Output:  NewSilentOutput(DefaultSampleRate).WithClock(func() time.Time { return f.now }),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.mixer = m

	ae, err := audio.NewAudioEngine(m, audio.NewLifetime())
	if err != nil {
		t.Fatalf("NewAudioEngine: %v", err)
	}
	f.engine = ae
	t.Cleanup(ae.Dispose)

	if f.waves, err = audio.NewWaveBank(ae, "effects", []byte(waveManifest)); err != nil {
		t.Fatalf("NewWaveBank: %v", err)
	}
	if f.sounds, err = audio.NewSoundBank(ae, "sfx", []byte(soundManifest)); err != nil {
		t.Fatalf("NewSoundBank: %v", err)
	}
	return f
}

func (f *fixture) cueCount() int {
	f.mixer.mu.Lock()
	defer f.mixer.mu.Unlock()
	return len(f.mixer.cues)
}

func TestWaveEntryIsDecoded(t *testing.T) {
	f := newFixture(t)
	f.mixer.mu.Lock()
	defer f.mixer.mu.Unlock()
	wb := f.mixer.waveBanks[f.waves.Handle()]
	if wb == nil {
		t.Fatal("wave bank missing")
	}
	frames := len(wb.entries["blip"]) / bytesPerFrame
	if frames != DefaultSampleRate/10 {
		t.Fatalf("decoded %d frames, want %d", frames, DefaultSampleRate/10)
	}
}

func TestCuePlaysToTheEnd(t *testing.T) {
	f := newFixture(t)
	cue, err := f.sounds.GetCue("blip")
	if err != nil {
		t.Fatal(err)
	}
	if !cue.IsPrepared() || cue.Volume() != 0.5 {
		t.Fatalf("prepared = %v volume = %v", cue.IsPrepared(), cue.Volume())
	}
	if err := cue.Play(); err != nil {
		t.Fatal(err)
	}
	if !cue.IsPlaying() || !f.waves.IsInUse() || !f.sounds.IsInUse() {
		t.Fatal("playing cue should mark both banks in use")
	}

	f.now = f.now.Add(50 * time.Millisecond)
	_ = f.engine.Update()
	if !cue.IsPlaying() {
		t.Fatal("cue stopped before its end")
	}

	f.now = f.now.Add(60 * time.Millisecond)
	_ = f.engine.Update()
	if !cue.IsStopped() || f.waves.IsInUse() {
		t.Fatal("cue should have stopped at its end")
	}
	if cue.IsDisposed() {
		t.Fatal("an owned cue is not destroyed when it finishes")
	}
	if err := cue.Play(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("replaying a stopped cue = %v", err)
	}
}

func TestPauseHoldsPosition(t *testing.T) {
	f := newFixture(t)
	cue, _ := f.sounds.GetCue("blip")
	_ = cue.Play()

	f.now = f.now.Add(80 * time.Millisecond)
	cue.Pause()
	f.now = f.now.Add(time.Second)
	_ = f.engine.Update()
	if !cue.IsPaused() {
		t.Fatal("paused cue should stay paused")
	}
	cue.Resume()
	f.now = f.now.Add(10 * time.Millisecond)
	_ = f.engine.Update()
	if !cue.IsPlaying() {
		t.Fatal("cue should still have 10ms left")
	}
	f.now = f.now.Add(20 * time.Millisecond)
	_ = f.engine.Update()
	if !cue.IsStopped() {
		t.Fatal("cue should be done")
	}
}

func TestStopSettlesOnNextUpdate(t *testing.T) {
	f := newFixture(t)
	cue, _ := f.sounds.GetCue("hum")
	_ = cue.Play()

	cue.Stop(false)
	if !cue.IsStopping() || !f.sounds.IsInUse() {
		t.Fatal("a graceful stop goes through stopping")
	}
	_ = f.engine.Update()
	if !cue.IsStopped() {
		t.Fatal("stopping cue should settle on DoWork")
	}
}

func TestLoopingCueNeverFinishes(t *testing.T) {
	f := newFixture(t)
	cue, _ := f.sounds.GetCue("hum")
	_ = cue.Play()
	f.now = f.now.Add(time.Hour)
	_ = f.engine.Update()
	if !cue.IsPlaying() {
		t.Fatal("looping cue stopped")
	}
}

func TestFireAndForgetCueIsDestroyedWhenDone(t *testing.T) {
	f := newFixture(t)
	if err := f.sounds.PlayCue("blip"); err != nil {
		t.Fatal(err)
	}
	if f.cueCount() != 1 {
		t.Fatalf("cues = %d, want 1", f.cueCount())
	}
	f.now = f.now.Add(200 * time.Millisecond)
	_ = f.engine.Update()
	if f.cueCount() != 0 {
		t.Fatalf("cues = %d, want 0", f.cueCount())
	}
}

func TestUnloadingWaveBankDestroysDependentCues(t *testing.T) {
	f := newFixture(t)
	cue, _ := f.sounds.GetCue("blip")
	_ = cue.Play()

	var destroyed []audio.Notification
	f.engine.OnObjectDestroyed = func(n audio.Notification) { destroyed = append(destroyed, n) }

	// out of band, as a content reload would do it
	if err := f.mixer.DestroyWaveBank(f.waves.Handle()); err != nil {
		t.Fatal(err)
	}
	f.mixer.Flush()

	if !cue.IsDisposed() || !f.waves.IsDisposed() {
		t.Fatal("notifications should have destroyed the cue and the wave bank")
	}
	if f.sounds.IsDisposed() {
		t.Fatal("the sound bank does not depend on the wave bank")
	}
	_ = f.engine.Update()
	if len(destroyed) != 2 {
		t.Fatalf("forwarded %d notifications, want 2", len(destroyed))
	}
	if _, err := f.sounds.GetCue("blip"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCue without its wave bank = %v", err)
	}
}

func TestDisposingSoundBankDestroysCues(t *testing.T) {
	f := newFixture(t)
	a, _ := f.sounds.GetCue("blip")
	b, _ := f.sounds.GetCue("hum")
	f.sounds.Dispose()
	f.mixer.Flush()
	if !a.IsDisposed() || !b.IsDisposed() {
		t.Fatal("cues should follow their sound bank")
	}
	if f.engine.Registry().Len() != 1 {
		t.Fatalf("registry has %d entries, want only the wave bank", f.engine.Registry().Len())
	}
}

func TestEngineDisposeShutsTheMixerDown(t *testing.T) {
	f := newFixture(t)
	cue, _ := f.sounds.GetCue("blip")
	f.engine.Dispose()

	// ShutDown drains the queue before returning
	if !cue.IsDisposed() || !f.sounds.IsDisposed() || !f.waves.IsDisposed() {
		t.Fatal("every object should be destroyed by shutdown")
	}
	if f.engine.Registry().Len() != 0 {
		t.Fatalf("registry has %d entries left", f.engine.Registry().Len())
	}
	if _, err := f.mixer.CreateSoundBank([]byte(soundManifest)); !errors.Is(err, ErrShutDown) {
		t.Fatalf("CreateSoundBank after shutdown = %v", err)
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	f := newFixture(t)
	seen := map[audio.NativeHandle]bool{f.waves.Handle(): true, f.sounds.Handle(): true}
	for i := 0; i < 10; i++ {
		cue, err := f.sounds.GetCue("blip")
		if err != nil {
			t.Fatal(err)
		}
		h := cue.Handle()
		if seen[h] {
			t.Fatalf("handle %#x handed out twice", uintptr(h))
		}
		seen[h] = true
		cue.Dispose()
	}
}

func TestCueErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sounds.GetCue("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown cue = %v", err)
	}
	if _, err := f.sounds.GetCue("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cue of an unloaded wave bank = %v", err)
	}
	cue, _ := f.sounds.GetCue("blip")
	if err := f.mixer.SetCueVariable(cue.Handle(), audio.VolumeVariable, 2); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("volume 2 = %v", err)
	}
	if err := f.mixer.StopCue(audio.NativeHandle(12345), true); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("unknown handle = %v", err)
	}
	if _, err := audio.NewWaveBank(f.engine, "again", []byte(waveManifest)); err == nil {
		t.Fatal("loading a wave bank twice should fail")
	}
}

func TestGlobalVariables(t *testing.T) {
	f := newFixture(t)
	f.engine.SetGlobalVariable("Distance", 3)
	if v := f.engine.GetGlobalVariable("Distance"); v != 3 {
		t.Fatalf("global = %v", v)
	}
	if _, err := f.mixer.GetGlobalVariable("Unset"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unset global = %v", err)
	}
}

func TestMIDIEntryNeedsSoundFont(t *testing.T) {
	m, err := New(Settings{Content: fstest.MapFS{
		"theme.mid": &fstest.MapFile{Data: []byte("MThd")},
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer m.ShutDown()
	manifest := "name = \"music\"\n[[entries]]\nname = \"theme\"\nmidi = \"theme.mid\"\n"
	if _, err := m.CreateWaveBank([]byte(manifest)); err == nil {
		t.Fatal("MIDI without a sound font should fail")
	}
}

func TestNewValidatesSettings(t *testing.T) {
	if _, err := New(Settings{SampleRate: 100}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("sample rate 100 = %v", err)
	}
	if _, err := New(Settings{Content: fstest.MapFS{}, SoundFont: "missing.sf2"}); !errors.Is(err, core.ErrNativeInitialization) {
		t.Fatalf("missing sound font = %v", err)
	}
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		sound    bool
	}{
		{"wave without name", "[[entries]]\nname = \"a\"\nfile = \"a.wav\"\n", false},
		{"wave entry without source", "name = \"w\"\n[[entries]]\nname = \"a\"\n", false},
		{"wave entry with two sources", "name = \"w\"\n[[entries]]\nname = \"a\"\nfile = \"a.wav\"\nmidi = \"a.mid\"\n", false},
		{"wave duplicate entry", "name = \"w\"\n[[entries]]\nname = \"a\"\nfile = \"a.wav\"\n[[entries]]\nname = \"a\"\nfile = \"b.wav\"\n", false},
		{"broken toml", "name = ", false},
		{"sound without name", "[[cues]]\nname = \"c\"\nwave_bank = \"w\"\nentry = \"a\"\n", true},
		{"sound cue without entry", "name = \"s\"\n[[cues]]\nname = \"c\"\nwave_bank = \"w\"\n", true},
		{"sound volume out of range", "name = \"s\"\n[[cues]]\nname = \"c\"\nwave_bank = \"w\"\nentry = \"a\"\nvolume = 1.5\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.sound {
				_, err = ParseSoundBankManifest([]byte(tt.manifest))
			} else {
				_, err = ParseWaveBankManifest([]byte(tt.manifest))
			}
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}
