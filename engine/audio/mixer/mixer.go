package mixer

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/spaghettifunk/metronome/engine/audio"
	"github.com/spaghettifunk/metronome/engine/core"
)

const (
	DefaultSampleRate = 44100
	notificationQueue = 1024
)

var (
	ErrShutDown      = errors.New("mixer is shut down")
	ErrUnknownHandle = errors.New("unknown handle")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
)

type Settings struct {
	SampleRate int
	// Content is the root that wave bank entries are resolved against.
	Content fs.FS
	// SoundFont is an optional .sf2 path inside Content, needed by MIDI entries.
	SoundFont string
	// Output defaults to a SilentOutput.
	Output Output
}

type waveBank struct {
	handle  audio.NativeHandle
	name    string
	entries map[string][]byte
}

type soundBank struct {
	handle audio.NativeHandle
	name   string
	cues   map[string]CueConfig
}

type cue struct {
	id            uuid.UUID
	handle        audio.NativeHandle
	bank          *soundBank
	waveBank      *waveBank
	config        CueConfig
	state         audio.State
	variables     map[string]float32
	voice         Voice
	fireAndForget bool
}

type queued struct {
	note    audio.Notification
	flushed chan struct{}
}

// Mixer is a software audio engine. Every object it destroys, on request or
// on its own, is announced to the registered callbacks from the mixer's
// worker goroutine.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	content    fs.FS
	output     Output
	soundFont  *meltysynth.SoundFont

	handles    *core.IdentifierPool
	waveBanks  map[audio.NativeHandle]*waveBank
	soundBanks map[audio.NativeHandle]*soundBank
	cues       map[audio.NativeHandle]*cue
	globals    map[string]float32
	shutDown   bool

	callbackMu sync.RWMutex
	callbacks  []audio.NotificationCallback

	queue chan queued
	done  chan struct{}
}

func New(settings Settings) (*Mixer, error) {
	if settings.SampleRate == 0 {
		settings.SampleRate = DefaultSampleRate
	}
	if settings.SampleRate < 8000 || settings.SampleRate > 192000 {
		err := fmt.Errorf("%w: sample rate %d is not supported", core.ErrInvalidArgument, settings.SampleRate)
		core.LogError("%s", err)
		return nil, err
	}
	if settings.Output == nil {
		settings.Output = NewSilentOutput(settings.SampleRate)
	}

	m := &Mixer{
		sampleRate: settings.SampleRate,
		content:    settings.Content,
		output:     settings.Output,
		handles:    core.NewIdentifierPool(64),
		waveBanks:  make(map[audio.NativeHandle]*waveBank),
		soundBanks: make(map[audio.NativeHandle]*soundBank),
		cues:       make(map[audio.NativeHandle]*cue),
		globals:    make(map[string]float32),
		queue:      make(chan queued, notificationQueue),
		done:       make(chan struct{}),
	}

	if settings.SoundFont != "" {
		if settings.Content == nil {
			return nil, fmt.Errorf("%w: a sound font needs a content root", core.ErrInvalidArgument)
		}
		sf, err := loadSoundFont(settings.Content, settings.SoundFont)
		if err != nil {
			err = fmt.Errorf("%w: sound font `%s`: %v", core.ErrNativeInitialization, settings.SoundFont, err)
			core.LogError("%s", err)
			return nil, err
		}
		m.soundFont = sf
	}

	go m.worker()
	core.LogDebug("mixer started at %d Hz", m.sampleRate)
	return m, nil
}

func (m *Mixer) worker() {
	defer close(m.done)
	for q := range m.queue {
		if q.flushed != nil {
			close(q.flushed)
			continue
		}
		m.callbackMu.RLock()
		callbacks := m.callbacks
		m.callbackMu.RUnlock()
		for _, cb := range callbacks {
			cb(q.note)
		}
	}
}

// notify must be called with m.mu held.
func (m *Mixer) notify(kind audio.ObjectKind, h audio.NativeHandle) {
	m.queue <- queued{note: audio.Notification{Kind: kind, Handle: h}}
}

// Flush blocks until every notification queued so far was delivered.
func (m *Mixer) Flush() {
	m.mu.Lock()
	if m.shutDown {
		m.mu.Unlock()
		<-m.done
		return
	}
	flushed := make(chan struct{})
	m.queue <- queued{flushed: flushed}
	m.mu.Unlock()
	<-flushed
}

func (m *Mixer) RegisterNotificationCallback(cb audio.NotificationCallback) error {
	if cb == nil {
		return fmt.Errorf("%w: notification callback is nil", core.ErrInvalidArgument)
	}
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.callbacks = append(append([]audio.NotificationCallback{}, m.callbacks...), cb)
	return nil
}

func (m *Mixer) acquire(owner interface{}) audio.NativeHandle {
	return audio.NativeHandle(uintptr(m.handles.Acquire(owner)))
}

func (m *Mixer) release(h audio.NativeHandle) {
	if err := m.handles.Release(uint64(h)); err != nil {
		core.LogWarn("mixer: %s", err)
	}
}

// DoWork advances playback: finished voices stop, stopping cues settle and
// fire-and-forget cues that are done get destroyed.
func (m *Mixer) DoWork() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return ErrShutDown
	}

	for h, c := range m.cues {
		switch {
		case c.state.Has(audio.StateStopping):
			c.state = audio.StateStopped
		case c.state.Has(audio.StatePlaying) && c.voice != nil && c.voice.Finished():
			c.voice.Stop()
			c.state = audio.StateStopped
		}
		if c.fireAndForget && c.state.Has(audio.StateStopped) {
			m.destroyCueLocked(h, c)
		}
	}
	return nil
}

// ShutDown destroys every object, waits until all notifications were
// delivered and stops the worker.
func (m *Mixer) ShutDown() error {
	m.mu.Lock()
	if m.shutDown {
		m.mu.Unlock()
		return nil
	}
	for h, sb := range m.soundBanks {
		m.destroySoundBankLocked(h, sb)
	}
	for h, wb := range m.waveBanks {
		m.destroyWaveBankLocked(h, wb)
	}
	m.shutDown = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
	core.LogDebug("mixer shut down")
	return m.output.Close()
}

func (m *Mixer) GetGlobalVariable(name string) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return 0, ErrShutDown
	}
	v, ok := m.globals[name]
	if !ok {
		return 0, fmt.Errorf("global variable `%s`: %w", name, ErrNotFound)
	}
	return v, nil
}

func (m *Mixer) SetGlobalVariable(name string, value float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return ErrShutDown
	}
	m.globals[name] = value
	return nil
}

func (m *Mixer) CreateWaveBank(manifest []byte) (audio.NativeHandle, error) {
	wm, err := ParseWaveBankManifest(manifest)
	if err != nil {
		return audio.NullHandle, err
	}

	// decoding happens outside the lock, it can take a while for MIDI
	entries := make(map[string][]byte, len(wm.Entries))
	for _, e := range wm.Entries {
		pcm, err := m.loadEntry(e)
		if err != nil {
			return audio.NullHandle, fmt.Errorf("wave bank `%s` entry `%s`: %w", wm.Name, e.Name, err)
		}
		entries[e.Name] = pcm
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return audio.NullHandle, ErrShutDown
	}
	for _, other := range m.waveBanks {
		if other.name == wm.Name {
			return audio.NullHandle, fmt.Errorf("%w: wave bank `%s` is already loaded", core.ErrInvalidArgument, wm.Name)
		}
	}

	wb := &waveBank{name: wm.Name, entries: entries}
	wb.handle = m.acquire(wb)
	m.waveBanks[wb.handle] = wb
	core.LogDebug("mixer: wave bank `%s` loaded with %d entries", wb.name, len(entries))
	return wb.handle, nil
}

func (m *Mixer) loadEntry(e WaveEntryConfig) ([]byte, error) {
	if m.content == nil {
		return nil, fmt.Errorf("%w: no content root", core.ErrInvalidArgument)
	}
	if e.File != "" {
		data, err := fs.ReadFile(m.content, path.Clean(e.File))
		if err != nil {
			return nil, err
		}
		return decodeWAV(data, m.sampleRate)
	}
	data, err := fs.ReadFile(m.content, path.Clean(e.MIDI))
	if err != nil {
		return nil, err
	}
	return renderMIDI(data, m.soundFont, m.sampleRate)
}

func (m *Mixer) DestroyWaveBank(h audio.NativeHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return ErrShutDown
	}
	wb, ok := m.waveBanks[h]
	if !ok {
		return fmt.Errorf("wave bank %#x: %w", uintptr(h), ErrUnknownHandle)
	}
	m.destroyWaveBankLocked(h, wb)
	return nil
}

// destroyWaveBankLocked also destroys the cues that play from the bank.
func (m *Mixer) destroyWaveBankLocked(h audio.NativeHandle, wb *waveBank) {
	for ch, c := range m.cues {
		if c.waveBank == wb {
			m.destroyCueLocked(ch, c)
		}
	}
	delete(m.waveBanks, h)
	m.release(h)
	m.notify(audio.KindWaveBank, h)
}

func (m *Mixer) WaveBankState(h audio.NativeHandle) (audio.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.waveBanks[h]
	if !ok {
		return 0, fmt.Errorf("wave bank %#x: %w", uintptr(h), ErrUnknownHandle)
	}
	state := audio.StatePrepared
	for _, c := range m.cues {
		if c.waveBank == wb && isActive(c.state) {
			state |= audio.StateInUse
			break
		}
	}
	return state, nil
}

func (m *Mixer) CreateSoundBank(manifest []byte) (audio.NativeHandle, error) {
	sm, err := ParseSoundBankManifest(manifest)
	if err != nil {
		return audio.NullHandle, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return audio.NullHandle, ErrShutDown
	}

	sb := &soundBank{name: sm.Name, cues: make(map[string]CueConfig, len(sm.Cues))}
	for _, c := range sm.Cues {
		sb.cues[c.Name] = c
	}
	sb.handle = m.acquire(sb)
	m.soundBanks[sb.handle] = sb
	core.LogDebug("mixer: sound bank `%s` loaded with %d cues", sb.name, len(sb.cues))
	return sb.handle, nil
}

func (m *Mixer) DestroySoundBank(h audio.NativeHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutDown {
		return ErrShutDown
	}
	sb, ok := m.soundBanks[h]
	if !ok {
		return fmt.Errorf("sound bank %#x: %w", uintptr(h), ErrUnknownHandle)
	}
	m.destroySoundBankLocked(h, sb)
	return nil
}

func (m *Mixer) destroySoundBankLocked(h audio.NativeHandle, sb *soundBank) {
	for ch, c := range m.cues {
		if c.bank == sb {
			m.destroyCueLocked(ch, c)
		}
	}
	delete(m.soundBanks, h)
	m.release(h)
	m.notify(audio.KindSoundBank, h)
}

func (m *Mixer) SoundBankState(h audio.NativeHandle) (audio.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.soundBanks[h]
	if !ok {
		return 0, fmt.Errorf("sound bank %#x: %w", uintptr(h), ErrUnknownHandle)
	}
	state := audio.StatePrepared
	for _, c := range m.cues {
		if c.bank == sb && isActive(c.state) {
			state |= audio.StateInUse
			break
		}
	}
	return state, nil
}

func (m *Mixer) PrepareCue(soundBank audio.NativeHandle, name string) (audio.NativeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.prepareCueLocked(soundBank, name)
	if err != nil {
		return audio.NullHandle, err
	}
	return c.handle, nil
}

func (m *Mixer) prepareCueLocked(soundBank audio.NativeHandle, name string) (*cue, error) {
	if m.shutDown {
		return nil, ErrShutDown
	}
	sb, ok := m.soundBanks[soundBank]
	if !ok {
		return nil, fmt.Errorf("sound bank %#x: %w", uintptr(soundBank), ErrUnknownHandle)
	}
	config, ok := sb.cues[name]
	if !ok {
		return nil, fmt.Errorf("cue `%s` in sound bank `%s`: %w", name, sb.name, ErrNotFound)
	}
	var wb *waveBank
	for _, candidate := range m.waveBanks {
		if candidate.name == config.WaveBank {
			wb = candidate
			break
		}
	}
	if wb == nil {
		return nil, fmt.Errorf("wave bank `%s` for cue `%s`: %w", config.WaveBank, name, ErrNotFound)
	}
	if _, ok := wb.entries[config.Entry]; !ok {
		return nil, fmt.Errorf("entry `%s` of wave bank `%s`: %w", config.Entry, wb.name, ErrNotFound)
	}

	c := &cue{
		id:        uuid.New(),
		bank:      sb,
		waveBank:  wb,
		config:    config,
		state:     audio.StateCreated | audio.StatePrepared,
		variables: map[string]float32{audio.VolumeVariable: config.volume()},
	}
	c.handle = m.acquire(c)
	m.cues[c.handle] = c
	return c, nil
}

func (m *Mixer) PlayCue(soundBank audio.NativeHandle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.prepareCueLocked(soundBank, name)
	if err != nil {
		return err
	}
	c.fireAndForget = true
	if err := m.playLocked(c); err != nil {
		m.destroyCueLocked(c.handle, c)
		return err
	}
	return nil
}

func (m *Mixer) PlayPreparedCue(h audio.NativeHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return err
	}
	return m.playLocked(c)
}

func (m *Mixer) playLocked(c *cue) error {
	if !c.state.Has(audio.StatePrepared) {
		return fmt.Errorf("%w: cue `%s` is not prepared", ErrInvalidState, c.config.Name)
	}
	voice, err := m.output.NewVoice(c.waveBank.entries[c.config.Entry], c.config.Loop)
	if err != nil {
		return fmt.Errorf("cue `%s`: %w", c.config.Name, err)
	}
	voice.SetVolume(float64(c.variables[audio.VolumeVariable]))
	voice.Play()
	c.voice = voice
	c.state = audio.StatePlaying
	core.LogDebug("mixer: cue `%s` (%s) playing", c.config.Name, c.id)
	return nil
}

func (m *Mixer) StopCue(h audio.NativeHandle, immediate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return err
	}
	if c.voice != nil {
		c.voice.Stop()
	}
	if immediate || !isActive(c.state) {
		c.state = audio.StateStopped
	} else {
		c.state = audio.StateStopping
	}
	return nil
}

func (m *Mixer) PauseCue(h audio.NativeHandle, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return err
	}
	switch {
	case paused && c.state.Has(audio.StatePlaying):
		c.voice.Pause()
		c.state = audio.StatePaused
	case !paused && c.state.Has(audio.StatePaused):
		c.voice.Play()
		c.state = audio.StatePlaying
	}
	return nil
}

func (m *Mixer) DestroyCue(h audio.NativeHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return err
	}
	m.destroyCueLocked(h, c)
	return nil
}

func (m *Mixer) destroyCueLocked(h audio.NativeHandle, c *cue) {
	if c.voice != nil {
		if err := c.voice.Close(); err != nil {
			core.LogWarn("mixer: closing voice of cue `%s`: %s", c.config.Name, err)
		}
	}
	delete(m.cues, h)
	m.release(h)
	m.notify(audio.KindCue, h)
}

func (m *Mixer) CueState(h audio.NativeHandle) (audio.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return 0, err
	}
	return c.state, nil
}

func (m *Mixer) GetCueVariable(h audio.NativeHandle, name string) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return 0, err
	}
	v, ok := c.variables[name]
	if !ok {
		return 0, fmt.Errorf("cue variable `%s`: %w", name, ErrNotFound)
	}
	return v, nil
}

func (m *Mixer) SetCueVariable(h audio.NativeHandle, name string, value float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cueLocked(h)
	if err != nil {
		return err
	}
	if name == audio.VolumeVariable {
		if value < 0 || value > 1 {
			return fmt.Errorf("%w: volume %v is outside [0, 1]", core.ErrInvalidArgument, value)
		}
		if c.voice != nil {
			c.voice.SetVolume(float64(value))
		}
	}
	c.variables[name] = value
	return nil
}

func (m *Mixer) cueLocked(h audio.NativeHandle) (*cue, error) {
	if m.shutDown {
		return nil, ErrShutDown
	}
	c, ok := m.cues[h]
	if !ok {
		return nil, fmt.Errorf("cue %#x: %w", uintptr(h), ErrUnknownHandle)
	}
	return c, nil
}

func isActive(s audio.State) bool {
	return s.Has(audio.StatePlaying) || s.Has(audio.StatePaused) || s.Has(audio.StateStopping)
}
