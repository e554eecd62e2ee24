package engine

import (
	"fmt"
	"os"
	"sync"

	"github.com/spaghettifunk/metronome/engine/assets"
	"github.com/spaghettifunk/metronome/engine/audio"
	"github.com/spaghettifunk/metronome/engine/audio/mixer"
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/engine/systems"
)

type loadedBank struct {
	name string
	kind audio.ObjectKind
}

// AudioSystem loads the configured banks into an AudioEngine running on the
// software mixer and keeps them in sync with the content directory.
type AudioSystem struct {
	cfg      config.AudioConfig
	lifetime *audio.Lifetime
	mixer    *mixer.Mixer
	engine   *audio.AudioEngine
	assets   *assets.AssetManager
	jobs     *systems.JobSystem
	events   *core.EventSystem

	mu         sync.Mutex
	waveBanks  map[string]*audio.WaveBank
	soundBanks map[string]*audio.SoundBank
	// bank names by handle, kept until the destroy notification arrived
	names map[audio.NativeHandle]loadedBank
	// handles reported after a dropped notification, their late
	// notification is not fired twice
	pruned    map[audio.NativeHandle]struct{}
	seenDrops uint64
}

func NewAudioSystem(cfg config.AudioConfig, lifetime *audio.Lifetime, output mixer.Output, am *assets.AssetManager, events *core.EventSystem) (*AudioSystem, error) {
	m, err := mixer.New(mixer.Settings{
		SampleRate: cfg.SampleRate,
		Content:    os.DirFS(am.Root()),
		SoundFont:  cfg.SoundFont,
		Output:     output,
	})
	if err != nil {
		return nil, err
	}
	ae, err := audio.NewAudioEngine(m, lifetime)
	if err != nil {
		_ = m.ShutDown()
		return nil, err
	}
	// one worker keeps reloads of the same bank in order
	js, err := systems.NewJobSystem(1, 64)
	if err != nil {
		ae.Dispose()
		return nil, err
	}

	as := &AudioSystem{
		cfg:        cfg,
		lifetime:   ae.Lifetime(),
		mixer:      m,
		engine:     ae,
		assets:     am,
		jobs:       js,
		events:     events,
		waveBanks:  make(map[string]*audio.WaveBank),
		soundBanks: make(map[string]*audio.SoundBank),
		names:      make(map[audio.NativeHandle]loadedBank),
		pruned:     make(map[audio.NativeHandle]struct{}),
	}
	ae.OnObjectDestroyed = as.onObjectDestroyed
	return as, nil
}

// Initialize loads every configured bank, wave banks first.
func (as *AudioSystem) Initialize() error {
	for _, name := range as.cfg.WaveBanks {
		if err := as.LoadWaveBank(name); err != nil {
			return err
		}
	}
	for _, name := range as.cfg.SoundBanks {
		if err := as.LoadSoundBank(name); err != nil {
			return err
		}
	}
	if as.cfg.WatchContent {
		as.assets.OnChange(as.onAssetChange)
	}
	return nil
}

func (as *AudioSystem) Engine() *audio.AudioEngine {
	return as.engine
}

func (as *AudioSystem) Lifetime() *audio.Lifetime {
	return as.lifetime
}

// LoadWaveBank (re)loads name.wavebank from the content directory.
func (as *AudioSystem) LoadWaveBank(name string) error {
	res, err := as.assets.LoadAsset(name, assets.AssetTypeWaveBank)
	if err != nil {
		return err
	}
	defer as.assets.UnloadAsset(res)

	as.mu.Lock()
	defer as.mu.Unlock()
	if old, ok := as.waveBanks[name]; ok {
		old.Dispose()
	}
	wb, err := audio.NewWaveBank(as.engine, name, res.Data)
	if err != nil {
		delete(as.waveBanks, name)
		return err
	}
	as.waveBanks[name] = wb
	as.names[wb.Handle()] = loadedBank{name: name, kind: audio.KindWaveBank}
	core.LogInfo("audio: wave bank `%s` loaded", name)
	return nil
}

// LoadSoundBank (re)loads name.soundbank from the content directory.
func (as *AudioSystem) LoadSoundBank(name string) error {
	res, err := as.assets.LoadAsset(name, assets.AssetTypeSoundBank)
	if err != nil {
		return err
	}
	defer as.assets.UnloadAsset(res)

	as.mu.Lock()
	defer as.mu.Unlock()
	if old, ok := as.soundBanks[name]; ok {
		old.Dispose()
	}
	sb, err := audio.NewSoundBank(as.engine, name, res.Data)
	if err != nil {
		delete(as.soundBanks, name)
		return err
	}
	as.soundBanks[name] = sb
	as.names[sb.Handle()] = loadedBank{name: name, kind: audio.KindSoundBank}
	core.LogInfo("audio: sound bank `%s` loaded", name)
	return nil
}

func (as *AudioSystem) UnloadWaveBank(name string) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if wb, ok := as.waveBanks[name]; ok {
		wb.Dispose()
		delete(as.waveBanks, name)
	}
}

func (as *AudioSystem) UnloadSoundBank(name string) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if sb, ok := as.soundBanks[name]; ok {
		sb.Dispose()
		delete(as.soundBanks, name)
	}
}

func (as *AudioSystem) WaveBank(name string) (*audio.WaveBank, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	wb, ok := as.waveBanks[name]
	return wb, ok
}

func (as *AudioSystem) SoundBank(name string) (*audio.SoundBank, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	sb, ok := as.soundBanks[name]
	return sb, ok
}

// PlayCue fires and forgets a cue of a loaded sound bank.
func (as *AudioSystem) PlayCue(bank, cue string) error {
	sb, ok := as.SoundBank(bank)
	if !ok {
		return fmt.Errorf("sound bank `%s` is not loaded", bank)
	}
	return sb.PlayCue(cue)
}

// Update runs once per game update.
func (as *AudioSystem) Update() error {
	if err := as.engine.Update(); err != nil {
		return err
	}
	if dropped := as.engine.DroppedNotifications(); dropped != as.seenDrops {
		as.seenDrops = dropped
		as.pruneNames()
	}
	return nil
}

// pruneNames reports the banks whose destroy notification was dropped: their
// handle left the registry but the name is still here.
func (as *AudioSystem) pruneNames() {
	registry := as.engine.Registry()

	as.mu.Lock()
	as.pruned = make(map[audio.NativeHandle]struct{})
	var gone []audio.Notification
	for h, bank := range as.names {
		if registry.Contains(h) {
			continue
		}
		gone = append(gone, audio.Notification{Kind: bank.kind, Handle: h})
		as.pruned[h] = struct{}{}
	}
	as.mu.Unlock()

	for _, n := range gone {
		as.fireDestroyed(n, as.nameOf(n))
	}
}

func (as *AudioSystem) onObjectDestroyed(n audio.Notification) {
	as.mu.Lock()
	_, reported := as.pruned[n.Handle]
	delete(as.pruned, n.Handle)
	as.mu.Unlock()
	if reported {
		return
	}
	as.fireDestroyed(n, as.nameOf(n))
}

func (as *AudioSystem) fireDestroyed(n audio.Notification, name string) {
	if as.events == nil {
		return
	}
	as.events.Fire(core.EventContext{
		Type:   core.EVENT_CODE_AUDIO_OBJECT_DESTROYED,
		Sender: as,
		Data: &core.AudioEvent{
			Kind:   n.Kind.String(),
			Name:   name,
			Handle: uintptr(n.Handle),
		},
	})
}

// nameOf finds the bank a notification is about. Cues have no name here.
func (as *AudioSystem) nameOf(n audio.Notification) string {
	as.mu.Lock()
	defer as.mu.Unlock()
	bank := as.names[n.Handle]
	delete(as.names, n.Handle)
	return bank.name
}

// flush waits until every destroy notification sent so far reached the
// handle registry.
func (as *AudioSystem) flush() {
	as.mixer.Flush()
}

// onAssetChange runs on the watcher goroutine and hands the reload to the
// job system.
func (as *AudioSystem) onAssetChange(e assets.AssetEvent) {
	var load func(string) error
	var unload func(string)
	switch e.Type {
	case assets.AssetTypeWaveBank:
		if !contains(as.cfg.WaveBanks, e.Name) {
			return
		}
		load, unload = as.LoadWaveBank, as.UnloadWaveBank
	case assets.AssetTypeSoundBank:
		if !contains(as.cfg.SoundBanks, e.Name) {
			return
		}
		load, unload = as.LoadSoundBank, as.UnloadSoundBank
	default:
		return
	}

	err := as.jobs.Submit(systems.JobTask{
		Name: fmt.Sprintf("%s %s `%s`", e.Type, e.Op, e.Name),
		OnStart: func() (interface{}, error) {
			if e.Op == assets.ChangeRemoved {
				unload(e.Name)
				return nil, nil
			}
			return nil, load(e.Name)
		},
	})
	if err != nil {
		core.LogDebug("audio: ignoring %s of `%s`: %s", e.Op, e.Name, err)
	}
}

// Shutdown waits for pending reloads, then disposes the banks and the
// engine. Safe to call more than once.
func (as *AudioSystem) Shutdown() error {
	if err := as.jobs.Shutdown(); err != nil {
		return err
	}

	as.mu.Lock()
	for name, sb := range as.soundBanks {
		sb.Dispose()
		delete(as.soundBanks, name)
	}
	for name, wb := range as.waveBanks {
		wb.Dispose()
		delete(as.waveBanks, name)
	}
	as.mu.Unlock()

	// shutting the mixer down also closes the output
	as.engine.Dispose()
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
