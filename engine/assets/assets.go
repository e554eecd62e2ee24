package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/metronome/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

type ChangeOp uint8

const (
	ChangeCreated ChangeOp = iota + 1
	ChangeModified
	ChangeRemoved
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// AssetEvent describes a change of an indexed asset. Name is the file name
// without directory and extension.
type AssetEvent struct {
	Path string
	Name string
	Type AssetType
	Op   ChangeOp
}

// AssetManager indexes the audio content directory and, when watching,
// keeps the index in sync with the disk.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex       sync.RWMutex
	subscribers []func(AssetEvent)

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	binary := &BinaryLoader{}
	for _, t := range []AssetType{AssetTypeWaveBank, AssetTypeSoundBank, AssetTypeWave, AssetTypeMIDI, AssetTypeSoundFont} {
		am.registerLoader(t, binary)
	}
	return am, nil
}

// Initialize indexes assetsDir. With watch set, changes below it are picked
// up and reported to subscribers.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	am.root = assetsDir
	if !watch {
		close(am.stopped)
		return am.index(assetsDir)
	}

	go am.start()
	return am.watchRecursive(assetsDir, 0)
}

func (am *AssetManager) Root() string {
	return am.root
}

// OnChange registers fn for every create, write or remove of an indexed asset.
// fn runs on the watcher goroutine.
func (am *AssetManager) OnChange(fn func(AssetEvent)) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.subscribers = append(am.subscribers, fn)
}

func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads the named asset, e.g. "music" with AssetTypeWaveBank reads
// music.wavebank from the content root.
func (am *AssetManager) LoadAsset(name string, assetType AssetType) (*Resource, error) {
	path := filepath.Join(am.root, name+assetType.Extension())

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path, asset.Type, name)
}

func (am *AssetManager) UnloadAsset(r *Resource) error {
	loader, ok := am.loaders[r.Type]
	if !ok {
		return fmt.Errorf("no loader registered for asset type: %s", r.Type)
	}
	return loader.Unload(r)
}

// Assets lists the indexed assets of the given type.
func (am *AssetManager) Assets(assetType AssetType) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var out []AssetInfo
	for _, a := range am.assets {
		if a.Type == assetType {
			out = append(out, a)
		}
	}
	return out
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	select {
	case <-am.stopped:
		// never watched
		return am.fsnotify.Close()
	default:
	}
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, ChangeCreated); err != nil {
						core.LogWarn("assets: could not watch `%s`: %s", e.Name, err)
					}
				}
				continue
			}
			switch {
			case e.Op&fsnotify.Create != 0:
				am.handleFileEvent(e.Name, ChangeCreated)
			case e.Op&fsnotify.Write != 0:
				am.handleFileEvent(e.Name, ChangeModified)
			case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// can't stat a deleted path, so it may have been a directory
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) index(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.handleFileEvent(walkPath, 0)
		}
		return nil
	})
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way, reporting them with op.
func (am *AssetManager) watchRecursive(path string, op ChangeOp) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset watcher already closed")
	}

	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath, op)
		return nil
	})
}

// handleFileEvent indexes path. A zero op indexes silently.
func (am *AssetManager) handleFileEvent(path string, op ChangeOp) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}

	am.mutex.Lock()
	if _, known := am.assets[path]; known && op == ChangeCreated {
		op = ChangeModified
	}
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	subscribers := am.subscribers
	am.mutex.Unlock()

	if op != 0 {
		am.publish(subscribers, AssetEvent{Path: path, Name: assetName(path), Type: assetType, Op: op})
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	info, ok := am.assets[path]
	delete(am.assets, path)
	subscribers := am.subscribers
	am.mutex.Unlock()

	if ok {
		am.publish(subscribers, AssetEvent{Path: path, Name: assetName(path), Type: info.Type, Op: ChangeRemoved})
	}
}

func (am *AssetManager) publish(subscribers []func(AssetEvent), e AssetEvent) {
	core.LogDebug("assets: %s %s `%s`", e.Type, e.Op, e.Path)
	for _, fn := range subscribers {
		fn(e)
	}
}

func assetName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
