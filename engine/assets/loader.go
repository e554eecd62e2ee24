package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeWaveBank
	AssetTypeSoundBank
	AssetTypeWave
	AssetTypeMIDI
	AssetTypeSoundFont
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeWaveBank:
		return "wave bank"
	case AssetTypeSoundBank:
		return "sound bank"
	case AssetTypeWave:
		return "wave"
	case AssetTypeMIDI:
		return "midi"
	case AssetTypeSoundFont:
		return "sound font"
	}
	return "none"
}

// Extension returns the file extension used by assets of this type.
func (t AssetType) Extension() string {
	switch t {
	case AssetTypeWaveBank:
		return ".wavebank"
	case AssetTypeSoundBank:
		return ".soundbank"
	case AssetTypeWave:
		return ".wav"
	case AssetTypeMIDI:
		return ".mid"
	case AssetTypeSoundFont:
		return ".sf2"
	}
	return ""
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wavebank":
		return AssetTypeWaveBank
	case ".soundbank":
		return AssetTypeSoundBank
	case ".wav":
		return AssetTypeWave
	case ".mid", ".midi":
		return AssetTypeMIDI
	case ".sf2":
		return AssetTypeSoundFont
	default:
		return AssetTypeNone
	}
}

type Resource struct {
	Name     string
	FullPath string
	Type     AssetType
	Data     []byte
}

type Loader interface {
	Load(path string, assetType AssetType, name string) (*Resource, error)
	Unload(*Resource) error
}

// BinaryLoader reads the whole file.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, assetType AssetType, name string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%s `%s` is empty", assetType, path)
	}

	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     assetType,
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(r *Resource) error {
	r.Data = nil
	return nil
}
