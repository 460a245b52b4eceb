package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// File is the YAML settings document. Zero values mean "use the
// built-in default".
type File struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Server struct {
		Addr      string `yaml:"addr"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	Capture struct {
		Interval        time.Duration `yaml:"interval"`
		MaxBackoffTicks int           `yaml:"max_backoff_ticks"`
		InitialRoom     string        `yaml:"initial_room"`
	} `yaml:"capture"`

	Camera struct {
		Preset      string        `yaml:"preset"`
		Width       int           `yaml:"width"`
		Height      int           `yaml:"height"`
		Quality     int           `yaml:"quality"`
		SettleDelay time.Duration `yaml:"settle_delay"`
	} `yaml:"camera"`

	Classifier struct {
		Endpoint      string        `yaml:"endpoint"`
		ModelName     string        `yaml:"model_name"`
		MinConfidence *float64      `yaml:"min_confidence"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Audio struct {
		Backend      string        `yaml:"backend"`
		AssetDir     string        `yaml:"asset_dir"`
		Crossfade    time.Duration `yaml:"crossfade"`
		Steps        int           `yaml:"steps"`
		AmbientLevel float64       `yaml:"ambient_level"`
		BaseVolume   *float64      `yaml:"base_volume"`
	} `yaml:"audio"`

	Soundscape soundscape.Tables `yaml:"soundscape"`
}

// Load reads the settings file at path. A missing file yields an empty
// document.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a settings document.
func Decode(r io.Reader) (*File, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &doc, nil
}

// Tables returns the soundscape tables layered over the defaults.
func (f *File) Tables() soundscape.Tables {
	return soundscape.Merge(soundscape.DefaultTables(), f.Soundscape)
}

// OrPtr returns *p, or def when p is nil. Used for settings where zero
// is a meaningful value.
func OrPtr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Or returns v unless it is the zero value, in which case def.
func Or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
