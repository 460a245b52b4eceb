// Package audioio provides looping, volume-controlled playback buffers.
//
// This package supports two backends:
//   - Speaker - beep decoding (mp3, wav, ogg) mixed onto the system output,
//     registered by importing pkg/audioio/speakerout
//   - Mock - CI/Testing without hardware
//
// The backend is selected from configuration; "auto" picks the speaker
// when it is registered and an output device can be opened.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the speaker and falls back to mock.
	BackendAuto Backend = "auto"
	// BackendSpeaker plays through the system output using beep.
	BackendSpeaker Backend = "speaker"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the output mixer rate in Hz. Tracks are resampled
	// to it on load.
	// Default: 44100
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// BufferDuration is the speaker buffer size.
	// Default: 100ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// AssetDir is prepended to relative track identifiers.
	AssetDir string `yaml:"asset_dir" json:"asset_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     44100,
		BufferDuration: 100 * time.Millisecond,
		AssetDir:       "assets",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendSpeaker, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per speaker buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
