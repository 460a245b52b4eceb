// Package audio implements the crossfading soundscape engine: two
// alternating track buffers and one ambient loop.
package audio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Config holds engine configuration.
type Config struct {
	// Duration is the total crossfade time.
	Duration time.Duration `yaml:"duration" json:"duration"`

	// Steps is the number of discrete volume steps in a crossfade.
	Steps int `yaml:"steps" json:"steps"`

	// LoadAttempts bounds how many times readiness is polled.
	LoadAttempts int `yaml:"load_attempts" json:"load_attempts"`

	// LoadPoll is the delay between readiness polls.
	LoadPoll time.Duration `yaml:"load_poll" json:"load_poll"`

	// AmbientTrack is looped underneath in immersive mode.
	AmbientTrack string `yaml:"ambient_track" json:"ambient_track"`

	// AmbientLevel scales the master volume for the ambient loop.
	AmbientLevel float64 `yaml:"ambient_level" json:"ambient_level"`

	// Volume is the initial master volume.
	Volume float64 `yaml:"volume" json:"volume"`

	// Mode is the initial playback mode.
	Mode soundscape.Mode `yaml:"mode" json:"mode"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns the engine defaults: 1.5s in 15 steps.
func DefaultConfig() Config {
	return Config{
		Duration:     1500 * time.Millisecond,
		Steps:        15,
		LoadAttempts: 10,
		LoadPoll:     100 * time.Millisecond,
		AmbientTrack: "ambient.mp3",
		AmbientLevel: 0.3,
		Volume:       0.7,
		Mode:         soundscape.ModeImmersive,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive", ErrInvalidConfig)
	}
	if c.LoadAttempts <= 0 || c.LoadPoll <= 0 {
		return fmt.Errorf("%w: load polling must be positive", ErrInvalidConfig)
	}
	if c.AmbientLevel < 0 || c.AmbientLevel > 1 {
		return fmt.Errorf("%w: ambient level %.2f out of [0,1]", ErrInvalidConfig, c.AmbientLevel)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("%w: volume %.2f out of [0,1]", ErrInvalidConfig, c.Volume)
	}
	return nil
}

// StepInterval is the delay between crossfade steps.
func (c *Config) StepInterval() time.Duration {
	return c.Duration / time.Duration(c.Steps)
}
