// Package pipeline runs the capture cycle: gate, frame, classify,
// stabilize, resolve, play. It also owns the visitor controls and the
// read model served to the mood monitor.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-soundscape/pkg/classifier"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Config holds pipeline configuration.
type Config struct {
	// Interval between capture cycles.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// CycleTimeout bounds a whole cycle, capture plus classification.
	CycleTimeout time.Duration `yaml:"cycle_timeout" json:"cycle_timeout"`

	// MinConfidence drops readings below this percentage.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	// MaxBackoffTicks caps how many ticks are skipped after repeated
	// network failures.
	MaxBackoffTicks int `yaml:"max_backoff_ticks" json:"max_backoff_ticks"`

	// BaseVolume is the master volume before room adjustment.
	BaseVolume float64 `yaml:"base_volume" json:"base_volume"`

	// InitialRoom is the room assumed until SetRoom is called.
	InitialRoom string `yaml:"initial_room" json:"initial_room"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        20 * time.Second,
		CycleTimeout:    45 * time.Second,
		MinConfidence:   classifier.DefaultMinConfidence,
		MaxBackoffTicks: 4,
		BaseVolume:      0.7,
		InitialRoom:     soundscape.RoomEntrance,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("pipeline: interval must be positive, got %v", c.Interval)
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("pipeline: cycle timeout must be positive, got %v", c.CycleTimeout)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("pipeline: min confidence %.2f out of [0,100]", c.MinConfidence)
	}
	if c.MaxBackoffTicks < 0 {
		return fmt.Errorf("pipeline: max backoff ticks must not be negative")
	}
	if c.BaseVolume < 0 || c.BaseVolume > 1 {
		return fmt.Errorf("pipeline: base volume %.2f out of [0,1]", c.BaseVolume)
	}
	return nil
}
