// Package camera grabs single still frames from a webcam.
//
// A Capturer acquires a stream for exactly one frame and always releases
// it before returning, on success or failure. Device access goes through
// the Source interface; pkg/camera/opencv provides the real backend.
package camera

import (
	"fmt"
	"time"
)

// Config holds capture parameters. Settle delay and quality are exposed
// because deployments disagree on them.
type Config struct {
	Width  int `json:"width" yaml:"width"`   // Requested frame width in pixels
	Height int `json:"height" yaml:"height"` // Requested frame height in pixels

	// Quality is the JPEG quality 1-100.
	Quality int `json:"quality" yaml:"quality"`

	// SettleDelay is how long to wait after the stream is ready so that
	// auto-exposure can converge.
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`

	// ReadyTimeout bounds the wait for the first frame with dimensions.
	ReadyTimeout time.Duration `json:"ready_timeout" yaml:"ready_timeout"`
}

// Limits for Validate.
const (
	MaxWidth        = 4096
	MaxHeight       = 2160
	MaxSettleDelay  = 30 * time.Second
	MaxReadyTimeout = 60 * time.Second
)

// DefaultConfig returns the quick preset.
func DefaultConfig() Config {
	return QuickConfig()
}

// Validate checks that values are within range.
func (c Config) Validate() error {
	var problems []string

	if c.Width < 160 || c.Width > MaxWidth {
		problems = append(problems, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		problems = append(problems, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Quality < 1 || c.Quality > 100 {
		problems = append(problems, "quality must be between 1 and 100")
	}
	if c.SettleDelay < 0 || c.SettleDelay > MaxSettleDelay {
		problems = append(problems, fmt.Sprintf("settle_delay must be between 0 and %v", MaxSettleDelay))
	}
	if c.ReadyTimeout <= 0 || c.ReadyTimeout > MaxReadyTimeout {
		problems = append(problems, fmt.Sprintf("ready_timeout must be between 0 and %v", MaxReadyTimeout))
	}

	if len(problems) > 0 {
		return fmt.Errorf("camera: invalid config: %v", problems)
	}
	return nil
}
