package pipeline

import (
	"time"

	"github.com/teslashibe/go-soundscape/pkg/audio"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Snapshot is the mood monitor read model.
type Snapshot struct {
	StableEmotion  string    `json:"stable_emotion"`
	Previous       string    `json:"previous_emotion"`
	Consistency    int       `json:"consistency"`
	History        []string  `json:"history"`
	LastUpdate     time.Time `json:"last_update"`
	LastLabel      string    `json:"last_label,omitempty"`
	LastConfidence float64   `json:"last_confidence"`

	Room           string          `json:"room"`
	Mode           soundscape.Mode `json:"mode"`
	ModeOverridden bool            `json:"mode_overridden"`
	BaseVolume     float64         `json:"base_volume"`
	TrackID        string          `json:"track_id"`
	Playback       audio.State     `json:"playback"`

	Interacted     bool     `json:"interacted"`
	PendingIntents []string `json:"pending_intents,omitempty"`
	CameraNotice   string   `json:"camera_notice,omitempty"`

	Cycles      int       `json:"cycles"`
	Failures    int       `json:"failures"`
	Dropped     int       `json:"dropped"`
	SkipTicks   int       `json:"skip_ticks"`
	LastError   string    `json:"last_error,omitempty"`
	LastCycleID string    `json:"last_cycle_id,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
}

// Cycle is the outcome of one capture cycle.
type Cycle struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence"`
	Dropped    bool      `json:"dropped"`
	Promoted   bool      `json:"promoted"`
	Stable     string    `json:"stable_emotion"`
}
