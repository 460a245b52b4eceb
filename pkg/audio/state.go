package audio

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Slot names one of the two alternating track buffers.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

// Other returns the opposite slot.
func (s Slot) Other() Slot { return 1 - s }

func (s Slot) String() string {
	if s == SlotB {
		return "B"
	}
	return "A"
}

// MarshalText encodes the slot as "A" or "B".
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "A" or "B".
func (s *Slot) UnmarshalText(b []byte) error {
	switch string(b) {
	case "A", "a":
		*s = SlotA
	case "B", "b":
		*s = SlotB
	default:
		return fmt.Errorf("audio: unknown slot %q", b)
	}
	return nil
}

// State is a snapshot of playback.
type State struct {
	Active         Slot            `json:"active_buffer"`
	TrackID        string          `json:"track_id"`
	Playing        bool            `json:"playing"`
	Volume         float64         `json:"volume"`
	Mode           soundscape.Mode `json:"mode"`
	Crossfading    bool            `json:"crossfading"`
	Pending        string          `json:"pending_track,omitempty"`
	AmbientPlaying bool            `json:"ambient_playing"`
}

// Transition reports a finished or aborted crossfade.
type Transition struct {
	Track    string
	From, To Slot
	Err      error
	Started  time.Time
	Duration time.Duration
}
