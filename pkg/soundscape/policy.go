// Package soundscape maps the stable emotion and the visitor's current
// room to the track, volume and mode the audio engine should use.
package soundscape

import (
	"strings"
)

// Preferences are the visitor-controlled inputs to Resolve.
type Preferences struct {
	// BaseVolume is the master volume before room adjustment (0..1).
	BaseVolume float64

	// ModeOverride, when set, wins over the room default. Room and
	// emotion changes never clear it.
	ModeOverride *Mode
}

// Selection is the result of resolving a soundscape.
type Selection struct {
	Emotion    string  `json:"emotion"`
	Room       string  `json:"room"`
	TrackID    string  `json:"track_id"`
	Volume     float64 `json:"volume"`
	Mode       Mode    `json:"mode"`
	Overridden bool    `json:"mode_overridden"`
}

// Policy resolves selections from read-only tables.
// It is safe for concurrent use.
type Policy struct {
	tables Tables
}

// NewPolicy validates the tables and returns a Policy.
func NewPolicy(t Tables) (*Policy, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Policy{tables: Merge(t, Tables{})}, nil
}

// Tables returns a copy of the tables in use.
func (p *Policy) Tables() Tables {
	return Merge(p.tables, Tables{})
}

// Track returns the asset for an emotion, falling back to Neutral.
func (p *Policy) Track(emotion string) string {
	if track, ok := p.tables.Tracks[NormalizeEmotion(emotion)]; ok && track != "" {
		return track
	}
	return p.tables.Tracks[Neutral]
}

// Room returns the profile for a room and the identifier actually used,
// falling back to the configured fallback room.
func (p *Policy) Room(room string) (string, RoomProfile) {
	key := strings.ToLower(strings.TrimSpace(room))
	if profile, ok := p.tables.Rooms[key]; ok {
		return key, profile
	}
	return p.tables.FallbackRoom, p.tables.Rooms[p.tables.FallbackRoom]
}

// Ambient returns the ambient loop asset.
func (p *Policy) Ambient() string {
	return p.tables.Ambient
}

// Resolve picks the track, effective volume and mode.
func (p *Policy) Resolve(stableEmotion, currentRoom string, prefs Preferences) Selection {
	emotion := NormalizeEmotion(stableEmotion)
	if _, ok := p.tables.Tracks[emotion]; !ok {
		emotion = Neutral
	}
	room, profile := p.Room(currentRoom)

	sel := Selection{
		Emotion: emotion,
		Room:    room,
		TrackID: p.Track(emotion),
		Volume:  Clamp01(prefs.BaseVolume + profile.VolumeAdjustment),
		Mode:    profile.DefaultMode,
	}
	if prefs.ModeOverride != nil {
		sel.Mode = *prefs.ModeOverride
		sel.Overridden = true
	}
	return sel
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
