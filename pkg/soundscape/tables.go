package soundscape

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Emotion labels understood by the default track table.
const (
	Happy    = "Happy"
	Sad      = "Sad"
	Angry    = "Angry"
	Neutral  = "Neutral"
	Surprise = "Surprise"
	Disgust  = "Disgust"
	Fear     = "Fear"
)

// Room identifiers of the default museum layout.
const (
	RoomEntrance      = "entrance"
	RoomRenaissance   = "renaissance"
	RoomImpressionism = "impressionism"
	RoomModern        = "modern"
	RoomSculpture     = "sculpture"
	RoomArchive       = "archive"
)

// RoomProfile is the per-room soundscape bias.
type RoomProfile struct {
	DefaultMode      Mode    `yaml:"mode" json:"mode"`
	VolumeAdjustment float64 `yaml:"volume_adjustment" json:"volume_adjustment"`
}

// Tables holds the static lookup data used by Policy.
type Tables struct {
	// Tracks maps an emotion label to an audio asset.
	Tracks map[string]string `yaml:"tracks" json:"tracks"`

	// Rooms maps a room identifier to its profile.
	Rooms map[string]RoomProfile `yaml:"rooms" json:"rooms"`

	// FallbackRoom is used for rooms missing from Rooms.
	FallbackRoom string `yaml:"fallback_room" json:"fallback_room"`

	// Ambient is the looped background asset for immersive mode.
	Ambient string `yaml:"ambient" json:"ambient"`
}

// DefaultTables returns the built-in museum tables.
//
// Surprise deliberately shares the Happy asset; there is no dedicated
// recording for it. Supply a "Surprise" entry to override.
func DefaultTables() Tables {
	return Tables{
		Tracks: map[string]string{
			Happy:    "happy.mp3",
			Sad:      "sad.mp3",
			Angry:    "angry.mp3",
			Neutral:  "neutral.mp3",
			Surprise: "happy.mp3",
			Disgust:  "disgust.mp3",
			Fear:     "fear.mp3",
		},
		Rooms: map[string]RoomProfile{
			RoomEntrance:      {DefaultMode: ModeImmersive, VolumeAdjustment: 0},
			RoomRenaissance:   {DefaultMode: ModeRelaxed, VolumeAdjustment: -0.1},
			RoomImpressionism: {DefaultMode: ModeImmersive, VolumeAdjustment: 0.05},
			RoomModern:        {DefaultMode: ModeImmersive, VolumeAdjustment: 0.1},
			RoomSculpture:     {DefaultMode: ModeRelaxed, VolumeAdjustment: -0.2},
			RoomArchive:       {DefaultMode: ModeSilent, VolumeAdjustment: -0.5},
		},
		FallbackRoom: RoomEntrance,
		Ambient:      "ambient.mp3",
	}
}

// Validate checks that the fallbacks the policy relies on exist.
func (t Tables) Validate() error {
	if t.Tracks[Neutral] == "" {
		return fmt.Errorf("soundscape: track table needs a %s entry", Neutral)
	}
	if _, ok := t.Rooms[t.FallbackRoom]; !ok {
		return fmt.Errorf("soundscape: fallback room %q not in room table", t.FallbackRoom)
	}
	for room, p := range t.Rooms {
		if p.VolumeAdjustment < -1 || p.VolumeAdjustment > 1 {
			return fmt.Errorf("soundscape: room %q volume_adjustment %.2f out of [-1,1]", room, p.VolumeAdjustment)
		}
	}
	return nil
}

// LoadTables reads YAML tables from r and layers them over DefaultTables.
// Entries present in the document replace the defaults key by key.
func LoadTables(r io.Reader) (Tables, error) {
	var doc Tables
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return Tables{}, fmt.Errorf("soundscape: decode tables: %w", err)
	}
	return Merge(DefaultTables(), doc), nil
}

// Merge layers override on top of base and returns the result.
// Track keys are normalized to capitalized emotion labels.
func Merge(base, override Tables) Tables {
	out := Tables{
		Tracks:       make(map[string]string, len(base.Tracks)),
		Rooms:        make(map[string]RoomProfile, len(base.Rooms)),
		FallbackRoom: base.FallbackRoom,
		Ambient:      base.Ambient,
	}
	for k, v := range base.Tracks {
		out.Tracks[NormalizeEmotion(k)] = v
	}
	for k, v := range override.Tracks {
		out.Tracks[NormalizeEmotion(k)] = v
	}
	for k, v := range base.Rooms {
		out.Rooms[strings.ToLower(k)] = v
	}
	for k, v := range override.Rooms {
		out.Rooms[strings.ToLower(k)] = v
	}
	if override.FallbackRoom != "" {
		out.FallbackRoom = strings.ToLower(override.FallbackRoom)
	}
	if override.Ambient != "" {
		out.Ambient = override.Ambient
	}
	return out
}

// NormalizeEmotion capitalizes a raw classifier label: "HAPPY " -> "Happy".
func NormalizeEmotion(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + strings.ToLower(label[size:])
}
