package soundscape

import (
	"fmt"
	"strings"
)

// Mode controls how much of the soundscape is audible.
type Mode int

const (
	// ModeImmersive plays the emotion track plus the ambient loop.
	ModeImmersive Mode = iota

	// ModeRelaxed plays the emotion track only; the ambient loop is paused.
	ModeRelaxed

	// ModeSilent pauses everything.
	ModeSilent
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeImmersive:
		return "immersive"
	case ModeRelaxed:
		return "relaxed"
	case ModeSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immersive":
		return ModeImmersive, nil
	case "relaxed":
		return ModeRelaxed, nil
	case "silent":
		return ModeSilent, nil
	default:
		return 0, fmt.Errorf("soundscape: unknown mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m < ModeImmersive || m > ModeSilent {
		return nil, fmt.Errorf("soundscape: invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so modes can be
// written by name in YAML and JSON.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
