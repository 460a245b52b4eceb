// Package emotions turns a noisy stream of classifier readings into a
// stable emotion.
//
// A newly observed label is only trusted after it has been reported by
// consecutive samples. The transition function is pure (Transition) and
// Stabilizer wraps it with a mutex so there is exactly one writer.
package emotions

import "time"

// Sample is one admitted classifier reading.
type Sample struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"` // 0..100
	Timestamp  time.Time `json:"timestamp"`
}

// Phase is the tag of the stabilizer state.
type Phase int

const (
	// PhaseSettled means the last reading agrees with the stable emotion.
	PhaseSettled Phase = iota

	// PhaseTracking means a candidate different from the stable emotion
	// is being counted.
	PhaseTracking
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSettled:
		return "settled"
	case PhaseTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Outcome tells what a single Transition did.
type Outcome int

const (
	// OutcomeReset means the label differed from the previous one and the
	// consistency counter restarted at 1.
	OutcomeReset Outcome = iota

	// OutcomeRepeated means the label matched the previous one but did not
	// cause a promotion.
	OutcomeRepeated

	// OutcomePromoted means the label became the new stable emotion.
	OutcomePromoted
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeReset:
		return "reset"
	case OutcomeRepeated:
		return "repeated"
	case OutcomePromoted:
		return "promoted"
	default:
		return "unknown"
	}
}

// State is the stabilizer state.
type State struct {
	Previous    string    `json:"previous"`
	Stable      string    `json:"stable"`
	Consistency int       `json:"consistency"`
	History     []string  `json:"history"`
	LastUpdate  time.Time `json:"last_update"`
}

// Phase derives the state tag.
func (s State) Phase() Phase {
	if s.Previous == s.Stable {
		return PhaseSettled
	}
	return PhaseTracking
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.History = append([]string(nil), s.History...)
	return out
}

// Config tunes the stabilizer.
type Config struct {
	// Required is the number of consecutive identical labels needed to
	// promote (default: 2).
	Required int

	// HistorySize bounds the promotion history (default: 5).
	HistorySize int

	// Initial is the starting stable emotion (default: "Neutral").
	Initial string
}

// DefaultConfig returns the stabilizer defaults.
func DefaultConfig() Config {
	return Config{
		Required:    2,
		HistorySize: 5,
		Initial:     "Neutral",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Required < 1 {
		return ErrInvalidConfig
	}
	if c.HistorySize < 1 {
		return ErrInvalidConfig
	}
	if c.Initial == "" {
		return ErrInvalidConfig
	}
	return nil
}
