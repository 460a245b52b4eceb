package emotions

import (
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// InitialState returns the state a session starts in.
func InitialState(cfg Config) State {
	initial := soundscape.NormalizeEmotion(cfg.Initial)
	return State{
		Previous:    initial,
		Stable:      initial,
		Consistency: 0,
		History:     []string{initial},
	}
}

// Transition folds one sample into s and returns the new state.
// s is not modified. Labels are compared after capitalization.
func Transition(s State, sample Sample, cfg Config) (State, Outcome) {
	next := s.Clone()
	label := soundscape.NormalizeEmotion(sample.Label)

	if label != next.Previous {
		next.Previous = label
		next.Consistency = 1
		return next, OutcomeReset
	}

	next.Consistency++
	if next.Consistency < cfg.Required || label == next.Stable {
		return next, OutcomeRepeated
	}

	next.Stable = label
	next.History = append(next.History, label)
	if over := len(next.History) - cfg.HistorySize; over > 0 {
		next.History = append([]string(nil), next.History[over:]...)
	}
	next.LastUpdate = sample.Timestamp
	return next, OutcomePromoted
}
