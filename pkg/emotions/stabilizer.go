package emotions

import (
	"log/slog"
	"sync"
	"time"
)

// Stabilizer owns the State and is its only writer.
type Stabilizer struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	logger *slog.Logger
}

// NewStabilizer creates a stabilizer in its initial state.
func NewStabilizer(cfg Config, logger *slog.Logger) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stabilizer{
		cfg:    cfg,
		state:  InitialState(cfg),
		logger: logger.With("component", "emotions.stabilizer"),
	}, nil
}

// Ingest folds an admitted sample into the state. It returns a copy of
// the new state and what happened.
func (s *Stabilizer) Ingest(sample Sample) (State, Outcome, error) {
	if sample.Label == "" {
		return s.State(), OutcomeRepeated, ErrEmptyLabel
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	s.mu.Lock()
	prevStable := s.state.Stable
	next, outcome := Transition(s.state, sample, s.cfg)
	s.state = next
	out := next.Clone()
	s.mu.Unlock()

	switch outcome {
	case OutcomePromoted:
		s.logger.Info("stable emotion changed",
			"from", prevStable,
			"to", out.Stable,
			"confidence", sample.Confidence,
		)
	default:
		s.logger.Debug("sample ingested",
			"label", out.Previous,
			"consistency", out.Consistency,
			"outcome", outcome.String(),
		)
	}
	return out, outcome, nil
}

// State returns a copy of the current state.
func (s *Stabilizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Stable returns the current stable emotion.
func (s *Stabilizer) Stable() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stable
}

// Reset returns to the initial state.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	s.state = InitialState(s.cfg)
	s.mu.Unlock()
}
