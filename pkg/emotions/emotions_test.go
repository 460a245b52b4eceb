package emotions

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-soundscape/internal/log"
)

func newTestStabilizer(t *testing.T) *Stabilizer {
	t.Helper()
	s, err := NewStabilizer(DefaultConfig(), log.Discard())
	if err != nil {
		t.Fatalf("NewStabilizer failed: %v", err)
	}
	return s
}

func sample(label string, confidence float64) Sample {
	return Sample{Label: label, Confidence: confidence, Timestamp: time.Now()}
}

func TestInitialState(t *testing.T) {
	s := newTestStabilizer(t)
	st := s.State()

	if st.Stable != "Neutral" || st.Previous != "Neutral" {
		t.Errorf("unexpected initial emotions: %+v", st)
	}
	if st.Consistency != 0 {
		t.Errorf("expected consistency 0, got %d", st.Consistency)
	}
	if !reflect.DeepEqual(st.History, []string{"Neutral"}) {
		t.Errorf("unexpected initial history: %v", st.History)
	}
	if st.Phase() != PhaseSettled {
		t.Errorf("expected settled phase, got %v", st.Phase())
	}
}

func TestPromotesAfterTwoConsistentSamples(t *testing.T) {
	s := newTestStabilizer(t)

	st, outcome, err := s.Ingest(sample("Sad", 50))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if outcome != OutcomeReset || st.Stable != "Neutral" {
		t.Fatalf("first sample should only reset: outcome=%v state=%+v", outcome, st)
	}
	if st.Phase() != PhaseTracking {
		t.Errorf("expected tracking phase, got %v", st.Phase())
	}

	st, outcome, _ = s.Ingest(sample("Sad", 55))
	if outcome != OutcomePromoted {
		t.Fatalf("expected promotion, got %v", outcome)
	}
	if st.Stable != "Sad" {
		t.Errorf("expected stable Sad, got %q", st.Stable)
	}
	if st.History[len(st.History)-1] != "Sad" {
		t.Errorf("history should end with stable emotion: %v", st.History)
	}
	if st.LastUpdate.IsZero() {
		t.Error("expected LastUpdate to be set on promotion")
	}
}

func TestSingleNoisyFramesNeverPromote(t *testing.T) {
	sequences := [][]string{
		{"Happy", "Sad", "Happy"},
		{"Angry", "Neutral", "Angry", "Neutral", "Angry"},
		{"Fear", "Surprise", "Disgust", "Happy", "Sad"},
	}

	for i, seq := range sequences {
		t.Run(fmt.Sprintf("seq%d", i), func(t *testing.T) {
			s := newTestStabilizer(t)
			before := s.State().Stable
			for _, label := range seq {
				st, _, _ := s.Ingest(sample(label, 40))
				if st.Stable != before {
					t.Fatalf("stable changed to %q after non-repeated label %q", st.Stable, label)
				}
			}
		})
	}
}

func TestRepeatedStableLabelDoesNotRepromote(t *testing.T) {
	s := newTestStabilizer(t)
	s.Ingest(sample("Happy", 50))
	s.Ingest(sample("Happy", 50))

	for i := 0; i < 5; i++ {
		st, outcome, _ := s.Ingest(sample("happy", 60))
		if outcome == OutcomePromoted {
			t.Fatalf("re-promoted already stable label on iteration %d", i)
		}
		if len(st.History) != 2 {
			t.Fatalf("history grew without promotion: %v", st.History)
		}
	}
}

func TestLabelsAreCapitalized(t *testing.T) {
	s := newTestStabilizer(t)
	s.Ingest(sample("happy", 50))
	st, outcome, _ := s.Ingest(sample("HAPPY", 50))

	if outcome != OutcomePromoted || st.Stable != "Happy" {
		t.Errorf("expected promotion to Happy, got %v %q", outcome, st.Stable)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := newTestStabilizer(t)

	var promoted []string
	for i := 0; i < 10; i++ {
		label := fmt.Sprintf("Mood%d", i)
		s.Ingest(sample(label, 80))
		st, outcome, _ := s.Ingest(sample(label, 80))
		if outcome != OutcomePromoted {
			t.Fatalf("expected promotion of %s", label)
		}
		promoted = append(promoted, st.Stable)
	}

	st := s.State()
	if len(st.History) != 5 {
		t.Fatalf("expected history length 5, got %d (%v)", len(st.History), st.History)
	}
	if !reflect.DeepEqual(st.History, promoted[len(promoted)-5:]) {
		t.Errorf("history = %v, want %v", st.History, promoted[len(promoted)-5:])
	}
}

func TestTransitionIsPure(t *testing.T) {
	cfg := DefaultConfig()
	s0 := InitialState(cfg)
	s1, _ := Transition(s0, sample("Sad", 50), cfg)
	s2, outcome := Transition(s1, sample("Sad", 50), cfg)

	if outcome != OutcomePromoted {
		t.Fatalf("expected promotion, got %v", outcome)
	}
	if s0.Stable != "Neutral" || len(s0.History) != 1 {
		t.Errorf("input state mutated: %+v", s0)
	}
	if s1.Stable != "Neutral" || len(s1.History) != 1 {
		t.Errorf("intermediate state mutated: %+v", s1)
	}
	if s2.Stable != "Sad" {
		t.Errorf("expected Sad, got %q", s2.Stable)
	}
}

func TestTransitionCustomThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Required = 3
	st := InitialState(cfg)

	for i, want := range []Outcome{OutcomeReset, OutcomeRepeated, OutcomePromoted} {
		var got Outcome
		st, got = Transition(st, sample("Angry", 70), cfg)
		if got != want {
			t.Fatalf("step %d: outcome = %v, want %v", i, got, want)
		}
	}
	if st.Stable != "Angry" {
		t.Errorf("expected Angry, got %q", st.Stable)
	}
}

func TestIngestEmptyLabel(t *testing.T) {
	s := newTestStabilizer(t)
	before := s.State()
	_, _, err := s.Ingest(Sample{Confidence: 90})
	if err != ErrEmptyLabel {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
	if !reflect.DeepEqual(before, s.State()) {
		t.Error("state changed on empty label")
	}
}

func TestStateReturnsCopy(t *testing.T) {
	s := newTestStabilizer(t)
	st := s.State()
	st.History[0] = "Tampered"
	if s.State().History[0] != "Neutral" {
		t.Error("State() leaked internal history slice")
	}
}

func TestConcurrentIngestSingleWriter(t *testing.T) {
	s := newTestStabilizer(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Ingest(sample("Happy", 60))
		}()
	}
	wg.Wait()

	st := s.State()
	if st.Consistency != 50 {
		t.Errorf("expected 50 consistent samples, got %d", st.Consistency)
	}
	if st.Stable != "Happy" {
		t.Errorf("expected Happy, got %q", st.Stable)
	}
	if len(st.History) != 2 {
		t.Errorf("expected exactly one promotion, history=%v", st.History)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Required: 0, HistorySize: 5, Initial: "Neutral"},
		{Required: 2, HistorySize: 0, Initial: "Neutral"},
		{Required: 2, HistorySize: 5, Initial: ""},
	}
	for _, cfg := range bad {
		if _, err := NewStabilizer(cfg, nil); err != ErrInvalidConfig {
			t.Errorf("NewStabilizer(%+v) err = %v, want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestReset(t *testing.T) {
	s := newTestStabilizer(t)
	s.Ingest(sample("Fear", 90))
	s.Ingest(sample("Fear", 90))
	s.Reset()
	if s.Stable() != "Neutral" {
		t.Errorf("expected Neutral after reset, got %q", s.Stable())
	}
}
