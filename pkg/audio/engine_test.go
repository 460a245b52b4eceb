package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-soundscape/internal/log"
	"github.com/teslashibe/go-soundscape/pkg/audioio"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

type testRig struct {
	engine  *Engine
	a, b    *audioio.MockBuffer
	ambient *audioio.MockBuffer

	mu          sync.Mutex
	transitions []Transition
}

func newRig(t *testing.T, modify func(*Config)) *testRig {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Duration = 30 * time.Millisecond
	cfg.Steps = 3
	cfg.LoadPoll = time.Millisecond
	cfg.Logger = log.Discard()
	if modify != nil {
		modify(&cfg)
	}

	r := &testRig{
		a:       audioio.NewMockBuffer("a"),
		b:       audioio.NewMockBuffer("b"),
		ambient: audioio.NewMockBuffer("ambient"),
	}
	e, err := NewEngine(cfg, r.a, r.b, r.ambient)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.OnTransition = func(tr Transition) {
		r.mu.Lock()
		r.transitions = append(r.transitions, tr)
		r.mu.Unlock()
	}
	r.engine = e
	t.Cleanup(func() { e.Close() })
	return r
}

func (r *testRig) completed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, tr := range r.transitions {
		if tr.Err == nil {
			out = append(out, tr.Track)
		}
	}
	return out
}

func (r *testRig) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transitions) == 0 {
		return nil
	}
	return r.transitions[len(r.transitions)-1].Err
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func TestTransitionFlipsActiveBuffer(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	if err := e.TransitionTo("happy.mp3"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	waitIdle(t, e)

	s := e.State()
	if s.Active != SlotB || s.TrackID != "happy.mp3" || !s.Playing || s.Crossfading {
		t.Fatalf("unexpected state after first transition: %+v", s)
	}
	if r.b.Volume() != 0.7 {
		t.Errorf("incoming volume = %v, want 0.7", r.b.Volume())
	}

	if err := e.TransitionTo("sad.mp3"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	waitIdle(t, e)

	s = e.State()
	if s.Active != SlotA || s.TrackID != "sad.mp3" {
		t.Fatalf("unexpected state after second transition: %+v", s)
	}
	if r.b.Playing() {
		t.Error("outgoing buffer should be paused")
	}
	if r.b.Volume() != 0 {
		t.Errorf("outgoing volume = %v, want 0", r.b.Volume())
	}
	if r.b.Stats().Rewinds == 0 {
		t.Error("outgoing buffer should be rewound")
	}
	if !r.a.Playing() || r.a.Volume() != 0.7 {
		t.Errorf("incoming buffer playing=%v volume=%v", r.a.Playing(), r.a.Volume())
	}
}

func TestRampIsStepped(t *testing.T) {
	r := newRig(t, func(c *Config) { c.Steps = 5; c.Duration = 25 * time.Millisecond; c.Volume = 1 })
	r.engine.TransitionTo("happy.mp3")
	waitIdle(t, r.engine)

	vols := r.b.Stats().Volumes
	// NewEngine and the pre-load reset write zeros first.
	var ramp []float64
	for _, v := range vols {
		if v > 0 {
			ramp = append(ramp, v)
		}
	}
	want := []float64{0.2, 0.4, 0.6, 0.8, 1, 1}
	if len(ramp) != len(want) {
		t.Fatalf("ramp = %v, want %v", ramp, want)
	}
	for i := range want {
		if diff := ramp[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("step %d = %v, want %v", i, ramp[i], want[i])
		}
	}
	for i := 1; i < len(ramp); i++ {
		if ramp[i] < ramp[i-1] {
			t.Errorf("ramp not monotonic: %v", ramp)
		}
	}
}

func TestPendingTrackOverwrite(t *testing.T) {
	r := newRig(t, func(c *Config) { c.Duration = 150 * time.Millisecond; c.Steps = 10 })
	e := r.engine

	if err := e.TransitionTo("happy.mp3"); err != nil {
		t.Fatalf("TransitionTo happy: %v", err)
	}
	if err := e.TransitionTo("sad.mp3"); !errors.Is(err, ErrTransitionQueued) {
		t.Fatalf("TransitionTo sad: got %v, want ErrTransitionQueued", err)
	}
	if err := e.TransitionTo("angry.mp3"); !errors.Is(err, ErrTransitionQueued) {
		t.Fatalf("TransitionTo angry: got %v, want ErrTransitionQueued", err)
	}
	if p := e.State().Pending; p != "angry.mp3" {
		t.Errorf("pending = %q, want angry.mp3", p)
	}

	waitIdle(t, e)

	got := r.completed()
	want := []string{"happy.mp3", "angry.mp3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("completed crossfades = %v, want %v", got, want)
	}
	s := e.State()
	if s.TrackID != "angry.mp3" || s.Pending != "" || s.Crossfading {
		t.Errorf("unexpected final state %+v", s)
	}
}

func TestQueuedTrackRunsExactlyOnce(t *testing.T) {
	r := newRig(t, func(c *Config) { c.Duration = 100 * time.Millisecond; c.Steps = 5 })
	e := r.engine

	e.TransitionTo("happy.mp3")
	waitIdle(t, e)

	e.TransitionTo("sad.mp3")
	e.TransitionTo("fear.mp3")
	waitIdle(t, e)

	count := 0
	for _, tr := range r.completed() {
		if tr == "fear.mp3" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("fear.mp3 completed %d times, want 1 (%v)", count, r.completed())
	}
}

func TestSameTrackIsNoop(t *testing.T) {
	r := newRig(t, nil)
	r.engine.TransitionTo("happy.mp3")
	waitIdle(t, r.engine)

	if err := r.engine.TransitionTo("happy.mp3"); err != nil {
		t.Fatalf("TransitionTo same: %v", err)
	}
	if r.engine.State().Crossfading {
		t.Error("same track should not start a crossfade")
	}
	if n := len(r.completed()); n != 1 {
		t.Errorf("completed %d crossfades, want 1", n)
	}
}

func TestLoadTimeoutKeepsOldBuffer(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	e.TransitionTo("happy.mp3")
	waitIdle(t, e)

	// Slot A is next and never becomes ready.
	r.a.ReadyAfter = -1
	if err := e.TransitionTo("sad.mp3"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	waitIdle(t, e)

	err := r.lastErr()
	if !errors.Is(err, ErrLoadTimeout) {
		t.Fatalf("transition err = %v, want ErrLoadTimeout", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.Slot != SlotA || te.Track != "sad.mp3" {
		t.Errorf("unexpected TransitionError %+v", te)
	}

	s := e.State()
	if s.Active != SlotB || s.TrackID != "happy.mp3" || !s.Playing {
		t.Errorf("old track should keep playing, state %+v", s)
	}
	if !r.b.Playing() || r.b.Volume() != 0.7 {
		t.Errorf("old buffer disturbed: playing=%v volume=%v", r.b.Playing(), r.b.Volume())
	}
}

func TestPlaybackStartFailureKeepsOldBuffer(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	e.TransitionTo("happy.mp3")
	waitIdle(t, e)

	r.a.PlayErr = errors.New("autoplay blocked")
	e.TransitionTo("sad.mp3")
	waitIdle(t, e)

	if err := r.lastErr(); !errors.Is(err, ErrPlaybackStart) {
		t.Fatalf("transition err = %v, want ErrPlaybackStart", err)
	}
	if s := e.State(); s.Active != SlotB || s.TrackID != "happy.mp3" {
		t.Errorf("state changed after failure: %+v", s)
	}
	if !r.b.Playing() {
		t.Error("old buffer should still be playing")
	}

	// Recovery on the next request.
	r.a.PlayErr = nil
	e.TransitionTo("sad.mp3")
	waitIdle(t, e)
	if s := e.State(); s.TrackID != "sad.mp3" || s.Active != SlotA {
		t.Errorf("retry did not land: %+v", s)
	}
}

func TestLoadErrorIsPlaybackStart(t *testing.T) {
	r := newRig(t, nil)
	r.b.LoadErr = errors.New("no such file")
	r.engine.TransitionTo("missing.mp3")
	waitIdle(t, r.engine)

	if err := r.lastErr(); !errors.Is(err, ErrPlaybackStart) {
		t.Fatalf("err = %v, want ErrPlaybackStart", err)
	}
	if s := r.engine.State(); s.TrackID != "" || s.Playing {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestSilentModePausesEverything(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	e.SetMode(soundscape.ModeImmersive)
	e.TransitionTo("happy.mp3")
	waitIdle(t, e)
	if !r.ambient.Playing() || !r.b.Playing() {
		t.Fatal("expected ambient and track playing before silent")
	}

	e.SetMode(soundscape.ModeSilent)
	for _, b := range []*audioio.MockBuffer{r.a, r.b, r.ambient} {
		if b.Playing() {
			t.Errorf("buffer %s still playing in silent mode", b.Name())
		}
	}
	s := e.State()
	if s.Playing || s.AmbientPlaying {
		t.Errorf("state reports playback in silent mode: %+v", s)
	}

	// Tracks requested while silent are parked.
	if err := e.TransitionTo("sad.mp3"); err != nil {
		t.Fatalf("TransitionTo in silent: %v", err)
	}
	if s := e.State(); s.Crossfading || s.Pending != "sad.mp3" {
		t.Errorf("silent transition should park, state %+v", s)
	}

	e.SetMode(soundscape.ModeRelaxed)
	waitIdle(t, e)
	if s := e.State(); s.TrackID != "sad.mp3" || !s.Playing {
		t.Errorf("parked track not started after leaving silent: %+v", s)
	}
	if r.ambient.Playing() {
		t.Error("ambient should stay paused in relaxed mode")
	}
}

func TestSilentDuringCrossfade(t *testing.T) {
	r := newRig(t, func(c *Config) { c.Duration = 100 * time.Millisecond; c.Steps = 10 })
	e := r.engine

	e.TransitionTo("happy.mp3")
	time.Sleep(20 * time.Millisecond)
	e.SetMode(soundscape.ModeSilent)
	waitIdle(t, e)

	if r.a.Playing() || r.b.Playing() {
		t.Error("no buffer should play after silent mid-crossfade")
	}
	if e.State().Playing {
		t.Error("state should report not playing")
	}
}

func TestSilentWhileLoadingNeverPlays(t *testing.T) {
	r := newRig(t, func(c *Config) { c.LoadPoll = 20 * time.Millisecond })
	r.b.ReadyAfter = 3
	e := r.engine
	e.SetMode(soundscape.ModeRelaxed)

	if err := e.TransitionTo("happy.mp3"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	e.SetMode(soundscape.ModeSilent)
	waitIdle(t, e)

	if got := r.b.Stats().Plays; got != 0 {
		t.Fatalf("incoming buffer played %d times while silent", got)
	}
	if r.b.Playing() || r.b.Volume() != 0 {
		t.Errorf("incoming buffer playing=%v volume=%v, want paused and muted", r.b.Playing(), r.b.Volume())
	}
	st := e.State()
	if st.Pending != "happy.mp3" || st.TrackID != "" {
		t.Errorf("state = %+v, want happy.mp3 parked", st)
	}
	if got := r.completed(); len(got) != 0 {
		t.Errorf("completed = %v, want none", got)
	}

	e.SetMode(soundscape.ModeRelaxed)
	waitIdle(t, e)
	st = e.State()
	if st.TrackID != "happy.mp3" || !st.Playing || st.Pending != "" {
		t.Errorf("after resume state = %+v", st)
	}
}

func TestAmbientFollowsMasterVolume(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	e.SetMode(soundscape.ModeImmersive)
	if !r.ambient.Playing() {
		t.Fatal("ambient should play in immersive mode")
	}
	if got := r.ambient.Source(); got != "ambient.mp3" {
		t.Errorf("ambient source = %q", got)
	}
	if got := r.ambient.Volume(); got < 0.21-1e-9 || got > 0.21+1e-9 {
		t.Errorf("ambient volume = %v, want 0.21", got)
	}

	e.SetVolume(0.5)
	if got := r.ambient.Volume(); got < 0.15-1e-9 || got > 0.15+1e-9 {
		t.Errorf("ambient volume = %v, want 0.15", got)
	}

	e.SetMode(soundscape.ModeRelaxed)
	if r.ambient.Playing() {
		t.Error("relaxed mode should pause ambient")
	}

	// Re-entering immersive does not reload.
	e.SetMode(soundscape.ModeImmersive)
	if n := len(r.ambient.Stats().Loads); n != 1 {
		t.Errorf("ambient loaded %d times, want 1", n)
	}
}

func TestSetVolumeAppliesImmediately(t *testing.T) {
	r := newRig(t, nil)
	e := r.engine

	e.TransitionTo("happy.mp3")
	waitIdle(t, e)

	e.SetVolume(0.4)
	if got := r.b.Volume(); got != 0.4 {
		t.Errorf("active volume = %v, want 0.4", got)
	}
	e.SetVolume(3)
	if got := e.State().Volume; got != 1 {
		t.Errorf("volume = %v, want clamped 1", got)
	}
}

func TestCloseReleasesBuffers(t *testing.T) {
	r := newRig(t, func(c *Config) { c.Duration = time.Second; c.Steps = 10 })
	e := r.engine

	e.SetMode(soundscape.ModeImmersive)
	e.TransitionTo("happy.mp3")

	done := make(chan error, 1)
	go func() { done <- e.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not interrupt the crossfade")
	}

	for _, b := range []*audioio.MockBuffer{r.a, r.b, r.ambient} {
		if !b.Closed() || b.Playing() {
			t.Errorf("buffer %s not released", b.Name())
		}
	}
	if err := e.TransitionTo("sad.mp3"); !errors.Is(err, ErrClosed) {
		t.Errorf("TransitionTo after Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	if got := cfg.StepInterval(); got != 100*time.Millisecond {
		t.Errorf("StepInterval = %v, want 100ms", got)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"zero steps", func(c *Config) { c.Steps = 0 }},
		{"no attempts", func(c *Config) { c.LoadAttempts = 0 }},
		{"ambient level", func(c *Config) { c.AmbientLevel = 1.5 }},
		{"volume", func(c *Config) { c.Volume = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSlotText(t *testing.T) {
	var s Slot
	if err := s.UnmarshalText([]byte("B")); err != nil || s != SlotB {
		t.Errorf("UnmarshalText(B) = %v, %v", s, err)
	}
	if SlotA.Other() != SlotB || SlotB.Other() != SlotA {
		t.Error("Other is not symmetric")
	}
	if err := s.UnmarshalText([]byte("C")); err == nil {
		t.Error("expected error for unknown slot")
	}
}
