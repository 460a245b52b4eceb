package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-soundscape/internal/log"
	"github.com/teslashibe/go-soundscape/pkg/audio"
	"github.com/teslashibe/go-soundscape/pkg/classifier"
	"github.com/teslashibe/go-soundscape/pkg/emotions"
	"github.com/teslashibe/go-soundscape/pkg/gate"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// fakeCamera returns a fixed frame, or whatever CaptureFunc decides.
type fakeCamera struct {
	CaptureFunc func(ctx context.Context) ([]byte, error)

	mu     sync.Mutex
	calls  int
	closes int
}

func (f *fakeCamera) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeCamera) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeCamera) CaptureFrame(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.CaptureFunc != nil {
		return f.CaptureFunc(ctx)
	}
	return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
}

func (f *fakeCamera) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEngine records what the pipeline asks of the audio engine.
type fakeEngine struct {
	mu          sync.Mutex
	tracks      []string
	modes       []soundscape.Mode
	volumes     []float64
	state       audio.State
	closed      bool
	transitionE error
}

func (f *fakeEngine) TransitionTo(track string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, track)
	if f.transitionE != nil {
		return f.transitionE
	}
	f.state.TrackID = track
	f.state.Playing = f.state.Mode != soundscape.ModeSilent
	return nil
}

func (f *fakeEngine) SetMode(m soundscape.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, m)
	f.state.Mode = m
}

func (f *fakeEngine) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
	f.state.Volume = v
}

func (f *fakeEngine) State() audio.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) lastTrack() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tracks) == 0 {
		return ""
	}
	return f.tracks[len(f.tracks)-1]
}

func (f *fakeEngine) lastMode() soundscape.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Mode
}

func (f *fakeEngine) lastVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Volume
}

func (f *fakeEngine) trackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracks)
}

type rig struct {
	p      *Pipeline
	gate   *gate.Gate
	camera *fakeCamera
	cls    *classifier.Mock
	stab   *emotions.Stabilizer
	engine *fakeEngine
}

func newRig(t *testing.T, cls *classifier.Mock, modify func(*Config)) *rig {
	t.Helper()
	logger := log.Discard()

	stab, err := emotions.NewStabilizer(emotions.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewStabilizer: %v", err)
	}
	policy, err := soundscape.NewPolicy(soundscape.DefaultTables())
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if cls == nil {
		cls = classifier.NewMock()
	}

	r := &rig{
		gate:   gate.New(logger),
		camera: &fakeCamera{},
		cls:    cls,
		stab:   stab,
		engine: &fakeEngine{},
	}

	cfg := DefaultConfig()
	cfg.Logger = logger
	if modify != nil {
		modify(&cfg)
	}
	p, err := New(cfg, Deps{
		Gate:       r.gate,
		Camera:     r.camera,
		Classifier: r.cls,
		Stabilizer: r.stab,
		Policy:     policy,
		Engine:     r.engine,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.p = p
	t.Cleanup(func() { p.Close() })
	return r
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
