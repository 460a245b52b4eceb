package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-soundscape/pkg/audio"
	"github.com/teslashibe/go-soundscape/pkg/camera"
	"github.com/teslashibe/go-soundscape/pkg/classifier"
	"github.com/teslashibe/go-soundscape/pkg/emotions"
	"github.com/teslashibe/go-soundscape/pkg/gate"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// FrameSource captures one JPEG frame per call.
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Engine is the playback surface the pipeline drives.
type Engine interface {
	TransitionTo(track string) error
	SetMode(m soundscape.Mode)
	SetVolume(v float64)
	State() audio.State
	Close() error
}

// Deps are the components wired into a Pipeline.
type Deps struct {
	Gate       *gate.Gate
	Camera     FrameSource
	Classifier classifier.Classifier
	Stabilizer *emotions.Stabilizer
	Policy     *soundscape.Policy
	Engine     Engine
}

// Camera notices shown to the visitor.
const (
	NoticePermission = "camera permission required"
	NoticeNoCamera   = "no camera found"
)

// Pipeline drives capture cycles and applies the resolved soundscape.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	deps   Deps

	// OnUpdate receives a snapshot after every state change. Set it
	// before Run.
	OnUpdate func(Snapshot)

	cycleMu sync.Mutex

	mu           sync.Mutex
	room         string
	baseVolume   float64
	modeOverride *soundscape.Mode
	selection    soundscape.Selection
	lastLabel    string
	lastConf     float64
	lastErr      string
	lastCycleID  string
	lastCycleAt  time.Time
	cameraNotice string
	frame        []byte
	frameAt      time.Time
	cycles       int
	failures     int
	dropped      int
	streak       int
	skip         int
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline. Until the first interaction the initial
// soundscape is queued on the gate, so the Neutral track starts as soon
// as audio is allowed even if no emotion is ever detected.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Gate == nil:
		return nil, fmt.Errorf("%w: gate", ErrMissingDependency)
	case deps.Camera == nil:
		return nil, fmt.Errorf("%w: camera", ErrMissingDependency)
	case deps.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingDependency)
	case deps.Stabilizer == nil:
		return nil, fmt.Errorf("%w: stabilizer", ErrMissingDependency)
	case deps.Policy == nil:
		return nil, fmt.Errorf("%w: policy", ErrMissingDependency)
	case deps.Engine == nil:
		return nil, fmt.Errorf("%w: engine", ErrMissingDependency)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:        cfg,
		logger:     logger.With("component", "pipeline"),
		deps:       deps,
		baseVolume: cfg.BaseVolume,
		ctx:        ctx,
		cancel:     cancel,
	}
	p.room, _ = deps.Policy.Room(cfg.InitialRoom)
	p.selection = p.resolveLocked()
	p.scheduleApply()
	return p, nil
}

// Run ticks capture cycles until ctx is cancelled or Close is called.
// The first cycle starts immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	p.logger.Info("capture loop started", "interval", p.cfg.Interval)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("capture loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) tick(ctx context.Context) {
	p.mu.Lock()
	if p.skip > 0 {
		p.skip--
		left := p.skip
		p.mu.Unlock()
		p.logger.Debug("backing off, tick skipped", "remaining", left)
		p.Publish()
		return
	}
	p.mu.Unlock()

	if _, err := p.RunCycle(ctx); err != nil {
		switch {
		case errors.Is(err, ErrCycleInFlight):
			p.logger.Debug("previous cycle still running, tick skipped")
		case errors.Is(err, ErrAwaitingInteraction), errors.Is(err, context.Canceled):
		default:
			p.logger.Warn("capture cycle failed", "error", err)
		}
	}
}

// RunCycle performs one capture cycle. Cycles never overlap: a call
// while another is running returns ErrCycleInFlight. Before the first
// interaction the cycle is queued on the gate and ErrAwaitingInteraction
// is returned. A low-confidence reading is not an error; it is reported
// with Cycle.Dropped set and leaves the stabilizer untouched.
func (p *Pipeline) RunCycle(ctx context.Context) (Cycle, error) {
	if p.isClosed() {
		return Cycle{}, ErrClosed
	}
	if !p.deps.Gate.HasUserInteracted() {
		p.deps.Gate.Defer("capture", p.queuedCycle)
		return Cycle{}, ErrAwaitingInteraction
	}
	if !p.cycleMu.TryLock() {
		return Cycle{}, ErrCycleInFlight
	}
	defer p.cycleMu.Unlock()
	if p.isClosed() {
		return Cycle{}, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CycleTimeout)
	defer cancel()

	cycle := Cycle{ID: uuid.NewString(), Started: time.Now()}
	logger := p.logger.With("cycle", cycle.ID)

	p.mu.Lock()
	p.cycles++
	p.lastCycleID = cycle.ID
	p.lastCycleAt = cycle.Started
	p.mu.Unlock()
	defer p.Publish()

	frame, err := p.deps.Camera.CaptureFrame(ctx)
	if err != nil {
		p.captureFailed(err)
		return cycle, fmt.Errorf("capture: %w", err)
	}
	p.mu.Lock()
	p.cameraNotice = ""
	p.frame = frame
	p.frameAt = time.Now()
	p.mu.Unlock()

	res, err := p.deps.Classifier.Classify(ctx, frame)
	if err == nil && res == nil {
		err = classifier.ErrInvalidResponse
	}
	switch {
	case errors.Is(err, classifier.ErrLowConfidence) || (err == nil && res.Confidence < p.cfg.MinConfidence):
		p.mu.Lock()
		p.dropped++
		p.streak = 0
		if res != nil {
			p.lastLabel, p.lastConf = res.Label, res.Confidence
			cycle.Label, cycle.Confidence = res.Label, res.Confidence
		}
		p.mu.Unlock()
		cycle.Dropped = true
		cycle.Stable = p.deps.Stabilizer.Stable()
		logger.Info("reading dropped", "label", cycle.Label, "confidence", cycle.Confidence)
		return cycle, nil

	case err != nil:
		p.classifyFailed(err)
		return cycle, fmt.Errorf("classify: %w", err)
	}

	state, outcome, err := p.deps.Stabilizer.Ingest(emotions.Sample{
		Label:      res.Label,
		Confidence: res.Confidence,
		Timestamp:  res.Timestamp,
	})
	if err != nil {
		p.recordFailure(err)
		return cycle, fmt.Errorf("stabilize: %w", err)
	}

	p.mu.Lock()
	p.streak = 0
	p.lastLabel, p.lastConf = res.Label, res.Confidence
	p.lastErr = ""
	p.mu.Unlock()

	cycle.Label = res.Label
	cycle.Confidence = res.Confidence
	cycle.Stable = state.Stable
	cycle.Promoted = outcome == emotions.OutcomePromoted

	logger.Debug("cycle complete",
		"label", res.Label,
		"confidence", res.Confidence,
		"outcome", outcome,
		"stable", state.Stable,
	)

	if cycle.Promoted {
		p.refresh("emotion")
	}
	return cycle, nil
}

// queuedCycle runs the capture intent released by the first interaction.
// Close waits for it.
func (p *Pipeline) queuedCycle() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if _, err := p.RunCycle(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("queued capture cycle failed", "error", err)
		}
	}()
}

func (p *Pipeline) captureFailed(err error) {
	p.mu.Lock()
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		p.cameraNotice = NoticePermission
	case errors.Is(err, camera.ErrNoCameraFound):
		p.cameraNotice = NoticeNoCamera
	}
	p.frame = nil
	p.mu.Unlock()

	if errors.Is(err, camera.ErrCaptureInFlight) {
		return
	}
	p.recordFailure(err)
}

func (p *Pipeline) classifyFailed(err error) {
	p.recordFailure(err)
	if !classifier.IsTransient(err) {
		return
	}
	p.mu.Lock()
	p.streak++
	p.skip = backoffTicks(p.streak, p.cfg.MaxBackoffTicks)
	streak, skip := p.streak, p.skip
	p.mu.Unlock()
	if skip > 0 {
		p.logger.Warn("classifier unreachable, backing off", "failures", streak, "skip_ticks", skip)
	}
}

func (p *Pipeline) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	p.lastErr = err.Error()
	p.mu.Unlock()
}

// RecordInteraction opens the gate. Queued intents (initial soundscape,
// capture) run now.
func (p *Pipeline) RecordInteraction() bool {
	first := p.deps.Gate.RecordInteraction()
	p.Publish()
	return first
}

// SetRoom switches the current room and returns the room actually used.
// Unknown rooms fall back to the default profile.
func (p *Pipeline) SetRoom(room string) string {
	resolved, _ := p.deps.Policy.Room(room)
	p.mu.Lock()
	changed := p.room != resolved
	p.room = resolved
	p.mu.Unlock()
	if changed {
		p.logger.Info("room changed", "room", resolved)
		p.refresh("room")
	}
	return resolved
}

// SetMode pins the playback mode. Room and emotion changes keep it.
func (p *Pipeline) SetMode(m soundscape.Mode) {
	p.mu.Lock()
	p.modeOverride = &m
	p.mu.Unlock()
	p.logger.Info("mode override set", "mode", m)
	p.refresh("mode")
}

// ClearModeOverride returns to the room's default mode.
func (p *Pipeline) ClearModeOverride() {
	p.mu.Lock()
	p.modeOverride = nil
	p.mu.Unlock()
	p.logger.Info("mode override cleared")
	p.refresh("mode")
}

// SetVolume sets the base volume, clamped to [0,1].
func (p *Pipeline) SetVolume(v float64) {
	p.mu.Lock()
	p.baseVolume = soundscape.Clamp01(v)
	p.mu.Unlock()
	p.refresh("volume")
}

// refresh re-resolves the selection and pushes it to the engine once
// audio is allowed.
func (p *Pipeline) refresh(reason string) {
	p.mu.Lock()
	p.selection = p.resolveLocked()
	sel := p.selection
	p.mu.Unlock()
	p.logger.Debug("soundscape resolved",
		"reason", reason,
		"emotion", sel.Emotion,
		"room", sel.Room,
		"track", sel.TrackID,
		"volume", sel.Volume,
		"mode", sel.Mode,
	)
	p.scheduleApply()
	p.Publish()
}

func (p *Pipeline) resolveLocked() soundscape.Selection {
	return p.deps.Policy.Resolve(p.deps.Stabilizer.Stable(), p.room, soundscape.Preferences{
		BaseVolume:   p.baseVolume,
		ModeOverride: p.modeOverride,
	})
}

func (p *Pipeline) scheduleApply() {
	p.deps.Gate.Defer("soundscape", p.apply)
}

// apply pushes the latest selection to the engine. Mode goes first so a
// silent room parks the track instead of fading it in.
func (p *Pipeline) apply() {
	if p.isClosed() {
		return
	}
	p.mu.Lock()
	sel := p.resolveLocked()
	p.selection = sel
	p.mu.Unlock()

	e := p.deps.Engine
	e.SetVolume(sel.Volume)
	e.SetMode(sel.Mode)
	switch err := e.TransitionTo(sel.TrackID); {
	case err == nil:
	case errors.Is(err, audio.ErrTransitionQueued):
		p.logger.Debug("track queued behind crossfade", "track", sel.TrackID)
	default:
		p.logger.Warn("transition rejected", "track", sel.TrackID, "error", err)
	}
}

// Publish sends the current snapshot to OnUpdate.
func (p *Pipeline) Publish() {
	if cb := p.OnUpdate; cb != nil {
		cb(p.Snapshot())
	}
}

// Snapshot returns the read model.
func (p *Pipeline) Snapshot() Snapshot {
	st := p.deps.Stabilizer.State()
	playback := p.deps.Engine.State()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		StableEmotion:  st.Stable,
		Previous:       st.Previous,
		Consistency:    st.Consistency,
		History:        st.History,
		LastUpdate:     st.LastUpdate,
		LastLabel:      p.lastLabel,
		LastConfidence: p.lastConf,
		Room:           p.room,
		Mode:           p.selection.Mode,
		ModeOverridden: p.modeOverride != nil,
		BaseVolume:     p.baseVolume,
		TrackID:        p.selection.TrackID,
		Playback:       playback,
		Interacted:     p.deps.Gate.HasUserInteracted(),
		PendingIntents: p.deps.Gate.Pending(),
		CameraNotice:   p.cameraNotice,
		Cycles:         p.cycles,
		Failures:       p.failures,
		Dropped:        p.dropped,
		SkipTicks:      p.skip,
		LastError:      p.lastErr,
		LastCycleID:    p.lastCycleID,
		LastCycleAt:    p.lastCycleAt,
	}
}

// LastFrame returns the most recent captured JPEG, if the last capture
// succeeded.
func (p *Pipeline) LastFrame() ([]byte, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.frameAt
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops the loop, waits for an in-flight cycle and releases the
// audio engine. A camera that implements io.Closer is closed too.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	err := p.deps.Engine.Close()
	if c, ok := p.deps.Camera.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	p.logger.Info("pipeline closed")
	return err
}
