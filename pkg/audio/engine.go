package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-soundscape/pkg/audioio"
	"github.com/teslashibe/go-soundscape/pkg/soundscape"
)

// Engine crossfades between two track buffers and runs an ambient loop
// according to the playback mode. At most one crossfade runs at a time;
// a track requested mid-crossfade waits in a single pending slot.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	buffers [2]audioio.Buffer
	ambient audioio.Buffer

	// OnTransition is called after every finished or aborted crossfade.
	// Set it before the first TransitionTo.
	OnTransition func(Transition)

	mu          sync.Mutex
	active      Slot
	incoming    Slot
	track       string
	playing     bool
	volume      float64
	mode        soundscape.Mode
	crossfading bool
	pending     string
	idle        chan struct{}
	ambientSrc  string
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine over the given buffers. a starts active.
func NewEngine(cfg Config, a, b, ambient audioio.Buffer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a == nil || b == nil || ambient == nil {
		return nil, errors.New("audio: three buffers required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "audio.engine"),
		buffers: [2]audioio.Buffer{a, b},
		ambient: ambient,
		active:  SlotA,
		volume:  cfg.Volume,
		mode:    cfg.Mode,
		idle:    closedChan(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, buf := range e.buffers {
		buf.SetLoop(true)
		buf.SetVolume(0)
	}
	ambient.SetLoop(true)
	ambient.SetVolume(0)
	return e, nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// State returns a snapshot of playback.
func (e *Engine) State() State {
	e.mu.Lock()
	s := State{
		Active:      e.active,
		TrackID:     e.track,
		Playing:     e.playing,
		Volume:      e.volume,
		Mode:        e.mode,
		Crossfading: e.crossfading,
		Pending:     e.pending,
	}
	e.mu.Unlock()
	s.AmbientPlaying = e.ambient.Playing()
	return s
}

// TransitionTo fades to track in the background. While a crossfade is
// running the track is parked in the pending slot, replacing any earlier
// pending track, and ErrTransitionQueued is returned. In silent mode the
// track is parked until the mode changes.
func (e *Engine) TransitionTo(track string) error {
	if track == "" {
		return ErrEmptyTrack
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.crossfading {
		if e.pending != "" && e.pending != track {
			e.logger.Debug("pending track replaced", "old", e.pending, "new", track)
		}
		e.pending = track
		e.logger.Info("transition queued", "track", track, "in_flight", e.track)
		return ErrTransitionQueued
	}

	if track == e.track {
		e.pending = ""
		return nil
	}

	if e.mode == soundscape.ModeSilent {
		e.pending = track
		e.logger.Debug("silent mode, track parked", "track", track)
		return nil
	}

	e.pending = ""
	e.startLocked(track)
	return nil
}

func (e *Engine) startLocked(track string) {
	e.crossfading = true
	e.incoming = e.active.Other()
	e.idle = make(chan struct{})
	e.wg.Add(1)
	go e.run(track)
}

// run performs crossfades until the pending slot is empty.
func (e *Engine) run(track string) {
	defer e.wg.Done()

	for {
		from, to := e.slots()
		started := time.Now()
		err := e.crossfade(track, from, to)

		if errors.Is(err, errParked) {
			e.logger.Debug("silent mode, loaded track parked", "track", track, "buffer", to)
		} else if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("crossfade aborted", "track", track, "buffer", to, "error", err)
		} else if err == nil {
			e.logger.Info("crossfade complete",
				"track", track,
				"from", from,
				"to", to,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		}
		if cb := e.OnTransition; cb != nil && !errors.Is(err, errParked) {
			cb(Transition{Track: track, From: from, To: to, Err: err, Started: started, Duration: time.Since(started)})
		}

		e.mu.Lock()
		next := e.pending
		if next == e.track {
			next = ""
			e.pending = ""
		}
		if next != "" && !e.closed && e.mode != soundscape.ModeSilent {
			e.pending = ""
			e.incoming = e.active.Other()
			e.mu.Unlock()
			track = next
			continue
		}
		e.crossfading = false
		close(e.idle)
		e.mu.Unlock()
		return
	}
}

func (e *Engine) slots() (from, to Slot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active.Other()
}

func (e *Engine) target() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) silent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode == soundscape.ModeSilent
}

// crossfade loads track into slot to and ramps it in while ramping
// slot from out. On error the outgoing buffer is left as it was.
func (e *Engine) crossfade(track string, from, to Slot) error {
	in, out := e.buffers[to], e.buffers[from]

	in.Pause()
	in.SetVolume(0)
	in.SetLoop(true)
	if err := in.Load(track); err != nil {
		return &TransitionError{Track: track, Slot: to, Kind: ErrPlaybackStart, Err: err}
	}

	if err := e.waitReady(in); err != nil {
		if errors.Is(err, ErrLoadTimeout) {
			return &TransitionError{Track: track, Slot: to, Kind: ErrLoadTimeout}
		}
		return err
	}

	// Silent may have been set while loading. Play only under the lock
	// so SetMode cannot slip in between the check and the start.
	e.mu.Lock()
	if e.mode == soundscape.ModeSilent {
		if e.pending == "" {
			e.pending = track
		}
		e.mu.Unlock()
		return errParked
	}
	if err := in.Play(); err != nil {
		in.Pause()
		e.mu.Unlock()
		return &TransitionError{Track: track, Slot: to, Kind: ErrPlaybackStart, Err: err}
	}
	e.mu.Unlock()

	outStart := out.Volume()
	ticker := time.NewTicker(e.cfg.StepInterval())
	defer ticker.Stop()

	for step := 1; step <= e.cfg.Steps; step++ {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case <-ticker.C:
		}
		frac := float64(step) / float64(e.cfg.Steps)
		in.SetVolume(e.target() * frac)
		out.SetVolume(outStart * (1 - frac))
	}

	out.Pause()
	if err := out.Rewind(); err != nil {
		e.logger.Debug("rewind failed", "buffer", from, "error", err)
	}

	e.mu.Lock()
	e.active = to
	e.track = track
	in.SetVolume(e.volume)
	if e.mode == soundscape.ModeSilent {
		in.Pause()
		e.playing = false
	} else {
		e.playing = true
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) waitReady(b audioio.Buffer) error {
	for i := 0; i < e.cfg.LoadAttempts; i++ {
		if b.Ready() {
			return nil
		}
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case <-time.After(e.cfg.LoadPoll):
		}
	}
	if b.Ready() {
		return nil
	}
	return ErrLoadTimeout
}

// WaitIdle blocks until no crossfade is running.
func (e *Engine) WaitIdle(ctx context.Context) error {
	for {
		e.mu.Lock()
		if !e.crossfading {
			e.mu.Unlock()
			return nil
		}
		ch := e.idle
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// SetVolume sets the master volume and applies it at once to the
// active buffer and the ambient loop. A running crossfade picks it up
// on its next step.
func (e *Engine) SetVolume(v float64) {
	v = soundscape.Clamp01(v)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	if !e.crossfading && e.track != "" {
		e.buffers[e.active].SetVolume(v)
	}
	if e.mode == soundscape.ModeImmersive {
		e.ambient.SetVolume(e.cfg.AmbientLevel * v)
	}
}

// SetMode applies a playback mode. Silent pauses every buffer at once.
// Relaxed pauses only the ambient loop. Immersive keeps the ambient loop
// playing at AmbientLevel times the master volume. Leaving silent
// resumes the active track and starts any parked one.
func (e *Engine) SetMode(m soundscape.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	prev := e.mode
	e.mode = m

	switch m {
	case soundscape.ModeSilent:
		for _, b := range e.buffers {
			b.Pause()
		}
		e.ambient.Pause()
		e.playing = false

	case soundscape.ModeRelaxed, soundscape.ModeImmersive:
		if m == soundscape.ModeRelaxed {
			e.ambient.Pause()
		} else {
			e.startAmbientLocked()
		}
		if prev == soundscape.ModeSilent {
			e.resumeLocked()
		}
	}

	if prev != m {
		e.logger.Info("mode changed", "from", prev, "to", m)
	}
}

func (e *Engine) startAmbientLocked() {
	if e.cfg.AmbientTrack == "" {
		return
	}
	if e.ambientSrc != e.cfg.AmbientTrack {
		if err := e.ambient.Load(e.cfg.AmbientTrack); err != nil {
			e.logger.Warn("ambient load failed", "track", e.cfg.AmbientTrack, "error", err)
			return
		}
		e.ambientSrc = e.cfg.AmbientTrack
	}
	e.ambient.SetVolume(e.cfg.AmbientLevel * e.volume)
	if err := e.ambient.Play(); err != nil {
		e.logger.Warn("ambient play failed", "error", err)
	}
}

func (e *Engine) resumeLocked() {
	if e.track != "" {
		if err := e.buffers[e.active].Play(); err != nil {
			e.logger.Warn("resume failed", "buffer", e.active, "error", err)
		} else {
			e.playing = true
		}
	}
	if e.crossfading {
		if err := e.buffers[e.incoming].Play(); err != nil {
			e.logger.Debug("resume incoming failed", "buffer", e.incoming, "error", err)
		}
		return
	}
	if e.pending != "" && e.pending != e.track {
		track := e.pending
		e.pending = ""
		e.startLocked(track)
	}
}

// Mode returns the current playback mode.
func (e *Engine) Mode() soundscape.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Close stops any crossfade, pauses and releases every buffer.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.pending = ""
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	var errs []error
	for _, b := range append(e.buffers[:], e.ambient) {
		b.Pause()
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()

	e.logger.Debug("engine closed")
	return errors.Join(errs...)
}
