package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Capturer grabs one JPEG frame per call. At most one capture runs at a
// time; overlapping calls return ErrCaptureInFlight without touching the
// device.
type Capturer struct {
	src    Source
	logger *slog.Logger

	mu  sync.RWMutex
	cfg Config

	busy atomic.Bool

	// Callback when config changes
	OnConfigChange func(cfg Config)
}

// NewCapturer creates a capturer over src.
func NewCapturer(src Source, cfg Config, logger *slog.Logger) (*Capturer, error) {
	if src == nil {
		return nil, errors.New("camera: nil source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		src:    src,
		cfg:    cfg,
		logger: logger.With("component", "camera.capturer"),
	}, nil
}

// Config returns the current capture configuration.
func (c *Capturer) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetConfig validates and installs a new configuration. It takes effect
// on the next capture.
func (c *Capturer) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = cfg
	callback := c.OnConfigChange
	c.mu.Unlock()

	if callback != nil {
		callback(cfg)
	}
	return nil
}

// ApplyPreset switches to a named preset.
func (c *Capturer) ApplyPreset(name string) error {
	preset := GetPreset(name)
	if preset == nil {
		return fmt.Errorf("camera: unknown preset: %s", name)
	}
	return c.SetConfig(*preset)
}

// Busy reports whether a capture is in flight.
func (c *Capturer) Busy() bool {
	return c.busy.Load()
}

// CaptureFrame acquires the first camera, waits for it to settle, grabs a
// frame and encodes it as JPEG. The stream is stopped on every return
// path.
func (c *Capturer) CaptureFrame(ctx context.Context) ([]byte, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("capture skipped, already in flight")
		return nil, ErrCaptureInFlight
	}
	defer c.busy.Store(false)

	cfg := c.Config()
	start := time.Now()

	devices, err := c.src.Devices(ctx)
	if err != nil {
		return nil, &CaptureError{Stage: StageEnumerate, Err: err}
	}
	if len(devices) == 0 {
		return nil, &CaptureError{Stage: StageEnumerate, Err: ErrNoCameraFound}
	}
	dev := devices[0]

	stream, err := c.src.Open(ctx, dev, cfg)
	if err != nil {
		return nil, &CaptureError{Stage: StageOpen, Device: dev.ID, Err: err}
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			c.logger.Warn("failed to stop camera stream", "device", dev.ID, "error", err)
		}
	}()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	w, h, err := stream.Ready(readyCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrCaptureTimeout
		}
		return nil, &CaptureError{Stage: StageReady, Device: dev.ID, Err: err}
	}

	if cfg.SettleDelay > 0 {
		timer := time.NewTimer(cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &CaptureError{Stage: StageSettle, Device: dev.ID, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	img, err := stream.Frame()
	if err != nil {
		return nil, &CaptureError{Stage: StageGrab, Device: dev.ID, Err: err}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &CaptureError{Stage: StageEncode, Device: dev.ID, Err: ErrEncodeFailed}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cfg.Quality}); err != nil {
		return nil, &CaptureError{Stage: StageEncode, Device: dev.ID, Err: fmt.Errorf("%w: %v", ErrEncodeFailed, err)}
	}
	if buf.Len() == 0 {
		return nil, &CaptureError{Stage: StageEncode, Device: dev.ID, Err: ErrEncodeFailed}
	}

	c.logger.Debug("frame captured",
		"device", dev.ID,
		"width", w,
		"height", h,
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
