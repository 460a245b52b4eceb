// Package opencv is the OpenCV (gocv) webcam backend for pkg/camera.
package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-soundscape/pkg/camera"
	"gocv.io/x/gocv"
)

// readyPoll is how often Ready retries an empty read.
const readyPoll = 30 * time.Millisecond

// Source enumerates V4L2 devices on Linux and probes indices elsewhere.
type Source struct {
	// MaxProbe bounds index probing when /dev/video* is unavailable.
	MaxProbe int

	logger *slog.Logger
}

// NewSource creates an OpenCV camera source.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		MaxProbe: 4,
		logger:   logger.With("component", "camera.opencv"),
	}
}

// Devices lists video inputs.
func (s *Source) Devices(ctx context.Context) ([]camera.Device, error) {
	if nodes, _ := filepath.Glob("/dev/video*"); len(nodes) > 0 {
		sort.Strings(nodes)
		devices := make([]camera.Device, 0, len(nodes))
		for _, node := range nodes {
			idx := strings.TrimPrefix(node, "/dev/video")
			if _, err := strconv.Atoi(idx); err != nil {
				continue
			}
			devices = append(devices, camera.Device{ID: idx, Label: node})
		}
		return devices, nil
	}

	var devices []camera.Device
	for i := 0; i < s.MaxProbe; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		if vc.IsOpened() {
			devices = append(devices, camera.Device{ID: strconv.Itoa(i), Label: fmt.Sprintf("camera %d", i)})
		}
		vc.Close()
	}
	return devices, nil
}

// Open acquires the device. OpenCV does not distinguish a busy device
// from a refused one, so both surface as camera.ErrPermissionDenied.
func (s *Source) Open(ctx context.Context, dev camera.Device, cfg camera.Config) (camera.Stream, error) {
	idx, err := strconv.Atoi(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid device id %q: %w", dev.ID, err)
	}
	if _, statErr := os.Stat(dev.Label); statErr == nil {
		if f, err := os.Open(dev.Label); err != nil {
			if os.IsPermission(err) {
				return nil, fmt.Errorf("%w: %v", camera.ErrPermissionDenied, err)
			}
		} else {
			f.Close()
		}
	}

	vc, err := gocv.VideoCaptureDevice(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrPermissionDenied, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", camera.ErrPermissionDenied, idx)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	s.logger.Debug("camera opened", "device", dev.ID, "width", cfg.Width, "height", cfg.Height)
	return &stream{vc: vc, mat: gocv.NewMat(), logger: s.logger}, nil
}

// stream owns one VideoCapture and its frame buffer.
type stream struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	mat     gocv.Mat
	stopped bool
	logger  *slog.Logger
}

func (s *stream) Ready(ctx context.Context) (int, int, error) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return 0, 0, fmt.Errorf("stream stopped")
		}
		ok := s.vc.Read(&s.mat)
		if ok && !s.mat.Empty() {
			w, h := s.mat.Cols(), s.mat.Rows()
			s.mu.Unlock()
			return w, h, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(readyPoll):
		}
	}
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("stream stopped")
	}
	// The first reads after settling can return a stale buffered frame;
	// the latest read wins.
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	return s.mat.ToImage()
}

func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.mat.Close()
	return s.vc.Close()
}
