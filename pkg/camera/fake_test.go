package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// fakeSource is an in-memory Source that counts live streams.
type fakeSource struct {
	devices    []Device
	devicesErr error
	openErr    error
	readyErr   error
	readyDelay time.Duration
	frame      image.Image
	frameErr   error

	// openGate, when set, blocks Open until closed.
	openGate chan struct{}

	opens  atomic.Int32
	active atomic.Int32
	stops  atomic.Int32
}

func newFakeSource() *fakeSource {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return &fakeSource{
		devices: []Device{{ID: "video0", Label: "Fake Cam"}, {ID: "video1", Label: "Spare"}},
		frame:   img,
	}
}

func (f *fakeSource) Devices(ctx context.Context) ([]Device, error) {
	return f.devices, f.devicesErr
}

func (f *fakeSource) Open(ctx context.Context, dev Device, cfg Config) (Stream, error) {
	f.opens.Add(1)
	if f.openGate != nil {
		<-f.openGate
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.active.Add(1)
	return &fakeStream{src: f, device: dev}, nil
}

type fakeStream struct {
	src     *fakeSource
	device  Device
	once    sync.Once
	stopped atomic.Bool
}

func (s *fakeStream) Ready(ctx context.Context) (int, int, error) {
	if s.src.readyDelay > 0 {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(s.src.readyDelay):
		}
	}
	if s.src.readyErr != nil {
		return 0, 0, s.src.readyErr
	}
	return 32, 24, nil
}

func (s *fakeStream) Frame() (image.Image, error) {
	return s.src.frame, s.src.frameErr
}

func (s *fakeStream) Stop() error {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.src.active.Add(-1)
		s.src.stops.Add(1)
	})
	return nil
}
