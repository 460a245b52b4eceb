package camera

import (
	"context"
	"image"
)

// Device describes a video input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Source enumerates and opens video inputs.
type Source interface {
	// Devices lists the available video inputs.
	Devices(ctx context.Context) ([]Device, error)

	// Open acquires a stream from dev. Implementations wrap access
	// refusals with ErrPermissionDenied.
	Open(ctx context.Context, dev Device, cfg Config) (Stream, error)
}

// Stream is an acquired camera stream. The Capturer owns it for the
// duration of one capture.
type Stream interface {
	// Ready blocks until the stream produces frames with known
	// dimensions and returns them.
	Ready(ctx context.Context) (width, height int, err error)

	// Frame grabs the current frame.
	Frame() (image.Image, error)

	// Stop stops every track and releases the device. It must be safe to
	// call more than once.
	Stop() error
}
