package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCameraFound is returned when no video input device exists.
	ErrNoCameraFound = errors.New("camera: no video input device found")

	// ErrPermissionDenied is returned when the device refuses to open.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrCaptureTimeout is returned when the stream never reports a frame.
	ErrCaptureTimeout = errors.New("camera: timed out waiting for video")

	// ErrEncodeFailed is returned when JPEG encoding yields nothing.
	ErrEncodeFailed = errors.New("camera: frame encode failed")

	// ErrCaptureInFlight is returned when a capture is already running.
	// The call is a no-op.
	ErrCaptureInFlight = errors.New("camera: capture already in flight")
)

// Stage names the capture step that failed.
type Stage string

// Capture stages.
const (
	StageEnumerate Stage = "enumerate"
	StageOpen      Stage = "open"
	StageReady     Stage = "ready"
	StageSettle    Stage = "settle"
	StageGrab      Stage = "grab"
	StageEncode    Stage = "encode"
)

// CaptureError wraps a failure with the stage it happened in.
type CaptureError struct {
	Stage  Stage
	Device string
	Err    error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("camera [%s] %s: %v", e.Device, e.Stage, e.Err)
	}
	return fmt.Sprintf("camera %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}
