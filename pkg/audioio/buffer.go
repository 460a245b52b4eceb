package audioio

import (
	"errors"
	"io"
)

// Errors returned by buffers.
var (
	// ErrClosed is returned by operations on a closed buffer.
	ErrClosed = errors.New("audioio: buffer closed")

	// ErrNotLoaded is returned by Play before a source was loaded.
	ErrNotLoaded = errors.New("audioio: no source loaded")

	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("audioio: unsupported format")
)

// Buffer is a single playback voice: one loaded track with its own
// volume and loop flag. Implementations are safe for concurrent use.
type Buffer interface {
	// Load replaces the current source. Playback stops until Play.
	Load(src string) error

	// Ready reports whether the loaded source can start playing.
	Ready() bool

	// Play starts or resumes playback.
	Play() error

	// Pause halts playback, keeping the position.
	Pause()

	// Rewind moves the position back to the start.
	Rewind() error

	// SetVolume sets the linear gain, clamped to [0,1].
	SetVolume(v float64)

	// Volume returns the current gain.
	Volume() float64

	// SetLoop toggles restarting at end of track.
	SetLoop(loop bool)

	// Playing reports whether audio is being produced.
	Playing() bool

	// Source returns the loaded track identifier.
	Source() string

	// Name returns the buffer name (e.g. "a", "b", "ambient").
	Name() string

	// Close releases all resources.
	io.Closer
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
