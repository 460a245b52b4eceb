package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for unusable engine settings.
	ErrInvalidConfig = errors.New("audio: invalid config")

	// ErrClosed is returned once the engine is closed.
	ErrClosed = errors.New("audio: engine closed")

	// ErrEmptyTrack is returned for a transition without a track.
	ErrEmptyTrack = errors.New("audio: empty track id")

	// ErrTransitionQueued is returned when a crossfade is in flight.
	// The track replaces whatever was pending and plays next.
	ErrTransitionQueued = errors.New("audio: transition queued behind crossfade")

	// ErrLoadTimeout means the incoming buffer never became ready.
	ErrLoadTimeout = errors.New("audio: load timeout")

	// ErrPlaybackStart means the incoming buffer failed to load or play.
	ErrPlaybackStart = errors.New("audio: playback start failed")

	// errParked stops a crossfade whose track was loaded after silent
	// mode began. The track waits in the pending slot.
	errParked = errors.New("audio: track parked in silent mode")
)

// TransitionError describes an aborted crossfade. The previously active
// buffer keeps playing.
type TransitionError struct {
	Track string
	Slot  Slot
	Kind  error // ErrLoadTimeout or ErrPlaybackStart
	Err   error
}

func (e *TransitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s on buffer %s", e.Kind, e.Track, e.Slot)
	}
	return fmt.Sprintf("%v: %s on buffer %s: %v", e.Kind, e.Track, e.Slot, e.Err)
}

func (e *TransitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
