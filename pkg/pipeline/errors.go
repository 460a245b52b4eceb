package pipeline

import "errors"

var (
	// ErrCycleInFlight is returned when a cycle is already running.
	ErrCycleInFlight = errors.New("pipeline: capture cycle in flight")

	// ErrAwaitingInteraction is returned when no user gesture has been
	// recorded yet. The cycle is queued and runs on the first one.
	ErrAwaitingInteraction = errors.New("pipeline: awaiting user interaction")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pipeline: closed")

	// ErrMissingDependency is returned by New for nil dependencies.
	ErrMissingDependency = errors.New("pipeline: missing dependency")
)
