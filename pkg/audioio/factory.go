package audioio

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory constructs a buffer for a registered backend.
type Factory func(cfg Config, name string, logger *slog.Logger) (Buffer, error)

var (
	backendsMu sync.RWMutex
	backends   = map[Backend]Factory{
		BackendMock: func(cfg Config, name string, logger *slog.Logger) (Buffer, error) {
			return NewMockBuffer(name), nil
		},
	}
)

// Register makes a backend available to NewBuffer. Hardware backends
// register themselves from an init function.
func Register(backend Backend, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if f == nil {
		panic("audioio: Register factory is nil")
	}
	backends[backend] = f
}

// NewBuffer creates a playback buffer with the given configuration.
// If cfg.Backend is BackendAuto, the speaker is tried first and the mock
// is used when it is not registered or fails to open.
func NewBuffer(cfg Config, name string, logger *slog.Logger) (Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendSpeaker
	}

	logger.Info("creating audio buffer",
		"name", name,
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	backendsMu.RLock()
	f, ok := backends[backend]
	backendsMu.RUnlock()

	if !ok {
		if cfg.Backend == BackendAuto {
			logger.Warn("speaker backend not linked, using mock audio", "name", name)
			return NewMockBuffer(name), nil
		}
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	b, err := f(cfg, name, logger)
	if err != nil && cfg.Backend == BackendAuto {
		logger.Warn("speaker unavailable, using mock audio", "name", name, "error", err)
		return NewMockBuffer(name), nil
	}
	return b, err
}

// AvailableBackends returns the registered backends.
func AvailableBackends() []Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for b := range backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
