package audioio

import (
	"sync"
)

// MockBuffer is a mock playback buffer for testing.
// It records every call and can be scripted to be slow or to fail.
type MockBuffer struct {
	// ReadyAfter is the number of Ready polls that report false after
	// each Load. Negative means never ready.
	ReadyAfter int

	// LoadErr is returned by Load when set.
	LoadErr error

	// PlayErr is returned by Play when set.
	PlayErr error

	name string

	mu        sync.Mutex
	source    string
	loaded    bool
	polls     int
	playing   bool
	loop      bool
	volume    float64
	closed    bool
	loads     []string
	plays     int
	pauses    int
	rewinds   int
	volumeLog []float64
}

// NewMockBuffer creates a mock buffer that is ready immediately.
func NewMockBuffer(name string) *MockBuffer {
	return &MockBuffer{name: name}
}

func (m *MockBuffer) Name() string { return m.name }

func (m *MockBuffer) Load(src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.loads = append(m.loads, src)
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.source = src
	m.loaded = true
	m.playing = false
	m.polls = 0
	return nil
}

func (m *MockBuffer) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded || m.closed || m.ReadyAfter < 0 {
		return false
	}
	m.polls++
	return m.polls > m.ReadyAfter
}

func (m *MockBuffer) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	if !m.loaded {
		return ErrNotLoaded
	}
	m.plays++
	m.playing = true
	return nil
}

func (m *MockBuffer) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.playing = false
}

func (m *MockBuffer) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewinds++
	return nil
}

func (m *MockBuffer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp01(v)
	m.volumeLog = append(m.volumeLog, m.volume)
}

func (m *MockBuffer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MockBuffer) SetLoop(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
}

// Loop reports the loop flag.
func (m *MockBuffer) Loop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loop
}

func (m *MockBuffer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *MockBuffer) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *MockBuffer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.playing = false
	return nil
}

// Closed reports whether Close was called.
func (m *MockBuffer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockStats is a snapshot of recorded calls.
type MockStats struct {
	Loads   []string
	Plays   int
	Pauses  int
	Rewinds int
	Volumes []float64
}

// Stats returns the calls recorded so far.
func (m *MockBuffer) Stats() MockStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockStats{
		Loads:   append([]string(nil), m.loads...),
		Plays:   m.plays,
		Pauses:  m.pauses,
		Rewinds: m.rewinds,
		Volumes: append([]float64(nil), m.volumeLog...),
	}
}

var _ Buffer = (*MockBuffer)(nil)
