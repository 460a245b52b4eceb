package classifier

import (
	"context"
	"sync"
	"time"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, jpeg []byte) (*Result, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Bytes  int
	Time   time.Time
}

// NewMock creates a mock that always reports Neutral at 90%.
func NewMock() *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, jpeg []byte) (*Result, error) {
			return &Result{Label: "Neutral", Confidence: 90, Timestamp: time.Now()}, nil
		},
	}
}

// WithLabels returns a mock that reports the given labels in order at
// the given confidence, repeating the last one once exhausted.
func WithLabels(confidence float64, labels ...string) *Mock {
	m := &Mock{}
	var mu sync.Mutex
	i := 0
	m.ClassifyFunc = func(ctx context.Context, jpeg []byte) (*Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(labels) == 0 {
			return nil, ErrInvalidResponse
		}
		label := labels[min(i, len(labels)-1)]
		i++
		return &Result{Label: label, Confidence: confidence, Timestamp: time.Now()}, nil
	}
	return m
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, jpeg []byte) (*Result, error) {
			return nil, err
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, jpeg []byte) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Classify", Bytes: len(jpeg), Time: time.Now()})
	m.mu.Unlock()
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, jpeg)
	}
	return nil, ErrNetwork
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var (
	_ Classifier = (*Client)(nil)
	_ Classifier = (*Mock)(nil)
)
