// Package gate tracks whether the visitor has interacted with the page.
//
// Browsers refuse to start audio or the camera before a user gesture.
// Anything that needs a gesture checks the gate; if it is still closed
// the intent is queued with Defer and runs on the first interaction.
package gate

import (
	"log/slog"
	"sync"
	"time"
)

type intent struct {
	name string
	fn   func()
}

// Gate is a one-way latch. Once open it stays open for the session.
type Gate struct {
	mu      sync.Mutex
	open    bool
	openAt  time.Time
	pending []intent
	logger  *slog.Logger
}

// New creates a closed gate.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger.With("component", "gate")}
}

// HasUserInteracted reports whether the gate is open.
func (g *Gate) HasUserInteracted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// OpenedAt returns when the first interaction was recorded.
func (g *Gate) OpenedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.openAt
}

// RecordInteraction opens the gate and runs queued intents in the order
// they were first deferred. It returns true only for the first call.
func (g *Gate) RecordInteraction() bool {
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return false
	}
	g.open = true
	g.openAt = time.Now()
	queued := g.pending
	g.pending = nil
	g.mu.Unlock()

	g.logger.Info("user interaction recorded", "queued_intents", len(queued))
	for _, it := range queued {
		g.logger.Debug("running queued intent", "intent", it.name)
		it.fn()
	}
	return true
}

// Defer runs fn now if the gate is open and reports true. Otherwise it
// queues fn under name, replacing any earlier intent with the same name,
// and reports false.
func (g *Gate) Defer(name string, fn func()) bool {
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		fn()
		return true
	}
	for i := range g.pending {
		if g.pending[i].name == name {
			g.pending[i].fn = fn
			g.mu.Unlock()
			return false
		}
	}
	g.pending = append(g.pending, intent{name: name, fn: fn})
	g.mu.Unlock()

	g.logger.Debug("intent queued until interaction", "intent", name)
	return false
}

// Pending returns the names of queued intents.
func (g *Gate) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, len(g.pending))
	for i, it := range g.pending {
		names[i] = it.name
	}
	return names
}
