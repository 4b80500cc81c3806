package plates

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Gate decides which reads reach the plate log. A camera sees the same plate
// for many consecutive frames; the gate logs it once per window.
type Gate struct {
	skipEmpty bool
	window    time.Duration
	clock     clock.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewGate creates a gate.
//
// Arguments:
//   - skipEmpty: Reject reads with no text.
//   - window: Reject a text seen less than window ago. Zero admits every repeat.
//   - clk: The time source. nil uses the wall clock.
//
// Returns:
//   - *Gate: The gate.
func NewGate(skipEmpty bool, window time.Duration, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.New()
	}
	return &Gate{
		skipEmpty: skipEmpty,
		window:    window,
		clock:     clk,
		seen:      make(map[string]time.Time),
	}
}

// Allow reports whether text should be logged now, and remembers it if so.
func (g *Gate) Allow(text string) bool {
	if text == "" && g.skipEmpty {
		return false
	}
	if g.window <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[text]; ok {
		return false
	}
	g.seen[text] = now
	return true
}
