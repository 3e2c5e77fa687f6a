package coderun

import (
	"io"
	"sync"
)

// Guard owns the resources of one run (sockets, timers, subscriptions).
// Close releases them in reverse acquisition order, exactly once.
type Guard struct {
	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// Defer registers fn to be called on Close. On a closed guard fn runs immediately.
func (g *Guard) Defer(fn func() error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = fn()
		return
	}
	g.closers = append(g.closers, fn)
	g.mu.Unlock()
}

func (g *Guard) Add(c io.Closer) {
	g.Defer(c.Close)
}

func (g *Guard) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close releases every resource and returns the first error met.
func (g *Guard) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	closers := g.closers
	g.closers = nil
	g.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
