package core

import "sync"

// Guard tracks whether results of in-flight requests may still be applied to
// the view that started them. A view takes a Ticket before each request and
// checks it when the result arrives; starting a new load or closing the view
// invalidates every older ticket.
type Guard struct {
	mu     sync.Mutex
	gen    uint64
	closed bool
}

// Ticket is a snapshot of a Guard generation.
type Ticket struct {
	g   *Guard
	gen uint64
}

// Begin supersedes all outstanding tickets and returns a fresh one.
func (g *Guard) Begin() Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	return Ticket{g: g, gen: g.gen}
}

// Current returns a ticket for the current generation without superseding it.
func (g *Guard) Current() Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Ticket{g: g, gen: g.gen}
}

// Close invalidates all tickets permanently.
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	g.gen++
	g.mu.Unlock()
}

// Closed reports whether Close was called.
func (g *Guard) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Valid reports whether the ticket's generation is still current.
func (t Ticket) Valid() bool {
	if t.g == nil {
		return false
	}
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return !t.g.closed && t.g.gen == t.gen
}

// Apply runs fn while holding the guard, only if the ticket is still valid.
// It reports whether fn ran.
func (t Ticket) Apply(fn func()) bool {
	if t.g == nil {
		return false
	}
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.g.closed || t.g.gen != t.gen {
		return false
	}
	fn()
	return true
}
