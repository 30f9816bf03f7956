// Package ui presents session state to a terminal and to WebSocket clients, and turns
// their input into controller commands.
package ui

import "sync"

// Gestures delivers user interactions to one-shot subscribers.
type Gestures struct {
	mu      sync.Mutex
	pending []func()
}

// NewGestures creates an empty gesture source.
func NewGestures() *Gestures {
	return &Gestures{}
}

// OnNextGesture runs fn once, on the next Fire.
func (g *Gestures) OnNextGesture(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, fn)
}

// Fire runs and clears every pending subscriber.
func (g *Gestures) Fire() {
	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}
