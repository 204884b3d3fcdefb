package frame

import (
	"sync"
	"sync/atomic"
)

// Library provides thread-safe access to the active frame provider, so the
// serving layer can swap videos without tearing down episodes mid-flight.
// Episodes hold the provider they were reset with; the library only decides
// what the next reset uses.
type Library struct {
	active atomic.Pointer[providerBox]
	mu     sync.Mutex // serializes swaps
}

// providerBox exists because atomic.Pointer needs a concrete element type.
type providerBox struct {
	p Provider
}

// NewLibrary creates a library with the given initial provider, which may
// be nil.
func NewLibrary(p Provider) *Library {
	l := &Library{}
	if p != nil {
		l.active.Store(&providerBox{p: p})
	}
	return l
}

// Active returns the current provider, or nil if none is loaded.
func (l *Library) Active() Provider {
	box := l.active.Load()
	if box == nil {
		return nil
	}
	return box.p
}

// Swap atomically replaces the active provider.
func (l *Library) Swap(p Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active.Store(&providerBox{p: p})
}
