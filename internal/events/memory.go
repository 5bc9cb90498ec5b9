package events

import (
	"context"
	"sync"
)

// MemorySink records signals in order. It backs local runs and doubles as the
// test spy for asserting what a scenario emitted.
type MemorySink struct {
	mu      sync.Mutex
	signals []Signal
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, sig Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

// Signals returns a copy of everything emitted so far.
func (s *MemorySink) Signals() []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Signal{}, s.signals...)
}

// OfKind returns the emitted signals with the given kind.
func (s *MemorySink) OfKind(kind string) []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Signal
	for _, sig := range s.signals {
		if sig.Kind() == kind {
			out = append(out, sig)
		}
	}
	return out
}
