// Package scheduler keeps at most one pending delayed call per key.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/sangkips/tillsync/pkg/clock"
)

// Scheduler maps a key to a single cancellable handle. Scheduling a key that
// already has a pending handle stops the old one first, so calls for the same
// key are replaced and never stacked.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	handles map[string]*handle
}

type handle struct {
	timer clock.Timer
	due   time.Time
}

// New creates a scheduler driven by c.
func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock:   c,
		handles: make(map[string]*handle),
	}
}

// Schedule arranges for fn to run after delay under key, replacing any
// pending call for the same key.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.handles[key]; ok {
		old.timer.Stop()
	}

	h := &handle{due: s.clock.Now().Add(delay)}
	h.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.handles[key]
		if !ok || current != h {
			// superseded or cancelled
			s.mu.Unlock()
			return
		}
		delete(s.handles, key)
		s.mu.Unlock()

		fn()
	})
	s.handles[key] = h
}

// Cancel stops the pending call for key. It reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(s.handles, key)
	return true
}

// CancelAll stops every pending call.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, h := range s.handles {
		h.timer.Stop()
		delete(s.handles, key)
	}
}

// Has reports whether key has a pending call.
func (s *Scheduler) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[key]
	return ok
}

// Due returns when the pending call for key will run.
func (s *Scheduler) Due(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	if !ok {
		return time.Time{}, false
	}
	return h.due, true
}

// Pending returns the keys with a pending call, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.handles))
	for key := range s.handles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
