package alerting

import (
	"sync"
	"time"
)

// Suppressor rate-limits events per suppression key so a flapping
// condition cannot flood the notification channel. Distinct keys never
// suppress each other; in particular a recovery is keyed separately
// from its missing alert and always gets through.
type Suppressor struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[string]time.Time
	dropped  int64
}

// NewSuppressor creates a Suppressor with the given cooldown.
// A cooldown of zero disables suppression entirely.
func NewSuppressor(cooldown time.Duration) *Suppressor {
	return &Suppressor{
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// Admit reports whether the event should be forwarded now.
func (s *Suppressor) Admit(e *Event) bool {
	return s.AdmitAt(e, time.Now())
}

// AdmitAt is Admit with an explicit clock. The first event for a key is
// always admitted; later events for the same key are admitted only once
// the cooldown since the last admitted send has elapsed. Entries are
// never deleted: the key space is bounded by the configured rule set.
func (s *Suppressor) AdmitAt(e *Event, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.Key()
	last, ok := s.lastSent[key]
	if ok && s.cooldown > 0 && now.Sub(last) < s.cooldown {
		s.dropped++
		return false
	}
	s.lastSent[key] = now
	return true
}

// Dropped returns how many events were suppressed.
func (s *Suppressor) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Reset clears all suppression state.
func (s *Suppressor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent = make(map[string]time.Time)
	s.dropped = 0
}
