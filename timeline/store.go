package timeline

import (
	"sort"
	"sync"
)

// Store holds the authoritative ordered set of moments for the active
// session. Inserts are idempotent on moment ID, and the collection is kept
// sorted ascending by time (stable, so equal times preserve arrival order).
//
// Both the detector stream and playback clock ticks call into the store, so
// every operation is serialized through one mutex: Insert is a
// read-modify-write (dedup check plus re-sort) that must not interleave.
type Store struct {
	mu      sync.Mutex
	moments []Moment
	byID    map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]struct{})}
}

// Insert adds a moment unless one with the same ID already exists. It
// reports whether the moment was newly inserted; duplicates are silently
// absorbed, never an error.
func (s *Store) Insert(m Moment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byID[m.ID]; dup {
		return false
	}
	s.byID[m.ID] = struct{}{}
	s.moments = append(s.moments, m)
	sort.SliceStable(s.moments, func(i, j int) bool {
		return s.moments[i].Time < s.moments[j].Time
	})
	return true
}

// Latest returns the moment with the greatest time, if any.
func (s *Store) Latest() (Moment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.moments) == 0 {
		return Moment{}, false
	}
	return s.moments[len(s.moments)-1], true
}

// InWindow returns the moments with time in [anchor-past, anchor+future],
// ascending.
func (s *Store) InWindow(anchor, past, future float64) []Moment {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := anchor-past, anchor+future
	out := make([]Moment, 0, len(s.moments))
	for _, m := range s.moments {
		if m.Time >= lo && m.Time <= hi {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns a copy of the full ordered collection.
func (s *Store) Snapshot() []Moment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Moment, len(s.moments))
	copy(out, s.moments)
	return out
}

// Len returns the number of stored moments.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moments)
}

// Reset clears all moments and dedup bookkeeping, leaving the store as
// freshly constructed. IDs from the discarded session may be inserted again.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments = nil
	s.byID = make(map[string]struct{})
}
