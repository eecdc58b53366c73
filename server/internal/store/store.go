package store

import (
	"sync"
	"time"

	"github.com/vitalops/vitalops/server/internal/vitals"
)

// DefaultHistoryLimit is the number of readings History callers get when they
// do not ask for a specific count.
const DefaultHistoryLimit = 10

// Store is a thread-safe append-only log of stored readings.
// Appends are serialised by mu; reads take the read lock and return copies.
type Store struct {
	mu       sync.RWMutex
	readings []vitals.StoredReading
	now      func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// Append stamps r with the current UTC time and appends it to the log.
// The timestamp never goes backwards: if the clock steps back, the previous
// reading's timestamp is reused.
func (s *Store) Append(r vitals.Reading) vitals.StoredReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if n := len(s.readings); n > 0 {
		if prev := s.readings[n-1].TimestampServer; ts.Before(prev) {
			ts = prev
		}
	}

	stored := vitals.StoredReading{Reading: r, TimestampServer: ts}
	s.readings = append(s.readings, stored)
	return stored
}

// Latest returns the most recently appended reading and true, or false if the
// store is empty.
func (s *Store) Latest() (vitals.StoredReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.readings) == 0 {
		return vitals.StoredReading{}, false
	}
	return s.readings[len(s.readings)-1], true
}

// History returns up to limit of the most recent readings, oldest first.
// A non-positive limit yields an empty slice. The result is never nil.
func (s *Store) History(limit int) []vitals.StoredReading {
	if limit < 0 {
		limit = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.readings) {
		limit = len(s.readings)
	}
	out := make([]vitals.StoredReading, limit)
	copy(out, s.readings[len(s.readings)-limit:])
	return out
}

// Count returns the number of readings stored so far.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}
