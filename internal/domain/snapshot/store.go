// ABOUTME: Snapshot store holding the single current song value
// ABOUTME: Whole-value replace under a mutex so readers never see a torn update
package snapshot

import (
	"sync"
	"time"

	"github.com/harper/nowplaying/internal/domain/song"
)

// Store is the one shared mutable cell in the process. Create it once at
// startup and hand the pointer to every component that needs it.
type Store struct {
	mu        sync.RWMutex
	current   song.Info
	updatedAt time.Time
	now       func() time.Time
}

// New returns a store holding the placeholder. now stamps each Replace;
// nil means time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		current: song.Placeholder(),
		now:     now,
	}
}

// Read returns a copy of the current value.
func (s *Store) Read() song.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps the stored value wholesale.
func (s *Store) Replace(info song.Info) {
	now := s.now()

	s.mu.Lock()
	s.current = info
	s.updatedAt = now
	s.mu.Unlock()
}

// UpdatedAt reports when Replace last ran. ok is false before the first update.
func (s *Store) UpdatedAt() (t time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, !s.updatedAt.IsZero()
}
