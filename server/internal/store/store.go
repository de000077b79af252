package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stewardlens/stewardlens/pkg/wire"
)

// Entry is a snapshot together with the time it was last received.
type Entry struct {
	Snapshot  *wire.Snapshot
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory snapshot store, keyed by source_id.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests

	onEvict func(sourceID string)
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// OnEvict registers fn to be called, outside the lock, with the source ID of
// every entry removed by Evict. It must be called before Run.
func (s *Store) OnEvict(fn func(sourceID string)) {
	s.onEvict = fn
}

// TTL returns the configured retention window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the snapshot for snap.SourceID.
// Callers must not modify snap after calling Put.
func (s *Store) Put(snap *wire.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.SourceID] = &Entry{
		Snapshot:  snap,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for the given source ID and a boolean indicating
// whether an entry was found. The entry may be stale if TTL has elapsed.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	return e, ok
}

// Fresh is Get restricted to entries updated within the TTL.
func (s *Store) Fresh(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	if !ok || !s.live(e) {
		return nil, false
	}
	return e, true
}

func (s *Store) live(e *Entry) bool {
	return e.UpdatedAt.After(s.now().Add(-s.ttl))
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by
// source ID. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.live(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Snapshot.SourceID < out[j].Snapshot.SourceID
	})
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	cutoff := now.Add(-s.ttl)
	var removed []string
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, id := range removed {
			s.onEvict(id)
		}
	}
	return len(removed)
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second, maximum 1 minute). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale snapshots", "count", n)
			}
		}
	}
}
