package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It serves a single
// instance when Redis is unavailable; Purge drops expired entries.
type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	recs map[Key]Record
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, recs: make(map[Key]Record)}
}

func (s *MemoryStore) Put(_ context.Context, key Key, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ExpiresAt = s.now().Add(ttl)
	s.recs[key] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if !ok {
		return Record{}, errNoRecord
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.recs, key)
		return Record{}, errNoRecord
	}
	return rec, nil
}

func (s *MemoryStore) Attempt(_ context.Context, key Key) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if !ok || !s.now().Before(rec.ExpiresAt) {
		return Record{}, errNoRecord
	}
	rec.Attempts++
	s.recs[key] = rec
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, key)
	return nil
}

// Purge removes expired records and returns how many were dropped.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, rec := range s.recs {
		if !now.Before(rec.ExpiresAt) {
			delete(s.recs, k)
			n++
		}
	}
	return n
}

// Len reports the number of records held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}
