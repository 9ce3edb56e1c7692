package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Development and test backend;
// carries no cross-process state, so production deployments use the Scylla
// or Redis stores instead.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryKey][]time.Time
}

type memoryKey struct {
	userID string
	action Action
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[memoryKey][]time.Time),
	}
}

func (s *MemoryStore) CountSince(_ context.Context, userID string, action Action, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, ts := range s.records[memoryKey{userID, action}] {
		if !ts.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Insert(_ context.Context, userID string, action Action, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{userID, action}
	s.records[key] = append(s.records[key], at)
	return nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, horizon time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, timestamps := range s.records {
		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts.Before(horizon) {
				removed++
			} else {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(s.records, key)
		} else {
			s.records[key] = kept
		}
	}
	return removed, nil
}

// Len reports the total number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, timestamps := range s.records {
		total += len(timestamps)
	}
	return total
}
