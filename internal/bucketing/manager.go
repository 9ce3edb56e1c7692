package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/config"
)

// Manager assigns consistent partition buckets for event rows. Scylla
// partitions rate-limit events by (bucket, user, action); hashing the user
// id spreads hot users across the cluster without coordination.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		eventBuckets: cfg.Bucketing.EventBuckets,
	}

	// Pool of hash functions to avoid allocation overhead per event
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// EventBucket returns a consistent bucket for an identifier (0 to
// eventBuckets-1).
func (m *Manager) EventBucket(identifier string) int {
	return int(m.getHash(identifier) % uint64(m.eventBuckets))
}

func (m *Manager) getHash(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
