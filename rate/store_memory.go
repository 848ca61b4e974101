package rate

import (
	"sync"
	"time"
)

// MemoryCounterStore keeps true sliding-window counters in process
// memory: each key holds the timestamps of its recent hits, trimmed to
// the window on every increment.
type MemoryCounterStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

var _ CounterStore = (*MemoryCounterStore)(nil)

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{hits: make(map[string][]time.Time)}
}

func (m *MemoryCounterStore) Incr(key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	hits := append(m.hits[key], now)

	// Trim hits that have slid out of the window.
	cutoff := now.Add(-window)
	start := 0
	for start < len(hits) && hits[start].Before(cutoff) {
		start++
	}
	hits = hits[start:]

	m.hits[key] = hits
	return int64(len(hits)), nil
}

// Sweep drops keys whose most recent hit is older than maxAge. The hot
// path already trims per key; Sweep only bounds memory for keys that
// stopped arriving. Call it periodically from the host.
func (m *MemoryCounterStore) Sweep(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, hits := range m.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.hits, key)
		}
	}
}
