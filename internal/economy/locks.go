package economy

import (
	"sort"
	"sync"
)

// keyedLocks serializes transactions per record key. Multi-key acquisitions
// always lock in sorted key order, so two transactions touching the same
// records can never deadlock against each other.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex for a key, creating it on first use. Mutexes are
// never freed; the set is bounded by the player and shop population.
func (l *keyedLocks) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.held[key]
	if !ok {
		m = &sync.Mutex{}
		l.held[key] = m
	}
	return m
}

// acquire locks every key in sorted order and returns the release function.
// Duplicate keys are collapsed so a same-record operation locks once.
func (l *keyedLocks) acquire(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	locked := make([]*sync.Mutex, 0, len(sorted))
	for _, key := range sorted {
		m := l.lockFor(key)
		m.Lock()
		locked = append(locked, m)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}
