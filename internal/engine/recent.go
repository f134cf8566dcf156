package engine

import (
	"path/filepath"
	"sync"
	"time"
)

// DefaultRecentWriteTTL is how long a written path counts as recent.
const DefaultRecentWriteTTL = 2 * time.Second

// RecentWrites remembers paths the engine wrote itself so a file watcher can
// ignore the events they cause. Entries expire after the TTL.
type RecentWrites struct {
	entries map[string]time.Time
	mutex   sync.Mutex
	ttl     time.Duration
	now     func() time.Time
}

// NewRecentWrites creates a record whose entries live for ttl.
func NewRecentWrites(ttl time.Duration) *RecentWrites {
	if ttl <= 0 {
		ttl = DefaultRecentWriteTTL
	}
	return &RecentWrites{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Record marks path as just written.
func (r *RecentWrites) Record(path string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries[filepath.Clean(path)] = r.now()
}

// Contains reports whether path was written within the TTL. Expired entries
// are dropped on lookup.
func (r *RecentWrites) Contains(path string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	path = filepath.Clean(path)
	writtenAt, exists := r.entries[path]
	if !exists {
		return false
	}
	if r.now().Sub(writtenAt) > r.ttl {
		delete(r.entries, path)
		return false
	}
	return true
}

// Prune removes expired entries and returns how many remain.
func (r *RecentWrites) Prune() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	for path, writtenAt := range r.entries {
		if now.Sub(writtenAt) > r.ttl {
			delete(r.entries, path)
		}
	}
	return len(r.entries)
}

// Clear forgets every entry.
func (r *RecentWrites) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries = make(map[string]time.Time)
}
