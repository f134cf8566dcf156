package registry

import (
	"sort"
	"sync"
	"time"
)

// IncludedFiles records which template files were pulled in through
// [include] while a compilation pass runs. The build uses it as a dependency
// manifest.
type IncludedFiles struct {
	paths    map[string]time.Time
	mutex    sync.RWMutex
	watchers []chan IncludeEvent
}

// IncludeEvent represents a change in the included-files set
type IncludeEvent struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// EventType represents the type of registry event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeCleared
)

// NewIncludedFiles creates an empty included-files registry
func NewIncludedFiles() *IncludedFiles {
	return &IncludedFiles{
		paths:    make(map[string]time.Time),
		watchers: make([]chan IncludeEvent, 0),
	}
}

// Record adds a root-relative path. Recording the same path twice is a no-op.
func (r *IncludedFiles) Record(path string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.paths[path]; exists {
		return
	}
	now := time.Now()
	r.paths[path] = now
	r.notify(IncludeEvent{Type: EventTypeAdded, Path: path, Timestamp: now})
}

// Contains reports whether path has been recorded
func (r *IncludedFiles) Contains(path string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.paths[path]
	return exists
}

// Paths returns the recorded paths in lexical order
func (r *IncludedFiles) Paths() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]string, 0, len(r.paths))
	for path := range r.paths {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Clear empties the registry
func (r *IncludedFiles) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.paths = make(map[string]time.Time)
	r.notify(IncludeEvent{Type: EventTypeCleared, Timestamp: time.Now()})
}

// Count returns the number of recorded paths
func (r *IncludedFiles) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.paths)
}

// Watch returns a channel that receives registry events
func (r *IncludedFiles) Watch() <-chan IncludeEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan IncludeEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *IncludedFiles) UnWatch(ch <-chan IncludeEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the mutex held.
func (r *IncludedFiles) notify(event IncludeEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
