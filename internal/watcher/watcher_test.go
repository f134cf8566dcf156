package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecord map[string]bool

func (r fakeRecord) Contains(path string) bool {
	return r[path]
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.NotNil(t, watcher.logger)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFilters(t *testing.T) {
	html := ExtensionFilter(".html", ".yaml")
	assert.True(t, html("/site/a.html"))
	assert.True(t, html("/site/features.YAML"))
	assert.False(t, html("/site/a.go"))

	ignore := IgnoreFilter(".git", "node_modules")
	assert.False(t, ignore("/site/.git/HEAD"))
	assert.False(t, ignore("/site/node_modules/x/index.html"))
	assert.True(t, ignore("/site/pages/index.html"))

	recent := RecentWriteFilter(fakeRecord{"/dist/index.html": true})
	assert.False(t, recent("/dist/index.html"))
	assert.True(t, recent("/dist/about.html"))

	same := SameFile("/site/features.yaml")
	assert.True(t, same("/site/features.yaml"))
	assert.False(t, same("/site/other.yaml"))

	either := AnyOf(ExtensionFilter(".html"), same)
	assert.True(t, either("/site/features.yaml"))
	assert.True(t, either("/site/a.html"))
	assert.False(t, either("/site/other.yaml"))

	within := WithinDir("/site")
	assert.True(t, within("/site/pages/a.html"))
	assert.True(t, within("/site"))
	assert.False(t, within("/sitemap/a.html"))
	assert.False(t, within("/dist/a.html"))

	outside := Not(WithinDir("/site/dist"))
	assert.True(t, outside("/site/pages/a.html"))
	assert.False(t, outside("/site/dist/a.html"))
}

func TestConvertAppliesFilters(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(ExtensionFilter(".html"))
	watcher.AddFilter(RecentWriteFilter(fakeRecord{"/dist/out.html": true}))

	testCases := []struct {
		name     string
		event    fsnotify.Event
		ok       bool
		expected EventType
	}{
		{"create", fsnotify.Event{Name: "/site/a.html", Op: fsnotify.Create}, true, EventTypeCreated},
		{"write", fsnotify.Event{Name: "/site/a.html", Op: fsnotify.Write}, true, EventTypeModified},
		{"remove", fsnotify.Event{Name: "/site/a.html", Op: fsnotify.Remove}, true, EventTypeDeleted},
		{"rename", fsnotify.Event{Name: "/site/a.html", Op: fsnotify.Rename}, true, EventTypeRenamed},
		{"chmod", fsnotify.Event{Name: "/site/a.html", Op: fsnotify.Chmod}, true, EventTypeModified},
		{"wrong extension", fsnotify.Event{Name: "/site/a.txt", Op: fsnotify.Write}, false, 0},
		{"own write", fsnotify.Event{Name: "/dist/out.html", Op: fsnotify.Write}, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, ok := watcher.convert(tc.event, nil, os.ErrNotExist)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.expected, event.Type)
				assert.Equal(t, tc.event.Name, event.Path)
			}
		})
	}
}

func TestDebouncerFlush(t *testing.T) {
	d := newDebouncer(time.Hour)
	d.pending = []ChangeEvent{
		{Type: EventTypeCreated, Path: "b.html"},
		{Type: EventTypeModified, Path: "a.html"},
		{Type: EventTypeDeleted, Path: "b.html"},
	}

	d.flush()

	events := <-d.output
	require.Len(t, events, 2)
	assert.Equal(t, "a.html", events[0].Path)
	assert.Equal(t, "b.html", events[1].Path)
	assert.Equal(t, EventTypeDeleted, events[1].Type)
	assert.Empty(t, d.pending)

	d.flush()
	assert.Empty(t, d.output, "an empty flush sends nothing")
}

func TestAddPath(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath("/non/existent/path"))
}

func TestAddRecursiveSkipsIgnoredDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages", "blog"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.AddRecursive(dir))

	watched := watcher.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(dir, "pages", "blog"))
	assert.NotContains(t, watched, filepath.Join(dir, ".git"))
	assert.NotContains(t, watched, filepath.Join(dir, ".git", "objects"))

	watcher.IgnoreDirs()
	assert.True(t, watcher.dirAllowed(filepath.Join(dir, ".git")))
}

func TestFileWatcherDeliversDebouncedChanges(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(ExtensionFilter(".html"))
	require.NoError(t, watcher.AddRecursive(dir))

	var (
		mu       sync.Mutex
		received []ChangeEvent
	)
	done := make(chan struct{}, 1)
	watcher.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		received = append(received, events...)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	target := filepath.Join(dir, "index.html")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, received)
	for _, event := range received {
		assert.Equal(t, target, event.Path)
	}
}
