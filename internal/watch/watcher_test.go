package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls struct {
	mu  sync.Mutex
	got [][]string
}

func (c *calls) handler(_ context.Context, changed []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, changed)
	return nil
}

func (c *calls) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.got...)
}

func start(t *testing.T, w *Watcher, c *calls) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, c.handler) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestWatcher_DebouncesFileWrites(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "page-registry.json")
	require.NoError(t, os.WriteFile(registry, []byte("[]"), 0o600))
	unrelated := filepath.Join(dir, "other.json")

	w, err := New(150*time.Millisecond, Target{Path: registry})
	require.NoError(t, err)
	c := &calls{}
	start(t, w, c)

	for range 3 {
		require.NoError(t, os.WriteFile(registry, []byte(`[{"path":"/a"}]`), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(unrelated, []byte("{}"), 0o600))

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, []string{registry}, got[0])
}

func TestWatcher_RecursiveTargetPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	public := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(public, 0o755))

	w, err := New(100*time.Millisecond, Target{Path: public, Recursive: true})
	require.NoError(t, err)
	c := &calls{}
	start(t, w, c)

	nested := filepath.Join(public, "blog")
	require.NoError(t, os.Mkdir(nested, 0o755))
	require.Eventually(t, func() bool { return len(c.snapshot()) >= 1 }, 3*time.Second, 20*time.Millisecond)

	page := filepath.Join(nested, "index.html")
	require.NoError(t, os.WriteFile(page, []byte("<p>hi</p>"), 0o600))
	require.Eventually(t, func() bool {
		for _, changed := range c.snapshot() {
			for _, p := range changed {
				if p == page {
					return true
				}
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_MissingTargetIsCreatedLater(t *testing.T) {
	dir := t.TempDir()
	routesFile := filepath.Join(dir, "deploy.json")

	w, err := New(50*time.Millisecond, Target{Path: routesFile})
	require.NoError(t, err)
	c := &calls{}
	start(t, w, c)

	require.NoError(t, os.WriteFile(routesFile, []byte("{}"), 0o600))
	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestNew_MissingParentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, err := New(0,
		Target{Path: filepath.Join(dir, "nope", "file.json")},
		Target{Path: filepath.Join(dir, "deploy.json")},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.watcher.Close() })
	require.Len(t, w.targets, 1)
	assert.Equal(t, DefaultDebounce, w.debounce)
}
