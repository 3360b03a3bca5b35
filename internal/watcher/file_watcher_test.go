package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher fails on a missing directory
// - A batch of rapid changes fires one sorted, deduplicated callback
// - Only monitored extensions are reported
// - Removed files are reported
// - New directories are watched recursively; skipped directories are not
// - Pause accumulates and Resume fires immediately
// - Stop is idempotent and safe concurrently; Start requires a callback

const testDebounce = 150 * time.Millisecond

// batches collects callback invocations.
type batches struct {
	mu    sync.Mutex
	calls [][]string
	ch    chan struct{}
}

func newBatches() *batches {
	return &batches{ch: make(chan struct{}, 16)}
}

func (b *batches) callback(files []string) {
	b.mu.Lock()
	b.calls = append(b.calls, files)
	b.mu.Unlock()
	b.ch <- struct{}{}
}

func (b *batches) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-b.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("callback not called after timeout")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func (b *batches) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func startWatcher(t *testing.T, dir string, opts Options) (FileWatcher, *batches) {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = testDebounce
	}
	w, err := NewFileWatcher([]string{dir}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	b := newBatches()
	require.NoError(t, w.Start(context.Background(), b.callback))
	// Give the watch goroutine time to start.
	time.Sleep(50 * time.Millisecond)
	return w, b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewFileWatcher_InvalidDirectory(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "nonexistent")}, Options{})
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestFileWatcher_BatchesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, b := startWatcher(t, dir, Options{})

	a := filepath.Join(dir, "a.c")
	h := filepath.Join(dir, "a.h")
	writeFile(t, a, "int a;\n")
	time.Sleep(30 * time.Millisecond)
	writeFile(t, h, "int h;\n")
	time.Sleep(30 * time.Millisecond)
	writeFile(t, a, "int a, b;\n")

	assert.Equal(t, []string{a, h}, b.wait(t))

	time.Sleep(2 * testDebounce)
	assert.Equal(t, 1, b.count())
}

func TestFileWatcher_ExtensionFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, b := startWatcher(t, dir, Options{})

	writeFile(t, filepath.Join(dir, "notes.md"), "x")
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	src := filepath.Join(dir, "main.c")
	writeFile(t, src, "int x;\n")

	assert.Equal(t, []string{src}, b.wait(t))
}

func TestFileWatcher_CustomExtensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, b := startWatcher(t, dir, Options{Extensions: []string{".inc"}})

	writeFile(t, filepath.Join(dir, "main.c"), "int x;\n")
	inc := filepath.Join(dir, "table.inc")
	writeFile(t, inc, "X(1)\n")

	assert.Equal(t, []string{inc}, b.wait(t))
}

func TestFileWatcher_FileRemoved(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h := filepath.Join(dir, "gone.h")
	writeFile(t, h, "int g;\n")
	_, b := startWatcher(t, dir, Options{})

	require.NoError(t, os.Remove(h))
	assert.Equal(t, []string{h}, b.wait(t))
}

func TestFileWatcher_Directories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	_, b := startWatcher(t, dir, Options{
		SkipDir: func(path string) bool { return strings.HasSuffix(path, "build") },
	})

	// Test: a skipped directory is never watched
	writeFile(t, filepath.Join(dir, "build", "gen.c"), "int gen;\n")

	// Test: a new directory is watched once created
	sub := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	f := filepath.Join(sub, "lib.c")
	writeFile(t, f, "int lib;\n")

	assert.Equal(t, []string{f}, b.wait(t))
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, b := startWatcher(t, dir, Options{})

	w.Pause()
	f := filepath.Join(dir, "paused.c")
	writeFile(t, f, "int p;\n")
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, b.count())

	w.Resume()
	assert.Equal(t, []string{f}, b.wait(t))

	// Test: resuming with nothing accumulated fires nothing
	w.Resume()
	time.Sleep(testDebounce)
	assert.Equal(t, 1, b.count())
}

func TestFileWatcher_StopAndStart(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background(), nil))

	// Test: stopping a watcher that never started
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	w, err = NewFileWatcher([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), func([]string) {}))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}

func TestFileWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewFileWatcher([]string{dir}, Options{Debounce: testDebounce})
	require.NoError(t, err)
	defer w.Stop()

	b := newBatches()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, b.callback))
	cancel()
	time.Sleep(50 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "late.c"), "int late;\n")
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, b.count())
}
