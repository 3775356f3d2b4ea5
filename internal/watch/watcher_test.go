package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector gathers callback paths.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *collector) waitFor(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, c.count())
}

func TestWatcherReportsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(30*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, 1, 2*time.Second)
	c.mu.Lock()
	got := c.paths[0]
	c.mu.Unlock()
	if got != path {
		t.Errorf("event path = %q, want %q", got, path)
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(60*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}

	// A double write, as editors do (write + truncate or write twice).
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("burst"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.waitFor(t, 1, 2*time.Second)
	time.Sleep(150 * time.Millisecond)
	if got := c.count(); got != 1 {
		t.Errorf("expected 1 debounced event for write burst, got %d", got)
	}
}

func TestWatcherRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}
	w.Remove(path)

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("removed path still reported %d events", got)
	}
}

// writeRenameOver replaces path the way atomic saves do: write a temp
// file beside it and rename it into place.
func writeRenameOver(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherSurvivesRenameOverSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}

	// First save replaces the inode; the watch must survive it.
	writeRenameOver(t, path, []byte("v2"))
	c.waitFor(t, 1, 2*time.Second)

	writeRenameOver(t, path, []byte("v3"))
	c.waitFor(t, 2, 2*time.Second)

	if err := os.WriteFile(path, []byte("v4"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, 3, 2*time.Second)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, got := range c.paths {
		if got != path {
			t.Errorf("event %d path = %q, want %q", i, got, path)
		}
	}
}

func TestWatcherIgnoresUnregisteredSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}

	// Temp files and siblings in the watched directory stay silent.
	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := c.count(); got != 0 {
		t.Errorf("sibling write reported %d events", got)
	}
}

func TestWatcherReleasesFiredDebouncers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	w, err := New(c.add, WithDelay(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, 1, 2*time.Second)

	// The spent timer must not linger in the pending map.
	deadline := time.Now().Add(time.Second)
	for {
		w.mu.Lock()
		n := len(w.pending)
		w.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d spent debouncers still pending", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := New(func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
