// Package watch reports external modifications to the files open in tabs.
//
// Watches are registered per file but installed on the parent directory:
// a direct watch follows the inode, so any atomic rename-over save (our
// own saves included) would orphan it and silence every later change.
// Directory events are filtered back to the registered file paths.
//
// Editors and sync tools often write a file several times in quick
// succession, so events are debounced per path before reaching the
// callback. Chmod-only events are ignored.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkwell-md/inkwell/internal/debounce"
)

// DefaultDelay is the per-path event debounce.
const DefaultDelay = 100 * time.Millisecond

// Logger is the subset of the shell logger the watcher uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Watcher invokes a callback when a watched file changes on disk.
type Watcher struct {
	fsw     *fsnotify.Watcher
	onEvent func(path string)
	log     Logger
	delay   time.Duration

	mu      sync.Mutex
	paths   map[string]struct{}
	dirs    map[string]int
	pending map[string]*debounce.Debouncer
	closed  bool

	done chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithDelay sets the per-path debounce.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// New starts a watcher delivering debounced change notifications to
// onEvent. The callback runs on a timer goroutine.
func New(onEvent func(path string), opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		onEvent: onEvent,
		delay:   DefaultDelay,
		paths:   make(map[string]struct{}),
		dirs:    make(map[string]int),
		pending: make(map[string]*debounce.Debouncer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

// Add watches a file path by registering it and watching its parent
// directory. Watching an already-watched path is a no-op.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if _, ok := w.paths[path]; ok {
		return nil
	}

	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w.dirs[dir]++
	w.paths[path] = struct{}{}
	return nil
}

// Remove stops watching a path. The parent directory watch drops when no
// registered path remains under it. Unknown paths are not an error.
func (w *Watcher) Remove(path string) {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; !ok {
		return
	}
	delete(w.paths, path)

	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.fsw.Remove(dir)
	}
	if d, ok := w.pending[path]; ok {
		d.Cancel()
		delete(w.pending, path)
	}
}

// Close stops the watcher and cancels pending notifications.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, d := range w.pending {
		d.Cancel()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// A rename-over save lands as Create for the destination name.
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(filepath.Clean(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("file watcher error: %v", err)
			}
		}
	}
}

// schedule (re)arms the path's debouncer. Directory events for paths
// nobody registered (temp files, siblings) are dropped here. The
// debouncer removes itself from the pending map when it fires, so long
// sessions do not accumulate spent timers.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, ok := w.paths[path]; !ok {
		w.mu.Unlock()
		return
	}
	d, ok := w.pending[path]
	if !ok {
		d = debounce.New(w.delay, func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
			if w.log != nil {
				w.log.Debug("external change: %s", path)
			}
			w.onEvent(path)
		})
		w.pending[path] = d
	}
	w.mu.Unlock()

	d.Call()
}
