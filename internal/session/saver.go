package session

import (
	"context"
	"time"

	"github.com/inkwell-md/inkwell/internal/debounce"
)

// DefaultSaveDebounce is the quiet period before a session write.
const DefaultSaveDebounce = 2 * time.Second

// Logger is the subset of the shell logger the saver uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher is the subset of the event bus the saver uses.
type Publisher interface {
	Publish(topic string, payload any)
}

// Metrics records completed session saves.
type Metrics interface {
	RecordSessionSave()
}

// Saver is the debounced persistence pump. Every tab store mutation calls
// NotifyChanged; only the trailing edge of a burst writes, building the
// snapshot at write time.
type Saver struct {
	primary  Store
	fallback *FileStore
	build    func() *Snapshot
	log      Logger
	bus      Publisher
	metrics  Metrics
	topic    string

	deb *debounce.Debouncer
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSaveDebounce sets the quiet period.
func WithSaveDebounce(d time.Duration) SaverOption {
	return func(s *Saver) {
		if d > 0 {
			s.deb = debounce.New(d, s.saveDebounced)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log Logger) SaverOption {
	return func(s *Saver) {
		s.log = log
	}
}

// WithBus publishes topic on every successful save.
func WithBus(bus Publisher, topic string) SaverOption {
	return func(s *Saver) {
		s.bus = bus
		s.topic = topic
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) SaverOption {
	return func(s *Saver) {
		s.metrics = m
	}
}

// NewSaver creates a saver. build produces the snapshot to persist; a nil
// snapshot skips the write.
func NewSaver(primary Store, fallback *FileStore, build func() *Snapshot, opts ...SaverOption) *Saver {
	s := &Saver{
		primary:  primary,
		fallback: fallback,
		build:    build,
	}
	s.deb = debounce.New(DefaultSaveDebounce, s.saveDebounced)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyChanged (re)arms the save debounce.
func (s *Saver) NotifyChanged() {
	s.deb.Call()
}

// Flush writes the current snapshot immediately and disarms the timer.
// The shutdown path.
func (s *Saver) Flush(ctx context.Context) error {
	s.deb.Cancel()
	return s.save(ctx)
}

// Stop cancels any pending write.
func (s *Saver) Stop() {
	s.deb.Cancel()
}

func (s *Saver) saveDebounced() {
	if err := s.save(context.Background()); err != nil && s.log != nil {
		s.log.Error("session save failed: %v", err)
	}
}

// save persists the snapshot. A primary failure degrades to a synchronous
// best-effort write of the fallback file; only both failing surfaces an
// error, and no failure is fatal to the caller.
func (s *Saver) save(ctx context.Context) error {
	snap := s.build()
	if snap == nil {
		return nil
	}
	snap.SavedAt = time.Now().UTC()

	if err := s.primary.Save(ctx, snap); err != nil {
		if s.log != nil {
			s.log.Warn("primary session store unavailable, using fallback: %v", err)
		}
		if s.fallback == nil {
			return err
		}
		if ferr := s.fallback.Save(ctx, snap); ferr != nil {
			return ferr
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSessionSave()
	}
	if s.bus != nil && s.topic != "" {
		s.bus.Publish(s.topic, len(snap.Tabs))
	}
	return nil
}
