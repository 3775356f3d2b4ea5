package render

import (
	"sync"
	"time"

	"github.com/inkwell-md/inkwell/internal/debounce"
	"github.com/inkwell-md/inkwell/internal/diff"
	"github.com/inkwell-md/inkwell/internal/tabs"
)

// Scheduler defaults.
const (
	// DefaultDelay is the debounce quiet period for pane recomputes.
	DefaultDelay = 80 * time.Millisecond

	// DefaultLargeDocBytes is the document size above which debounced
	// preview recomputes are suppressed.
	DefaultLargeDocBytes = 200 * 1024
)

// TabInfo is the tab-bar projection of a tab.
type TabInfo struct {
	ID    tabs.TabID
	Name  string
	Dirty bool
}

// Sink receives recompute requests. Implementations are assumed idempotent
// for identical inputs; they run on the debounce timer's goroutine.
type Sink interface {
	// RenderPreview recomputes the preview pane from the full markdown.
	RenderPreview(markdown string)

	// RenderDiff recomputes the diff pane.
	RenderDiff(r diff.Result)

	// RenderTabs redraws the tab bar.
	RenderTabs(tabs []TabInfo, active tabs.TabID)
}

// Source is what the scheduler reads at fire time.
type Source interface {
	// ActiveText returns the active document's current text.
	ActiveText() string

	// ActiveBaseline returns the active document's last saved content,
	// the old side of the diff.
	ActiveBaseline() string
}

// Logger is the subset of the shell logger the scheduler uses.
type Logger interface {
	Debug(msg string, args ...any)
}

// Metrics records scheduler activity. All methods must be safe for
// concurrent use.
type Metrics interface {
	RecordRenderScheduled()
	RecordPreviewRender()
	RecordPreviewSuppressed()
	RecordDiffRender(fallback bool)
}

// Scheduler debounces document-change notifications into pane recomputes.
//
// The preview and diff debouncers are independent: scheduling one never
// resets the other. Activation and mode switches bypass debouncing so the
// newly visible pane is never stale.
type Scheduler struct {
	mu            sync.Mutex
	src           Source
	sink          Sink
	log           Logger
	metrics       Metrics
	mode          Mode
	delay         time.Duration
	largeDocBytes int
	diffOpts      diff.Options

	preview *debounce.Debouncer
	diff    *debounce.Debouncer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay sets the debounce quiet period.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithLargeDocBytes sets the preview suppression threshold. Zero or
// negative keeps the default.
func WithLargeDocBytes(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.largeDocBytes = n
		}
	}
}

// WithDiffOptions sets the diff computation options.
func WithDiffOptions(opts diff.Options) Option {
	return func(s *Scheduler) {
		s.diffOpts = opts
	}
}

// WithMode sets the initial view mode.
func WithMode(m Mode) Option {
	return func(s *Scheduler) {
		s.mode = m
	}
}

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler in ModeSingle.
func New(src Source, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:           src,
		sink:          sink,
		delay:         DefaultDelay,
		largeDocBytes: DefaultLargeDocBytes,
		diffOpts:      diff.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.preview = debounce.New(s.delay, s.renderPreview)
	s.diff = debounce.New(s.delay, s.renderDiff)
	return s
}

// Mode returns the current view mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// DocumentChanged schedules a debounced recompute of whichever pane the
// current mode shows. Rapid calls collapse; only the trailing edge fires,
// reading the document text at fire time.
//
// Above the large-document threshold, debounced preview recomputes are
// suppressed entirely; an immediate render (activation, mode switch,
// Refresh) is the only way to repaint. Diff is unaffected by the
// threshold.
func (s *Scheduler) DocumentChanged() {
	switch s.Mode() {
	case ModeSplitPreview:
		if n := len(s.src.ActiveText()); n > s.largeDocBytes {
			if s.log != nil {
				s.log.Debug("preview suppressed: document %d bytes over %d threshold", n, s.largeDocBytes)
			}
			if s.metrics != nil {
				s.metrics.RecordPreviewSuppressed()
			}
			return
		}
		if s.metrics != nil {
			s.metrics.RecordRenderScheduled()
		}
		s.preview.Call()
	case ModeSplitDiff:
		if s.metrics != nil {
			s.metrics.RecordRenderScheduled()
		}
		s.diff.Call()
	}
}

// ViewChanged switches the view mode and renders the newly visible pane
// immediately, canceling any pending debounced recompute.
func (s *Scheduler) ViewChanged(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()

	s.preview.Cancel()
	s.diff.Cancel()
	s.renderVisible()
}

// TabActivated renders the visible pane immediately for the freshly active
// tab, canceling pending work for the previous one.
func (s *Scheduler) TabActivated() {
	s.preview.Cancel()
	s.diff.Cancel()
	s.renderVisible()
}

// Refresh recomputes the visible pane now, bypassing debounce and the
// large-document suppression.
func (s *Scheduler) Refresh() {
	s.renderVisible()
}

// Flush runs any pending debounced recompute immediately. After Flush no
// timer is pending.
func (s *Scheduler) Flush() {
	s.preview.Flush()
	s.diff.Flush()
}

// Stop cancels all pending recomputes.
func (s *Scheduler) Stop() {
	s.preview.Cancel()
	s.diff.Cancel()
}

// renderVisible repaints whichever pane the current mode shows.
func (s *Scheduler) renderVisible() {
	switch s.Mode() {
	case ModeSplitPreview:
		s.renderPreview()
	case ModeSplitDiff:
		s.renderDiff()
	}
}

func (s *Scheduler) renderPreview() {
	s.sink.RenderPreview(s.src.ActiveText())
	if s.metrics != nil {
		s.metrics.RecordPreviewRender()
	}
}

func (s *Scheduler) renderDiff() {
	old := diff.Split(s.src.ActiveBaseline())
	new := diff.Split(s.src.ActiveText())
	s.sink.RenderDiff(diff.Result{
		Hunks:        diff.Build(diff.Lines(old, new, s.diffOpts), old, new, s.diffOpts.ContextLines),
		OldLineCount: len(old),
		NewLineCount: len(new),
	})
	if s.metrics != nil {
		s.metrics.RecordDiffRender(exceedsCells(len(old), len(new), s.diffOpts.MaxCells))
	}
}

// exceedsCells mirrors the diff engine's cost-ceiling check so the
// fallback counter matches the algorithm actually taken.
func exceedsCells(oldLen, newLen, maxCells int) bool {
	if maxCells <= 0 {
		maxCells = diff.DefaultMaxCells
	}
	return oldLen*newLen > maxCells
}
