package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks shell activity with atomic counters.
type Metrics struct {
	diffsComputed      atomic.Uint64
	fallbackDiffs      atomic.Uint64
	previewsRendered   atomic.Uint64
	previewsSuppressed atomic.Uint64
	rendersScheduled   atomic.Uint64
	evictions          atomic.Uint64
	sessionSaves       atomic.Uint64
	sessionRestores    atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordDiffRender counts a computed diff, noting when the engine took
// the greedy fallback path.
func (m *Metrics) RecordDiffRender(fallback bool) {
	m.diffsComputed.Add(1)
	if fallback {
		m.fallbackDiffs.Add(1)
	}
}

// RecordPreviewRender counts a rendered preview.
func (m *Metrics) RecordPreviewRender() {
	m.previewsRendered.Add(1)
}

// RecordPreviewSuppressed counts a preview skipped by the large-document
// policy.
func (m *Metrics) RecordPreviewSuppressed() {
	m.previewsSuppressed.Add(1)
}

// RecordRenderScheduled counts a debounce-scheduled render.
func (m *Metrics) RecordRenderScheduled() {
	m.rendersScheduled.Add(1)
}

// RecordEviction counts a demoted live editing state.
func (m *Metrics) RecordEviction() {
	m.evictions.Add(1)
}

// RecordSessionSave counts a persisted session snapshot.
func (m *Metrics) RecordSessionSave() {
	m.sessionSaves.Add(1)
}

// RecordSessionRestore counts a session rebuilt at startup.
func (m *Metrics) RecordSessionRestore() {
	m.sessionRestores.Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	DiffsComputed      uint64
	FallbackDiffs      uint64
	PreviewsRendered   uint64
	PreviewsSuppressed uint64
	RendersScheduled   uint64
	Evictions          uint64
	SessionSaves       uint64
	SessionRestores    uint64
	Uptime             time.Duration
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		DiffsComputed:      m.diffsComputed.Load(),
		FallbackDiffs:      m.fallbackDiffs.Load(),
		PreviewsRendered:   m.previewsRendered.Load(),
		PreviewsSuppressed: m.previewsSuppressed.Load(),
		RendersScheduled:   m.rendersScheduled.Load(),
		Evictions:          m.evictions.Load(),
		SessionSaves:       m.sessionSaves.Load(),
		SessionRestores:    m.sessionRestores.Load(),
		Uptime:             time.Since(m.startTime),
	}
}
