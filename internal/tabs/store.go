package tabs

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/inkwell-md/inkwell/internal/event"
)

// DefaultMaxLive bounds how many tabs hold a live editing state at once.
const DefaultMaxLive = 5

// Publisher is the subset of the event bus the store uses.
type Publisher interface {
	Publish(topic string, payload any)
}

// Store owns the ordered tab list and the active-tab pointer.
//
// All operations are safe for concurrent use; lifecycle events publish
// after the store lock is released so subscribers may call back in.
type Store struct {
	mu      sync.RWMutex
	factory Factory
	confirm Confirmer
	bus     Publisher
	maxLive int

	tabs   map[TabID]*Tab
	order  []TabID
	active TabID
	nextID TabID

	// mru tracks tabs holding live state, most recent first.
	mru []TabID

	untitled int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxLive bounds live editing states to k. Values below 1 keep the
// default.
func WithMaxLive(k int) Option {
	return func(s *Store) {
		if k >= 1 {
			s.maxLive = k
		}
	}
}

// WithConfirmer sets the dirty-close gate.
func WithConfirmer(c Confirmer) Option {
	return func(s *Store) {
		s.confirm = c
	}
}

// WithBus sets the lifecycle event publisher.
func WithBus(bus Publisher) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// New creates a store holding one fresh untitled tab. The tab is not yet
// live; the first Activate materializes it.
func New(factory Factory, opts ...Option) *Store {
	s := &Store{
		factory: factory,
		maxLive: DefaultMaxLive,
		tabs:    make(map[TabID]*Tab),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(s)
	}

	t := s.createLocked("", "")
	s.active = t.ID
	return s
}

// pendingEvent defers publishing until the store lock is released.
type pendingEvent struct {
	topic   string
	payload any
}

func (s *Store) publish(events []pendingEvent) {
	if s.bus == nil {
		return
	}
	for _, ev := range events {
		s.bus.Publish(ev.topic, ev.payload)
	}
}

func tabEvent(t *Tab) event.TabEvent {
	return event.TabEvent{
		ID:    int(t.ID),
		Path:  t.FilePath,
		Name:  t.Name,
		Dirty: t.Dirty,
	}
}

// createLocked allocates the next ID and appends a tab. No live state, no
// activation.
func (s *Store) createLocked(filePath, content string) *Tab {
	t := &Tab{
		ID:        s.nextID,
		FilePath:  filePath,
		Name:      s.nameLocked(filePath),
		Content:   content,
		LastSaved: content,
	}
	s.nextID++
	s.tabs[t.ID] = t
	s.order = append(s.order, t.ID)
	return t
}

// nameLocked derives a tab name: the file's base name, or the next free
// untitled name for drafts.
func (s *Store) nameLocked(filePath string) string {
	if filePath != "" {
		return filepath.Base(filePath)
	}
	s.untitled++
	if s.untitled == 1 {
		return "Untitled"
	}
	return fmt.Sprintf("Untitled-%d", s.untitled)
}

// Create opens a new tab and activates it. Opening a file path already
// owned by a tab activates that tab instead of duplicating it. A
// just-created tab is clean: LastSaved seeds from content.
func (s *Store) Create(filePath, content string) (*Tab, error) {
	s.mu.Lock()

	if filePath != "" {
		for _, id := range s.order {
			if t := s.tabs[id]; t.FilePath == filePath {
				events, err := s.activateLocked(id)
				s.mu.Unlock()
				s.publish(events)
				return t, err
			}
		}
	}

	t := s.createLocked(filePath, content)
	events := []pendingEvent{{event.TopicTabCreated, tabEvent(t)}}
	more, err := s.activateLocked(t.ID)
	events = append(events, more...)
	s.mu.Unlock()

	s.publish(events)
	return t, err
}

// Activate makes the tab current, constructing its live state through the
// factory when it holds none. Activating an already-live active tab is a
// no-op.
func (s *Store) Activate(id TabID) error {
	s.mu.Lock()
	events, err := s.activateLocked(id)
	s.mu.Unlock()

	s.publish(events)
	return err
}

func (s *Store) activateLocked(id TabID) ([]pendingEvent, error) {
	t, ok := s.tabs[id]
	if !ok {
		return nil, fmt.Errorf("activate tab %d: %w", id, ErrTabNotFound)
	}
	if s.active == id && t.Live != nil {
		return nil, nil
	}

	// Flush the outgoing tab's surface into its record. Its live state
	// stays cached until recency evicts it.
	if cur, ok := s.tabs[s.active]; ok && cur.ID != id {
		s.commitLocked(cur)
	}

	if t.Live == nil {
		live, err := s.factory(t)
		if err != nil {
			return nil, fmt.Errorf("hydrate tab %d: %w", id, err)
		}
		t.Live = live
	}

	changed := s.active != id
	s.active = id
	events := s.touchLocked(id)
	if changed {
		events = append(events, pendingEvent{event.TopicTabActivated, tabEvent(t)})
	}
	return events, nil
}

// commitLocked copies the authoritative live surface into the tab's plain
// fields. No-op for tabs without live state.
func (s *Store) commitLocked(t *Tab) {
	if t.Live == nil {
		return
	}
	t.Content = t.Live.Text()
	t.Sel = t.Live.Selection()
	t.ScrollTop = t.Live.ScrollTop()
}

// touchLocked marks id most recently used and evicts past the bound.
func (s *Store) touchLocked(id TabID) []pendingEvent {
	s.removeMRULocked(id)
	s.mru = append([]TabID{id}, s.mru...)
	return s.evictLocked()
}

func (s *Store) removeMRULocked(id TabID) {
	for i, mid := range s.mru {
		if mid == id {
			s.mru = append(s.mru[:i], s.mru[i+1:]...)
			return
		}
	}
}

// evictLocked demotes least-recently-used live states down to the bound.
// The active tab is exempt regardless of recency. Eviction copies the live
// text into Content first; observable content never changes.
func (s *Store) evictLocked() []pendingEvent {
	var events []pendingEvent
	for len(s.mru) > s.maxLive {
		victim := TabID(-1)
		for i := len(s.mru) - 1; i >= 0; i-- {
			if s.mru[i] != s.active {
				victim = s.mru[i]
				break
			}
		}
		if victim < 0 {
			break
		}
		t := s.tabs[victim]
		s.commitLocked(t)
		t.Live = nil
		s.removeMRULocked(victim)
		events = append(events, pendingEvent{event.TopicTabEvicted, tabEvent(t)})
	}
	return events
}

// Close removes a tab. Dirty tabs consult the confirmer first; a declined
// confirmation returns ErrCloseVetoed. When the active tab closes, the
// neighbor sliding into its index becomes active (clamped to the new last
// tab); closing the final tab replaces it with a fresh untitled tab.
func (s *Store) Close(id TabID) error {
	s.mu.RLock()
	t, ok := s.tabs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("close tab %d: %w", id, ErrTabNotFound)
	}

	// The confirmation may block on user input; never hold the lock here.
	if t.Dirty && s.confirm != nil && !s.confirm.ConfirmDiscard(t) {
		return ErrCloseVetoed
	}

	s.mu.Lock()
	if _, ok := s.tabs[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("close tab %d: %w", id, ErrTabNotFound)
	}

	idx := s.indexLocked(id)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	delete(s.tabs, id)
	s.removeMRULocked(id)

	events := []pendingEvent{{event.TopicTabClosed, tabEvent(t)}}

	var err error
	if s.active == id {
		if len(s.order) == 0 {
			fresh := s.createLocked("", "")
			s.active = fresh.ID
			events = append(events, pendingEvent{event.TopicTabCreated, tabEvent(fresh)})
			var more []pendingEvent
			more, err = s.activateLocked(fresh.ID)
			events = append(events, more...)
		} else {
			next := idx
			if next >= len(s.order) {
				next = len(s.order) - 1
			}
			var more []pendingEvent
			more, err = s.activateLocked(s.order[next])
			events = append(events, more...)
		}
	}
	s.mu.Unlock()

	s.publish(events)
	return err
}

// Cycle activates the tab delta positions away, wrapping at both ends.
// With zero or one tab it is a no-op.
func (s *Store) Cycle(delta int) (*Tab, error) {
	s.mu.Lock()
	n := len(s.order)
	if n <= 1 {
		t := s.tabs[s.active]
		s.mu.Unlock()
		return t, nil
	}

	idx := s.indexLocked(s.active)
	target := s.order[((idx+delta)%n+n)%n]
	events, err := s.activateLocked(target)
	t := s.tabs[target]
	s.mu.Unlock()

	s.publish(events)
	return t, err
}

func (s *Store) indexLocked(id TabID) int {
	for i, oid := range s.order {
		if oid == id {
			return i
		}
	}
	return -1
}

// MarkDirty flags the tab dirty. Returns true on the clean-to-dirty
// transition so callers re-render tab chrome only when it changes.
func (s *Store) MarkDirty(id TabID) bool {
	return s.setDirty(id, true)
}

// MarkClean clears the dirty flag. Returns true on transition.
func (s *Store) MarkClean(id TabID) bool {
	return s.setDirty(id, false)
}

func (s *Store) setDirty(id TabID, dirty bool) bool {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if !ok || t.Dirty == dirty {
		s.mu.Unlock()
		return false
	}
	t.Dirty = dirty
	ev := pendingEvent{event.TopicTabDirty, tabEvent(t)}
	s.mu.Unlock()

	s.publish([]pendingEvent{ev})
	return true
}

// MarkSaved records a successful save: the tab's plain fields flush from
// its live surface, LastSaved resets to content, and the dirty flag
// clears (publishing the transition when it happened).
func (s *Store) MarkSaved(id TabID, content string) error {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mark saved tab %d: %w", id, ErrTabNotFound)
	}
	s.commitLocked(t)
	t.Content = content
	t.LastSaved = content
	var events []pendingEvent
	if t.Dirty {
		t.Dirty = false
		events = append(events, pendingEvent{event.TopicTabDirty, tabEvent(t)})
	}
	s.mu.Unlock()

	s.publish(events)
	return nil
}

// Rebind binds the tab to a new file path, renaming it. Save-as.
func (s *Store) Rebind(id TabID, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	if !ok {
		return fmt.Errorf("rebind tab %d: %w", id, ErrTabNotFound)
	}
	t.FilePath = filePath
	t.Name = filepath.Base(filePath)
	return nil
}

// FindByPath returns the tab owning a file path.
func (s *Store) FindByPath(filePath string) (*Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if filePath == "" {
		return nil, false
	}
	for _, id := range s.order {
		if t := s.tabs[id]; t.FilePath == filePath {
			return t, true
		}
	}
	return nil, false
}

// PathInUse reports whether any other tab is bound to the path.
func (s *Store) PathInUse(filePath string, except TabID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if id == except {
			continue
		}
		if s.tabs[id].FilePath == filePath {
			return true
		}
	}
	return false
}

// ReplaceContent installs externally loaded text as the tab's content and
// new baseline, clearing the dirty flag. Any live state refresh is the
// caller's concern.
func (s *Store) ReplaceContent(id TabID, content string) error {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("replace content tab %d: %w", id, ErrTabNotFound)
	}
	t.Content = content
	t.LastSaved = content
	var events []pendingEvent
	if t.Dirty {
		t.Dirty = false
		events = append(events, pendingEvent{event.TopicTabDirty, tabEvent(t)})
	}
	s.mu.Unlock()

	s.publish(events)
	return nil
}

// Rehydrate discards the tab's live state without committing, so the
// plain fields become authoritative again; when the tab is active, a
// fresh live state is materialized from them immediately. Used after an
// external content reload.
func (s *Store) Rehydrate(id TabID) error {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("rehydrate tab %d: %w", id, ErrTabNotFound)
	}
	if t.Live != nil {
		t.Live = nil
		s.removeMRULocked(id)
	}

	var events []pendingEvent
	if s.active == id {
		liveState, err := s.factory(t)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("rehydrate tab %d: %w", id, err)
		}
		t.Live = liveState
		events = s.touchLocked(id)
	}
	s.mu.Unlock()

	s.publish(events)
	return nil
}

// Commit flushes the tab's live surface into its plain fields.
func (s *Store) Commit(id TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	if !ok {
		return fmt.Errorf("commit tab %d: %w", id, ErrTabNotFound)
	}
	s.commitLocked(t)
	return nil
}

// CommitAll flushes every live tab. Used before snapshotting a session.
func (s *Store) CommitAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		s.commitLocked(s.tabs[id])
	}
}

// Restore replaces the store contents from a persisted session. Restored
// tabs hold no live state; the caller activates the active tab afterward.
// An invalid active ID falls back to the first tab, and an empty tab list
// falls back to one fresh untitled tab.
func (s *Store) Restore(list []RestoreTab, active TabID, nextID int) {
	s.mu.Lock()

	s.tabs = make(map[TabID]*Tab, len(list))
	s.order = s.order[:0]
	s.mru = s.mru[:0]
	s.untitled = 0

	maxID := TabID(0)
	for _, r := range list {
		t := &Tab{
			ID:        r.ID,
			FilePath:  r.FilePath,
			Name:      s.nameLocked(r.FilePath),
			Content:   r.Content,
			Dirty:     r.Dirty,
			ScrollTop: r.ScrollTop,
			Sel:       r.Sel,
			LastSaved: r.LastSaved,
		}
		s.tabs[t.ID] = t
		s.order = append(s.order, t.ID)
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	s.nextID = TabID(nextID)
	if s.nextID <= maxID {
		s.nextID = maxID + 1
	}
	if s.nextID < 1 {
		s.nextID = 1
	}

	if len(s.order) == 0 {
		fresh := s.createLocked("", "")
		s.active = fresh.ID
		s.mu.Unlock()
		return
	}

	if _, ok := s.tabs[active]; !ok {
		active = s.order[0]
	}
	s.active = active
	s.mu.Unlock()
}

// Active returns the active tab.
func (s *Store) Active() *Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabs[s.active]
}

// ActiveID returns the active tab's ID.
func (s *Store) ActiveID() TabID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Get returns a tab by ID.
func (s *Store) Get(id TabID) (*Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	return t, ok
}

// All returns the tabs in display order.
func (s *Store) All() []*Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tab, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tabs[id])
	}
	return out
}

// Len returns the number of open tabs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// LiveCount returns the number of tabs holding live editing state.
func (s *Store) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mru)
}

// NextID returns the ID the next created tab will receive.
func (s *Store) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.nextID)
}

// DirtyTabs returns all tabs with unsaved changes, in display order.
func (s *Store) DirtyTabs() []*Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Tab
	for _, id := range s.order {
		if s.tabs[id].Dirty {
			out = append(out, s.tabs[id])
		}
	}
	return out
}

// HasDirty reports whether any tab has unsaved changes.
func (s *Store) HasDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.tabs[id].Dirty {
			return true
		}
	}
	return false
}
