// Package editor implements the live editing state behind a visible tab:
// the authoritative document text, the primary selection, the scroll
// position, and a bounded undo/redo history of inverse edits.
//
// Construction indexes the full text, which is the expensive step the
// shell's eviction policy exists to bound. All offsets are rune offsets;
// selections and scroll positions are clamped, never rejected.
package editor

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Selection is the primary selection as a pair of rune offsets.
// Anchor equals Head for a plain caret.
type Selection struct {
	Anchor int
	Head   int
}

// IsCaret reports whether the selection is collapsed.
func (s Selection) IsCaret() bool {
	return s.Anchor == s.Head
}

// DefaultHistoryLimit bounds the undo stack depth.
const DefaultHistoryLimit = 200

// State is one document's live editing state.
type State struct {
	mu sync.RWMutex

	text      string
	runeCount int
	lineIndex []int // byte offset of each line start

	sel       Selection
	scrollTop int

	history  *history
	onChange func()
}

// Option configures a State.
type Option func(*State)

// WithSelection sets the initial selection (clamped to the text).
func WithSelection(sel Selection) Option {
	return func(s *State) {
		s.sel = sel
	}
}

// WithScrollTop sets the initial scroll position (clamped to the text).
func WithScrollTop(top int) Option {
	return func(s *State) {
		s.scrollTop = top
	}
}

// WithHistoryLimit bounds the undo stack depth.
func WithHistoryLimit(n int) Option {
	return func(s *State) {
		s.history = newHistory(n)
	}
}

// New constructs a live editing state for content.
func New(content string, opts ...Option) *State {
	s := &State{
		text:    content,
		history: newHistory(DefaultHistoryLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reindex()
	s.sel = s.clampSelection(s.sel)
	s.scrollTop = s.clampScroll(s.scrollTop)
	return s
}

// reindex rebuilds the rune count and line start index.
func (s *State) reindex() {
	s.runeCount = utf8.RuneCountInString(s.text)
	s.lineIndex = s.lineIndex[:0]
	s.lineIndex = append(s.lineIndex, 0)
	for i := 0; i < len(s.text); i++ {
		if s.text[i] == '\n' {
			s.lineIndex = append(s.lineIndex, i+1)
		}
	}
}

// Text returns the full document text.
func (s *State) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Len returns the document length in runes.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runeCount
}

// LineCount returns the number of lines. Text with a trailing newline has
// an empty final line, matching the diff engine's line model.
func (s *State) LineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lineIndex)
}

// Line returns line i without its newline. Out-of-range indices return the
// empty string.
func (s *State) Line(i int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.lineIndex) {
		return ""
	}
	start := s.lineIndex[i]
	if i+1 < len(s.lineIndex) {
		return s.text[start : s.lineIndex[i+1]-1]
	}
	return s.text[start:]
}

// Selection returns the current selection.
func (s *State) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// SetSelection moves the selection, clamped to the text.
func (s *State) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = s.clampSelection(sel)
}

// ScrollTop returns the topmost visible line.
func (s *State) ScrollTop() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrollTop
}

// SetScrollTop moves the viewport, clamped to the line count.
func (s *State) SetScrollTop(top int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollTop = s.clampScroll(top)
}

// OnChange registers the single change listener, invoked after every
// mutating edit (including undo and redo). Passing nil clears it.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// SetText replaces the whole document. The replacement is one undoable
// edit; selection collapses to the end of the new text.
func (s *State) SetText(text string) {
	s.Replace(0, s.Len(), text)
}

// Insert inserts text at a rune offset.
func (s *State) Insert(at int, text string) {
	s.Replace(at, at, text)
}

// Delete removes the rune range [from, to).
func (s *State) Delete(from, to int) {
	s.Replace(from, to, "")
}

// Replace substitutes the rune range [from, to) with text. Offsets are
// clamped and swapped into order; the edit is recorded for undo.
func (s *State) Replace(from, to int, text string) {
	s.mu.Lock()
	from = s.clampOffset(from)
	to = s.clampOffset(to)
	if from > to {
		from, to = to, from
	}

	selBefore := s.sel
	removed := s.applyReplace(from, to, text)
	selAfter := Selection{Anchor: from + utf8.RuneCountInString(text), Head: from + utf8.RuneCountInString(text)}
	s.sel = selAfter
	s.scrollTop = s.clampScroll(s.scrollTop)

	s.history.push(editRecord{
		at:        from,
		removed:   removed,
		inserted:  text,
		selBefore: selBefore,
		selAfter:  selAfter,
	})
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// applyReplace performs the raw text substitution and reindexes.
// Returns the removed text. Caller holds the lock.
func (s *State) applyReplace(from, to int, text string) string {
	b0 := s.byteOffset(from)
	b1 := s.byteOffset(to)
	removed := s.text[b0:b1]
	s.text = s.text[:b0] + text + s.text[b1:]
	s.reindex()
	return removed
}

// Undo reverts the most recent edit. Returns ErrNothingToUndo when the
// undo stack is empty.
func (s *State) Undo() error {
	s.mu.Lock()
	rec, err := s.history.popUndo()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyReplace(rec.at, rec.at+utf8.RuneCountInString(rec.inserted), rec.removed)
	s.sel = s.clampSelection(rec.selBefore)
	s.scrollTop = s.clampScroll(s.scrollTop)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Redo reapplies the most recently undone edit. Returns ErrNothingToRedo
// when the redo stack is empty.
func (s *State) Redo() error {
	s.mu.Lock()
	rec, err := s.history.popRedo()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyReplace(rec.at, rec.at+utf8.RuneCountInString(rec.removed), rec.inserted)
	s.sel = s.clampSelection(rec.selAfter)
	s.scrollTop = s.clampScroll(s.scrollTop)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// CanUndo reports whether an undo is available.
func (s *State) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.undoLen() > 0
}

// CanRedo reports whether a redo is available.
func (s *State) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.redoLen() > 0
}

// byteOffset converts a rune offset to a byte offset. Caller holds the
// lock; the offset must already be clamped.
func (s *State) byteOffset(runes int) int {
	if runes <= 0 {
		return 0
	}
	count := 0
	for i := range s.text {
		if count == runes {
			return i
		}
		count++
	}
	return len(s.text)
}

func (s *State) clampOffset(n int) int {
	if n < 0 {
		return 0
	}
	if n > s.runeCount {
		return s.runeCount
	}
	return n
}

func (s *State) clampSelection(sel Selection) Selection {
	return Selection{
		Anchor: s.clampOffset(sel.Anchor),
		Head:   s.clampOffset(sel.Head),
	}
}

func (s *State) clampScroll(top int) int {
	if top < 0 {
		return 0
	}
	if max := len(s.lineIndex) - 1; top > max {
		return max
	}
	return top
}

// AppendLine appends a line of text, inserting a newline separator when
// the document is non-empty. Convenience for line-oriented frontends.
func (s *State) AppendLine(line string) {
	text := s.Text()
	if text == "" {
		s.SetText(line)
		return
	}
	if !strings.HasSuffix(text, "\n") {
		line = "\n" + line
	}
	s.Insert(s.Len(), line)
}
