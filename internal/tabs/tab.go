// Package tabs implements the multi-document session core: the ordered tab
// list, the single active-tab pointer, and the bounded cache of live
// editing states.
//
// The store never touches a concrete editor implementation. Live state is
// an abstract capability materialized through an injected factory, and the
// store only ever asks it for text, selection, and scroll position.
package tabs

import "errors"

// Store errors.
var (
	// ErrTabNotFound indicates an unknown tab ID.
	ErrTabNotFound = errors.New("tab not found")

	// ErrCloseVetoed indicates the dirty-close confirmation declined.
	ErrCloseVetoed = errors.New("close vetoed")
)

// TabID identifies a tab. IDs increase monotonically for the lifetime of a
// session, survive restarts via the persisted counter, and are never
// reused.
type TabID int

// Selection is a primary selection as rune offsets. Anchor equals Head for
// a plain caret.
type Selection struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

// LiveState is the capability the store requires from a live editing
// surface.
type LiveState interface {
	// Text returns the authoritative document text.
	Text() string

	// Selection returns the primary selection.
	Selection() Selection

	// ScrollTop returns the topmost visible line.
	ScrollTop() int
}

// Factory materializes a live editing state from a tab's persisted fields.
// Invoked on activation when the tab holds no live state.
type Factory func(t *Tab) (LiveState, error)

// Confirmer gates closing a dirty tab. Returning false vetoes the close.
type Confirmer interface {
	ConfirmDiscard(t *Tab) bool
}

// Tab is one open document.
//
// Exactly one of Live and the plain fields (Content, Sel, ScrollTop) is
// authoritative at any instant: while Live is non-nil it owns the truth,
// and Commit copies it back before the live state is discarded.
type Tab struct {
	ID       TabID
	FilePath string
	Name     string

	Content   string
	Live      LiveState
	Dirty     bool
	ScrollTop int
	Sel       Selection

	// LastSaved is the content at the last successful save, and the old
	// side of every diff rendered for this tab.
	LastSaved string
}

// IsDraft reports whether the tab has never been bound to a file.
func (t *Tab) IsDraft() bool {
	return t.FilePath == ""
}

// Text returns the tab's current text from whichever side is
// authoritative.
func (t *Tab) Text() string {
	if t.Live != nil {
		return t.Live.Text()
	}
	return t.Content
}

// RestoreTab is the neutral input for rebuilding a store from a persisted
// session.
type RestoreTab struct {
	ID        TabID
	FilePath  string
	Content   string
	Dirty     bool
	ScrollTop int
	Sel       Selection
	LastSaved string
}
