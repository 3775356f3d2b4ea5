package app

import (
	"github.com/inkwell-md/inkwell/internal/editor"
	"github.com/inkwell-md/inkwell/internal/tabs"
)

// Host is the window chrome owned by the embedding frontend.
type Host interface {
	// SetTitle sets the window title.
	SetTitle(title string)

	// SetDocumentEdited reflects the active document's dirty state in
	// the chrome (macOS proxy icon, close-button dot).
	SetDocumentEdited(edited bool)
}

// NopHost ignores all chrome updates.
type NopHost struct{}

func (NopHost) SetTitle(string)        {}
func (NopHost) SetDocumentEdited(bool) {}

// live adapts an editor state to the tab store's capability interface.
type live struct {
	st *editor.State
}

func (l *live) Text() string {
	return l.st.Text()
}

func (l *live) Selection() tabs.Selection {
	sel := l.st.Selection()
	return tabs.Selection{Anchor: sel.Anchor, Head: sel.Head}
}

func (l *live) ScrollTop() int {
	return l.st.ScrollTop()
}

// materialize is the tab store factory: it reconstructs a live editing
// state from a tab's persisted fields and wires its change listener into
// the shell.
func (a *App) materialize(t *tabs.Tab) (tabs.LiveState, error) {
	st := editor.New(t.Content,
		editor.WithSelection(editor.Selection{Anchor: t.Sel.Anchor, Head: t.Sel.Head}),
		editor.WithScrollTop(t.ScrollTop),
		editor.WithHistoryLimit(a.cfg.Editor.HistoryLimit),
	)
	id := t.ID
	st.OnChange(func() {
		a.onDocumentChanged(id)
	})
	return &live{st: st}, nil
}

// storeSource adapts the tab store to the render scheduler's read side.
type storeSource struct {
	store *tabs.Store
}

func (s storeSource) ActiveText() string {
	if t := s.store.Active(); t != nil {
		return t.Text()
	}
	return ""
}

func (s storeSource) ActiveBaseline() string {
	if t := s.store.Active(); t != nil {
		return t.LastSaved
	}
	return ""
}
