package editor

import "errors"

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// editRecord captures one edit and enough context to reverse it.
// Offsets are rune offsets into the text as it was when the edit applied.
type editRecord struct {
	at        int
	removed   string
	inserted  string
	selBefore Selection
	selAfter  Selection
}

// history holds the undo and redo stacks. Callers synchronize access; the
// owning State mutates it only under its own lock.
type history struct {
	undoStack []editRecord
	redoStack []editRecord

	maxEntries int
}

func newHistory(maxEntries int) *history {
	if maxEntries <= 0 {
		maxEntries = DefaultHistoryLimit
	}
	return &history{maxEntries: maxEntries}
}

// push records a new edit and clears the redo stack.
func (h *history) push(rec editRecord) {
	h.undoStack = append(h.undoStack, rec)
	h.redoStack = nil

	if len(h.undoStack) > h.maxEntries {
		excess := len(h.undoStack) - h.maxEntries
		h.undoStack = h.undoStack[excess:]
	}
}

// popUndo moves the newest edit to the redo stack and returns it.
func (h *history) popUndo() (editRecord, error) {
	if len(h.undoStack) == 0 {
		return editRecord{}, ErrNothingToUndo
	}
	rec := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = append(h.redoStack, rec)
	return rec, nil
}

// popRedo moves the newest undone edit back to the undo stack and returns it.
func (h *history) popRedo() (editRecord, error) {
	if len(h.redoStack) == 0 {
		return editRecord{}, ErrNothingToRedo
	}
	rec := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = append(h.undoStack, rec)
	return rec, nil
}

func (h *history) undoLen() int { return len(h.undoStack) }
func (h *history) redoLen() int { return len(h.redoStack) }
