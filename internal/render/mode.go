// Package render schedules preview and diff recomputation. The scheduler
// owns no rendering logic; it decides when the visible panes recompute and
// drives a frontend-provided sink.
package render

import (
	"errors"
	"fmt"
)

// ErrUnknownMode indicates an unrecognized view mode name.
var ErrUnknownMode = errors.New("unknown view mode")

// Mode is the current view layout.
type Mode uint8

const (
	// ModeSingle shows only the editing surface.
	ModeSingle Mode = iota

	// ModeSplitPreview shows the editor beside the rendered preview.
	ModeSplitPreview

	// ModeSplitDiff shows the editor beside the diff against the last
	// saved content.
	ModeSplitDiff
)

// String returns the mode's config name.
func (m Mode) String() string {
	switch m {
	case ModeSplitPreview:
		return "preview"
	case ModeSplitDiff:
		return "diff"
	default:
		return "single"
	}
}

// ParseMode resolves a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "single", "editor":
		return ModeSingle, nil
	case "preview", "split":
		return ModeSplitPreview, nil
	case "diff":
		return ModeSplitDiff, nil
	default:
		return ModeSingle, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
