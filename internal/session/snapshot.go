// Package session persists the tab store across restarts.
//
// The primary store is a SQLite database; a JSON file serves both as the
// write fallback when the primary is unavailable and as the legacy format
// migrated into the primary on first launch.
package session

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/inkwell-md/inkwell/internal/tabs"
)

// SnapshotKey is the primary-store key the session lives under.
const SnapshotKey = "session"

// TabRecord is the durable projection of one tab.
type TabRecord struct {
	ID        tabs.TabID     `json:"id"`
	FilePath  string         `json:"file_path,omitempty"`
	Content   string         `json:"content"`
	Dirty     bool           `json:"dirty"`
	ScrollTop int            `json:"scroll_top"`
	Sel       tabs.Selection `json:"selection"`
	LastSaved string         `json:"last_saved"`
}

// Snapshot is the durable projection of a whole session.
type Snapshot struct {
	Tabs      []TabRecord `json:"tabs"`
	ActiveTab tabs.TabID  `json:"active_tab"`
	NextTabID int         `json:"next_tab_id"`
	SavedAt   time.Time   `json:"saved_at"`
}

// Normalize enforces the counter invariant: NextTabID always exceeds the
// highest tab ID present.
func (s *Snapshot) Normalize() {
	for _, rec := range s.Tabs {
		if int(rec.ID) >= s.NextTabID {
			s.NextTabID = int(rec.ID) + 1
		}
	}
	if s.NextTabID < 1 {
		s.NextTabID = 1
	}
}

// Records converts the snapshot into the tab store's restore input.
func (s *Snapshot) Records() []tabs.RestoreTab {
	out := make([]tabs.RestoreTab, 0, len(s.Tabs))
	for _, rec := range s.Tabs {
		out = append(out, tabs.RestoreTab{
			ID:        rec.ID,
			FilePath:  rec.FilePath,
			Content:   rec.Content,
			Dirty:     rec.Dirty,
			ScrollTop: rec.ScrollTop,
			Sel:       rec.Sel,
			LastSaved: rec.LastSaved,
		})
	}
	return out
}

// Store is a durable snapshot store. Load returns (nil, nil) when no
// session exists.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Clear(ctx context.Context) error
}

// parseTolerant decodes a snapshot from JSON of either generation:
// current snake_case or the legacy camelCase written before the field
// rename. Unknown fields are ignored; malformed input or an empty tab
// list yields nil, treated as no session.
func parseTolerant(data []byte) *Snapshot {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return nil
	}
	root := gjson.ParseBytes(data)
	tabsVal := root.Get("tabs")
	if !tabsVal.IsArray() {
		return nil
	}

	var snap Snapshot
	tabsVal.ForEach(func(_, v gjson.Result) bool {
		rec := TabRecord{
			ID:        tabs.TabID(v.Get("id").Int()),
			FilePath:  pick(v, "file_path", "filePath").String(),
			Content:   v.Get("content").String(),
			Dirty:     pick(v, "dirty", "isDirty").Bool(),
			ScrollTop: int(pick(v, "scroll_top", "scrollTop").Int()),
			LastSaved: pick(v, "last_saved", "lastSavedContent", "lastSaved").String(),
		}
		sel := pick(v, "selection", "selectionMain")
		rec.Sel = tabs.Selection{
			Anchor: int(sel.Get("anchor").Int()),
			Head:   int(sel.Get("head").Int()),
		}
		snap.Tabs = append(snap.Tabs, rec)
		return true
	})
	if len(snap.Tabs) == 0 {
		return nil
	}

	snap.ActiveTab = tabs.TabID(pick(root, "active_tab", "activeTabId").Int())
	snap.NextTabID = int(pick(root, "next_tab_id", "nextTabId").Int())
	if at := pick(root, "saved_at", "savedAt").String(); at != "" {
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			snap.SavedAt = ts
		}
	}
	snap.Normalize()
	return &snap
}

// pick returns the first existing key, trying current names before legacy
// ones.
func pick(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}
