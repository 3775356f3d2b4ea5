package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkwell-md/inkwell/internal/diff"
	"github.com/inkwell-md/inkwell/internal/render"
	"github.com/inkwell-md/inkwell/internal/tabs"
)

type recordingSink struct {
	previews []string
	diffs    []diff.Result
	tabBars  [][]render.TabInfo
	actives  []tabs.TabID
}

func (s *recordingSink) RenderPreview(markdown string) {
	s.previews = append(s.previews, markdown)
}

func (s *recordingSink) RenderDiff(r diff.Result) {
	s.diffs = append(s.diffs, r)
}

func (s *recordingSink) RenderTabs(infos []render.TabInfo, active tabs.TabID) {
	s.tabBars = append(s.tabBars, infos)
	s.actives = append(s.actives, active)
}

type recordingHost struct {
	titles []string
	edited []bool
}

func (h *recordingHost) SetTitle(title string)       { h.titles = append(h.titles, title) }
func (h *recordingHost) SetDocumentEdited(b bool)    { h.edited = append(h.edited, b) }
func (h *recordingHost) lastTitle() string {
	if len(h.titles) == 0 {
		return ""
	}
	return h.titles[len(h.titles)-1]
}

type stubConfirmer struct {
	allow bool
	asked int
}

func (c *stubConfirmer) ConfirmDiscard(*tabs.Tab) bool {
	c.asked++
	return c.allow
}

func newTestApp(t *testing.T, opts Options) (*App, *recordingSink, *recordingHost) {
	t.Helper()

	sink := &recordingSink{}
	host := &recordingHost{}
	if opts.StateDir == "" {
		opts.StateDir = t.TempDir()
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "error"
	}
	opts.Sink = sink
	opts.Host = host

	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return a, sink, host
}

func TestNewStartsWithUntitledTab(t *testing.T) {
	a, sink, host := newTestApp(t, Options{})

	active := a.Store().Active()
	if active == nil {
		t.Fatal("no active tab after startup")
	}
	if active.Name != "Untitled" {
		t.Errorf("active tab name = %q, want Untitled", active.Name)
	}
	if len(sink.tabBars) == 0 {
		t.Error("no initial tab bar render")
	}
	if host.lastTitle() != "Untitled — Inkwell" {
		t.Errorf("title = %q", host.lastTitle())
	}
}

func TestOpenFileReadsContent(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tab, err := a.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if tab.Text() != "# Notes\n" {
		t.Errorf("content = %q", tab.Text())
	}
	if tab.Dirty {
		t.Error("freshly opened tab is dirty")
	}
	if tab.Name != "notes.md" {
		t.Errorf("name = %q", tab.Name)
	}
}

func TestOpenFileMissingCreatesBoundDraft(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "new.md")
	tab, err := a.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if tab.Text() != "" {
		t.Errorf("content = %q, want empty", tab.Text())
	}
	if tab.IsDraft() {
		t.Error("tab not bound to the requested path")
	}
	if tab.Dirty {
		t.Error("tab dirty before any edit")
	}
}

func TestOpenFileDeduplicates(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "dup.md")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := a.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.NewTab(); err != nil {
		t.Fatal(err)
	}
	second, err := a.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("opening the same path twice created tab %d and %d", first.ID, second.ID)
	}
	if a.Store().ActiveID() != first.ID {
		t.Error("re-open did not activate the owning tab")
	}
}

func TestEditMarksDirtyAndUpdatesChrome(t *testing.T) {
	a, sink, host := newTestApp(t, Options{})

	bars := len(sink.tabBars)
	if err := a.Insert("hello"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	active := a.Store().Active()
	if !active.Dirty {
		t.Fatal("tab not dirty after edit")
	}
	if got := host.lastTitle(); !strings.HasPrefix(got, "● ") {
		t.Errorf("title missing dirty marker: %q", got)
	}
	if len(sink.tabBars) <= bars {
		t.Error("tab bar not re-rendered on dirty transition")
	}

	// A second edit stays dirty and repaints nothing extra.
	bars = len(sink.tabBars)
	if err := a.Insert("!"); err != nil {
		t.Fatal(err)
	}
	if len(sink.tabBars) != bars {
		t.Error("tab bar re-rendered without a dirty transition")
	}
}

func TestSaveDraftReturnsErrNoFilePath(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	if err := a.Insert("unsaved"); err != nil {
		t.Fatal(err)
	}
	err := a.Save()
	if !errors.Is(err, ErrNoFilePath) {
		t.Errorf("Save on draft = %v, want ErrNoFilePath", err)
	}
}

func TestSaveWritesFileAndClearsDirty(t *testing.T) {
	a, _, host := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "doc.md")
	if _, err := a.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	if err := a.Insert("# Title\n"); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "# Title\n" {
		t.Errorf("file content = %q", data)
	}

	active := a.Store().Active()
	if active.Dirty {
		t.Error("tab still dirty after save")
	}
	if active.LastSaved != "# Title\n" {
		t.Errorf("baseline = %q", active.LastSaved)
	}
	if strings.HasPrefix(host.lastTitle(), "● ") {
		t.Errorf("title still dirty: %q", host.lastTitle())
	}
}

func TestSaveAsBindsAndSaves(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	if err := a.Insert("draft text"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "bound.md")
	if err := a.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	active := a.Store().Active()
	if active.IsDraft() {
		t.Error("tab still a draft after SaveAs")
	}
	if active.Name != "bound.md" {
		t.Errorf("name = %q", active.Name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "draft text" {
		t.Errorf("file content = %q", data)
	}
}

func TestSaveAsRejectsPathOwnedByOtherTab(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "taken.md")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := a.NewTab(); err != nil {
		t.Fatal(err)
	}
	if err := a.SaveAs(path); err == nil {
		t.Error("SaveAs onto a path another tab owns succeeded")
	}
}

func TestCloseDirtyTabConsultsConfirmer(t *testing.T) {
	confirm := &stubConfirmer{allow: false}
	a, _, _ := newTestApp(t, Options{Confirm: confirm})

	if err := a.Insert("unsaved"); err != nil {
		t.Fatal(err)
	}
	err := a.CloseActive()
	if !errors.Is(err, ErrCloseVetoed) {
		t.Fatalf("CloseActive = %v, want ErrCloseVetoed", err)
	}
	if confirm.asked != 1 {
		t.Errorf("confirmer asked %d times, want 1", confirm.asked)
	}

	confirm.allow = true
	if err := a.CloseActive(); err != nil {
		t.Fatalf("CloseActive after allow: %v", err)
	}
}

func TestCycleTabsWraps(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	first := a.Store().ActiveID()
	if _, err := a.NewTab(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.NewTab(); err != nil {
		t.Fatal(err)
	}

	if err := a.NextTab(); err != nil {
		t.Fatal(err)
	}
	if a.Store().ActiveID() != first {
		t.Error("NextTab from the last tab did not wrap to the first")
	}
	if err := a.PrevTab(); err != nil {
		t.Fatal(err)
	}
	if a.Store().ActiveID() == first {
		t.Error("PrevTab did not move off the first tab")
	}
}

func TestLiveStatesBounded(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".md")
		if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := a.OpenFile(path); err != nil {
			t.Fatal(err)
		}
	}

	if got := a.Store().LiveCount(); got > 5 {
		t.Errorf("live states = %d, want <= 5", got)
	}
	if got := a.Metrics().Snapshot().Evictions; got == 0 {
		t.Error("no evictions recorded after opening 8 tabs")
	}

	// Evicted tabs keep their content.
	for _, tab := range a.Store().All() {
		if tab.FilePath != "" && tab.Text() != "content" {
			t.Errorf("tab %s lost content after eviction: %q", tab.Name, tab.Text())
		}
	}
}

func TestViewModeRoutesToDiffPane(t *testing.T) {
	a, sink, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "d.md")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendLine("three"); err != nil {
		t.Fatal(err)
	}

	a.SetViewMode(render.ModeSplitDiff)
	if a.ViewMode() != render.ModeSplitDiff {
		t.Fatalf("mode = %v", a.ViewMode())
	}
	if len(sink.diffs) == 0 {
		t.Fatal("no diff rendered on mode switch")
	}
	last := sink.diffs[len(sink.diffs)-1]
	if len(last.Hunks) == 0 {
		t.Error("diff has no hunks for a changed document")
	}
}

func TestActiveDiff(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	if err := a.AppendLine("alpha"); err != nil {
		t.Fatal(err)
	}
	r, err := a.ActiveDiff()
	if err != nil {
		t.Fatalf("ActiveDiff: %v", err)
	}
	if len(r.Hunks) == 0 {
		t.Error("no hunks for an edited draft")
	}
}

func TestUndoRedo(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	if err := a.Insert("abc"); err != nil {
		t.Fatal(err)
	}
	if err := a.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := a.Store().Active().Text(); got != "" {
		t.Errorf("text after undo = %q", got)
	}
	if err := a.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := a.Store().Active().Text(); got != "abc" {
		t.Errorf("text after redo = %q", got)
	}
}

func TestExportPreview(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	if err := a.AppendLine("# Heading"); err != nil {
		t.Fatal(err)
	}
	var buf strings.Builder
	if err := a.ExportPreview(&buf); err != nil {
		t.Fatalf("ExportPreview: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<h1") {
		t.Errorf("export missing heading: %q", out)
	}
	if !strings.Contains(out, "<title>") {
		t.Error("export is not a full HTML document")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	docDir := t.TempDir()

	path := filepath.Join(docDir, "persisted.md")
	if err := os.WriteFile(path, []byte("body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, _, _ := newTestApp(t, Options{StateDir: stateDir})
	if _, err := first.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	if err := first.Insert("edited "); err != nil {
		t.Fatal(err)
	}
	firstActive := first.Store().ActiveID()
	if err := first.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	second, _, _ := newTestApp(t, Options{StateDir: stateDir})
	if second.Metrics().Snapshot().SessionRestores != 1 {
		t.Fatal("second launch did not restore the session")
	}

	active := second.Store().Active()
	if active.ID != firstActive {
		t.Errorf("active tab = %d, want %d", active.ID, firstActive)
	}
	if active.Text() != "edited body\n" {
		t.Errorf("restored text = %q", active.Text())
	}
	if !active.Dirty {
		t.Error("dirty flag lost across restart")
	}
	if active.LastSaved != "body\n" {
		t.Errorf("restored baseline = %q", active.LastSaved)
	}

	// IDs never reuse across restarts.
	fresh, err := second.NewTab()
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID <= firstActive {
		t.Errorf("new tab ID %d not beyond persisted counter", fresh.ID)
	}
}

func TestExternalChangeReloadsCleanTab(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "watched.md")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := a.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.handleExternalChange(path)

	if got := tab.Text(); got != "new\n" {
		t.Errorf("text after external change = %q", got)
	}
	if tab.Dirty {
		t.Error("tab dirty after silent reload")
	}
	if tab.LastSaved != "new\n" {
		t.Errorf("baseline after reload = %q", tab.LastSaved)
	}
}

func TestExternalChangeIgnoresOwnSaveEcho(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "echo.md")
	if _, err := a.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	if err := a.Insert("first draft"); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(); err != nil {
		t.Fatal(err)
	}

	// The directory watch reports the shell's own rename-over save; it
	// must not rehydrate the tab and throw away the edit history.
	a.handleExternalChange(path)

	if err := a.Undo(); err != nil {
		t.Fatalf("undo history lost after save echo: %v", err)
	}
	if got := a.Store().Active().Text(); got != "" {
		t.Errorf("text after undo = %q", got)
	}
}

func TestExternalChangeKeepsDirtyEdits(t *testing.T) {
	a, _, _ := newTestApp(t, Options{})

	path := filepath.Join(t.TempDir(), "conflict.md")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := a.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Insert("mine "); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("theirs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.handleExternalChange(path)

	if got := tab.Text(); got != "mine old\n" {
		t.Errorf("dirty tab lost edits: %q", got)
	}
	if !tab.Dirty {
		t.Error("dirty flag cleared by external change")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	sink := &recordingSink{}
	a, err := New(Options{StateDir: t.TempDir(), Sink: sink, LogLevel: "error"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestNewRequiresSink(t *testing.T) {
	if _, err := New(Options{StateDir: t.TempDir()}); err == nil {
		t.Error("New without a sink succeeded")
	}
}
