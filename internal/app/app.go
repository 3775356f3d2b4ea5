// Package app wires the session core together: configuration, the tab
// store and its eviction bookkeeping, the render scheduler, session
// persistence, the file watcher, and the extension runtime. It is the
// only package that knows all the others.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/inkwell-md/inkwell/internal/config"
	"github.com/inkwell-md/inkwell/internal/diff"
	"github.com/inkwell-md/inkwell/internal/event"
	"github.com/inkwell-md/inkwell/internal/ext"
	"github.com/inkwell-md/inkwell/internal/preview"
	"github.com/inkwell-md/inkwell/internal/render"
	"github.com/inkwell-md/inkwell/internal/session"
	"github.com/inkwell-md/inkwell/internal/tabs"
	"github.com/inkwell-md/inkwell/internal/watch"
)

// Options configures the shell.
type Options struct {
	// ConfigPath is the TOML configuration file. Empty uses defaults.
	ConfigPath string

	// StateDir overrides the session state directory.
	StateDir string

	// Files are opened as tabs after session restore.
	Files []string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// Host receives window chrome updates. Nil uses NopHost.
	Host Host

	// Sink receives pane and tab-bar renders. Required.
	Sink render.Sink

	// Confirm gates closing dirty tabs. Nil closes without asking.
	Confirm tabs.Confirmer
}

// App is the assembled session core.
type App struct {
	cfg     *config.Config
	log     *Logger
	metrics *Metrics
	bus     *event.Bus
	store   *tabs.Store
	db      *session.DBStore
	file    *session.FileStore
	saver   *session.Saver
	sched   *render.Scheduler
	watcher *watch.Watcher
	ext     *ext.Runtime
	preview *preview.Renderer
	host    Host
	sink    render.Sink

	logFile io.Closer

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds and starts the shell.
func New(opts Options) (*App, error) {
	if opts.Sink == nil {
		return nil, WrapError(ErrInitialization, "render sink is required")
	}

	a := &App{host: opts.Host, sink: opts.Sink}
	if a.host == nil {
		a.host = NopHost{}
	}

	// 1. Configuration.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapError(err, "load configuration")
	}
	a.cfg = cfg

	// 2. Logging.
	if err := a.initLogging(opts.LogLevel); err != nil {
		return nil, WrapError(err, "init logging")
	}

	// 3. Metrics and events.
	a.metrics = NewMetrics()
	a.bus = event.New(event.WithLogger(a.log.WithComponent("event")))
	a.bus.Subscribe(event.TopicTabEvicted, func(event.Event) {
		a.metrics.RecordEviction()
	})

	// 4. Session stores.
	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir, err = cfg.ResolveStateDir()
		if err != nil {
			return nil, WrapError(err, "resolve state dir")
		}
	}
	a.db, err = session.OpenDB(filepath.Join(stateDir, "session.db"))
	if err != nil {
		return nil, WrapError(err, "open session store")
	}
	a.file = session.NewFileStore(filepath.Join(stateDir, "session.json"))

	// 5. Tab store.
	a.store = tabs.New(a.materialize,
		tabs.WithMaxLive(cfg.Editor.MaxLiveStates),
		tabs.WithConfirmer(opts.Confirm),
		tabs.WithBus(a.bus),
	)

	// 6. Session restore. A failed restore degrades to the fresh tab the
	// store was born with.
	snap, err := session.Restore(context.Background(), a.db, a.file)
	if err != nil {
		a.log.Warn("session restore failed, starting fresh: %v", err)
	}
	if snap != nil {
		a.store.Restore(snap.Records(), snap.ActiveTab, snap.NextTabID)
		a.metrics.RecordSessionRestore()
		a.bus.Publish(event.TopicSessionRestored, event.SessionEvent{
			Tabs:    len(snap.Tabs),
			Trigger: "startup",
		})
		a.log.Info("session restored: %d tabs", len(snap.Tabs))
	}
	if err := a.store.Activate(a.store.ActiveID()); err != nil {
		return nil, WrapError(err, "activate restored tab")
	}

	// 7. Session saver.
	a.saver = session.NewSaver(a.db, a.file, a.buildSnapshot,
		session.WithSaveDebounce(cfg.SaveDebounce()),
		session.WithLogger(a.log.WithComponent("session")),
		session.WithBus(a.bus, event.TopicSessionSaved),
		session.WithMetrics(a.metrics),
	)

	// 8. Render pipeline.
	a.preview = preview.New(preview.WithHighlightStyle(cfg.Render.HighlightStyle))
	a.sched = render.New(storeSource{store: a.store}, a.sink,
		render.WithDelay(cfg.RenderDebounce()),
		render.WithLargeDocBytes(cfg.LargeDocBytes()),
		render.WithDiffOptions(diff.Options{
			ContextLines: cfg.Render.ContextLines,
			MaxCells:     cfg.Render.MaxDiffCells,
		}),
		render.WithLogger(a.log.WithComponent("render")),
		render.WithMetrics(a.metrics),
	)

	// 9. External file watcher.
	a.watcher, err = watch.New(a.handleExternalChange,
		watch.WithLogger(a.log.WithComponent("watch")))
	if err != nil {
		return nil, WrapError(err, "start file watcher")
	}
	for _, t := range a.store.All() {
		a.watchPath(t.FilePath)
	}

	// 10. Extensions.
	if cfg.Extensions.Enabled {
		a.ext = ext.New(ext.WithLogger(a.log.WithComponent("ext")))
		if err := a.ext.LoadDir(cfg.ScriptsDir(stateDir)); err != nil {
			a.log.Warn("loading extensions: %v", err)
		}
		a.bridgeExtensions()
	}

	// 11. CLI-requested files.
	for _, path := range opts.Files {
		if _, err := a.OpenFile(path); err != nil {
			a.log.Warn("opening %s: %v", path, err)
		}
	}

	// 12. Initial paint.
	a.renderTabBar()
	a.updateChrome()
	a.sched.TabActivated()

	return a, nil
}

func (a *App) initLogging(levelOverride string) error {
	cfg := DefaultLoggerConfig()
	level := a.cfg.Logging.Level
	if levelOverride != "" {
		level = levelOverride
	}
	cfg.Level = ParseLogLevel(level)

	if a.cfg.Logging.File != "" {
		f, err := os.OpenFile(a.cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cfg.Output = f
		a.logFile = f
	}

	a.log = NewLogger(cfg)
	SetLogger(a.log)
	return nil
}

// bridgeExtensions forwards lifecycle topics into the Lua runtime.
func (a *App) bridgeExtensions() {
	forward := func(topic string) {
		a.bus.Subscribe(topic, func(ev event.Event) {
			a.ext.Emit(topic, eventFields(ev))
		})
	}
	forward(event.TopicDocSaved)
	forward(event.TopicTabCreated)
	forward(event.TopicTabClosed)
	forward(event.TopicSessionRestored)
}

// eventFields projects a typed payload into the string map hooks receive.
func eventFields(ev event.Event) map[string]string {
	fields := make(map[string]string)
	switch p := ev.Payload.(type) {
	case event.TabEvent:
		fields["id"] = fmt.Sprintf("%d", p.ID)
		fields["path"] = p.Path
		fields["name"] = p.Name
	case event.DocumentEvent:
		fields["id"] = fmt.Sprintf("%d", p.TabID)
		fields["path"] = p.Path
	case event.SessionEvent:
		fields["tabs"] = fmt.Sprintf("%d", p.Tabs)
	}
	return fields
}

// Logger returns the shell logger.
func (a *App) Logger() *Logger { return a.log }

// Metrics returns the shell metrics.
func (a *App) Metrics() *Metrics { return a.metrics }

// Bus returns the event bus.
func (a *App) Bus() *event.Bus { return a.bus }

// Store returns the tab store.
func (a *App) Store() *tabs.Store { return a.store }

// Sink returns the render sink.
func (a *App) Sink() render.Sink { return a.sink }

// onDocumentChanged runs after every mutating edit to a live state. Only
// the active tab drives chrome and render scheduling; the eager dirty
// flag flips on the first keystroke without waiting for a diff.
func (a *App) onDocumentChanged(id tabs.TabID) {
	if id != a.store.ActiveID() {
		return
	}
	if a.store.MarkDirty(id) {
		a.host.SetDocumentEdited(true)
		a.renderTabBar()
		a.updateChrome()
	}
	if t, ok := a.store.Get(id); ok {
		a.bus.Publish(event.TopicDocChanged, event.DocumentEvent{
			TabID: int(id),
			Path:  t.FilePath,
			Bytes: len(t.Text()),
		})
	}
	a.sched.DocumentChanged()
	a.saver.NotifyChanged()
}

// NewTab opens a fresh untitled draft.
func (a *App) NewTab() (*tabs.Tab, error) {
	t, err := a.store.Create("", "")
	if err != nil {
		return nil, err
	}
	a.afterTabSwitch()
	return t, nil
}

// OpenFile opens a file in a new tab, or activates the tab that already
// owns the path. A missing file opens an empty clean draft bound to the
// path.
func (a *App) OpenFile(path string) (*tabs.Tab, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewOperationError("open", path, err)
	}

	content := ""
	data, err := os.ReadFile(abs)
	switch {
	case err == nil:
		content = string(data)
	case os.IsNotExist(err):
		// New file: an empty draft bound to the path.
	default:
		return nil, NewOperationError("open", abs, err)
	}

	t, err := a.store.Create(abs, content)
	if err != nil {
		return nil, NewOperationError("open", abs, err)
	}
	a.watchPath(abs)
	a.afterTabSwitch()
	return t, nil
}

// Save writes the active tab to its file path. Drafts return
// ErrNoFilePath for the frontend to catch and prompt.
func (a *App) Save() error {
	t := a.store.Active()
	if t == nil {
		return ErrNoActiveTab
	}
	if t.IsDraft() {
		return NewOperationError("save", t.Name, ErrNoFilePath)
	}
	return a.saveTab(t)
}

// SaveAs binds the active tab to a new path, then saves it there.
func (a *App) SaveAs(path string) error {
	t := a.store.Active()
	if t == nil {
		return ErrNoActiveTab
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return NewOperationError("save", path, err)
	}
	if a.store.PathInUse(abs, t.ID) {
		return NewOperationError("save", abs, errors.New("path already open in another tab"))
	}

	oldPath := t.FilePath
	if err := a.store.Rebind(t.ID, abs); err != nil {
		return err
	}
	if err := a.saveTab(t); err != nil {
		return err
	}
	a.unwatchOrphan(oldPath)
	a.watchPath(abs)
	a.renderTabBar()
	return nil
}

func (a *App) saveTab(t *tabs.Tab) error {
	if err := a.store.Commit(t.ID); err != nil {
		return err
	}
	text := t.Content
	if err := writeFileAtomic(t.FilePath, []byte(text)); err != nil {
		return NewOperationError("save", t.FilePath, err)
	}
	if err := a.store.MarkSaved(t.ID, text); err != nil {
		return err
	}

	a.host.SetDocumentEdited(false)
	a.renderTabBar()
	a.updateChrome()
	a.bus.Publish(event.TopicDocSaved, event.DocumentEvent{
		TabID: int(t.ID),
		Path:  t.FilePath,
		Bytes: len(text),
	})
	a.saver.NotifyChanged()

	// The diff pane is against the fresh baseline now.
	if a.sched.Mode() == render.ModeSplitDiff {
		a.sched.Refresh()
	}
	a.log.Info("saved %s (%d bytes)", t.FilePath, len(text))
	return nil
}

// CloseTab closes a tab; dirty tabs pass through the confirmation gate.
func (a *App) CloseTab(id tabs.TabID) error {
	t, ok := a.store.Get(id)
	if !ok {
		return ErrTabNotFound
	}
	path := t.FilePath

	if err := a.store.Close(id); err != nil {
		return err
	}
	a.unwatchOrphan(path)
	a.afterTabSwitch()
	return nil
}

// CloseActive closes the active tab.
func (a *App) CloseActive() error {
	t := a.store.Active()
	if t == nil {
		return ErrNoActiveTab
	}
	return a.CloseTab(t.ID)
}

// ActivateTab makes a tab current.
func (a *App) ActivateTab(id tabs.TabID) error {
	if err := a.store.Activate(id); err != nil {
		return err
	}
	a.afterTabSwitch()
	return nil
}

// NextTab cycles forward.
func (a *App) NextTab() error {
	if _, err := a.store.Cycle(1); err != nil {
		return err
	}
	a.afterTabSwitch()
	return nil
}

// PrevTab cycles backward.
func (a *App) PrevTab() error {
	if _, err := a.store.Cycle(-1); err != nil {
		return err
	}
	a.afterTabSwitch()
	return nil
}

// afterTabSwitch repaints everything that depends on the active tab.
func (a *App) afterTabSwitch() {
	a.renderTabBar()
	a.updateChrome()
	a.sched.TabActivated()
	a.saver.NotifyChanged()
}

// SetViewMode switches the visible pane layout, rendering immediately.
func (a *App) SetViewMode(m render.Mode) {
	a.sched.ViewChanged(m)
	a.bus.Publish(event.TopicViewChanged, event.ViewEvent{Mode: m.String()})
}

// ViewMode returns the current pane layout.
func (a *App) ViewMode() render.Mode {
	return a.sched.Mode()
}

// RefreshView recomputes the visible pane now, bypassing debounce and
// the large-document suppression.
func (a *App) RefreshView() {
	a.sched.Refresh()
}

// activeLive returns the active tab and its live editing state.
func (a *App) activeLive() (*tabs.Tab, *live, error) {
	t := a.store.Active()
	if t == nil {
		return nil, nil, ErrNoActiveTab
	}
	l, ok := t.Live.(*live)
	if !ok {
		return nil, nil, NewOperationError("edit", t.Name, errors.New("tab has no live editing state"))
	}
	return t, l, nil
}

// Insert inserts text at the caret of the active document.
func (a *App) Insert(s string) error {
	_, l, err := a.activeLive()
	if err != nil {
		return err
	}
	l.st.Insert(l.st.Selection().Head, s)
	return nil
}

// ReplaceSelection substitutes the active document's selection.
func (a *App) ReplaceSelection(s string) error {
	_, l, err := a.activeLive()
	if err != nil {
		return err
	}
	sel := l.st.Selection()
	from, to := sel.Anchor, sel.Head
	if from > to {
		from, to = to, from
	}
	l.st.Replace(from, to, s)
	return nil
}

// AppendLine appends a line to the active document.
func (a *App) AppendLine(line string) error {
	_, l, err := a.activeLive()
	if err != nil {
		return err
	}
	l.st.AppendLine(line)
	return nil
}

// Undo reverts the active document's most recent edit.
func (a *App) Undo() error {
	_, l, err := a.activeLive()
	if err != nil {
		return err
	}
	return l.st.Undo()
}

// Redo reapplies the active document's most recently undone edit.
func (a *App) Redo() error {
	_, l, err := a.activeLive()
	if err != nil {
		return err
	}
	return l.st.Redo()
}

// ActiveDiff computes the active tab's diff against its last saved
// content.
func (a *App) ActiveDiff() (diff.Result, error) {
	t := a.store.Active()
	if t == nil {
		return diff.Result{}, ErrNoActiveTab
	}
	return diff.Strings(t.LastSaved, t.Text(), diff.Options{
		ContextLines: a.cfg.Render.ContextLines,
		MaxCells:     a.cfg.Render.MaxDiffCells,
	}), nil
}

// ExportPreview writes the active tab as a standalone HTML document.
func (a *App) ExportPreview(w io.Writer) error {
	t := a.store.Active()
	if t == nil {
		return ErrNoActiveTab
	}
	return a.preview.ExportHTML(w, t.Name, t.Text())
}

// DirtyTabs returns the tabs with unsaved changes.
func (a *App) DirtyTabs() []*tabs.Tab { return a.store.DirtyTabs() }

// HasDirty reports whether any tab has unsaved changes.
func (a *App) HasDirty() bool { return a.store.HasDirty() }

// handleExternalChange reacts to a watched file changing on disk. Clean
// tabs reload silently; dirty tabs keep the user's edits and surface a
// conflict event.
func (a *App) handleExternalChange(path string) {
	t, ok := a.store.FindByPath(path)
	if !ok {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		a.log.Warn("reloading %s: %v", path, err)
		return
	}
	content := string(data)

	// The shell's own rename-over saves echo back through the directory
	// watch; disk matching the save baseline means nobody else wrote.
	if content == t.LastSaved {
		return
	}

	if t.Dirty {
		a.log.Warn("%s changed on disk; keeping unsaved edits", path)
		a.bus.Publish(event.TopicDocExternal, event.DocumentEvent{
			TabID: int(t.ID),
			Path:  path,
		})
		return
	}

	if err := a.store.ReplaceContent(t.ID, content); err != nil {
		return
	}
	if err := a.store.Rehydrate(t.ID); err != nil {
		a.log.Warn("rehydrating %s: %v", path, err)
		return
	}
	if t.ID == a.store.ActiveID() {
		a.sched.Refresh()
	}
	a.saver.NotifyChanged()
	a.log.Info("reloaded %s from disk", path)
}

// watchPath starts watching a file path. Drafts are skipped; a path whose
// file does not exist yet is fine, the parent-directory watch reports its
// creation.
func (a *App) watchPath(path string) {
	if path == "" || a.watcher == nil {
		return
	}
	if err := a.watcher.Add(path); err != nil {
		a.log.Debug("watching %s: %v", path, err)
	}
}

// unwatchOrphan stops watching a path no tab owns anymore.
func (a *App) unwatchOrphan(path string) {
	if path == "" || a.watcher == nil {
		return
	}
	if !a.store.PathInUse(path, 0) {
		a.watcher.Remove(path)
	}
}

// buildSnapshot projects the tab store into its durable form.
func (a *App) buildSnapshot() *session.Snapshot {
	a.store.CommitAll()

	all := a.store.All()
	snap := &session.Snapshot{
		Tabs:      make([]session.TabRecord, 0, len(all)),
		ActiveTab: a.store.ActiveID(),
		NextTabID: a.store.NextID(),
	}
	for _, t := range all {
		snap.Tabs = append(snap.Tabs, session.TabRecord{
			ID:        t.ID,
			FilePath:  t.FilePath,
			Content:   t.Content,
			Dirty:     t.Dirty,
			ScrollTop: t.ScrollTop,
			Sel:       t.Sel,
			LastSaved: t.LastSaved,
		})
	}
	return snap
}

// renderTabBar repaints the tab strip.
func (a *App) renderTabBar() {
	all := a.store.All()
	infos := make([]render.TabInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, render.TabInfo{ID: t.ID, Name: t.Name, Dirty: t.Dirty})
	}
	a.sink.RenderTabs(infos, a.store.ActiveID())
}

// updateChrome pushes the window title for the active tab. Dirty
// documents carry the "● " prefix.
func (a *App) updateChrome() {
	t := a.store.Active()
	if t == nil {
		return
	}
	title := t.Name + " — Inkwell"
	if t.Dirty {
		title = "● " + title
	}
	a.host.SetTitle(title)
	a.host.SetDocumentEdited(t.Dirty)
}

// Shutdown stops timers and watchers, flushes the session, and closes
// the stores. Idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error

		if a.watcher != nil {
			if err := a.watcher.Close(); err != nil {
				errs = append(errs, WrapError(err, "close watcher"))
			}
		}
		if a.ext != nil {
			a.ext.Close()
		}
		a.sched.Stop()

		if err := a.saver.Flush(ctx); err != nil {
			errs = append(errs, WrapError(err, "flush session"))
		}
		a.saver.Stop()

		if err := a.db.Close(); err != nil {
			errs = append(errs, WrapError(err, "close session store"))
		}
		if a.logFile != nil {
			_ = a.logFile.Close()
		}

		a.shutdownErr = errors.Join(errs...)
		a.log.Info("shutdown complete")
	})
	return a.shutdownErr
}

// writeFileAtomic replaces path via a temp file and rename so a crashed
// save never truncates the document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".inkwell-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
