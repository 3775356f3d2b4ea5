package ext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger records formatted log lines.
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) logf(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(msg, args...))
}

func (l *testLogger) Debug(msg string, args ...any) { l.logf("DEBUG", msg, args...) }
func (l *testLogger) Info(msg string, args ...any)  { l.logf("INFO", msg, args...) }
func (l *testLogger) Error(msg string, args ...any) { l.logf("ERROR", msg, args...) }

func (l *testLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirAndEmit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `
		inkwell.on("document.saved", function(event, fields)
			inkwell.log("saved " .. fields.path .. " via " .. event)
		end)
	`)

	log := &testLogger{}
	r := New(WithLogger(log))
	defer r.Close()

	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := r.HookCount("document.saved"); got != 1 {
		t.Fatalf("expected 1 hook, got %d", got)
	}

	r.Emit("document.saved", map[string]string{"path": "/tmp/a.md"})
	if !log.contains("saved /tmp/a.md via document.saved") {
		t.Errorf("hook did not run: %v", log.lines)
	}
}

func TestLoadDirSkipsBrokenScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a_broken.lua", `this is not lua (`)
	writeScript(t, dir, "b_good.lua", `inkwell.on("tab.created", function() end)`)

	log := &testLogger{}
	r := New(WithLogger(log))
	defer r.Close()

	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !log.contains("a_broken.lua") {
		t.Error("broken script not reported")
	}
	if got := r.HookCount("tab.created"); got != 1 {
		t.Errorf("good script did not load: %d hooks", got)
	}
}

func TestLoadDirMissingIsNoError(t *testing.T) {
	r := New()
	defer r.Close()
	if err := r.LoadDir(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing dir errored: %v", err)
	}
}

func TestLoadDirIgnoresNonLua(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "readme.txt", `inkwell.on("x", function() end)`)

	r := New()
	defer r.Close()
	if err := r.LoadDir(dir); err != nil {
		t.Fatal(err)
	}
	if got := r.HookCount("x"); got != 0 {
		t.Errorf("non-lua file loaded: %d hooks", got)
	}
}

func TestHookErrorDoesNotBlockLaterHooks(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `
		inkwell.on("tab.closed", function()
			error("first hook explodes")
		end)
		inkwell.on("tab.closed", function()
			inkwell.log("second hook ran")
		end)
	`)

	log := &testLogger{}
	r := New(WithLogger(log))
	defer r.Close()

	if err := r.LoadDir(dir); err != nil {
		t.Fatal(err)
	}
	r.Emit("tab.closed", nil)

	if !log.contains("first hook explodes") {
		t.Error("hook error not logged")
	}
	if !log.contains("second hook ran") {
		t.Error("later hook blocked by earlier failure")
	}
}

func TestEmitUnknownEventIsNoop(t *testing.T) {
	r := New()
	defer r.Close()
	r.Emit("never.registered", map[string]string{"k": "v"})
}

func TestHookTimeout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "spin.lua", `
		inkwell.on("session.restored", function()
			while true do end
		end)
	`)

	log := &testLogger{}
	r := New(WithLogger(log), WithTimeout(50*time.Millisecond))
	defer r.Close()

	if err := r.LoadDir(dir); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		r.Emit("session.restored", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runaway hook not cut off by timeout")
	}
	if !log.contains("session.restored") {
		t.Error("timeout not reported")
	}
}

func TestEmitAfterCloseIsNoop(t *testing.T) {
	r := New()
	r.Close()
	r.Emit("tab.created", nil)
	r.Close() // idempotent
}
