// Package ext runs user hook scripts on a single shared Lua runtime.
//
// Scripts register hooks through a global inkwell table; the shell bridges
// lifecycle events from the bus into Emit. A misbehaving script never
// affects other scripts or the caller: load and call errors are logged and
// skipped, and each hook call runs under a timeout.
package ext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Version is the API version scripts see as inkwell.version.
const Version = "1.0"

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Logger is the subset of the shell logger the runtime uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runtime owns the Lua state and the hook table.
//
// The Lua state is not goroutine-safe; all access is serialized behind
// the runtime lock.
type Runtime struct {
	mu      sync.Mutex
	ls      *lua.LState
	hooks   map[string][]*lua.LFunction
	log     Logger
	timeout time.Duration
	closed  bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithTimeout bounds each hook call.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a runtime with the inkwell API installed.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		ls:      lua.NewState(),
		hooks:   make(map[string][]*lua.LFunction),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.install()
	return r
}

// install registers the global inkwell table.
func (r *Runtime) install() {
	L := r.ls
	tbl := L.NewTable()

	L.SetField(tbl, "version", lua.LString(Version))

	L.SetField(tbl, "on", L.NewFunction(func(L *lua.LState) int {
		event := L.CheckString(1)
		fn := L.CheckFunction(2)
		r.hooks[event] = append(r.hooks[event], fn)
		return 0
	}))

	L.SetField(tbl, "log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		if r.log != nil {
			r.log.Info("[ext] %s", msg)
		}
		return 0
	}))

	L.SetGlobal("inkwell", tbl)
}

// LoadDir loads every *.lua file directly in dir, in name order. A broken
// script logs an error and is skipped; the rest still load. A missing
// directory is not an error.
func (r *Runtime) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read scripts dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := r.ls.DoFile(path); err != nil {
			if r.log != nil {
				r.log.Error("extension %s failed to load: %v", name, err)
			}
			continue
		}
		if r.log != nil {
			r.log.Debug("extension loaded: %s", name)
		}
	}
	return nil
}

// Emit calls the hooks registered for event, passing a table of fields.
// A failing hook is logged and skipped; later hooks still run.
func (r *Runtime) Emit(event string, fields map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	hooks := r.hooks[event]
	if len(hooks) == 0 {
		return
	}

	L := r.ls
	tbl := L.NewTable()
	for k, v := range fields {
		L.SetField(tbl, k, lua.LString(v))
	}

	for _, fn := range hooks {
		r.callHook(event, fn, tbl)
	}
}

// callHook runs one hook under the timeout. Caller holds the lock.
func (r *Runtime) callHook(event string, fn *lua.LFunction, arg *lua.LTable) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	L := r.ls
	L.SetContext(ctx)
	defer L.RemoveContext()

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("lua panic: %v", rec)
			}
		}()
		err = L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LString(event), arg)
	}()
	if err != nil && r.log != nil {
		r.log.Error("extension hook for %s failed: %v", event, err)
	}
}

// HookCount returns the number of hooks registered for event.
func (r *Runtime) HookCount(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks[event])
}

// Close shuts the Lua state down. Idempotent.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.ls.Close()
}
