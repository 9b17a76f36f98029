// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package lua

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/plugger/plugger/internal/discovery"
	"github.com/plugger/plugger/pkg/plugin"
)

// Global functions a script may define. All are optional.
const (
	initFunc     = "init"     // init(deps) -> state
	shutdownFunc = "shutdown" // shutdown(state)
	errorFunc    = "on_error" // on_error(event, message) -> nil | false | true | string
)

// Runtime resolves Lua plugins.
type Runtime struct {
	sandbox *Sandbox
	logger  *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger behind plugger.log.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates a Lua runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		sandbox: NewSandbox(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reads the manifest's Lua entry file from dir and builds the
// plugin. It has the shape of discovery.Resolver.
func (r *Runtime) Resolve(_ context.Context, m *discovery.Manifest, dir string) (*plugin.Plugin, error) {
	if m.Type != discovery.TypeLua || m.LuaPlugin == nil {
		return nil, oops.In("lua").With("plugin", m.Name).With("type", m.Type).New("not a lua plugin")
	}

	entry := m.LuaPlugin.Entry
	if !filepath.IsLocal(entry) {
		return nil, oops.In("lua").With("plugin", m.Name).With("entry", entry).New("entry must be a path inside the plugin directory")
	}

	entryPath := filepath.Join(dir, entry)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, oops.In("lua").With("plugin", m.Name).With("path", entryPath).Hint("failed to read entry file").Wrap(err)
	}

	return r.NewPlugin(m.Name, entry, string(code), m.PluginOptions()...)
}

// NewPlugin compiles code and returns a plugin whose callbacks run it.
// chunkName names the code in Lua error messages. Callback options in opts
// are overridden.
func (r *Runtime) NewPlugin(name, chunkName, code string, opts ...plugin.Option) (*plugin.Plugin, error) {
	chunk, err := parse.Parse(strings.NewReader(code), chunkName)
	if err != nil {
		return nil, oops.In("lua").With("plugin", name).With("entry", chunkName).Hint("syntax error").Wrap(err)
	}
	proto, err := lua.Compile(chunk, chunkName)
	if err != nil {
		return nil, oops.In("lua").With("plugin", name).With("entry", chunkName).Hint("compile error").Wrap(err)
	}

	s := &script{
		name:    name,
		proto:   proto,
		sandbox: r.sandbox,
		logger:  r.logger,
	}
	opts = append(opts, plugin.WithCallbacks(plugin.Callbacks{
		Init:     s.init,
		Error:    s.onError,
		Shutdown: s.shutdown,
	}))
	return plugin.New(name, opts...)
}

// script is the Go side of one Lua plugin. state is non-nil from the start
// of init until shutdown succeeds or the error callback has run.
type script struct {
	name    string
	proto   *lua.FunctionProto
	sandbox *Sandbox
	logger  *slog.Logger

	mu    sync.Mutex
	state *lua.LState
}

func (s *script) init(ctx context.Context, deps map[string]any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()

	L, err := s.sandbox.Open(ctx)
	if err != nil {
		return nil, s.fail(err, "init")
	}
	registerHost(L, s.name, s.logger)
	s.state = L

	L.SetContext(ctx)
	defer L.RemoveContext()

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return nil, s.fail(err, "load")
	}

	fn := L.GetGlobal(initFunc)
	if fn == lua.LNil {
		return nil, nil
	}
	ret, err := call(L, fn, toLua(L, deps))
	if err != nil {
		return nil, s.fail(err, initFunc)
	}
	return fromLua(ret), nil
}

func (s *script) shutdown(ctx context.Context, state any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	L := s.state
	if L == nil {
		return nil
	}

	if fn := L.GetGlobal(shutdownFunc); fn != lua.LNil {
		L.SetContext(ctx)
		_, err := call(L, fn, toLua(L, state))
		L.RemoveContext()
		if err != nil {
			return s.fail(err, shutdownFunc)
		}
	}

	s.closeLocked()
	return nil
}

// onError lets the script's on_error decide the outcome: nil or false
// swallows the error, true re-raises it and a string replaces it. The state
// is closed either way since the plugin is no longer initialized.
func (s *script) onError(ctx context.Context, event plugin.Event, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.closeLocked()

	L := s.state
	if L == nil {
		return cause
	}
	fn := L.GetGlobal(errorFunc)
	if fn == lua.LNil {
		return cause
	}

	L.SetContext(ctx)
	ret, err := call(L, fn, lua.LString(string(event)), lua.LString(cause.Error()))
	L.RemoveContext()
	if err != nil {
		return s.fail(err, errorFunc)
	}

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		if bool(v) {
			return cause
		}
		return nil
	case lua.LString:
		return oops.In("lua").With("plugin", s.name).With("event", string(event)).Errorf("%s", string(v))
	default:
		return cause
	}
}

func (s *script) closeLocked() {
	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}

func (s *script) fail(err error, operation string) error {
	return oops.In("lua").With("plugin", s.name).With("operation", operation).Wrap(err)
}

// call invokes fn in protected mode and returns its first result.
func call(L *lua.LState, fn lua.LValue, args ...lua.LValue) (lua.LValue, error) { //nolint:gocritic // captLocal
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}
