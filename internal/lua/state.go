// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package lua runs plugins written in Lua. A plugin's script is compiled
// once when it is resolved; every successful init gets a fresh sandboxed
// state that lives until the plugin shuts down or fails.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// Sandbox limits.
const (
	defaultCallStackSize = 256
	defaultRegistrySize  = 1024 * 16
)

// openers lists the libraries a sandboxed state gets, keyed by the name
// they are opened under. os, io, debug, package, coroutine and channel are
// never opened.
var openers = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals are removed after the base library is opened.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "require", "module"}

// Sandbox opens restricted Lua states.
type Sandbox struct {
	callStackSize int
	registrySize  int
}

// NewSandbox returns a sandbox with the default limits.
func NewSandbox() *Sandbox {
	return &Sandbox{
		callStackSize: defaultCallStackSize,
		registrySize:  defaultRegistrySize,
	}
}

// Open returns a new state. The caller owns it and must Close it.
func (s *Sandbox) Open(ctx context.Context) (*lua.LState, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.In("lua").Wrapf(err, "open state")
	}

	ls := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: s.callStackSize,
		RegistrySize:  s.registrySize,
	})
	for _, lib := range openers {
		ls.Push(ls.NewFunction(lib.open))
		ls.Push(lua.LString(lib.name))
		if err := ls.PCall(1, 0, nil); err != nil {
			ls.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "open library")
		}
	}
	for _, name := range blockedGlobals {
		ls.SetGlobal(name, lua.LNil)
	}
	return ls, nil
}
