// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package lua

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"
)

// hostModule is the global table scripts use to reach the host.
const hostModule = "plugger"

// registerHost installs the plugger.* host functions:
//
//	plugger.name                      the plugin's name
//	plugger.log(level, msg[, fields]) structured log through the host logger
//	plugger.new_id()                  a new ULID string
func registerHost(ls *lua.LState, pluginName string, logger *slog.Logger) {
	mod := ls.NewTable()
	ls.SetField(mod, "name", lua.LString(pluginName))
	ls.SetField(mod, "log", ls.NewFunction(logFn(logger.With("plugin", pluginName))))
	ls.SetField(mod, "new_id", ls.NewFunction(newIDFn))
	ls.SetGlobal(hostModule, mod)
}

func logFn(logger *slog.Logger) lua.LGFunction {
	return func(ls *lua.LState) int {
		level := ls.CheckString(1)
		message := ls.CheckString(2)

		var attrs []any
		if fields := ls.OptTable(3, nil); fields != nil {
			fields.ForEach(func(k, v lua.LValue) {
				attrs = append(attrs, k.String(), fromLua(v))
			})
		}

		ctx := ls.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		switch level {
		case "debug":
			logger.Log(ctx, slog.LevelDebug, message, attrs...)
		case "warn":
			logger.Log(ctx, slog.LevelWarn, message, attrs...)
		case "error":
			logger.Log(ctx, slog.LevelError, message, attrs...)
		default:
			logger.Log(ctx, slog.LevelInfo, message, attrs...)
		}
		return 0
	}
}

func newIDFn(ls *lua.LState) int {
	ls.Push(lua.LString(ulid.Make().String()))
	return 1
}
