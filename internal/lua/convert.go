// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package lua

import (
	"fmt"
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value into a Lua value owned by L. Maps become
// tables keyed by their keys, slices become 1-based array tables and
// anything else without a Lua counterpart is rendered as a string.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case error:
		return lua.LString(val.Error())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Map:
		tbl := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			tbl.RawSet(toLua(L, iter.Key().Interface()), toLua(L, iter.Value().Interface()))
		}
		return tbl
	case reflect.Slice, reflect.Array:
		tbl := L.CreateTable(rv.Len(), 0)
		for i := range rv.Len() {
			tbl.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return tbl
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return toLua(L, rv.Elem().Interface())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// fromLua converts a Lua value into plain Go data. Integral numbers become
// int, sequences become []any and other tables map[string]any. Functions
// and userdata cannot leave the state and are rendered as strings.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int(f)
		}
		return f
	case *lua.LTable:
		if isSequence(val) {
			out := make([]any, 0, val.MaxN())
			for i := 1; i <= val.MaxN(); i++ {
				out = append(out, fromLua(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, e lua.LValue) {
			out[k.String()] = fromLua(e)
		})
		return out
	default:
		return v.String()
	}
}

// isSequence reports whether tbl holds exactly the keys 1..n for some n > 0.
func isSequence(tbl *lua.LTable) bool {
	maxN := tbl.MaxN()
	if maxN == 0 {
		return false
	}
	count := 0
	tbl.ForEach(func(_, _ lua.LValue) {
		count++
	})
	return count == maxN
}
