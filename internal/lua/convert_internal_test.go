// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package lua

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	lua "github.com/yuin/gopher-lua"
)

func TestConvert_RoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "bool", in: true, want: true},
		{name: "string", in: "pg://", want: "pg://"},
		{name: "int", in: 42, want: 42},
		{name: "int64", in: int64(-7), want: -7},
		{name: "uint8", in: uint8(3), want: 3},
		{name: "float", in: 1.5, want: 1.5},
		{name: "integral float", in: 2.0, want: 2},
		{name: "slice", in: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "map", in: map[string]int{"port": 5432}, want: map[string]any{"port": 5432}},
		{
			name: "nested",
			in:   map[string]any{"db": map[string]any{"hosts": []any{"a", 1}}},
			want: map[string]any{"db": map[string]any{"hosts": []any{"a", 1}}},
		},
		{name: "empty map", in: map[string]any{}, want: map[string]any{}},
		{name: "nil pointer", in: (*int)(nil), want: nil},
		{name: "error", in: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromLua(toLua(L, tt.in)))
		})
	}
}

func TestFromLua_Tables(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	err := L.DoString(`
seq = { "x", "y", "z" }
holes = { [1] = "x", [3] = "z" }
mixed = { "x", name = "y" }
`)
	assert.NoError(t, err)

	assert.Equal(t, []any{"x", "y", "z"}, fromLua(L.GetGlobal("seq")))
	assert.Equal(t, map[string]any{"1": "x", "3": "z"}, fromLua(L.GetGlobal("holes")))
	assert.Equal(t, map[string]any{"1": "x", "name": "y"}, fromLua(L.GetGlobal("mixed")))
}

func TestFromLua_Opaque(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	fn := L.NewFunction(func(*lua.LState) int { return 0 })
	got, ok := fromLua(fn).(string)
	assert.True(t, ok)
	assert.Contains(t, got, "function")
}
