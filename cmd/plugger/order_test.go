// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugger/plugger/pkg/plugin"
)

func lines(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestOrder(t *testing.T) {
	isolate(t)
	root := writePlugins(t,
		luaPlugin("web", "priority: 5\nrequires:\n  - name: db\n", ""),
		luaPlugin("db", "priority: 10\n", ""),
		luaPlugin("cache", "", ""),
		luaPlugin("audit", "priority: -1\n", ""),
	)

	out, err := execute(t, "order", "--plugins-dir", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"web 5", "db 10", "cache unset", "audit -1"}, lines(out))

	out, err = execute(t, "order", "--plugins-dir", root, "--sorted")
	require.NoError(t, err)
	assert.Equal(t, []string{"db 10", "web 5", "cache unset", "audit -1"}, lines(out))
}

func TestOrder_Include(t *testing.T) {
	isolate(t)
	root := writePlugins(t,
		luaPlugin("core-db", "", ""),
		luaPlugin("extra-chat", "", ""),
	)

	out, err := execute(t, "order", "--plugins-dir", root, "--include", "core-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"core-db unset"}, lines(out))
}

func TestOrder_SortedCycle(t *testing.T) {
	isolate(t)
	root := writePlugins(t,
		luaPlugin("a", "requires:\n  - name: b\n", ""),
		luaPlugin("b", "requires:\n  - name: a\n", ""),
	)

	_, err := execute(t, "order", "--plugins-dir", root, "--sorted")
	require.Error(t, err)
	assert.True(t, plugin.IsCycle(err))
}

func TestOrder_MissingDirectory(t *testing.T) {
	isolate(t)
	_, err := execute(t, "order", "--plugins-dir", "/nonexistent/plugger")
	require.Error(t, err)
}
