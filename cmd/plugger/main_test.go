// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for a command writing on one goroutine
// while the test reads on another.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolate keeps the user's XDG config out of the test.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
}

type fixture struct {
	name     string
	manifest string
	script   string
}

func writePlugins(t *testing.T, plugins ...fixture) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range plugins {
		dir := filepath.Join(root, p.name)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(p.manifest), 0o600))
		if p.script != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(p.script), 0o600))
		}
	}
	return root
}

func luaPlugin(name, extra, script string) fixture {
	return fixture{
		name:     name,
		manifest: "name: " + name + "\nversion: 1.0.0\ntype: lua\nlua-plugin:\n  entry: main.lua\n" + extra,
		script:   script,
	}
}

// execute runs the CLI and returns what it wrote to stdout. Logs and usage
// go to a separate buffer.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, logs syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, phrase := range []string{"run", "order", "validate", "schema", "--plugins-dir", "--config", "--exit-timeout"} {
		assert.Contains(t, out, phrase)
	}
}

func TestRoot_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "order", "validate", "schema"} {
		assert.Contains(t, names, want)
	}
}

func TestRoot_InvalidConfig(t *testing.T) {
	isolate(t)
	_, err := execute(t, "order", "--plugins-dir", t.TempDir(), "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestRoot_ConfigFile(t *testing.T) {
	isolate(t)
	root := writePlugins(t, luaPlugin("db", "", ""))
	cfg := filepath.Join(t.TempDir(), "plugger.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("plugins-dir: "+root+"\n"), 0o600))

	out, err := execute(t, "order", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "db unset", strings.TrimSpace(out))
}
