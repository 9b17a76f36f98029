// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package discovery_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugger/plugger/internal/discovery"
	"github.com/plugger/plugger/pkg/errutil"
	"github.com/plugger/plugger/pkg/metadata"
	"github.com/plugger/plugger/pkg/plugin"
)

func TestParseManifest_LuaPlugin(t *testing.T) {
	yaml := `
name: web
version: 1.2.0
type: lua
priority: 5
requires:
  - name: db
    version: ^1.0.0
  - name: cache
    metadata:
      driver: redis
metadata:
  owner: platform
lua-plugin:
  entry: main.lua
`
	m, err := discovery.ParseManifest([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, "web", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, discovery.TypeLua, m.Type)
	assert.Equal(t, plugin.PriorityOf(5), m.Priority)
	require.Len(t, m.Requires, 2)
	assert.Equal(t, "db", m.Requires[0].Name)
	assert.Equal(t, "^1.0.0", m.Requires[0].Version)
	assert.Equal(t, map[string]any{"driver": "redis"}, m.Requires[1].Metadata)
	assert.Equal(t, map[string]any{"owner": "platform"}, m.Metadata)
	require.NotNil(t, m.LuaPlugin)
	assert.Equal(t, "main.lua", m.LuaPlugin.Entry)
}

func TestParseManifest_PriorityDefaultsToUnset(t *testing.T) {
	yaml := `
name: web
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`
	m, err := discovery.ParseManifest([]byte(yaml))
	require.NoError(t, err)
	assert.False(t, m.Priority.IsSet())
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty",
			yaml:    "",
			wantErr: "empty",
		},
		{
			name:    "bad yaml",
			yaml:    "name: [",
			wantErr: "invalid YAML",
		},
		{
			name: "uppercase name",
			yaml: `
name: Invalid_Name
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
			wantErr: "name",
		},
		{
			name: "trailing hyphen",
			yaml: `
name: web-
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
			wantErr: "name",
		},
		{
			name: "name too long",
			yaml: `
name: ` + "a" + strings.Repeat("b", 64) + `
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
			wantErr: "64 characters",
		},
		{
			name: "missing version",
			yaml: `
name: web
type: lua
lua-plugin:
  entry: main.lua
`,
			wantErr: "version is required",
		},
		{
			name: "version not semver",
			yaml: `
name: web
version: latest
type: lua
lua-plugin:
  entry: main.lua
`,
			wantErr: "not a semantic version",
		},
		{
			name: "unknown type",
			yaml: `
name: web
version: 1.0.0
type: binary
`,
			wantErr: "type must be 'lua'",
		},
		{
			name: "missing lua config",
			yaml: `
name: web
version: 1.0.0
type: lua
`,
			wantErr: "lua-plugin is required",
		},
		{
			name: "missing entry",
			yaml: `
name: web
version: 1.0.0
type: lua
lua-plugin: {}
`,
			wantErr: "lua-plugin.entry is required",
		},
		{
			name: "unnamed requirement",
			yaml: `
name: web
version: 1.0.0
type: lua
requires:
  - version: ^1.0.0
lua-plugin:
  entry: main.lua
`,
			wantErr: "needs a name",
		},
		{
			name: "self requirement",
			yaml: `
name: web
version: 1.0.0
type: lua
requires:
  - name: web
lua-plugin:
  entry: main.lua
`,
			wantErr: "cannot require itself",
		},
		{
			name: "duplicate requirement",
			yaml: `
name: web
version: 1.0.0
type: lua
requires:
  - name: db
  - name: db
lua-plugin:
  entry: main.lua
`,
			wantErr: "declared twice",
		},
		{
			name: "bad constraint",
			yaml: `
name: web
version: 1.0.0
type: lua
requires:
  - name: db
    version: "not a range"
lua-plugin:
  entry: main.lua
`,
			wantErr: "invalid version constraint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := discovery.ParseManifest([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, discovery.CodeManifestInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifest_PluginOptions(t *testing.T) {
	m := &discovery.Manifest{
		Name:     "web",
		Version:  "1.2.0",
		Type:     discovery.TypeLua,
		Priority: plugin.PriorityOf(-1),
		Requires: []discovery.Requirement{
			{Name: "db", Version: "^1.0.0"},
			{Name: "cache", Metadata: map[string]any{"driver": "redis"}},
		},
		Metadata:  map[string]any{"owner": "platform", "name": "ignored"},
		LuaPlugin: &discovery.LuaConfig{Entry: "main.lua"},
	}

	p, err := plugin.New(m.Name, m.PluginOptions()...)
	require.NoError(t, err)

	assert.Equal(t, metadata.Metadata{"name": "web", "version": "1.2.0", "owner": "platform"}, p.Metadata())
	assert.Equal(t, plugin.PriorityOf(-1), p.DefaultPriority())
	assert.Equal(t, []metadata.Metadata{
		{"name": "db", "version": "^1.0.0"},
		{"name": "cache", "driver": "redis"},
	}, p.RequiredPlugins())
}
