// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package discovery_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugger/plugger/internal/discovery"
	"github.com/plugger/plugger/pkg/errutil"
)

func TestValidateSchema_Valid(t *testing.T) {
	yaml := `
name: web
version: 1.0.0
type: lua
priority: -2
requires:
  - name: db
    version: ^1.0.0
    metadata:
      driver: pg
metadata:
  owner: platform
  tags: [http, public]
lua-plugin:
  entry: main.lua
`
	require.NoError(t, discovery.ValidateSchema([]byte(yaml)))
}

func TestValidateSchema_NullPriority(t *testing.T) {
	yaml := `
name: web
version: 1.0.0
type: lua
priority: null
lua-plugin:
  entry: main.lua
`
	require.NoError(t, discovery.ValidateSchema([]byte(yaml)))
}

func TestValidateSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: `
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "missing version",
			yaml: `
name: web
type: lua
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "unknown type",
			yaml: `
name: web
version: 1.0.0
type: wasm
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "uppercase name",
			yaml: `
name: Web
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "name too long",
			yaml: `
name: a` + strings.Repeat("b", 64) + `
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "string priority",
			yaml: `
name: web
version: 1.0.0
type: lua
priority: high
lua-plugin:
  entry: main.lua
`,
		},
		{
			name: "unknown field",
			yaml: `
name: web
version: 1.0.0
type: lua
events: [say]
lua-plugin:
  entry: main.lua
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := discovery.ValidateSchema([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, discovery.CodeSchemaInvalid)
		})
	}
}

func TestValidateSchema_BadInput(t *testing.T) {
	errutil.AssertErrorCode(t, discovery.ValidateSchema(nil), discovery.CodeManifestInvalid)
	errutil.AssertErrorCode(t, discovery.ValidateSchema([]byte("name: [")), discovery.CodeManifestInvalid)
}

func TestGenerateSchema(t *testing.T) {
	schema, err := discovery.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(schema, &doc))
	assert.Equal(t, discovery.SchemaID, doc["$id"])
	assert.Equal(t, "Plugger Plugin Manifest", doc["title"])

	for _, field := range []string{`"name"`, `"version"`, `"type"`, `"priority"`, `"requires"`, `"lua-plugin"`, `"$schema"`} {
		assert.Contains(t, string(schema), field)
	}
}

func TestFormatSchemaError(t *testing.T) {
	assert.Empty(t, discovery.FormatSchemaError(nil))
	assert.Equal(t, "missing properties: 'name'",
		discovery.FormatSchemaError(errors.New("schema validation failed: missing properties: 'name'")))
	assert.Equal(t, "plain", discovery.FormatSchemaError(errors.New("plain")))
}
