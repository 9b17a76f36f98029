// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package discovery finds plugins on disk. Each plugin lives in its own
// subdirectory with a plugin.yaml manifest; a Resolver turns the manifest
// into a *plugin.Plugin that can be registered with a loader.
package discovery

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/plugger/plugger/pkg/metadata"
	"github.com/plugger/plugger/pkg/plugin"
)

// ManifestFile is the manifest file name looked up in each plugin directory.
const ManifestFile = "plugin.yaml"

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by the system.
const (
	TypeLua Type = "lua"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name      string          `yaml:"name" jsonschema:"pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Version   string          `yaml:"version"`
	Type      Type            `yaml:"type" jsonschema:"enum=lua"`
	Priority  plugin.Priority `yaml:"priority,omitempty"`
	Requires  []Requirement   `yaml:"requires,omitempty"`
	Metadata  map[string]any  `yaml:"metadata,omitempty"`
	LuaPlugin *LuaConfig      `yaml:"lua-plugin,omitempty"`
}

// Requirement declares a dependency on another plugin. Version is a semver
// constraint; Metadata constrains any other key of the dependency.
type Requirement struct {
	Name     string         `yaml:"name"`
	Version  string         `yaml:"version,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with lowercase letter,
// followed by lowercase letters, digits, or hyphens.
// Cannot end with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errManifest("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errManifestWrap(err, "invalid YAML")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return errManifest("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return errManifest("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return errManifest("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return errManifestWrap(err, "version %q is not a semantic version", m.Version)
	}

	seen := make(map[string]bool, len(m.Requires))
	for _, r := range m.Requires {
		if r.Name == "" {
			return errManifest("every requirement needs a name")
		}
		if r.Name == m.Name {
			return errManifest("plugin %q cannot require itself", m.Name)
		}
		if seen[r.Name] {
			return errManifest("requirement %q is declared twice", r.Name)
		}
		seen[r.Name] = true
		if r.Version != "" {
			if _, err := semver.NewConstraint(r.Version); err != nil {
				return errManifestWrap(err, "requirement %q has an invalid version constraint %q", r.Name, r.Version)
			}
		}
	}

	switch m.Type {
	case TypeLua:
		if m.LuaPlugin == nil {
			return errManifest("lua-plugin is required when type is lua")
		}
		if m.LuaPlugin.Entry == "" {
			return errManifest("lua-plugin.entry is required")
		}
	default:
		return errManifest("type must be 'lua', got %q", m.Type)
	}

	return nil
}

// asMetadata returns the requirement as a record for plugin.WithRequirements.
func (r Requirement) asMetadata() metadata.Metadata {
	md := metadata.Metadata(r.Metadata).Clone()
	md[metadata.KeyName] = r.Name
	if r.Version != "" {
		md[metadata.KeyVersion] = r.Version
	}
	return md
}

// PluginOptions returns the plugin options described by the manifest:
// version, metadata, requirements and default priority. Callbacks are left
// to the resolver.
func (m *Manifest) PluginOptions() []plugin.Option {
	opts := []plugin.Option{
		plugin.WithMetadata(metadata.Metadata(m.Metadata)),
		plugin.WithVersion(m.Version),
		plugin.WithDefaultPriority(m.Priority),
	}
	if len(m.Requires) > 0 {
		reqs := make([]metadata.Metadata, len(m.Requires))
		for i, r := range m.Requires {
			reqs[i] = r.asMetadata()
		}
		opts = append(opts, plugin.WithRequirements(reqs...))
	}
	return opts
}
