// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package metadata

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// ReadDescriptor reads a package descriptor (JSON or YAML, e.g. package.json)
// and returns its name plus the remaining properties as metadata.
//
// When keys are given, only those properties are kept; a requested key that
// is absent from the descriptor is kept with a nil value.
func ReadDescriptor(path string, keys ...string) (string, Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", nil, oops.In("metadata").With("path", path).Hint("failed to read descriptor").Wrap(err)
	}
	return ParseDescriptor(data, keys...)
}

// ParseDescriptor is ReadDescriptor for in-memory data.
func ParseDescriptor(data []byte, keys ...string) (string, Metadata, error) {
	if len(data) == 0 {
		return "", nil, oops.In("metadata").New("descriptor data is empty")
	}

	// YAML is a superset of JSON, so one decoder covers both formats.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", nil, oops.In("metadata").Hint("invalid descriptor").Wrap(err)
	}

	name, _ := raw[KeyName].(string)
	if name == "" {
		return "", nil, oops.In("metadata").New("descriptor has no name")
	}
	delete(raw, KeyName)

	if len(keys) == 0 {
		return name, Metadata(raw), nil
	}

	md := make(Metadata, len(keys))
	for _, k := range keys {
		md[k] = raw[k]
	}
	return name, md, nil
}
