// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package plugin

import (
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Priority is a load-order hint. Lower non-negative values load first,
// unset priorities load after every non-negative one, and negative values
// load near the end. The zero value is unset.
type Priority struct {
	value int
	set   bool
}

// Unset is the priority of a plugin without an explicit load-order hint.
var Unset = Priority{}

// PriorityOf returns an explicit priority.
func PriorityOf(n int) Priority {
	return Priority{value: n, set: true}
}

// Value returns the priority and whether it is set.
func (p Priority) Value() (int, bool) {
	return p.value, p.set
}

// IsSet reports whether the priority was given explicitly.
func (p Priority) IsSet() bool {
	return p.set
}

// String returns the number, or "unset".
func (p Priority) String() string {
	if !p.set {
		return "unset"
	}
	return strconv.Itoa(p.value)
}

// MarshalJSON encodes an unset priority as null.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON decodes null as unset.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var v *int
	if err := json.Unmarshal(data, &v); err != nil {
		return oops.In("plugin").Hint("priority must be an integer or null").Wrap(err)
	}
	*p = fromPointer(v)
	return nil
}

// MarshalYAML encodes an unset priority as null.
func (p Priority) MarshalYAML() (any, error) {
	if !p.set {
		return nil, nil
	}
	return p.value, nil
}

// UnmarshalYAML decodes null as unset.
func (p *Priority) UnmarshalYAML(node *yaml.Node) error {
	var v *int
	if err := node.Decode(&v); err != nil {
		return oops.In("plugin").Hint("priority must be an integer or null").Wrap(err)
	}
	*p = fromPointer(v)
	return nil
}

func fromPointer(v *int) Priority {
	if v == nil {
		return Unset
	}
	return PriorityOf(*v)
}
