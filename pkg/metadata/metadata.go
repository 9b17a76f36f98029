// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package metadata provides the open key/value records that describe plugins
// and the predicate used to match a requirement against a loaded plugin.
package metadata

import (
	"reflect"

	"github.com/Masterminds/semver/v3"
)

// Recognized keys.
const (
	KeyName    = "name"
	KeyVersion = "version"
)

// Metadata is an open key/value record describing a plugin instance.
type Metadata map[string]any

// Name returns the name key, or "" when missing or not a string.
func (m Metadata) Name() string {
	name, _ := m[KeyName].(string)
	return name
}

// Version returns the version key, or "" when missing or not a string.
func (m Metadata) Version() string {
	version, _ := m[KeyVersion].(string)
	return version
}

// Clone returns a deep copy of m. Nested maps and slices are copied.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Metadata:
		return val.Clone()
	case map[string]any:
		return map[string]any(Metadata(val).Clone())
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Compare reports whether loaded satisfies required.
//
// Every key of required must match: "version" is a semver range that the
// loaded version must satisfy, nested records are compared recursively and
// any other value must be equal to the loaded one, dynamic type included.
// Keys present only in loaded are ignored, so an empty required always
// matches.
func Compare(required, loaded Metadata) bool {
	return compareRecord(reflect.ValueOf(map[string]any(required)), reflect.ValueOf(map[string]any(loaded)))
}

func compareRecord(required, loaded reflect.Value) bool {
	required = indirect(required)
	loaded = indirect(loaded)

	switch required.Kind() {
	case reflect.Map:
		for _, key := range required.MapKeys() {
			if key.Kind() != reflect.String {
				return false
			}
			want := required.MapIndex(key)
			got := lookup(loaded, key.String())
			if key.String() == KeyVersion {
				if !satisfies(got, want) {
					return false
				}
				continue
			}
			if !compareValue(want, got) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		for i := 0; i < required.Len(); i++ {
			var got reflect.Value
			if isList(loaded) && i < loaded.Len() {
				got = loaded.Index(i)
			}
			if !compareValue(required.Index(i), got) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func compareValue(want, got reflect.Value) bool {
	want = indirect(want)
	if isRecord(want) {
		got = indirect(got)
		if !got.IsValid() || got.Kind() != want.Kind() && !(isList(want) && isList(got)) {
			return false
		}
		return compareRecord(want, got)
	}
	return scalarEqual(want, indirect(got))
}

func scalarEqual(want, got reflect.Value) bool {
	if !want.IsValid() || !got.IsValid() {
		return !want.IsValid() && !got.IsValid()
	}
	if want.Type() != got.Type() {
		return false
	}
	if want.Comparable() {
		return want.Equal(got)
	}
	return reflect.DeepEqual(want.Interface(), got.Interface())
}

func satisfies(loaded, required reflect.Value) bool {
	loadedStr, ok := stringOf(loaded)
	if !ok {
		return false
	}
	requiredStr, ok := stringOf(required)
	if !ok {
		return false
	}
	constraint, err := semver.NewConstraint(requiredStr)
	if err != nil {
		return false
	}
	version, err := semver.NewVersion(loadedStr)
	if err != nil {
		return false
	}
	return constraint.Check(version)
}

func stringOf(v reflect.Value) (string, bool) {
	v = indirect(v)
	if !v.IsValid() || v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

func lookup(record reflect.Value, key string) reflect.Value {
	if !record.IsValid() || record.Kind() != reflect.Map || record.Type().Key().Kind() != reflect.String {
		return reflect.Value{}
	}
	return record.MapIndex(reflect.ValueOf(key).Convert(record.Type().Key()))
}

// indirect unwraps interfaces so nested values stored as any are inspected
// by their dynamic type.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isRecord(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Map {
		return v.Type().Key().Kind() == reflect.String
	}
	return isList(v)
}

func isList(v reflect.Value) bool {
	return v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array)
}
