// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"slices"

	"github.com/plugger/plugger/pkg/plugin"
)

// LoadOrder returns the registered plugins ordered by priority. It is a
// hint only: requirements are not consulted (see SortedLoadOrder).
//
// Non-negative priorities come first, ascending, each bucket in
// registration order. Unset priorities follow in registration order.
// Negative buckets are then spliced in, most negative first, at index
// len+p+1 (clamped to 0) where len counts every earlier spliced bucket as
// one slot. The result is a pure function of the registration sequence.
func (l *Loader) LoadOrder() []*plugin.Plugin {
	return loadOrder(l.snapshot())
}

func loadOrder(entries []entry) []*plugin.Plugin {
	buckets := make(map[int][]*plugin.Plugin)
	var unset []*plugin.Plugin
	for _, e := range entries {
		n, ok := e.priority.Value()
		if !ok {
			unset = append(unset, e.plugin)
			continue
		}
		buckets[n] = append(buckets[n], e.plugin)
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	groups := make([][]*plugin.Plugin, 0, len(entries))
	for _, k := range keys {
		if k < 0 {
			continue
		}
		for _, p := range buckets[k] {
			groups = append(groups, []*plugin.Plugin{p})
		}
	}
	for _, p := range unset {
		groups = append(groups, []*plugin.Plugin{p})
	}

	for _, k := range keys {
		if k >= 0 {
			break
		}
		idx := len(groups) + k + 1
		if idx < 0 {
			idx = 0
		}
		groups = slices.Insert(groups, idx, buckets[k])
	}

	order := make([]*plugin.Plugin, 0, len(entries))
	for _, g := range groups {
		order = append(order, g...)
	}
	return order
}

// SortedLoadOrder repairs order so every plugin comes after the plugins it
// requires, otherwise keeping the relative order. A nil order means
// LoadOrder(). The loader is not modified.
//
// It fails with a requirement error when a required name is not registered
// or not part of order, and with a cycle error on circular requirements.
func (l *Loader) SortedLoadOrder(order []*plugin.Plugin) ([]*plugin.Plugin, error) {
	entries := l.snapshot()
	if order == nil {
		order = loadOrder(entries)
	}
	return sortOrder(order, byName(entries))
}

// SortLoadOrder reorders the registration sequence into the dependency
// sorted load order. Priorities are kept, so LoadOrder still buckets by
// priority and the sort is visible within each bucket.
func (l *Loader) SortLoadOrder() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sorted, err := sortOrder(loadOrder(l.entries), byName(l.entries))
	if err != nil {
		return err
	}

	priorities := make(map[*plugin.Plugin]plugin.Priority, len(l.entries))
	for _, e := range l.entries {
		priorities[e.plugin] = e.priority
	}
	entries := make([]entry, len(sorted))
	for i, p := range sorted {
		entries[i] = entry{plugin: p, priority: priorities[p]}
	}
	l.entries = entries
	return nil
}

// sortOrder moves each plugin's requirements in front of it. For every
// position i, a requirement found later in the slice is moved to i and the
// scan of position i restarts with the moved plugin. Each plugin moved into
// i is a requirement of the previous occupant, so a plugin that returns to
// a position it already held closes a cycle.
func sortOrder(order []*plugin.Plugin, registered map[string]*plugin.Plugin) ([]*plugin.Plugin, error) {
	arr := slices.Clone(order)

	for i := 0; i < len(arr); i++ {
		occupants := []*plugin.Plugin{arr[i]}

	scan:
		for {
			current := arr[i]
			for _, name := range current.RequiredNames() {
				dep, ok := registered[name]
				idx := -1
				if ok {
					idx = slices.Index(arr, dep)
				}
				if idx < 0 {
					return nil, plugin.ErrMissingRequirement(name, current.Name())
				}
				if idx <= i {
					continue
				}

				if pos := slices.Index(occupants, dep); pos >= 0 {
					return nil, plugin.ErrCycle(cyclePath(occupants[pos:], dep))
				}
				arr = slices.Delete(arr, idx, idx+1)
				arr = slices.Insert(arr, i, dep)
				occupants = append(occupants, dep)
				continue scan
			}
			break
		}
	}

	return arr, nil
}

func cyclePath(chain []*plugin.Plugin, closing *plugin.Plugin) []string {
	path := make([]string, 0, len(chain)+1)
	for _, p := range chain {
		path = append(path, p.Name())
	}
	return append(path, closing.Name())
}

func byName(entries []entry) map[string]*plugin.Plugin {
	out := make(map[string]*plugin.Plugin, len(entries))
	for _, e := range entries {
		out[e.plugin.Name()] = e.plugin
	}
	return out
}
