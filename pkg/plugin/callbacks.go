// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package plugin

import "context"

// InitFunc initializes a plugin. deps holds the state of every required
// plugin keyed by name; the returned value becomes the plugin's state.
type InitFunc func(ctx context.Context, deps map[string]any) (any, error)

// ErrorFunc decides what happens to an error returned by Init or Shutdown.
// Returning a non-nil error re-raises it and marks the plugin crashed;
// returning nil swallows it and puts the plugin back to ready.
type ErrorFunc func(ctx context.Context, event Event, err error) error

// ShutdownFunc tears a plugin down. It receives the plugin's own state.
type ShutdownFunc func(ctx context.Context, state any) error

// Callbacks are supplied by the plugin author. Nil fields use the defaults:
// Init returns no state, Error re-raises and Shutdown does nothing.
type Callbacks struct {
	Init     InitFunc
	Error    ErrorFunc
	Shutdown ShutdownFunc
}

// DefaultCallbacks returns the callbacks used for nil fields.
func DefaultCallbacks() Callbacks {
	return Callbacks{
		Init:     func(context.Context, map[string]any) (any, error) { return nil, nil },
		Error:    func(_ context.Context, _ Event, err error) error { return err },
		Shutdown: func(context.Context, any) error { return nil },
	}
}

func (c Callbacks) withDefaults() Callbacks {
	d := DefaultCallbacks()
	if c.Init == nil {
		c.Init = d.Init
	}
	if c.Error == nil {
		c.Error = d.Error
	}
	if c.Shutdown == nil {
		c.Shutdown = d.Shutdown
	}
	return c
}
