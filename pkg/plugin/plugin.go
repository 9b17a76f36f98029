// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package plugin provides the unit of registration: a named plugin with
// metadata, requirements on other plugins, a lifecycle status and the state
// produced by its own initialization.
package plugin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/plugger/plugger/pkg/metadata"
)

// Plugin is a node in the dependency graph. The zero value is not usable;
// create plugins with New.
type Plugin struct {
	name      string
	callbacks Callbacks
	priority  Priority
	status    atomic.Int32
	session   session

	mu       sync.RWMutex
	meta     metadata.Metadata
	requires []metadata.Metadata
	state    any
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithCallbacks sets the plugin's init, error and shutdown callbacks.
func WithCallbacks(c Callbacks) Option {
	return func(p *Plugin) {
		p.callbacks = c
	}
}

// WithInit sets only the init callback.
func WithInit(fn InitFunc) Option {
	return func(p *Plugin) {
		p.callbacks.Init = fn
	}
}

// WithShutdown sets only the shutdown callback.
func WithShutdown(fn ShutdownFunc) Option {
	return func(p *Plugin) {
		p.callbacks.Shutdown = fn
	}
}

// WithErrorHandler sets only the error callback.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(p *Plugin) {
		p.callbacks.Error = fn
	}
}

// WithDefaultPriority sets the priority used when the plugin is registered
// without an explicit one.
func WithDefaultPriority(priority Priority) Option {
	return func(p *Plugin) {
		p.priority = priority
	}
}

// WithMetadata merges md into the plugin's metadata. A name key is ignored.
func WithMetadata(md metadata.Metadata) Option {
	return func(p *Plugin) {
		for k, v := range md.Clone() {
			if k == metadata.KeyName {
				continue
			}
			p.meta[k] = v
		}
	}
}

// WithVersion sets the version key of the plugin's metadata.
func WithVersion(version string) Option {
	return func(p *Plugin) {
		p.meta[metadata.KeyVersion] = version
	}
}

// WithRequirements declares requirements at construction. Invalid or
// duplicate requirements make New fail.
func WithRequirements(reqs ...metadata.Metadata) Option {
	return func(p *Plugin) {
		for _, r := range reqs {
			p.requires = append(p.requires, r.Clone())
		}
	}
}

// New creates a plugin in the ready state.
func New(name string, opts ...Option) (*Plugin, error) {
	if name == "" {
		return nil, ErrInvalid("plugin name must not be empty")
	}

	p := &Plugin{
		name: name,
		meta: metadata.Metadata{metadata.KeyName: name},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.callbacks = p.callbacks.withDefaults()

	seen := make(map[string]bool, len(p.requires))
	for _, r := range p.requires {
		reqName := r.Name()
		if reqName == "" {
			return nil, ErrInvalid("plugin '%s' declares a requirement without a name", name)
		}
		if seen[reqName] {
			return nil, ErrConflict(reqName, fmt.Sprintf("plugin '%s' already requires this plugin", name))
		}
		seen[reqName] = true
	}

	return p, nil
}

// MustNew is New that panics on error. Intended for static plugin tables and tests.
func MustNew(name string, opts ...Option) *Plugin {
	p, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the plugin's unique name.
func (p *Plugin) Name() string {
	return p.name
}

// String implements fmt.Stringer.
func (p *Plugin) String() string {
	return p.name
}

// Metadata returns a copy of the plugin's metadata. The name key is always set.
func (p *Plugin) Metadata() metadata.Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.Clone()
}

// SetMetadata sets a metadata key. The name key is fixed at construction.
func (p *Plugin) SetMetadata(key string, value any) error {
	if key == metadata.KeyName {
		return ErrInvalid("metadata key '%s' cannot be changed on plugin '%s'", key, p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meta[key] = value
	return nil
}

// DefaultPriority returns the priority used when no explicit one is given at registration.
func (p *Plugin) DefaultPriority() Priority {
	return p.priority
}

// RequirePlugin declares a dependency. md must carry a name; any other keys
// constrain the dependency's metadata (see metadata.Compare).
func (p *Plugin) RequirePlugin(md metadata.Metadata) error {
	reqName := md.Name()
	if reqName == "" {
		return ErrInvalid("requirement of plugin '%s' has no name", p.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.requires {
		if r.Name() == reqName {
			return ErrConflict(reqName, fmt.Sprintf("plugin '%s' already requires this plugin", p.name))
		}
	}
	p.requires = append(p.requires, md.Clone())
	return nil
}

// RemoveRequiredPlugin drops the requirement with the given name.
func (p *Plugin) RemoveRequiredPlugin(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.requires {
		if r.Name() == name {
			p.requires = append(p.requires[:i], p.requires[i+1:]...)
			return nil
		}
	}
	return ErrNotRequired(name, p.name)
}

// RequiredPlugins returns copies of the declared requirements in declaration order.
func (p *Plugin) RequiredPlugins() []metadata.Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]metadata.Metadata, len(p.requires))
	for i, r := range p.requires {
		out[i] = r.Clone()
	}
	return out
}

// RequiredNames returns the names of the declared requirements in declaration order.
func (p *Plugin) RequiredNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.requires))
	for i, r := range p.requires {
		out[i] = r.Name()
	}
	return out
}

// Requires reports whether any requirement of p is satisfied by md.
func (p *Plugin) Requires(md metadata.Metadata) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.requires {
		if metadata.Compare(r, md) {
			return true
		}
	}
	return false
}

// Status returns the current lifecycle status.
func (p *Plugin) Status() Status {
	return Status(p.status.Load())
}

// IsInitialized reports whether the plugin is initialized.
func (p *Plugin) IsInitialized() bool {
	return p.Status() == StatusInitialized
}

// State returns the value produced by the plugin's init callback, or nil.
func (p *Plugin) State() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Plugin) setStatus(s Status) {
	p.status.Store(int32(s))
}

func (p *Plugin) setState(state any) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Session runs fn while holding the plugin's session. Sessions on the same
// plugin never interleave; waiters are served in arrival order. If ctx ends
// while waiting, fn is not run and a session-canceled error is returned.
// The session is released on every exit path, including a panic in fn.
func (p *Plugin) Session(ctx context.Context, fn func() error) error {
	if err := p.session.acquire(ctx); err != nil {
		return ErrSessionCanceled(p.name, err)
	}
	defer p.session.release()
	return fn()
}

// SelfInit runs the init callback with the dependency states. It must be
// called inside the plugin's session by a caller that has already checked
// the plugin is not initialized.
func (p *Plugin) SelfInit(ctx context.Context, deps map[string]any) error {
	if deps == nil {
		deps = map[string]any{}
	}

	p.setStatus(StatusBusy)
	state, err := callInit(ctx, p.callbacks.Init, deps)
	if err == nil {
		p.setState(state)
		p.setStatus(StatusInitialized)
		return nil
	}
	return p.handleError(ctx, EventInit, err)
}

// SelfShutdown runs the shutdown callback with the plugin's state. On
// success the state is cleared. Same calling rules as SelfInit.
func (p *Plugin) SelfShutdown(ctx context.Context) error {
	state := p.State()

	p.setStatus(StatusBusy)
	if err := callShutdown(ctx, p.callbacks.Shutdown, state); err != nil {
		return p.handleError(ctx, EventShutdown, err)
	}
	p.setState(nil)
	p.setStatus(StatusReady)
	return nil
}

func (p *Plugin) handleError(ctx context.Context, event Event, err error) error {
	result := callError(ctx, p.callbacks.Error, event, err)
	if result == nil {
		p.setStatus(StatusReady)
		return nil
	}
	p.setStatus(StatusCrashed)
	return errCrashed(p.name, event, result)
}

// The call helpers turn a panicking callback into an ordinary error so the
// status never stays busy.

func callInit(ctx context.Context, fn InitFunc, deps map[string]any) (state any, err error) {
	defer recoverInto(&err)
	return fn(ctx, deps)
}

func callShutdown(ctx context.Context, fn ShutdownFunc, state any) (err error) {
	defer recoverInto(&err)
	return fn(ctx, state)
}

func callError(ctx context.Context, fn ErrorFunc, event Event, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error callback panicked: %v (handling: %w)", r, cause)
		}
	}()
	return fn(ctx, event, cause)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("callback panicked: %w", e)
			return
		}
		*err = fmt.Errorf("callback panicked: %v", r)
	}
}
