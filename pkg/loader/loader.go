// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package loader provides the plugin registry: it computes load order,
// drives initialization and shutdown while enforcing requirements, and can
// tear everything down when the process is asked to exit.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/plugger/plugger/pkg/plugin"
)

const (
	tracerName         = "github.com/plugger/plugger/pkg/loader"
	defaultExitTimeout = 30 * time.Second
)

// entry pairs a registered plugin with the priority snapshotted at registration.
type entry struct {
	plugin   *plugin.Plugin
	priority plugin.Priority
}

// Loader is a registry of plugins. It embeds its own *plugin.Plugin so a
// loader can be registered into another loader; by default the embedded
// plugin's init and shutdown callbacks drive InitAll and ShutdownAll.
type Loader struct {
	*plugin.Plugin

	mu      sync.RWMutex
	entries []entry
	// pinned counts InitPlugin and ShutdownPlugin calls holding a plugin's
	// session. A pinned plugin cannot be removed.
	pinned map[*plugin.Plugin]int

	autoInit bool
	autoSort bool
	parallel bool

	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder

	process     Process
	exitTimeout time.Duration
	onExit      func(error)
	exitMu      sync.Mutex
	detachExit  func()

	pluginOpts []plugin.Option
}

// Option configures a Loader.
type Option func(*Loader)

// WithAutoInit makes Load initialize a plugin right after registering it.
func WithAutoInit(enabled bool) Option {
	return func(l *Loader) {
		l.autoInit = enabled
	}
}

// WithAutoSort makes InitAll and ShutdownAll use the dependency-sorted
// order instead of the raw priority order.
func WithAutoSort(enabled bool) Option {
	return func(l *Loader) {
		l.autoSort = enabled
	}
}

// WithParallel makes InitAll and ShutdownAll run independent plugins
// concurrently. Each plugin still waits for the plugins it depends on.
func WithParallel(enabled bool) Option {
	return func(l *Loader) {
		l.parallel = enabled
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithTracer sets the tracer used for per-plugin spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) {
		l.tracer = tracer
	}
}

// WithRecorder sets the recorder notified of every lifecycle transition.
func WithRecorder(r Recorder) Option {
	return func(l *Loader) {
		l.recorder = r
	}
}

// WithProcess sets the exit-signal capability used by AttachExitListener.
func WithProcess(p Process) Option {
	return func(l *Loader) {
		l.process = p
	}
}

// WithExitTimeout bounds the shutdown triggered by an exit signal.
func WithExitTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.exitTimeout = d
	}
}

// WithExitHandler sets a function called with the result of every
// exit-triggered shutdown.
func WithExitHandler(fn func(error)) Option {
	return func(l *Loader) {
		l.onExit = fn
	}
}

// WithPluginOptions passes options to the loader's own embedded plugin,
// e.g. to override its callbacks or give it a version.
func WithPluginOptions(opts ...plugin.Option) Option {
	return func(l *Loader) {
		l.pluginOpts = append(l.pluginOpts, opts...)
	}
}

// New creates an empty loader named name.
func New(name string, opts ...Option) (*Loader, error) {
	l := &Loader{
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		recorder:    nopRecorder{},
		exitTimeout: defaultExitTimeout,
		pinned:      make(map[*plugin.Plugin]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.process == nil {
		l.process = NewSignalProcess()
	}

	nested := []plugin.Option{
		plugin.WithInit(func(ctx context.Context, _ map[string]any) (any, error) {
			return nil, l.InitAll(ctx)
		}),
		plugin.WithShutdown(func(ctx context.Context, _ any) error {
			return l.ShutdownAll(ctx)
		}),
	}
	p, err := plugin.New(name, append(nested, l.pluginOpts...)...)
	if err != nil {
		return nil, err
	}
	l.Plugin = p
	return l, nil
}

// AddOption configures a single registration.
type AddOption func(*entry)

// WithPriority registers the plugin with an explicit priority.
func WithPriority(n int) AddOption {
	return func(e *entry) {
		e.priority = plugin.PriorityOf(n)
	}
}

// WithPriorityValue registers the plugin with p when p is set; an unset
// value falls back to the plugin's default priority.
func WithPriorityValue(p plugin.Priority) AddOption {
	return func(e *entry) {
		if p.IsSet() {
			e.priority = p
		}
	}
}

// AddPlugin registers p. The effective priority is the explicit one, else
// the plugin's default priority at this moment, else unset. No plugin is
// initialized.
func (l *Loader) AddPlugin(p *plugin.Plugin, opts ...AddOption) error {
	if p == nil {
		return plugin.ErrInvalid("cannot register a nil plugin")
	}
	if p == l.Plugin {
		return plugin.ErrInvalid("loader '%s' cannot be registered into itself", l.Name())
	}

	e := entry{plugin: p}
	for _, opt := range opts {
		opt(&e)
	}
	if !e.priority.IsSet() {
		e.priority = p.DefaultPriority()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entries {
		if existing.plugin.Name() == p.Name() {
			return plugin.ErrConflict(p.Name(), "a plugin with the same name is already loaded")
		}
	}
	l.entries = append(l.entries, e)

	l.logger.Debug("plugin registered",
		"loader", l.Name(),
		"plugin", p.Name(),
		"priority", e.priority.String())
	return nil
}

// Load registers p and, when the loader was built WithAutoInit, initializes
// it. A failed initialization leaves the plugin registered.
func (l *Loader) Load(ctx context.Context, p *plugin.Plugin, opts ...AddOption) error {
	if err := l.AddPlugin(p, opts...); err != nil {
		return err
	}
	if !l.autoInit {
		return nil
	}
	return l.InitPlugin(ctx, p)
}

// RemovePlugin deregisters p. An initialized plugin must be shut down
// first, and a plugin in the middle of InitPlugin or ShutdownPlugin cannot
// be removed.
func (l *Loader) RemovePlugin(p *plugin.Plugin) error {
	if p == nil {
		return plugin.ErrInvalid("cannot remove a nil plugin")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexLocked(p)
	if idx < 0 {
		return plugin.ErrNotLoaded(p.Name())
	}
	if l.pinned[p] > 0 || p.Status() == plugin.StatusBusy {
		return plugin.ErrInitialize(p.Name(), "is busy")
	}
	if p.IsInitialized() {
		return plugin.ErrInitialize(p.Name(), "is initialized")
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)

	l.logger.Debug("plugin removed", "loader", l.Name(), "plugin", p.Name())
	return nil
}

// Plugins returns the registered plugins in registration order.
func (l *Loader) Plugins() []*plugin.Plugin {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*plugin.Plugin, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.plugin
	}
	return out
}

// Lookup returns the registered plugin with the given name.
func (l *Loader) Lookup(name string) (*plugin.Plugin, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.plugin.Name() == name {
			return e.plugin, true
		}
	}
	return nil, false
}

// Priority returns the effective priority p was registered with.
func (l *Loader) Priority(p *plugin.Plugin) (plugin.Priority, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexLocked(p)
	if idx < 0 {
		return plugin.Unset, false
	}
	return l.entries[idx].priority, true
}

// HasLoaded reports whether this exact plugin instance is registered. A
// different instance with the same name does not count.
func (l *Loader) HasLoaded(p *plugin.Plugin) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexLocked(p) >= 0
}

// Len returns the number of registered plugins.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// pin re-checks that p is registered and keeps it registered until unpin.
// Callers hold p's session.
func (l *Loader) pin(p *plugin.Plugin) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexLocked(p) < 0 {
		return plugin.ErrNotLoaded(p.Name())
	}
	l.pinned[p]++
	return nil
}

func (l *Loader) unpin(p *plugin.Plugin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pinned[p]--; l.pinned[p] <= 0 {
		delete(l.pinned, p)
	}
}

func (l *Loader) indexLocked(p *plugin.Plugin) int {
	for i, e := range l.entries {
		if e.plugin == p {
			return i
		}
	}
	return -1
}

func (l *Loader) snapshot() []entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]entry, len(l.entries))
	copy(out, l.entries)
	return out
}
