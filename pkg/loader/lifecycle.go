// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/plugger/plugger/pkg/metadata"
	"github.com/plugger/plugger/pkg/plugin"
)

// InitPlugin initializes p once every plugin it requires is registered,
// matches the required metadata and is initialized. The states of those
// plugins are passed to p's init callback keyed by name.
//
// p's session is held while each requirement's session is taken. Plugins
// that require each other must not be initialized concurrently; InitAll
// sorts first and reports such a cycle instead.
func (l *Loader) InitPlugin(ctx context.Context, p *plugin.Plugin) (err error) {
	if p == nil || !l.HasLoaded(p) {
		return plugin.ErrNotLoaded(nameOf(p))
	}

	ctx, span := l.startSpan(ctx, "loader.InitPlugin", p)
	defer func() { endSpan(span, err) }()

	ran := false
	start := time.Now()
	err = p.Session(ctx, func() error {
		if err := l.pin(p); err != nil {
			return err
		}
		defer l.unpin(p)
		if p.IsInitialized() {
			return plugin.ErrInitialize(p.Name(), "is already initialized")
		}

		deps, err := l.requiredStates(ctx, p)
		if err != nil {
			return err
		}

		l.log(ctx, slog.LevelDebug, "initializing plugin", p, "requires", len(deps))
		ran = true
		return p.SelfInit(ctx, deps)
	})
	if ran {
		l.recordTransition(ctx, p, plugin.EventInit, time.Since(start), err)
	}
	return err
}

// requiredStates checks p's requirements and collects their states. It runs
// inside p's session; each dependency is inspected inside its own session.
func (l *Loader) requiredStates(ctx context.Context, p *plugin.Plugin) (map[string]any, error) {
	reqs := p.RequiredPlugins()
	states := make(map[string]any, len(reqs))

	for _, req := range reqs {
		name := req.Name()
		if name == p.Name() {
			return nil, plugin.ErrSelfRequirement(p.Name())
		}

		dep, ok := l.Lookup(name)
		if !ok {
			return nil, plugin.ErrMissingRequirement(name, p.Name())
		}

		loaded := dep.Metadata()
		if !metadata.Compare(req, loaded) {
			return nil, plugin.ErrMetadataMismatch(p.Name(), req, loaded)
		}

		err := dep.Session(ctx, func() error {
			if !dep.IsInitialized() {
				return plugin.ErrRequirementNotInitialized(name, p.Name())
			}
			states[name] = dep.State()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return states, nil
}

// ShutdownPlugin shuts p down unless another registered plugin that
// requires it is still initialized.
func (l *Loader) ShutdownPlugin(ctx context.Context, p *plugin.Plugin) (err error) {
	if p == nil || !l.HasLoaded(p) {
		return plugin.ErrNotLoaded(nameOf(p))
	}

	ctx, span := l.startSpan(ctx, "loader.ShutdownPlugin", p)
	defer func() { endSpan(span, err) }()

	ran := false
	start := time.Now()
	err = p.Session(ctx, func() error {
		if err := l.pin(p); err != nil {
			return err
		}
		defer l.unpin(p)
		if !p.IsInitialized() {
			return plugin.ErrInitialize(p.Name(), "is not initialized")
		}

		if blockers := l.blockers(p); len(blockers) > 0 {
			return plugin.ErrRequiredBy(p.Name(), blockers)
		}

		l.log(ctx, slog.LevelDebug, "shutting down plugin", p)
		ran = true
		return p.SelfShutdown(ctx)
	})
	if ran {
		l.recordTransition(ctx, p, plugin.EventShutdown, time.Since(start), err)
	}
	return err
}

// blockers returns the names of the other registered plugins that require
// p and are initialized or in the middle of a transition. Their status is
// read without taking their sessions: a dependent's InitPlugin holds its
// own session while waiting for p's, so waiting here could deadlock.
func (l *Loader) blockers(p *plugin.Plugin) []string {
	md := p.Metadata()
	var names []string
	for _, other := range l.Plugins() {
		if other == p || !other.Requires(md) {
			continue
		}
		switch other.Status() {
		case plugin.StatusInitialized, plugin.StatusBusy:
			names = append(names, other.Name())
		}
	}
	return names
}

// InitAll initializes every registered plugin that is not initialized yet,
// in load order (dependency sorted when built WithAutoSort). The first
// failure stops the sweep; later plugins are left untouched.
func (l *Loader) InitAll(ctx context.Context) error {
	ctx = withSweep(ctx)
	order, err := l.sweepOrder(l.autoSort || l.parallel)
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "initializing plugins",
		"loader", l.Name(),
		"sweep", sweepID(ctx),
		"count", len(order),
		"parallel", l.parallel)

	if l.parallel {
		err = l.initParallel(ctx, order)
	} else {
		err = l.initSequential(ctx, order)
	}
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "plugins initialized", "loader", l.Name(), "sweep", sweepID(ctx))
	return nil
}

func (l *Loader) initSequential(ctx context.Context, order []*plugin.Plugin) error {
	for _, p := range order {
		if p.IsInitialized() {
			continue
		}
		if err := l.InitPlugin(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ShutdownAll shuts down every initialized plugin in reverse load order so
// dependents go before the plugins they require. The first failure stops
// the sweep.
func (l *Loader) ShutdownAll(ctx context.Context) error {
	ctx = withSweep(ctx)

	var order []*plugin.Plugin
	if l.parallel {
		sorted, err := l.sweepOrder(true)
		if err == nil {
			l.logger.InfoContext(ctx, "shutting down plugins",
				"loader", l.Name(), "sweep", sweepID(ctx), "count", len(sorted), "parallel", true)
			return l.shutdownParallel(ctx, sorted)
		}
		l.logger.WarnContext(ctx, "falling back to sequential shutdown in priority order",
			"loader", l.Name(), "sweep", sweepID(ctx), "error", err)
		order = l.LoadOrder()
	} else {
		var err error
		if order, err = l.sweepOrder(l.autoSort); err != nil {
			return err
		}
	}
	l.logger.InfoContext(ctx, "shutting down plugins",
		"loader", l.Name(), "sweep", sweepID(ctx), "count", len(order), "parallel", false)

	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		if !p.IsInitialized() {
			continue
		}
		if err := l.ShutdownPlugin(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) sweepOrder(sorted bool) ([]*plugin.Plugin, error) {
	if sorted {
		return l.SortedLoadOrder(nil)
	}
	return l.LoadOrder(), nil
}

func (l *Loader) recordTransition(ctx context.Context, p *plugin.Plugin, event plugin.Event, elapsed time.Duration, err error) {
	status := p.Status()
	l.recorder.RecordTransition(p.Name(), event, status, elapsed, err)

	attrs := []any{"event", string(event), "status", status.String(), "elapsed", elapsed}
	switch {
	case err != nil:
		l.log(ctx, slog.LevelError, "plugin callback failed", p, append(attrs, "error", err)...)
	case status == plugin.StatusReady && event == plugin.EventInit:
		l.log(ctx, slog.LevelWarn, "plugin init error swallowed by error handler", p, attrs...)
	default:
		l.log(ctx, slog.LevelInfo, "plugin "+string(event)+" complete", p, attrs...)
	}
}

func (l *Loader) log(ctx context.Context, level slog.Level, msg string, p *plugin.Plugin, attrs ...any) {
	base := []any{"loader", l.Name(), "plugin", p.Name()}
	if id := sweepID(ctx); id != "" {
		base = append(base, "sweep", id)
	}
	l.logger.Log(ctx, level, msg, append(base, attrs...)...)
}

func (l *Loader) startSpan(ctx context.Context, name string, p *plugin.Plugin) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("plugger.loader", l.Name()),
		attribute.String("plugger.plugin", p.Name()),
	}
	if id := sweepID(ctx); id != "" {
		attrs = append(attrs, attribute.String("plugger.sweep", id))
	}
	return l.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type sweepKey struct{}

// withSweep tags ctx with a new sweep ID unless it already carries one, so
// nested loaders log under their parent's sweep.
func withSweep(ctx context.Context) context.Context {
	if sweepID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, sweepKey{}, ulid.Make().String())
}

func sweepID(ctx context.Context) string {
	id, _ := ctx.Value(sweepKey{}).(string)
	return id
}

func nameOf(p *plugin.Plugin) string {
	if p == nil {
		return "<nil>"
	}
	return p.Name()
}
