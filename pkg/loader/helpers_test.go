// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/metadata"
	"github.com/plugger/plugger/pkg/plugin"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoader(t *testing.T, opts ...loader.Option) *loader.Loader {
	t.Helper()
	opts = append([]loader.Option{loader.WithLogger(quietLogger()), loader.WithProcess(newFakeProcess())}, opts...)
	l, err := loader.New("root", opts...)
	require.NoError(t, err)
	return l
}

// requires builds plugin options declaring name-only requirements.
func requires(names ...string) plugin.Option {
	reqs := make([]metadata.Metadata, len(names))
	for i, n := range names {
		reqs[i] = metadata.Metadata{"name": n}
	}
	return plugin.WithRequirements(reqs...)
}

func add(t *testing.T, l *loader.Loader, p *plugin.Plugin, opts ...loader.AddOption) *plugin.Plugin {
	t.Helper()
	require.NoError(t, l.AddPlugin(p, opts...))
	return p
}

func names(plugins []*plugin.Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Name()
	}
	return out
}

// journal records callback invocations across goroutines.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *journal) index(s string) int {
	for i, e := range j.list() {
		if e == s {
			return i
		}
	}
	return -1
}

// tracked returns a plugin whose callbacks write "init:<name>" and
// "shutdown:<name>" to j.
func tracked(j *journal, name string, opts ...plugin.Option) *plugin.Plugin {
	base := []plugin.Option{
		plugin.WithInit(func(context.Context, map[string]any) (any, error) {
			j.add("init:" + name)
			return name + "-state", nil
		}),
		plugin.WithShutdown(func(context.Context, any) error {
			j.add("shutdown:" + name)
			return nil
		}),
	}
	return plugin.MustNew(name, append(base, opts...)...)
}

// fakeProcess is an in-memory loader.Process.
type fakeProcess struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func()
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{handlers: make(map[int]func())}
}

func (p *fakeProcess) OnExit(handler func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.handlers[id] = handler
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers, id)
	}
}

func (p *fakeProcess) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	handlers := make([]func(), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}
