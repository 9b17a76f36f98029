// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/plugger/plugger/pkg/plugin"
)

// initParallel starts one goroutine per plugin. A plugin waits until every
// plugin it requires has finished successfully; the first failure cancels
// the group and plugins that have not started are skipped. order must be
// dependency sorted, which rules out cycles and so waits that never end.
func (l *Loader) initParallel(ctx context.Context, order []*plugin.Plugin) error {
	done := doneChannels(order)
	waitFor := make(map[*plugin.Plugin][]*plugin.Plugin, len(order))
	for _, p := range order {
		for _, name := range p.RequiredNames() {
			if dep, ok := l.Lookup(name); ok && dep != p {
				waitFor[p] = append(waitFor[p], dep)
			}
		}
	}

	return l.fanOut(ctx, order, done, waitFor, func(ctx context.Context, p *plugin.Plugin) error {
		if p.IsInitialized() {
			return nil
		}
		return l.InitPlugin(ctx, p)
	})
}

// shutdownParallel mirrors initParallel with the edges reversed: a plugin
// waits until every plugin that requires it has been shut down.
func (l *Loader) shutdownParallel(ctx context.Context, order []*plugin.Plugin) error {
	done := doneChannels(order)
	waitFor := make(map[*plugin.Plugin][]*plugin.Plugin, len(order))
	for _, p := range order {
		for _, name := range p.RequiredNames() {
			if dep, ok := l.Lookup(name); ok && dep != p {
				waitFor[dep] = append(waitFor[dep], p)
			}
		}
	}

	return l.fanOut(ctx, order, done, waitFor, func(ctx context.Context, p *plugin.Plugin) error {
		if !p.IsInitialized() {
			return nil
		}
		return l.ShutdownPlugin(ctx, p)
	})
}

func (l *Loader) fanOut(
	ctx context.Context,
	order []*plugin.Plugin,
	done map[*plugin.Plugin]chan struct{},
	waitFor map[*plugin.Plugin][]*plugin.Plugin,
	run func(context.Context, *plugin.Plugin) error,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range order {
		g.Go(func() error {
			for _, other := range waitFor[p] {
				ch, ok := done[other]
				if !ok {
					continue
				}
				select {
				case <-ch:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			if err := run(gctx, p); err != nil {
				return err
			}
			close(done[p])
			return nil
		})
	}
	return g.Wait()
}

func doneChannels(order []*plugin.Plugin) map[*plugin.Plugin]chan struct{} {
	done := make(map[*plugin.Plugin]chan struct{}, len(order))
	for _, p := range order {
		done[p] = make(chan struct{})
	}
	return done
}
