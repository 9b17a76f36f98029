// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	pluginlua "github.com/plugger/plugger/internal/lua"
	"github.com/plugger/plugger/internal/observability"
	"github.com/plugger/plugger/pkg/errutil"
	"github.com/plugger/plugger/pkg/loader"
)

// RunDeps holds the dependencies of the run command that tests replace.
type RunDeps struct {
	// Process delivers exit requests. Defaults to OS signals.
	Process loader.Process
}

// NewRunCmd creates the run subcommand.
func NewRunCmd(deps *RunDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load, initialize and supervise the plugins",
		Long: `Discover the Lua plugins in the plugins directory, register them by
priority and initialize them all. The process then waits for an exit signal
(SIGINT, SIGTERM, SIGQUIT) and shuts every plugin down in reverse order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlugins(cmd, deps)
		},
	}
}

func runPlugins(cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.Process == nil {
		deps.Process = loader.NewSignalProcess()
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := e.logger
	var (
		l         *loader.Loader
		obsServer *observability.Server
	)
	if e.cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(e.cfg.MetricsAddr,
			observability.WithLogger(logger),
			observability.WithReadiness(func() bool { return observability.PluginsInitialized(l)() }),
		)
	}

	exited := make(chan error, 1)
	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithAutoSort(e.cfg.AutoSort),
		loader.WithParallel(e.cfg.Parallel),
		loader.WithProcess(deps.Process),
		loader.WithExitTimeout(e.cfg.ExitTimeout),
		loader.WithExitHandler(func(err error) {
			select {
			case exited <- err:
			default:
			}
		}),
	}
	if obsServer != nil {
		opts = append(opts, loader.WithRecorder(obsServer.Metrics()))
	}
	l, err = loader.New(serviceName, opts...)
	if err != nil {
		return err
	}

	luaRuntime := pluginlua.NewRuntime(pluginlua.WithLogger(logger))
	loaded, err := e.scanner.LoadDir(ctx, l, e.cfg.PluginsDir, luaRuntime.Resolve)
	if err != nil {
		return err
	}

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.In("run").With("addr", e.cfg.MetricsAddr).Wrapf(err, "failed to start observability server")
		}
		defer stopServer(obsServer, logger)
		go monitorServerErrors(ctx, cancel, obsErrCh, logger)
	}

	l.AttachExitListener()
	defer l.DetachExitListener()

	if err := l.InitAll(ctx); err != nil {
		errutil.LogError(ctx, logger, "plugin initialization failed", err)
		if shutdownErr := l.ShutdownAll(context.WithoutCancel(ctx)); shutdownErr != nil {
			errutil.LogError(ctx, logger, "shutdown after failed initialization failed", shutdownErr)
		}
		return err
	}

	cmd.Printf("%d plugin(s) initialized\n", len(loaded))
	logger.InfoContext(ctx, "plugins ready", "count", len(loaded))

	select {
	case err := <-exited:
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "shutdown complete")
		return nil
	case <-ctx.Done():
		logger.InfoContext(ctx, "context cancelled, shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ExitTimeout)
		defer shutdownCancel()
		return l.ShutdownAll(shutdownCtx)
	}
}

// monitorServerErrors cancels the run when the server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.ErrorContext(ctx, "observability server failed", "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopServer(s *observability.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}
