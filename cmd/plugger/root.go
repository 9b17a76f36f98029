// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/plugger/plugger/internal/config"
	"github.com/plugger/plugger/internal/discovery"
	"github.com/plugger/plugger/internal/logging"
	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/plugin"
)

const serviceName = "plugger"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the plugger CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(runDeps *RunDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugger",
		Short: "plugger - plugin lifecycle manager",
		Long: `plugger discovers plugins from a directory, orders them by priority
and requirements, and drives their initialization and shutdown.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/plugger/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd(runDeps))
	cmd.AddCommand(NewOrderCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// env is what every plugin command starts from.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	scanner *discovery.Scanner
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.Setup(serviceName, version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	scanner, err := discovery.NewScanner(
		discovery.WithInclude(cfg.Include),
		discovery.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, scanner: scanner}, nil
}

// loadStatic registers every discovered plugin without running any plugin
// code.
func (e *env) loadStatic(ctx context.Context) (*loader.Loader, error) {
	l, err := loader.New(serviceName,
		loader.WithLogger(e.logger),
		loader.WithAutoSort(e.cfg.AutoSort),
	)
	if err != nil {
		return nil, err
	}
	if _, err := e.scanner.LoadDir(ctx, l, e.cfg.PluginsDir, discovery.Static); err != nil {
		return nil, err
	}
	return l, nil
}

func priorityOf(l *loader.Loader, p *plugin.Plugin) string {
	priority, _ := l.Priority(p)
	return priority.String()
}
