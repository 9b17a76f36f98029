// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/plugger/plugger/internal/discovery"
	"github.com/plugger/plugger/pkg/errutil"
	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/metadata"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate plugin manifests and the requirement graph",
		Long: `Validate every manifest in the plugins directory against the manifest
schema, then check that every requirement names a known plugin with
compatible metadata and that the requirements contain no cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			found, problems, err := e.scanner.Check(e.cfg.PluginsDir)
			if err != nil {
				return err
			}
			for _, p := range problems {
				fmt.Fprintf(out, "%s: %s\n", filepath.Base(p.Dir), describe(p.Err))
			}

			l, err := loader.New(serviceName, loader.WithLogger(e.logger))
			if err != nil {
				return err
			}
			for _, d := range found {
				p, err := discovery.Static(cmd.Context(), d.Manifest, d.Dir)
				if err == nil {
					err = l.AddPlugin(p, loader.WithPriorityValue(d.Manifest.Priority))
				}
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", filepath.Base(d.Dir), err)
					problems = append(problems, discovery.Problem{Dir: d.Dir, Err: err})
				}
			}

			failures := len(problems) + checkRequirements(l, out)
			if _, err := l.SortedLoadOrder(nil); err != nil {
				fmt.Fprintf(out, "requirements: %v\n", err)
				failures++
			}

			if failures > 0 {
				return oops.In("validate").With("failures", failures).Errorf("%d problem(s) found", failures)
			}
			fmt.Fprintf(out, "%d plugin(s) OK\n", l.Len())
			return nil
		},
	}
}

// checkRequirements reports requirements whose metadata the registered
// plugin does not satisfy. Missing plugins are left to SortedLoadOrder.
func checkRequirements(l *loader.Loader, out io.Writer) int {
	failures := 0
	for _, p := range l.Plugins() {
		for _, req := range p.RequiredPlugins() {
			dep, ok := l.Lookup(req.Name())
			if !ok {
				continue
			}
			if !metadata.Compare(req, dep.Metadata()) {
				fmt.Fprintf(out, "%s: requirement %s not satisfied by %s %s\n",
					p.Name(), req.Name(), dep.Name(), dep.Metadata().Version())
				failures++
			}
		}
	}
	return failures
}

func describe(err error) string {
	if errutil.HasCode(err, discovery.CodeSchemaInvalid) {
		return discovery.FormatSchemaError(err)
	}
	return err.Error()
}
