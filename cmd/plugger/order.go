// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugger/plugger/pkg/plugin"
)

// NewOrderCmd creates the order subcommand.
func NewOrderCmd() *cobra.Command {
	var sorted bool

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the plugin load order",
		Long: `Discover the plugins in the plugins directory and print the order they
would load in, one "name priority" line per plugin. With --sorted the order
is repaired so every plugin follows the plugins it requires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			l, err := e.loadStatic(cmd.Context())
			if err != nil {
				return err
			}

			var order []*plugin.Plugin
			if sorted {
				if order, err = l.SortedLoadOrder(nil); err != nil {
					return err
				}
			} else {
				order = l.LoadOrder()
			}

			out := cmd.OutOrStdout()
			for _, p := range order {
				fmt.Fprintf(out, "%s %s\n", p.Name(), priorityOf(l, p))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sorted, "sorted", false, "sort by requirements")
	return cmd
}
