package main

import (
	"github.com/spf13/cobra"

	"signframes/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries and configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			writeLines(out, renderSectionHeader("Dependencies", colorize))
			writeLines(out, dependencyLines(preflight.CheckSystemDeps(cfg), colorize))
			writeLines(out, []string{""})
			writeLines(out, renderSectionHeader("Preflight", colorize))
			writeLines(out, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize))
			return nil
		},
	}
}
