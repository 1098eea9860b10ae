package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"signframes/internal/state"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Manage the persisted extraction state",
	}
	stateCmd.AddCommand(newStateResetCommand(ctx))
	return stateCmd
}

func newStateResetCommand(ctx *commandContext) *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the state file so the next run starts from the full dataset",
		Long: "Extracted images are left in place. Unless --no-backup is given the old\n" +
			"state is kept next to the original with a .bak suffix.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.StateFile
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintf(out, "No state at %s\n", path)
				return nil
			}
			if err := state.Remove(path, !noBackup); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed state %s\n", path)
			if !noBackup {
				fmt.Fprintf(out, "Backup kept at %s.bak\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not keep a .bak copy of the state")
	return cmd
}
