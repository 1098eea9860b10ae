package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"signframes/internal/config"
	"signframes/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var showRemaining int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show extraction progress from the state file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st, found, err := loadState(cmd.Context(), cfg)
			if err != nil {
				if errors.Is(err, state.ErrLocked) {
					fmt.Fprintln(out, "A run is in progress; status is available once it stops")
				}
				return err
			}
			if !found {
				fmt.Fprintf(out, "No state at %s; the next run starts fresh\n", cfg.Paths.StateFile)
				return nil
			}
			writeStatus(out, cfg.Paths.StateFile, st, showRemaining)
			return nil
		},
	}

	cmd.Flags().IntVarP(&showRemaining, "remaining", "n", 5, "Number of queued task ids to list")
	return cmd
}

// loadState reads the persisted state without creating one. It takes the
// store lock, so it fails while a run holds it.
func loadState(ctx context.Context, cfg *config.Config) (state.State, bool, error) {
	if _, err := os.Stat(cfg.Paths.StateFile); err != nil {
		if os.IsNotExist(err) {
			return state.State{}, false, nil
		}
		return state.State{}, false, fmt.Errorf("stat state file: %w", err)
	}
	store, err := state.Open(ctx, cfg)
	if err != nil {
		return state.State{}, false, err
	}
	defer store.Close()
	if _, err := store.Initialize(ctx, nil); err != nil {
		return state.State{}, false, err
	}
	return store.Snapshot(), true, nil
}

func writeStatus(out io.Writer, path string, st state.State, showRemaining int) {
	percent := 0.0
	if total := st.Total(); total > 0 {
		percent = float64(len(st.CompletedTasks)) / float64(total) * 100
	}
	rows := [][]string{
		{"Completed", humanize.Comma(int64(len(st.CompletedTasks)))},
		{"Extracted", humanize.Comma(int64(st.Extracted()))},
		{"Skipped", humanize.Comma(int64(len(st.SkippedTasks)))},
		{"Remaining", humanize.Comma(int64(len(st.RemainingTasks)))},
		{"Images", humanize.Comma(int64(st.ImagesExtracted))},
		{"Progress", fmt.Sprintf("%.1f%%", percent)},
	}
	fmt.Fprintf(out, "State: %s\n", path)
	fmt.Fprintln(out, renderTable([]string{"Tasks", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	if showRemaining <= 0 || len(st.RemainingTasks) == 0 {
		return
	}
	next := st.RemainingTasks
	if len(next) > showRemaining {
		next = next[:showRemaining]
	}
	fmt.Fprintln(out, "Next up:")
	for _, id := range next {
		fmt.Fprintf(out, "  %s\n", id)
	}
}
