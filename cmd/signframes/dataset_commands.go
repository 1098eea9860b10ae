package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"signframes/internal/dataset"
	"signframes/internal/extraction"
)

func newDatasetCommand(ctx *commandContext) *cobra.Command {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect the configured dataset",
	}
	datasetCmd.AddCommand(newDatasetListCommand(ctx))
	return datasetCmd
}

func newDatasetListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dataset entries with the labels a run would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			selector, err := extraction.SelectorByName(cfg.Extraction.Selector)
			if err != nil {
				return err
			}
			labeler, err := extraction.LabelerByName(cfg.Extraction.Labeler)
			if err != nil {
				return err
			}
			ds, err := dataset.Open(cfg)
			if err != nil {
				return err
			}
			entries, err := ds.Entries(cmd.Context())
			if err != nil {
				return err
			}

			var rows [][]string
			selected := 0
			for _, id := range entries {
				def, err := ds.Lookup(cmd.Context(), id)
				if err != nil {
					rows = append(rows, []string{id, "error", err.Error(), ""})
					continue
				}
				include := selector(def)
				if include {
					selected++
				}
				if !include && !all {
					continue
				}
				if limit > 0 && len(rows) >= limit {
					continue
				}
				rows = append(rows, []string{
					id,
					yesNo(include),
					strings.Join(labeler(def), ", "),
					filepath.Base(def.VideoPath),
				})
			}

			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"ID", "Selected", "Labels", "Video"}, rows, nil))
			}
			fmt.Fprintf(out, "%s of %s entries selected by %q\n",
				humanize.Comma(int64(selected)), humanize.Comma(int64(len(entries))), cfg.Extraction.Selector)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include entries the selector skips")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to print (0 for all)")
	return cmd
}
