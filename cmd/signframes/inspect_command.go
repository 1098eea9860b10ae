package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"signframes/internal/config"
	"signframes/internal/media/ffprobe"
	"signframes/internal/services"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "inspect <video>",
		Short: "Show the geometry ffprobe reports for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			result, err := ffprobe.Inspect(cmd.Context(), cfg.Video.FFprobeBinary, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err := out.Write(append(result.RawJSON(), '\n'))
				return err
			}
			if result.VideoStreamCount() == 0 {
				return services.Wrap(services.ErrValidation, "inspect", "probe", path+" has no video stream", nil)
			}

			width, height := result.Dimensions()
			rows := [][]string{
				{"File", path},
				{"Size", humanize.IBytes(uint64(max(result.SizeBytes(), 0)))},
				{"Dimensions", fmt.Sprintf("%dx%d", width, height)},
				{"Frame rate", strconv.FormatFloat(result.FrameRate(), 'f', 3, 64)},
				{"Frames", humanize.Comma(int64(result.FrameCount()))},
				{"Duration", fmt.Sprintf("%.2fs", result.DurationSeconds())},
			}
			if width > 0 && height > 0 && cfg.Extraction.CropSize > min(width, height) {
				rows = append(rows, []string{"Warning", fmt.Sprintf("crop size %d exceeds the short side", cfg.Extraction.CropSize)})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "Print the raw ffprobe JSON")
	return cmd
}
