package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"signframes/internal/config"
	"signframes/internal/dataset"
	"signframes/internal/deps"
	"signframes/internal/extract"
	"signframes/internal/extraction"
	"signframes/internal/imaging"
	"signframes/internal/logging"
	"signframes/internal/notifications"
	"signframes/internal/posenet"
	"signframes/internal/preflight"
	"signframes/internal/state"
	"signframes/internal/video"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process queued tasks until none remain",
		Long: "Run resumes from the state file when one exists, otherwise it queues every\n" +
			"dataset entry. Interrupting a run loses at most the task in flight.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			interactive := !noProgress && shouldColorize(out)
			return runExtraction(runCtx, cfg, logger, out, interactive)
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Log sampled progress instead of drawing a progress bar")
	return cmd
}

func runExtraction(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, interactive bool) error {
	if err := deps.RequireAll(preflight.CheckSystemDeps(cfg)); err != nil {
		return err
	}
	if err := preflight.Failed(preflight.RunAll(ctx, cfg)); err != nil {
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
	estimator, err := posenet.NewEstimator(cfg)
	if err != nil {
		return err
	}

	store, err := state.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	processor := imaging.NewProcessor()
	decoder := video.NewDecoder(cfg, logger)
	runner, err := extraction.New(extraction.Options{
		Store:   store,
		Dataset: ds,
		Frames: extraction.OpenFunc(func(ctx context.Context, path string) (extraction.Video, error) {
			reader, err := decoder.Open(ctx, path)
			if err != nil {
				return nil, err
			}
			return reader, nil
		}),
		Poses:       posenet.NewMachine(estimator, processor, cfg.Paths.TempDir, logger),
		Extractor:   extract.New(processor, logger),
		Selector:    selector,
		Labeler:     labeler,
		Keypoints:   cfg.Extraction.Keypoints,
		CropSize:    cfg.Extraction.CropSize,
		Quality:     extract.QualityAbove(cfg.Extraction.QualityThreshold),
		OutputDir:   cfg.Paths.OutputDir,
		Parallelism: cfg.Extraction.Parallelism,
		Format:      cfg.Extraction.ImageFormat,
		Logger:      logger,
		Notifier:    notifications.NewService(cfg),
	})
	if err != nil {
		return err
	}

	progress := newProgressReporter(out, interactive, logger)
	final, runErr := runner.Run(ctx, progress.Update)
	progress.Finish()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logging.ErrorWithContext(ctx, logger, "extraction aborted", "run_aborted",
			logging.Error(runErr),
			logging.Int("remaining", len(final.RemainingTasks)),
			logging.String(logging.FieldErrorHint, "fix the cause and run again; the failed task is retried first"),
		)
	}

	writeRunSummary(out, final, runErr)
	return runErr
}

func writeRunSummary(out io.Writer, st state.State, runErr error) {
	outcome := "finished"
	if runErr != nil {
		outcome = "stopped"
	}
	fmt.Fprintf(out, "Extraction %s: %s of %s tasks completed (%s skipped), %s images extracted\n",
		outcome,
		humanize.Comma(int64(len(st.CompletedTasks))),
		humanize.Comma(int64(st.Total())),
		humanize.Comma(int64(len(st.SkippedTasks))),
		humanize.Comma(int64(st.ImagesExtracted)),
	)
	if remaining := len(st.RemainingTasks); remaining > 0 {
		fmt.Fprintf(out, "%s tasks remain; run again to resume\n", humanize.Comma(int64(remaining)))
	}
}
