package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/cheggaaa/pb/v3"

	"signframes/internal/logging"
	"signframes/internal/state"
)

const barTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}}`

// progressReporter shows per-task progress as a terminal bar when attached
// to a TTY and as sampled log lines otherwise.
type progressReporter struct {
	out         io.Writer
	interactive bool
	logger      *slog.Logger
	sampler     *logging.ProgressSampler
	bar         *pb.ProgressBar
}

func newProgressReporter(out io.Writer, interactive bool, logger *slog.Logger) *progressReporter {
	return &progressReporter{
		out:         out,
		interactive: interactive,
		logger:      logging.NewComponentLogger(logger, "progress"),
		sampler:     logging.NewProgressSampler(10),
	}
}

// Update receives the persisted state after each task.
func (p *progressReporter) Update(st state.State) {
	done := len(st.CompletedTasks)
	total := st.Total()
	if p.interactive {
		if p.bar == nil {
			p.bar = pb.ProgressBarTemplate(barTemplate).New(total)
			p.bar.SetWriter(p.out)
			p.bar.Set("prefix", "tasks")
			p.bar.Start()
		}
		p.bar.SetTotal(int64(total))
		p.bar.SetCurrent(int64(done))
		return
	}

	percent := -1.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	if !p.sampler.ShouldLog(percent) {
		return
	}
	p.logger.InfoContext(context.Background(), "extraction progress",
		logging.String(logging.FieldEventType, "run_progress"),
		logging.Int("completed", done),
		logging.Int("total", total),
		logging.Int("skipped", len(st.SkippedTasks)),
		logging.Int("images_extracted", st.ImagesExtracted),
		logging.Float64("progress_percent", percent),
	)
}

// Finish stops the bar so the summary prints on a clean line.
func (p *progressReporter) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
