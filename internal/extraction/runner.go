package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"signframes/internal/dataset"
	"signframes/internal/extract"
	"signframes/internal/logging"
	"signframes/internal/notifications"
	"signframes/internal/pose"
	"signframes/internal/posenet"
	"signframes/internal/services"
	"signframes/internal/state"
)

// Video is a decoded video whose temporary frames must be released.
type Video interface {
	posenet.FrameSource
	SourcePath() string
	Close() error
}

// FrameOpener decodes a video file.
type FrameOpener interface {
	Open(ctx context.Context, path string) (Video, error)
}

// OpenFunc adapts a function to FrameOpener.
type OpenFunc func(ctx context.Context, path string) (Video, error)

// Open implements FrameOpener.
func (f OpenFunc) Open(ctx context.Context, path string) (Video, error) {
	return f(ctx, path)
}

// PoseMachine estimates augmented poses for every frame of a video.
type PoseMachine interface {
	ProcessVideo(ctx context.Context, frames posenet.FrameSource) ([]pose.Pose, error)
}

// Options wires a Runner. Store, Dataset, Frames, Poses, Extractor, and
// OutputDir are required.
type Options struct {
	Store       state.Store
	Dataset     dataset.Dataset
	Frames      FrameOpener
	Poses       PoseMachine
	Extractor   *extract.Extractor
	Selector    Selector
	Labeler     Labeler
	Keypoints   []string
	CropSize    int
	Quality     extract.Selector
	OutputDir   string
	Parallelism int
	Format      string
	Logger      *slog.Logger
	Notifier    notifications.Service
}

// Runner processes queued tasks until the queue is empty or a task fails.
type Runner struct {
	opts      Options
	keypoints []pose.KeypointID
	logger    *slog.Logger
	notifier  notifications.Service
}

// New validates opts and builds a Runner. Missing strategies default to
// SelectHandshapes, LabelHandshapes, and quality above 0.5.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Store == nil:
		return nil, missingOption("store")
	case opts.Dataset == nil:
		return nil, missingOption("dataset")
	case opts.Frames == nil:
		return nil, missingOption("frame opener")
	case opts.Poses == nil:
		return nil, missingOption("pose machine")
	case opts.Extractor == nil:
		return nil, missingOption("extractor")
	case strings.TrimSpace(opts.OutputDir) == "":
		return nil, missingOption("output directory")
	}
	if opts.CropSize <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "extraction", "new runner",
			fmt.Sprintf("crop size %d must be positive", opts.CropSize), nil)
	}
	if len(opts.Keypoints) == 0 {
		opts.Keypoints = []string{pose.FakeLeftHand, pose.FakeRightHand}
	}
	if opts.Selector == nil {
		opts.Selector = SelectHandshapes
	}
	if opts.Labeler == nil {
		opts.Labeler = LabelHandshapes
	}
	if opts.Quality == nil {
		opts.Quality = extract.QualityAbove(0.5)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}

	keypoints := make([]pose.KeypointID, 0, len(opts.Keypoints))
	for _, name := range opts.Keypoints {
		id := pose.ParseKeypointID(strings.TrimSpace(name))
		if _, ok := canonicalPart(id); !ok {
			return nil, services.Wrap(services.ErrConfiguration, "extraction", "new runner",
				fmt.Sprintf("unknown keypoint %q", name), nil)
		}
		keypoints = append(keypoints, id)
	}

	return &Runner{
		opts:      opts,
		keypoints: keypoints,
		logger:    logging.NewComponentLogger(opts.Logger, "extraction"),
		notifier:  notifier,
	}, nil
}

// Run initializes the state from the dataset and processes tasks until none
// remain. progress, when non-nil, receives the persisted snapshot after every
// task. The returned state is the latest persisted snapshot, also on error.
func (r *Runner) Run(ctx context.Context, progress func(state.State)) (state.State, error) {
	entries, err := r.opts.Dataset.Entries(ctx)
	if err != nil {
		return state.State{}, err
	}
	initResult, err := r.opts.Store.Initialize(ctx, entries)
	if err != nil {
		return state.State{}, err
	}
	start := time.Now()
	snapshot := r.opts.Store.Snapshot()
	r.logInitialize(ctx, initResult, snapshot, len(entries))
	r.notify(ctx, "run started", r.notifier.NotifyRunStarted(ctx, len(snapshot.RemainingTasks)))

	for {
		if err := ctx.Err(); err != nil {
			return r.opts.Store.Snapshot(), err
		}
		id, ok := r.opts.Store.Dequeue()
		if !ok {
			break
		}
		if err := r.runTask(ctx, id); err != nil {
			snapshot := r.opts.Store.Snapshot()
			if !errors.Is(err, context.Canceled) {
				r.notify(ctx, "task error", r.notifier.NotifyError(ctx, err, "task "+id))
			}
			return snapshot, err
		}
		if err := r.opts.Store.Persist(ctx); err != nil {
			return r.opts.Store.Snapshot(), err
		}
		snapshot := r.opts.Store.Snapshot()
		if progress != nil {
			progress(snapshot)
		}
	}

	final := r.opts.Store.Snapshot()
	r.logger.InfoContext(ctx, "extraction finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("completed", len(final.CompletedTasks)),
		logging.Int("skipped", len(final.SkippedTasks)),
		logging.Int("images_extracted", final.ImagesExtracted),
		logging.Duration("run_duration", time.Since(start)),
	)
	r.notify(ctx, "run completed", r.notifier.NotifyRunCompleted(ctx, notifications.RunSummary{
		Completed:       len(final.CompletedTasks),
		Skipped:         len(final.SkippedTasks),
		Remaining:       len(final.RemainingTasks),
		ImagesExtracted: final.ImagesExtracted,
		Duration:        time.Since(start),
	}))
	return final, nil
}

func (r *Runner) runTask(ctx context.Context, id string) error {
	ctx = services.WithTaskID(ctx, id)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, r.logger)
	taskStart := time.Now()

	def, err := r.opts.Dataset.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if !r.opts.Selector(def) {
		logger.InfoContext(ctx, "task skipped",
			logging.Args(logging.DecisionAttrs("task_selection", "excluded", "selector rejected definition")...)...)
		return r.opts.Store.MarkSkipped(id)
	}

	labels, err := dataset.NormalizeLabels(r.opts.Labeler(def))
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return services.Wrap(services.ErrValidation, "extraction", "label", "task "+id+" produced no labels", nil)
	}
	dirs := make([]string, 0, len(labels))
	for _, label := range labels {
		dir := filepath.Join(r.opts.OutputDir, label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "extraction", "create label dir", dir, err)
		}
		dirs = append(dirs, dir)
	}

	logger.InfoContext(ctx, "task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("gloss", def.Gloss),
		logging.String("labels", strings.Join(labels, ",")),
		logging.String("video_path", def.VideoPath),
	)
	images, err := r.extractVideo(ctx, logger, def, dirs)
	if err != nil {
		return err
	}
	if err := r.opts.Store.AddImages(images); err != nil {
		return err
	}
	if err := r.opts.Store.MarkCompleted(id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "task completed",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.Int("images", images),
		logging.Duration("task_duration", time.Since(taskStart)),
	)
	return nil
}

func (r *Runner) extractVideo(ctx context.Context, logger *slog.Logger, def dataset.Definition, dirs []string) (int, error) {
	video, err := r.opts.Frames.Open(ctx, def.VideoPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := video.Close(); cerr != nil {
			logging.WarnWithContext(ctx, logger, "failed to release decoded frames", "frame_cleanup_failed",
				logging.Error(cerr),
				logging.String(logging.FieldErrorHint, "remove the signframes-frames-* directory manually"),
				logging.String(logging.FieldImpact, "temporary disk space not reclaimed"),
			)
		}
	}()

	poses, err := r.opts.Poses.ProcessVideo(ctx, video)
	if err != nil {
		return 0, err
	}
	if len(poses) == 0 {
		return 0, nil
	}
	format := poses[0].FrameFormat
	if r.opts.CropSize > format.Width || r.opts.CropSize > format.Height {
		return 0, services.Wrap(services.ErrConfiguration, "extraction", "check crop size",
			fmt.Sprintf("crop size %d exceeds %dx%d frames of %s", r.opts.CropSize, format.Width, format.Height, def.VideoPath),
			extract.ErrCropTooLarge)
	}

	source := video.SourcePath()
	if source == "" {
		source = def.VideoPath
	}
	reqs := make([]extract.Request, 0, len(dirs)*len(r.keypoints))
	for _, dir := range dirs {
		for _, keypoint := range r.keypoints {
			reqs = append(reqs, extract.Request{
				Poses:      poses,
				OutputDir:  dir,
				Keypoint:   keypoint,
				Size:       r.opts.CropSize,
				Selector:   r.opts.Quality,
				SourceName: source,
				Format:     r.opts.Format,
			})
		}
	}
	return r.opts.Extractor.RunAll(ctx, reqs, r.opts.Parallelism)
}

func (r *Runner) logInitialize(ctx context.Context, result state.InitResult, snapshot state.State, entries int) {
	attrs := []logging.Attr{
		logging.Bool("resumed", result.Resumed),
		logging.Int("entries", entries),
		logging.Int("remaining", len(snapshot.RemainingTasks)),
		logging.Int("completed", len(snapshot.CompletedTasks)),
		logging.String("state_path", r.opts.Store.Path()),
	}
	r.logger.InfoContext(ctx, "extraction state ready", logging.Args(attrs...)...)
	if result.Changed() {
		logging.WarnWithContext(ctx, r.logger, "dataset differs from persisted state", "task_set_changed",
			logging.Int("added", len(result.Added)),
			logging.Int("missing", len(result.Missing)),
			logging.String(logging.FieldErrorHint, "run 'signframes state reset' to rebuild the queue from the dataset"),
			logging.String(logging.FieldImpact, "persisted queue is used; new entries are not processed"),
		)
	}
}

func (r *Runner) notify(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(ctx, r.logger, "notification failed", "notification_failed",
		logging.String("notification", what),
		logging.Error(err),
		logging.String(logging.FieldImpact, "run continues without notification"),
	)
}

func canonicalPart(id pose.KeypointID) (string, bool) {
	if i, ok := id.Index(); ok {
		return pose.PartName(i)
	}
	name := id.Name()
	if _, ok := pose.PartIndex(name); !ok {
		return "", false
	}
	return name, true
}

func missingOption(name string) error {
	return services.Wrap(services.ErrConfiguration, "extraction", "new runner", name+" is required", nil)
}
