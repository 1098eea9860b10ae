package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"signframes/internal/logging"
	"signframes/internal/pose"
	"signframes/internal/services"
)

// ErrCropTooLarge reports a crop size that does not fit inside the frame.
var ErrCropTooLarge = errors.New("crop size exceeds frame dimensions")

// DefaultFormat is the output image extension used when a request leaves it empty.
const DefaultFormat = "png"

// Selector decides whether a keypoint is worth extracting.
type Selector func(pose.Keypoint) bool

// QualityAbove selects keypoints whose quality strictly exceeds threshold.
func QualityAbove(threshold float64) Selector {
	return func(kp pose.Keypoint) bool {
		return kp.Quality > threshold
	}
}

// Cropper writes a rectangular region of an image file to a new file.
type Cropper interface {
	Crop(ctx context.Context, src string, rect image.Rectangle, dst string) error
}

// Request describes one extraction pass over a pose sequence.
type Request struct {
	Poses      []pose.Pose
	OutputDir  string
	Keypoint   pose.KeypointID
	Size       int
	Selector   Selector
	SourceName string
	Format     string
}

// Extractor writes keypoint crops through a Cropper.
type Extractor struct {
	cropper Cropper
	logger  *slog.Logger
}

// New constructs an Extractor.
func New(cropper Cropper, logger *slog.Logger) *Extractor {
	return &Extractor{cropper: cropper, logger: logging.NewComponentLogger(logger, "extract")}
}

// CropWindow computes the size x size square centred on pos, shifted as needed
// so it stays within a frameW x frameH frame.
func CropWindow(pos pose.Position, size, frameW, frameH int) (image.Rectangle, error) {
	if size <= 0 {
		return image.Rectangle{}, services.Wrap(services.ErrConfiguration, "extract", "crop window",
			fmt.Sprintf("crop size %d must be positive", size), nil)
	}
	if size > frameW || size > frameH {
		return image.Rectangle{}, services.Wrap(services.ErrConfiguration, "extract", "crop window",
			fmt.Sprintf("crop size %d, frame %dx%d", size, frameW, frameH), ErrCropTooLarge)
	}
	left := clampInt(int(math.Round(pos.X-float64(size)/2)), 0, frameW-size)
	top := clampInt(int(math.Round(pos.Y-float64(size)/2)), 0, frameH-size)
	return image.Rect(left, top, left+size, top+size), nil
}

// FileName returns the deterministic output name for one crop.
func FileName(sourceName, part string, frameID int, format string) string {
	base := filepath.Base(sourceName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if format == "" {
		format = DefaultFormat
	}
	return fmt.Sprintf("%s %s frame-%d.%s", base, part, frameID, strings.TrimPrefix(format, "."))
}

// ExtractKeyPics writes a crop for every frame whose keypoint passes the
// request's selector and returns how many were written. Existing files with
// the same name are replaced.
func (e *Extractor) ExtractKeyPics(ctx context.Context, req Request) (int, error) {
	if req.Selector == nil {
		return 0, services.Wrap(services.ErrConfiguration, "extract", "extract", "selector is required", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return 0, services.Wrap(services.ErrConfiguration, "extract", "extract", "output directory is required", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "extract", "create output dir", req.OutputDir, err)
	}

	written := 0
	for i := range req.Poses {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		p := &req.Poses[i]
		kp, ok := p.Lookup(req.Keypoint)
		if !ok {
			return written, services.Wrap(services.ErrConfiguration, "extract", "lookup",
				fmt.Sprintf("frame %d has no keypoint %s", p.FrameID, req.Keypoint), nil)
		}
		if !req.Selector(*kp) {
			continue
		}
		rect, err := CropWindow(kp.Position, req.Size, p.FrameFormat.Width, p.FrameFormat.Height)
		if err != nil {
			return written, err
		}
		dst := filepath.Join(req.OutputDir, FileName(req.SourceName, kp.Part, p.FrameID, req.Format))
		if err := e.cropper.Crop(ctx, p.FramePath, rect, dst); err != nil {
			return written, err
		}
		written++
		if e.logger.Enabled(ctx, slog.LevelDebug) {
			e.logger.DebugContext(ctx, "keypoint cropped",
				logging.String("part", kp.Part),
				logging.Int("frame", p.FrameID),
				logging.String("scores", p.Summary(kp.Part)),
				logging.String("file", dst),
			)
		}
	}
	return written, nil
}

// RunAll executes reqs concurrently with at most parallelism in flight and
// returns the total number of images written. The first failure cancels the
// remaining requests; all started requests finish before RunAll returns.
func (e *Extractor) RunAll(ctx context.Context, reqs []Request, parallelism int) (int, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	counts := make([]int, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range reqs {
		g.Go(func() error {
			n, err := e.ExtractKeyPics(gctx, reqs[i])
			counts[i] = n
			return err
		})
	}
	err := g.Wait()
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
