package posenet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"signframes/internal/imaging"
	"signframes/internal/logging"
	"signframes/internal/pose"
	"signframes/internal/services"
)

// FrameSource yields decoded frame image paths by zero-based index.
type FrameSource interface {
	Len() int
	Frame(i int) (string, error)
}

// Padder extends a frame to a square canvas.
type Padder interface {
	PadSquare(ctx context.Context, src, dst string) (imaging.Padding, error)
}

// Machine estimates and augments poses for every frame of a video.
type Machine struct {
	estimator  Estimator
	padder     Padder
	scratchDir string
	logger     *slog.Logger
}

// NewMachine constructs a Machine. Padded frames are written under
// scratchDir, or the system temp directory when it is empty.
func NewMachine(estimator Estimator, padder Padder, scratchDir string, logger *slog.Logger) *Machine {
	return &Machine{
		estimator:  estimator,
		padder:     padder,
		scratchDir: scratchDir,
		logger:     logging.NewComponentLogger(logger, "posenet"),
	}
}

// ProcessVideo estimates a pose for each frame in order and returns the
// augmented sequence. Frame i of the source becomes the pose with FrameID i.
func (m *Machine) ProcessVideo(ctx context.Context, frames FrameSource) ([]pose.Pose, error) {
	if m.estimator == nil || m.padder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "posenet", "process video", "machine missing estimator or padder", nil)
	}
	scratch, err := os.MkdirTemp(m.scratchDir, "signframes-pad-*")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "posenet", "create scratch dir", m.scratchDir, err)
	}
	defer os.RemoveAll(scratch)
	padded := filepath.Join(scratch, "square.png")

	raws := make([]pose.RawPose, frames.Len())
	for i := range raws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		framePath, err := frames.Frame(i)
		if err != nil {
			return nil, err
		}
		raw, err := m.processFrame(ctx, framePath, padded)
		if err != nil {
			return nil, err
		}
		m.logger.DebugContext(ctx, "frame estimated",
			logging.Int("frame", i),
			logging.Float64("score", raw.Score),
			logging.String("frame_path", framePath),
		)
		raws[i] = raw
	}

	poses, err := pose.Augment(raws)
	if err != nil {
		return nil, err
	}
	if m.logger.Enabled(ctx, slog.LevelDebug) {
		for i := range poses {
			m.logger.DebugContext(ctx, "frame quality",
				logging.Int("frame", poses[i].FrameID),
				logging.String("left", poses[i].Summary(pose.LeftWrist)),
				logging.String("right", poses[i].Summary(pose.RightWrist)),
			)
		}
	}
	return poses, nil
}

func (m *Machine) processFrame(ctx context.Context, framePath, padded string) (pose.RawPose, error) {
	pad, err := m.padder.PadSquare(ctx, framePath, padded)
	if err != nil {
		return pose.RawPose{}, err
	}
	raw, err := m.estimator.Estimate(ctx, padded)
	if err != nil {
		return pose.RawPose{}, err
	}
	if len(raw.Keypoints) == 0 {
		return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "estimate",
			fmt.Sprintf("no keypoints for %s", filepath.Base(framePath)), nil)
	}
	for i := range raw.Keypoints {
		x, y := pad.ToSource(raw.Keypoints[i].Position.X, raw.Keypoints[i].Position.Y)
		raw.Keypoints[i].Position = pose.Position{X: x, Y: y}
	}
	raw.FrameFormat = pose.FrameFormat{Width: pad.Width, Height: pad.Height}
	raw.FramePath = framePath
	return raw, nil
}
