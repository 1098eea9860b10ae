package posenet

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"signframes/internal/config"
	"signframes/internal/pose"
	"signframes/internal/services"
)

// ImagePlaceholder is replaced with the frame path in command arguments.
const ImagePlaceholder = "{image}"

// Estimator reports the single most likely pose in an image.
type Estimator interface {
	Estimate(ctx context.Context, imagePath string) (pose.RawPose, error)
}

// Tuning carries the PoseNet inference parameters forwarded to the estimator.
type Tuning struct {
	ImageScaleFactor float64
	OutputStride     int
	FlipHorizontal   bool
	Multiplier       float64
}

// DefaultTuning returns the parameters the pipeline was calibrated with.
func DefaultTuning() Tuning {
	return Tuning{ImageScaleFactor: 0.5, OutputStride: 16, Multiplier: 0.75}
}

// TuningFromConfig reads the [pose] tuning keys.
func TuningFromConfig(cfg config.Pose) Tuning {
	return Tuning{
		ImageScaleFactor: cfg.ImageScaleFactor,
		OutputStride:     cfg.OutputStride,
		FlipHorizontal:   cfg.FlipHorizontal,
		Multiplier:       cfg.Multiplier,
	}
}

func (t Tuning) flags() []string {
	flags := []string{
		"--image-scale-factor=" + strconv.FormatFloat(t.ImageScaleFactor, 'f', -1, 64),
		"--output-stride=" + strconv.Itoa(t.OutputStride),
		"--multiplier=" + strconv.FormatFloat(t.Multiplier, 'f', -1, 64),
	}
	if t.FlipHorizontal {
		flags = append(flags, "--flip-horizontal")
	}
	return flags
}

func (t Tuning) query() map[string]string {
	return map[string]string{
		"image_scale_factor": strconv.FormatFloat(t.ImageScaleFactor, 'f', -1, 64),
		"output_stride":      strconv.Itoa(t.OutputStride),
		"flip_horizontal":    strconv.FormatBool(t.FlipHorizontal),
		"multiplier":         strconv.FormatFloat(t.Multiplier, 'f', -1, 64),
	}
}

// NewEstimator builds the backend selected by cfg.Pose.Backend.
func NewEstimator(cfg *config.Config) (Estimator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "posenet", "new estimator", "nil config", nil)
	}
	tuning := TuningFromConfig(cfg.Pose)
	switch cfg.Pose.Backend {
	case config.PoseBackendCommand:
		return NewCommandEstimator(cfg.Pose.Command, cfg.Pose.Args, tuning, cfg.Pose.TimeoutSeconds), nil
	case config.PoseBackendHTTP:
		return NewHTTPEstimator(HTTPConfig{URL: cfg.Pose.URL, TimeoutSeconds: cfg.Pose.TimeoutSeconds, Tuning: tuning}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "posenet", "new estimator",
			fmt.Sprintf("unsupported pose backend %q", cfg.Pose.Backend), nil)
	}
}

type wirePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wireKeypoint struct {
	Part     string       `json:"part"`
	Position wirePosition `json:"position"`
	Score    float64      `json:"score"`
}

type wirePose struct {
	Score     float64        `json:"score"`
	Keypoints []wireKeypoint `json:"keypoints"`
}

// decodePose parses a PoseNet estimateSinglePose result.
func decodePose(data []byte) (pose.RawPose, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return pose.RawPose{}, fmt.Errorf("empty payload")
	}
	var wire wirePose
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return pose.RawPose{}, fmt.Errorf("decode pose: %w", err)
	}
	if len(wire.Keypoints) == 0 {
		return pose.RawPose{}, fmt.Errorf("pose has no keypoints")
	}
	raw := pose.RawPose{
		Score:     wire.Score,
		Keypoints: make([]pose.RawKeypoint, len(wire.Keypoints)),
	}
	for i, kp := range wire.Keypoints {
		raw.Keypoints[i] = pose.RawKeypoint{
			Part:     strings.TrimSpace(kp.Part),
			Position: pose.Position{X: kp.Position.X, Y: kp.Position.Y},
			Score:    kp.Score,
		}
	}
	return raw, nil
}
