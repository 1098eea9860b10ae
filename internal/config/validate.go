package config

import (
	"errors"
	"fmt"
	"strings"

	"signframes/internal/pose"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validatePose(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.output_dir is required. Set %s or edit %s (create with 'signframes config init')", outputDirEnv, defaultPath)
	}
	return nil
}

func (c *Config) validateDataset() error {
	switch c.Dataset.Kind {
	case DatasetNZSL, DatasetFolders:
	default:
		return fmt.Errorf("dataset.kind: unsupported value %q (expected %q or %q)", c.Dataset.Kind, DatasetNZSL, DatasetFolders)
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if len(c.Extraction.Keypoints) == 0 {
		return errors.New("extraction.keypoints must list at least one keypoint")
	}
	for _, name := range c.Extraction.Keypoints {
		if _, ok := pose.PartIndex(name); !ok {
			return fmt.Errorf("extraction.keypoints: unknown keypoint %q", name)
		}
	}
	if c.Extraction.CropSize <= 0 {
		return errors.New("extraction.crop_size must be positive")
	}
	if c.Extraction.QualityThreshold < 0 || c.Extraction.QualityThreshold > 1 {
		return errors.New("extraction.quality_threshold must be between 0 and 1")
	}
	switch c.Extraction.Selector {
	case SelectorHandshapes, SelectorAll:
	default:
		return fmt.Errorf("extraction.selector: unsupported value %q", c.Extraction.Selector)
	}
	switch c.Extraction.Labeler {
	case LabelerHandshapes, LabelerDefinition:
	default:
		return fmt.Errorf("extraction.labeler: unsupported value %q", c.Extraction.Labeler)
	}
	if c.Dataset.Kind == DatasetFolders {
		if c.Extraction.Selector == SelectorHandshapes {
			return fmt.Errorf("extraction.selector %q needs handshape attributes; dataset.kind %q has none (use %q)", SelectorHandshapes, DatasetFolders, SelectorAll)
		}
		if c.Extraction.Labeler == LabelerHandshapes {
			return fmt.Errorf("extraction.labeler %q needs handshape attributes; dataset.kind %q has none (use %q)", LabelerHandshapes, DatasetFolders, LabelerDefinition)
		}
	}
	switch c.Extraction.ImageFormat {
	case "png", "jpg":
	default:
		return fmt.Errorf("extraction.image_format: unsupported value %q (expected png or jpg)", c.Extraction.ImageFormat)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.Gamma <= 0 {
		return errors.New("video.gamma must be positive")
	}
	if c.Video.Contrast <= 0 {
		return errors.New("video.contrast must be positive")
	}
	if c.Video.GammaWeight < 0 || c.Video.GammaWeight > 1 {
		return errors.New("video.gamma_weight must be between 0 and 1")
	}
	if c.Video.MinFreeSpaceMiB < 0 {
		return errors.New("video.min_free_space_mib must be >= 0")
	}
	return nil
}

func (c *Config) validatePose() error {
	switch c.Pose.Backend {
	case PoseBackendCommand:
		if c.Pose.Command == "" {
			return errors.New("pose.command must be set when pose.backend is \"command\"")
		}
	case PoseBackendHTTP:
		if c.Pose.URL == "" {
			return fmt.Errorf("pose.url must be set when pose.backend is \"http\" (or set %s)", poseURLEnv)
		}
	default:
		return fmt.Errorf("pose.backend: unsupported value %q", c.Pose.Backend)
	}
	if err := ensurePositiveMap(map[string]int{
		"pose.timeout_seconds": c.Pose.TimeoutSeconds,
		"pose.output_stride":   c.Pose.OutputStride,
	}); err != nil {
		return err
	}
	if c.Pose.ImageScaleFactor <= 0 || c.Pose.ImageScaleFactor > 1 {
		return errors.New("pose.image_scale_factor must be in (0, 1]")
	}
	if c.Pose.Multiplier <= 0 {
		return errors.New("pose.multiplier must be positive")
	}
	return nil
}

func (c *Config) validateState() error {
	switch c.State.Backend {
	case StateBackendJSON, StateBackendSQLite:
	default:
		return fmt.Errorf("state.backend: unsupported value %q", c.State.Backend)
	}
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		return errors.New("paths.state_file could not be resolved")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
