package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"signframes/internal/pose"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDataset(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeVideo()
	c.normalizePose()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		if value, ok := os.LookupEnv(outputDirEnv); ok {
			c.Paths.OutputDir = strings.TrimSpace(value)
		}
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}

	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = defaultStateBackend
	}
	if strings.TrimSpace(c.Paths.StateFile) == "" && c.Paths.OutputDir != "" {
		name := defaultStateJSONName
		if c.State.Backend == StateBackendSQLite {
			name = defaultStateSQLiteName
		}
		c.Paths.StateFile = filepath.Join(c.Paths.OutputDir, name)
	}
	if c.Paths.StateFile, err = expandPath(strings.TrimSpace(c.Paths.StateFile)); err != nil {
		return fmt.Errorf("paths.state_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDataset() error {
	var err error
	c.Dataset.Kind = strings.ToLower(strings.TrimSpace(c.Dataset.Kind))
	if c.Dataset.Kind == "" {
		c.Dataset.Kind = defaultDatasetKind
	}
	if c.Dataset.Dir, err = expandPath(strings.TrimSpace(c.Dataset.Dir)); err != nil {
		return fmt.Errorf("dataset.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	keypoints := make([]string, 0, len(c.Extraction.Keypoints))
	seen := make(map[string]struct{}, len(c.Extraction.Keypoints))
	for _, name := range c.Extraction.Keypoints {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		// Indices resolve to canonical names so "17" and "fakeLeftHand" dedupe.
		if i, err := strconv.Atoi(name); err == nil {
			if canonical, ok := pose.PartName(i); ok {
				name = canonical
			}
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		keypoints = append(keypoints, name)
	}
	c.Extraction.Keypoints = keypoints

	selector, labeler := strategyDefaults(c.Dataset.Kind)
	c.Extraction.Selector = strings.ToLower(strings.TrimSpace(c.Extraction.Selector))
	if c.Extraction.Selector == "" {
		c.Extraction.Selector = selector
	}
	c.Extraction.Labeler = strings.ToLower(strings.TrimSpace(c.Extraction.Labeler))
	if c.Extraction.Labeler == "" {
		c.Extraction.Labeler = labeler
	}
	c.Extraction.ImageFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Extraction.ImageFormat), "."))
	switch c.Extraction.ImageFormat {
	case "":
		c.Extraction.ImageFormat = defaultImageFormat
	case "jpeg":
		c.Extraction.ImageFormat = "jpg"
	}
	if c.Extraction.Parallelism <= 0 {
		c.Extraction.Parallelism = defaultParallelism
	}
}

func (c *Config) normalizeVideo() {
	c.Video.FFmpegBinary = strings.TrimSpace(c.Video.FFmpegBinary)
	if c.Video.FFmpegBinary == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
	c.Video.FFprobeBinary = strings.TrimSpace(c.Video.FFprobeBinary)
	if c.Video.FFprobeBinary == "" {
		c.Video.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizePose() {
	c.Pose.Backend = strings.ToLower(strings.TrimSpace(c.Pose.Backend))
	if c.Pose.Backend == "" {
		c.Pose.Backend = defaultPoseBackend
	}
	c.Pose.Command = strings.TrimSpace(c.Pose.Command)
	c.Pose.URL = strings.TrimSpace(c.Pose.URL)
	if c.Pose.URL == "" {
		if value, ok := os.LookupEnv(poseURLEnv); ok {
			c.Pose.URL = strings.TrimSpace(value)
		}
	}
	if c.Pose.TimeoutSeconds <= 0 {
		c.Pose.TimeoutSeconds = defaultPoseTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}
