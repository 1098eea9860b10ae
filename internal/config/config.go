package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output, state, and scratch directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateFile string `toml:"state_file"`
	LogDir    string `toml:"log_dir"`
	TempDir   string `toml:"temp_dir"`
}

// Dataset selects where task definitions come from.
type Dataset struct {
	// Kind is "nzsl" (dictionary data/<id>.json layout) or "folders"
	// (<dir>/<label>/<video> layout).
	Kind string `toml:"kind"`
	Dir  string `toml:"dir"`
}

// Extraction contains crop selection settings.
type Extraction struct {
	Keypoints        []string `toml:"keypoints"`
	CropSize         int      `toml:"crop_size"`
	QualityThreshold float64  `toml:"quality_threshold"`
	// Selector names the task inclusion strategy ("handshapes" or "all").
	Selector string `toml:"selector"`
	// Labeler names the label derivation strategy ("handshapes" or "definition").
	Labeler     string `toml:"labeler"`
	ImageFormat string `toml:"image_format"`
	Parallelism int    `toml:"parallelism"`
}

// Video contains ffmpeg decode settings.
type Video struct {
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
	FFprobeBinary   string  `toml:"ffprobe_binary"`
	Gamma           float64 `toml:"gamma"`
	Contrast        float64 `toml:"contrast"`
	GammaWeight     float64 `toml:"gamma_weight"`
	MinFreeSpaceMiB int     `toml:"min_free_space_mib"`
}

// Pose contains pose-estimator wiring and tuning parameters.
type Pose struct {
	// Backend is "command" (run an executable per frame) or "http".
	Backend          string   `toml:"backend"`
	Command          string   `toml:"command"`
	Args             []string `toml:"args"`
	URL              string   `toml:"url"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	ImageScaleFactor float64  `toml:"image_scale_factor"`
	OutputStride     int      `toml:"output_stride"`
	FlipHorizontal   bool     `toml:"flip_horizontal"`
	Multiplier       float64  `toml:"multiplier"`
}

// State selects the task-state persistence backend.
type State struct {
	Backend string `toml:"backend"`
}

// Notifications configures ntfy run notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Enabled bool   `toml:"enabled"`
	Format  string `toml:"format"`
	Level   string `toml:"level"`
}

// Config encapsulates all configuration values for signframes.
//
// Configuration sections by subsystem:
//   - Paths: output tree, state file, logs, and scratch space
//   - Dataset: where task definitions are read from
//   - Extraction: keypoints, crop size, quality gate, strategies
//   - Video: ffmpeg binaries and decode filters
//   - Pose: pose-estimator backend and tuning
//   - State: persistence backend for pipeline progress
//   - Notifications: optional ntfy run notifications
//   - Logging: log toggle, format, and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Dataset       Dataset       `toml:"dataset"`
	Extraction    Extraction    `toml:"extraction"`
	Video         Video         `toml:"video"`
	Pose          Pose          `toml:"pose"`
	State         State         `toml:"state"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()
	// Strategy defaults depend on dataset.kind; normalize fills them.
	cfg.Extraction.Selector, cfg.Extraction.Labeler = "", ""

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("signframes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output tree plus optional log and scratch
// directories. The state file's parent is created too so a custom location works.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, filepath.Dir(c.Paths.StateFile)}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	if strings.TrimSpace(c.Paths.TempDir) != "" {
		dirs = append(dirs, c.Paths.TempDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
