package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"signframes/internal/config"
	"signframes/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Directories are expected to exist already (see config.EnsureDirectories).
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	if stateDir := filepath.Dir(cfg.Paths.StateFile); stateDir != cfg.Paths.OutputDir {
		results = append(results, CheckDirectoryAccess("State directory", stateDir))
	}
	results = append(results, CheckDatasetDir(cfg.Dataset.Dir))

	tempDir := cfg.Paths.TempDir
	if strings.TrimSpace(tempDir) == "" {
		tempDir = os.TempDir()
	}
	results = append(results, CheckDirectoryAccess("Frame scratch directory", tempDir))
	results = append(results, CheckFreeSpace("Frame scratch space", tempDir, uint64(cfg.Video.MinFreeSpaceMiB)*1024*1024))

	if cfg.Pose.Backend == config.PoseBackendHTTP {
		results = append(results, CheckPoseService(ctx, cfg.Pose.URL))
	}
	return results
}

// Failed converts failing results into a single configuration error.
func Failed(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "run checks", strings.Join(failed, "; "), nil)
}
