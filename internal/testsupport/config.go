package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"signframes/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateFile = filepath.Join(base, "output", "state.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Dataset.Dir = filepath.Join(base, "dataset")
	cfgVal.Logging.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStateBackend switches the state backend and its file name.
func WithStateBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.State.Backend = backend
		name := "state.json"
		if backend == config.StateBackendSQLite {
			name = "state.db"
		}
		b.cfg.Paths.StateFile = filepath.Join(b.cfg.Paths.OutputDir, name)
	}
}

// WithDataset sets the dataset kind and its default strategies; the
// directory stays under the test root.
func WithDataset(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.Kind = kind
		if kind == config.DatasetFolders {
			b.cfg.Extraction.Selector = config.SelectorAll
			b.cfg.Extraction.Labeler = config.LabelerDefinition
		}
	}
}

// WithCropSize overrides the extraction crop size.
func WithCropSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.CropSize = size
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", b.cfg.Pose.Command}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0\n")
		}
		PrependPath(b.t, binDir)
	}
}

// PrependPath puts dir at the front of PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
