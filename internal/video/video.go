package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"signframes/internal/config"
	"signframes/internal/logging"
	"signframes/internal/services"
)

const (
	framePrefix = "frame-"
	frameExt    = ".png"
	tempPattern = "signframes-frames-*"
)

// Filters holds the ffmpeg eq filter parameters applied while decoding.
type Filters struct {
	Gamma       float64
	Contrast    float64
	GammaWeight float64
}

// DefaultFilters brightens and sharpens footage the way the pose estimator
// prefers it.
func DefaultFilters() Filters {
	return Filters{Gamma: 2.5, Contrast: 1.1, GammaWeight: 0.3}
}

// Arg renders the filters as an ffmpeg -vf argument. Zero fields are omitted.
func (f Filters) Arg() string {
	parts := make([]string, 0, 3)
	if f.Contrast != 0 {
		parts = append(parts, "contrast="+formatFloat(f.Contrast))
	}
	if f.Gamma != 0 {
		parts = append(parts, "gamma="+formatFloat(f.Gamma))
	}
	if f.GammaWeight != 0 {
		parts = append(parts, "gamma_weight="+formatFloat(f.GammaWeight))
	}
	if len(parts) == 0 {
		return ""
	}
	return "eq=" + strings.Join(parts, ":")
}

// Decoder turns video files into Readers.
type Decoder struct {
	Binary  string
	TempDir string
	Filters Filters
	logger  *slog.Logger
}

// NewDecoder builds a decoder from the [video] and [paths] config sections.
func NewDecoder(cfg *config.Config, logger *slog.Logger) *Decoder {
	filters := DefaultFilters()
	binary := "ffmpeg"
	tempDir := ""
	if cfg != nil {
		filters = Filters{Gamma: cfg.Video.Gamma, Contrast: cfg.Video.Contrast, GammaWeight: cfg.Video.GammaWeight}
		if strings.TrimSpace(cfg.Video.FFmpegBinary) != "" {
			binary = strings.TrimSpace(cfg.Video.FFmpegBinary)
		}
		tempDir = cfg.Paths.TempDir
	}
	return &Decoder{
		Binary:  binary,
		TempDir: tempDir,
		Filters: filters,
		logger:  logging.NewComponentLogger(logger, "video"),
	}
}

// Open decodes path with the decoder's settings.
func (d *Decoder) Open(ctx context.Context, path string) (*Reader, error) {
	reader, err := open(ctx, d.Binary, d.TempDir, path, d.Filters)
	if err != nil {
		return nil, err
	}
	d.logger.DebugContext(ctx, "video decoded",
		logging.String("video_path", path),
		logging.Int("frames", reader.Len()),
		logging.String("frame_dir", reader.dir),
	)
	return reader, nil
}

// Open decodes path into a fresh temporary directory using the ffmpeg found on PATH.
func Open(ctx context.Context, path string, filters Filters) (*Reader, error) {
	return open(ctx, "ffmpeg", "", path, filters)
}

func open(ctx context.Context, binary, tempDir, path string, filters Filters) (*Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "video", "open", "empty video path", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "video", "open", path, err)
		}
		return nil, services.Wrap(services.ErrValidation, "video", "open", path, err)
	}

	dir, err := os.MkdirTemp(tempDir, tempPattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "video", "create frame dir", tempDir, err)
	}

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-i", path}
	if vf := filters.Arg(); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, filepath.Join(dir, framePrefix+"%d"+frameExt))

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "video", "ffmpeg decode",
			fmt.Sprintf("%s: %s", path, strings.TrimSpace(stderr.String())), err)
	}

	count, err := countFrames(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrExternalTool, "video", "list frames", dir, err)
	}
	if count == 0 {
		_ = os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrValidation, "video", "decode", path+" produced no frames", nil)
	}
	return &Reader{source: path, dir: dir, length: count}, nil
}

// countFrames returns N for the contiguous run frame-1.png … frame-N.png.
func countFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	present := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(name, frameExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameExt))
		if err != nil || n < 1 {
			continue
		}
		present[n] = struct{}{}
	}
	count := 0
	for {
		if _, ok := present[count+1]; !ok {
			return count, nil
		}
		count++
	}
}

// Reader gives indexed access to decoded frames.
type Reader struct {
	source string
	dir    string
	length int

	mu     sync.Mutex
	closed bool
}

// Len reports the number of decoded frames.
func (r *Reader) Len() int {
	return r.length
}

// SourcePath returns the video the frames were decoded from.
func (r *Reader) SourcePath() string {
	return r.source
}

// Frame returns the path of the zero-based frame i.
func (r *Reader) Frame(i int) (string, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return "", services.Wrap(services.ErrValidation, "video", "frame", "reader is closed", nil)
	}
	if i < 0 || i >= r.length {
		return "", services.Wrap(services.ErrValidation, "video", "frame",
			fmt.Sprintf("index %d out of range [0,%d)", i, r.length), nil)
	}
	return r.framePath(i), nil
}

// Frames returns every frame path in order.
func (r *Reader) Frames() []string {
	paths := make([]string, r.length)
	for i := range paths {
		paths[i] = r.framePath(i)
	}
	return paths
}

// Close removes the frame directory.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("remove frame dir %s: %w", r.dir, err)
	}
	return nil
}

func (r *Reader) framePath(i int) string {
	return filepath.Join(r.dir, framePrefix+strconv.Itoa(i+1)+frameExt)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
