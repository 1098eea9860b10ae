package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"signframes/internal/pose"
)

// RawPose builds a raw estimate carrying every estimated part at (50, 50) with
// score 0.9, except for the positions given in overrides.
func RawPose(score float64, width, height int, overrides map[string]pose.Position) pose.RawPose {
	raw := pose.RawPose{
		Score:       score,
		FrameFormat: pose.FrameFormat{Width: width, Height: height},
	}
	for _, part := range pose.EstimatedParts() {
		pos := pose.Position{X: 50, Y: 50}
		if p, ok := overrides[part]; ok {
			pos = p
		}
		raw.Keypoints = append(raw.Keypoints, pose.RawKeypoint{Part: part, Position: pos, Score: 0.9})
	}
	return raw
}

// FakeEstimator returns canned poses keyed by call order. When it runs out of
// poses it keeps returning the last one.
type FakeEstimator struct {
	Poses []pose.RawPose
	Err   error

	mu    sync.Mutex
	calls []string
}

// Estimate records imagePath and returns the next canned pose.
func (f *FakeEstimator) Estimate(ctx context.Context, imagePath string) (pose.RawPose, error) {
	if err := ctx.Err(); err != nil {
		return pose.RawPose{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, imagePath)
	if f.Err != nil {
		return pose.RawPose{}, f.Err
	}
	if len(f.Poses) == 0 {
		return pose.RawPose{}, fmt.Errorf("fake estimator has no poses")
	}
	i := min(len(f.calls)-1, len(f.Poses)-1)
	raw := f.Poses[i]
	raw.Keypoints = append([]pose.RawKeypoint(nil), raw.Keypoints...)
	return raw, nil
}

// Calls returns the image paths passed to Estimate so far.
func (f *FakeEstimator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FakeFrames is an in-memory frame source backed by PNG fixtures.
type FakeFrames struct {
	Source string
	Paths  []string

	mu     sync.Mutex
	closed int
}

// NewFakeFrames writes n w x h PNG frames into a temp directory.
func NewFakeFrames(t testing.TB, source string, n, w, h int) *FakeFrames {
	t.Helper()
	dir := t.TempDir()
	frames := &FakeFrames{Source: source}
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("frame-%d.png", i+1))
		WritePNG(t, path, w, h)
		frames.Paths = append(frames.Paths, path)
	}
	return frames
}

// Len reports the number of frames.
func (f *FakeFrames) Len() int { return len(f.Paths) }

// Frame returns the path of frame i.
func (f *FakeFrames) Frame(i int) (string, error) {
	if i < 0 || i >= len(f.Paths) {
		return "", fmt.Errorf("frame %d out of range", i)
	}
	return f.Paths[i], nil
}

// SourcePath returns the pretend video path.
func (f *FakeFrames) SourcePath() string { return f.Source }

// Close counts calls so tests can assert the frames were released.
func (f *FakeFrames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Closed reports how many times Close was called.
func (f *FakeFrames) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
