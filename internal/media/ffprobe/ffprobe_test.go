package ffprobe

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"signframes/internal/services"
	"signframes/internal/testsupport"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", Width: 640, Height: 480, AvgFrameRate: "30000/1001", NBFrames: "95"},
		},
		Format: Format{
			Duration: "3.17",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if w, h := result.Dimensions(); w != 640 || h != 480 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
	if result.FrameCount() != 95 {
		t.Fatalf("expected reported frame count, got %d", result.FrameCount())
	}
	if math.Abs(result.FrameRate()-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", result.FrameRate())
	}
	if result.DurationSeconds() != 3.17 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestFrameCountEstimatesFromDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "25/1"}},
		Format:  Format{Duration: "2.0"},
	}
	if got := result.FrameCount(); got != 50 {
		t.Fatalf("expected estimated 50 frames, got %d", got)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "bad", NBFrames: "N/A"}},
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected frame rate 0, got %v", result.FrameRate())
	}
	if result.FrameCount() != 0 {
		t.Fatalf("expected frame count 0, got %d", result.FrameCount())
	}
}

func TestNoVideoStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "audio"}}}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("expected zero dimensions, got %dx%d", w, h)
	}
}

func TestInspectParsesStubOutput(t *testing.T) {
	dir := t.TempDir()
	stub := testsupport.WriteExecutable(t, dir, "ffprobe", `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":320,"height":240,"nb_frames":"12"}],
 "format":{"filename":"clip.mp4","nb_streams":1,"duration":"0.5","size":"2048","format_name":"mov,mp4"}}
JSON
`)
	result, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if w, h := result.Dimensions(); w != 320 || h != 240 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
	if result.FrameCount() != 12 {
		t.Fatalf("unexpected frame count %d", result.FrameCount())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw JSON to be retained")
	}
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()
	failing := testsupport.WriteExecutable(t, dir, "ffprobe", "echo 'No such file' >&2\nexit 1\n")
	if _, err := Inspect(context.Background(), failing, "clip.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := Inspect(context.Background(), failing, "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty path, got %v", err)
	}
}
