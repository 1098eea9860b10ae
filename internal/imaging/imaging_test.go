package imaging_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"signframes/internal/imaging"
	"signframes/internal/services"
)

// writeGradient writes a PNG whose red channel encodes x and green encodes y.
func writeGradient(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestCropCopiesRegion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame-1.png")
	dst := filepath.Join(dir, "crop.png")
	writeGradient(t, src, 64, 48)

	p := imaging.NewProcessor()
	if err := p.Crop(context.Background(), src, image.Rect(10, 20, 30, 40), dst); err != nil {
		t.Fatalf("Crop: %v", err)
	}

	img, err := imaging.Decode(dst)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Fatalf("unexpected crop size %v", img.Bounds())
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != 10 || uint8(g>>8) != 20 {
		t.Fatalf("crop origin pixel = (%d,%d), want (10,20)", r>>8, g>>8)
	}
}

func TestCropRejectsRegionOutsideFrame(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame-1.png")
	writeGradient(t, src, 32, 32)

	err := imaging.NewProcessor().Crop(context.Background(), src, image.Rect(20, 20, 40, 40), filepath.Join(dir, "out.png"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCropWritesJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame-1.png")
	dst := filepath.Join(dir, "crop.jpg")
	writeGradient(t, src, 32, 32)

	if err := imaging.NewProcessor().Crop(context.Background(), src, image.Rect(0, 0, 16, 16), dst); err != nil {
		t.Fatalf("Crop: %v", err)
	}
	w, h, err := imaging.DecodeConfig(dst)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if w != 16 || h != 16 {
		t.Fatalf("jpeg size = %dx%d", w, h)
	}
}

func TestCropUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame-1.png")
	writeGradient(t, src, 16, 16)

	err := imaging.NewProcessor().Crop(context.Background(), src, image.Rect(0, 0, 8, 8), filepath.Join(dir, "out.gif"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCropHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := imaging.NewProcessor().Crop(ctx, "unused.png", image.Rect(0, 0, 1, 1), "out.png"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPadSquareTallFrame(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame-1.png")
	dst := filepath.Join(dir, "square.png")
	writeGradient(t, src, 40, 100)

	pad, err := imaging.NewProcessor().PadSquare(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("PadSquare: %v", err)
	}
	if pad.Side != 100 || pad.OffsetX != 30 || pad.OffsetY != 0 {
		t.Fatalf("unexpected padding %+v", pad)
	}
	img, err := imaging.Decode(dst)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Fatalf("canvas size %v", img.Bounds())
	}
	if r, g, b, _ := img.At(0, 0).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Fatal("expected black padding on the left")
	}
	r, g, _, _ := img.At(35, 7).RGBA()
	if uint8(r>>8) != 5 || uint8(g>>8) != 7 {
		t.Fatalf("frame pixel misplaced: (%d,%d)", r>>8, g>>8)
	}
	x, y := pad.ToSource(35, 7)
	if x != 5 || y != 7 {
		t.Fatalf("ToSource = (%v,%v), want (5,7)", x, y)
	}
}

func TestSquarePaddingWideFrameAnchorsTop(t *testing.T) {
	pad := imaging.SquarePadding(640, 480)
	if pad.Side != 640 || pad.OffsetX != 0 || pad.OffsetY != 0 {
		t.Fatalf("unexpected padding %+v", pad)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := imaging.Decode(filepath.Join(t.TempDir(), "nope.png")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSupportedOutput(t *testing.T) {
	for ext, want := range map[string]bool{".png": true, "jpg": true, ".JPEG": true, "gif": false, "": false} {
		if got := imaging.SupportedOutput(ext); got != want {
			t.Fatalf("SupportedOutput(%q) = %v, want %v", ext, got, want)
		}
	}
}
