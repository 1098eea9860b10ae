package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Extra decoders for frames that did not come from our own ffmpeg pass.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"signframes/internal/fileutil"
	"signframes/internal/services"
)

// DefaultJPEGQuality is used when a Processor has no explicit quality.
const DefaultJPEGQuality = 92

// Padding describes where a frame sits inside its square canvas.
type Padding struct {
	OffsetX int
	OffsetY int
	Width   int
	Height  int
	Side    int
}

// ToSource maps a point on the square canvas back into frame coordinates.
func (p Padding) ToSource(x, y float64) (float64, float64) {
	return x - float64(p.OffsetX), y - float64(p.OffsetY)
}

// Processor crops and pads image files on disk.
type Processor struct {
	JPEGQuality int
}

// NewProcessor returns a Processor with default encoder settings.
func NewProcessor() *Processor {
	return &Processor{JPEGQuality: DefaultJPEGQuality}
}

// Crop copies rect out of src and writes it to dst. The output format follows
// the destination extension.
func (p *Processor) Crop(ctx context.Context, src string, rect image.Rectangle, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := Decode(src)
	if err != nil {
		return err
	}
	if !rect.In(img.Bounds()) {
		return services.Wrap(services.ErrValidation, "imaging", "crop",
			fmt.Sprintf("region %v outside frame %v of %s", rect, img.Bounds(), filepath.Base(src)), nil)
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return p.write(dst, out)
}

// PadSquare extends src to a square canvas and writes it to dst. The frame is
// anchored to the top edge and centred horizontally; the remainder is black.
func (p *Processor) PadSquare(ctx context.Context, src, dst string) (Padding, error) {
	if err := ctx.Err(); err != nil {
		return Padding{}, err
	}
	img, err := Decode(src)
	if err != nil {
		return Padding{}, err
	}
	bounds := img.Bounds()
	pad := SquarePadding(bounds.Dx(), bounds.Dy())

	canvas := image.NewRGBA(image.Rect(0, 0, pad.Side, pad.Side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	target := image.Rect(pad.OffsetX, pad.OffsetY, pad.OffsetX+pad.Width, pad.OffsetY+pad.Height)
	draw.Draw(canvas, target, img, bounds.Min, draw.Src)

	if err := p.write(dst, canvas); err != nil {
		return Padding{}, err
	}
	return pad, nil
}

// SquarePadding computes the top-anchored, horizontally centred placement of a
// width x height frame on a square canvas.
func SquarePadding(width, height int) Padding {
	side := max(width, height)
	return Padding{
		OffsetX: (side - width) / 2,
		Width:   width,
		Height:  height,
		Side:    side,
	}
}

// Decode reads an image file in any registered format.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "imaging", "open", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "imaging", "decode", path, err)
	}
	return img, nil
}

// DecodeConfig returns the dimensions of an image without decoding pixels.
func DecodeConfig(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrNotFound, "imaging", "open", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrValidation, "imaging", "decode config", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// SupportedOutput reports whether ext (with or without the dot) can be written.
func SupportedOutput(ext string) bool {
	switch normalizeExt(ext) {
	case "png", "jpg":
		return true
	default:
		return false
	}
}

func (p *Processor) write(dst string, img image.Image) error {
	ext := normalizeExt(filepath.Ext(dst))
	var encode func(io.Writer) error
	switch ext {
	case "png":
		encode = func(w io.Writer) error { return png.Encode(w, img) }
	case "jpg":
		quality := p.JPEGQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		encode = func(w io.Writer) error { return jpeg.Encode(w, img, &jpeg.Options{Quality: quality}) }
	default:
		return services.Wrap(services.ErrConfiguration, "imaging", "encode",
			fmt.Sprintf("unsupported output format %q", ext), nil)
	}
	if err := fileutil.WriteAtomic(dst, 0o644, encode); err != nil {
		return services.Wrap(services.ErrTransient, "imaging", "write", dst, err)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}
