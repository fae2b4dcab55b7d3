// Package imaging provides the pixel operations used by bulk transforms:
// decoding, encoding, resizing, padding, upscaling and the geometric
// transforms used for dataset augmentation.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/franz/dataset-curator/internal/util"
)

const (
	// MinDimension is the smallest accepted width and height
	MinDimension = 512

	// JPEGQuality is used for every re-encoded JPEG
	JPEGQuality = 95
)

// Processor is the set of pixel operations the bulk orchestrator needs
type Processor interface {
	// Dimensions reads the image size without decoding pixels
	Dimensions(path string) (int, int, error)
	// Decode reads and decodes an image file
	Decode(path string) (image.Image, error)
	// Encode writes img to path in the format implied by its extension
	Encode(path string, img image.Image) error
	// Fit scales img so its longest side equals target. Without keepAspect
	// the result is padded to a centered target x target square on white.
	Fit(img image.Image, target int, keepAspect bool) image.Image
	// Upscale enlarges img so both sides are at least minSide
	Upscale(img image.Image, minSide int) image.Image
	// Apply runs a geometric transform
	Apply(img image.Image, t Transform) image.Image
}

// Default is the Processor backed by the standard codecs and x/image
type Default struct {
	Quality int
	Scaler  draw.Scaler
}

// NewDefault returns a Default processor with JPEG quality 95 and
// Catmull-Rom resampling
func NewDefault() *Default {
	return &Default{Quality: JPEGQuality, Scaler: draw.CatmullRom}
}

// CanEncode reports whether files with filename's extension can be written
func CanEncode(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// Dimensions reads the image header of path
func (d *Default) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w: %v", filepath.Base(path), util.ErrCorrupt, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode reads and decodes path
func (d *Default) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), util.ErrCorrupt, err)
	}
	return img, nil
}

// Encode writes img to path. JPEG output is flattened onto white; WebP is
// written lossless. Extensions without an encoder fail with
// util.ErrUnsupported.
func (d *Default) Encode(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !CanEncode(path) {
		return fmt.Errorf("encoding %s images: %w", ext, util.ErrUnsupported)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch ext {
	case ".png":
		err = png.Encode(f, img)
	case ".webp":
		err = nativewebp.Encode(f, img, nil)
	default:
		quality := d.Quality
		if quality <= 0 {
			quality = JPEGQuality
		}
		err = jpeg.Encode(f, flatten(img), &jpeg.Options{Quality: quality})
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FitSize returns the scaled size whose longest side is target. The short
// side is truncated, never rounded up.
func FitSize(width, height, target int) (int, int) {
	if width >= height {
		h := int(float64(height) / float64(width) * float64(target))
		return target, max(h, 1)
	}
	w := int(float64(width) / float64(height) * float64(target))
	return max(w, 1), target
}

// Fit scales img to target on its longest side
func (d *Default) Fit(img image.Image, target int, keepAspect bool) image.Image {
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), target)
	scaled := d.scale(img, w, h)
	if keepAspect {
		return scaled
	}

	square := image.NewRGBA(image.Rect(0, 0, target, target))
	draw.Draw(square, square.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	offset := image.Pt((target-w)/2, (target-h)/2)
	draw.Draw(square, scaled.Bounds().Add(offset), scaled, image.Point{}, draw.Over)
	return square
}

// Upscale enlarges img so both sides reach minSide, keeping aspect ratio.
// Images already large enough are returned unchanged.
func (d *Default) Upscale(img image.Image, minSide int) image.Image {
	b := img.Bounds()
	if b.Dx() >= minSide && b.Dy() >= minSide {
		return img
	}
	factor := math.Max(float64(minSide)/float64(b.Dx()), float64(minSide)/float64(b.Dy()))
	w := int(math.Ceil(float64(b.Dx()) * factor))
	h := int(math.Ceil(float64(b.Dy()) * factor))
	return d.scale(img, max(w, minSide), max(h, minSide))
}

func (d *Default) scale(img image.Image, w, h int) *image.RGBA {
	scaler := d.Scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// flatten composites img onto white unless it is already opaque
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
