package imaging

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/franz/dataset-curator/internal/util"
)

// Transform names a geometric augmentation
type Transform string

const (
	FlipHorizontal Transform = "flip_horizontal"
	Rotate90Left   Transform = "rotate_90_left"
	Rotate90Right  Transform = "rotate_90_right"
	Rotate180      Transform = "rotate_180"
	Duplicate      Transform = "duplicate"
)

// AllTransforms lists the geometric transforms in application order
var AllTransforms = []Transform{FlipHorizontal, Rotate90Left, Rotate90Right, Rotate180}

var suffixes = map[Transform]string{
	FlipHorizontal: "_flipHor",
	Rotate90Left:   "_rotLeft",
	Rotate90Right:  "_rotRight",
	Rotate180:      "_flipVert",
	Duplicate:      "_dup",
}

// Suffix is appended to the base filename of a variant
func (t Transform) Suffix() string {
	return suffixes[t]
}

// ParseTransform accepts a transform name, case-insensitively, with '-' or '_'
func ParseTransform(name string) (Transform, error) {
	t := Transform(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if _, ok := suffixes[t]; !ok {
		return "", fmt.Errorf("unknown transform %q: %w", name, util.ErrInvalidArgument)
	}
	return t, nil
}

// Plan orders the requested transforms. An empty request yields a single
// plain duplicate.
func Plan(requested []Transform) []Transform {
	want := make(map[Transform]bool, len(requested))
	for _, t := range requested {
		want[t] = true
	}
	var plan []Transform
	for _, t := range AllTransforms {
		if want[t] {
			plan = append(plan, t)
		}
	}
	if len(plan) == 0 {
		return []Transform{Duplicate}
	}
	return plan
}

// Apply runs t on img. Duplicate returns img unchanged.
func (d *Default) Apply(img image.Image, t Transform) image.Image {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	var dst *image.NRGBA
	var mapTo func(x, y int) (int, int)
	switch t {
	case FlipHorizontal:
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
		mapTo = func(x, y int) (int, int) { return w - 1 - x, y }
	case Rotate90Left:
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
		mapTo = func(x, y int) (int, int) { return y, w - 1 - x }
	case Rotate90Right:
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
		mapTo = func(x, y int) (int, int) { return h - 1 - y, x }
	case Rotate180:
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
		mapTo = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	default:
		return img
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := mapTo(x, y)
			si := src.PixOffset(x, y)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// toNRGBA returns img as an NRGBA anchored at the origin
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
