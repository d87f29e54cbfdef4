// Package canvas fits decoded frames onto a fixed-size output canvas without
// distorting them. The source is scaled by the largest factor that keeps it
// inside the canvas, centered, and the remaining border is left black.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Static errors for canvas fitting.
var (
	// ErrInvalidFrame is returned when a decoded frame has zero width or height.
	ErrInvalidFrame = errors.New("canvas: frame has zero width or height")
	// ErrInvalidDimensions is returned when the target canvas is not positive.
	ErrInvalidDimensions = errors.New("canvas: target width and height must be positive")
)

// Background is the fill color of padded regions.
var Background = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// Placement describes where a scaled source lands on the canvas.
type Placement struct {
	// Width and Height are the scaled source dimensions.
	Width  int
	Height int
	// X and Y are the offsets of the scaled source's top-left corner.
	X int
	Y int
}

// Rect returns the canvas region covered by the scaled source.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// Fit computes the aspect-preserving placement of a srcW x srcH frame on a
// dstW x dstH canvas. Scaled sides are rounded, not truncated, and exact
// halves round away from zero (math.Round), so 12.5 becomes 13. When the
// leftover space on an axis is odd, the extra pixel of padding goes to the
// right or bottom edge.
func Fit(srcW, srcH, dstW, dstH int) (Placement, error) {
	if dstW <= 0 || dstH <= 0 {
		return Placement{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, dstW, dstH)
	}
	if srcW <= 0 || srcH <= 0 {
		return Placement{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, srcW, srcH)
	}

	ratio := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := clamp(int(math.Round(float64(srcW)*ratio)), 1, dstW)
	h := clamp(int(math.Round(float64(srcH)*ratio)), 1, dstH)

	return Placement{
		Width:  w,
		Height: h,
		X:      (dstW - w) / 2,
		Y:      (dstH - h) / 2,
	}, nil
}

// Compose scales src with filter and centers it on a new dstW x dstH canvas.
// The canvas is fully painted with Background before the scaled frame is
// pasted, so padding never carries stale pixels. Nothing is returned unless
// the whole canvas was built.
func Compose(src image.Image, dstW, dstH int, filter imaging.ResampleFilter) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := src.Bounds()
	p, err := Fit(b.Dx(), b.Dy(), dstW, dstH)
	if err != nil {
		return nil, err
	}

	dst := imaging.New(dstW, dstH, Background)
	scaled := imaging.Resize(src, p.Width, p.Height, filter)
	return imaging.Paste(dst, scaled, image.Pt(p.X, p.Y)), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
