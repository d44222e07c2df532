// Package geometry maps crop selections made on a cover-fit preview back to
// pixel rectangles in the captured source image.
package geometry

import (
	"fmt"
	"math"
)

// GeometryError reports dimensions that cannot describe a source image or a
// preview viewport.
type GeometryError struct {
	Operation string
	Err       error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error in %s: %v", e.Operation, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// SourceSize is the pixel size of the captured image.
type SourceSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport is the preview rectangle the source was cover-fit into. Selection
// coordinates are expressed in the same units.
type Viewport struct {
	Width  float64 `json:"preview_width"`
	Height float64 `json:"preview_height"`
}

// IsZero reports whether the viewport was left unset.
func (v Viewport) IsZero() bool { return v.Width == 0 && v.Height == 0 }

// Selection is an axis-aligned rectangle in viewport coordinates.
type Selection struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the selection center.
func (s Selection) Center() (float64, float64) {
	return s.Left + s.Width/2, s.Top + s.Height/2
}

// PixelRect is a crop rectangle in source pixel coordinates. Rectangles
// produced by this package always lie fully inside the source image.
type PixelRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r PixelRect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Within reports whether r lies fully inside a source of the given size and
// is at least one pixel in each dimension.
func (r PixelRect) Within(src SourceSize) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 1 && r.Height >= 1 &&
		r.X+r.Width <= src.Width && r.Y+r.Height <= src.Height
}

// Mapping is the cover-fit transform from viewport units to source pixels.
type Mapping struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// NewMapping computes the cover-fit transform for a source shown in viewport.
// The source is scaled to fill the viewport and the overflowing axis is
// cropped symmetrically.
func NewMapping(src SourceSize, vp Viewport) (Mapping, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return Mapping{}, &GeometryError{
			Operation: "mapping",
			Err:       fmt.Errorf("invalid source size %dx%d", src.Width, src.Height),
		}
	}
	if !positiveFinite(vp.Width) || !positiveFinite(vp.Height) {
		return Mapping{}, &GeometryError{
			Operation: "mapping",
			Err:       fmt.Errorf("invalid viewport %gx%g", vp.Width, vp.Height),
		}
	}

	srcW, srcH := float64(src.Width), float64(src.Height)
	previewAspect := vp.Width / vp.Height
	imageAspect := srcW / srcH

	// The "taller" branch is the default so equal aspects never depend on
	// float equality.
	if imageAspect > previewAspect {
		scale := srcH / vp.Height
		visibleWidth := vp.Width * scale
		return Mapping{Scale: scale, OffsetX: (srcW - visibleWidth) / 2}, nil
	}
	scale := srcW / vp.Width
	visibleHeight := vp.Height * scale
	return Mapping{Scale: scale, OffsetY: (srcH - visibleHeight) / 2}, nil
}

// Point maps a viewport point to source pixel space.
func (m Mapping) Point(x, y float64) (float64, float64) {
	return m.OffsetX + x*m.Scale, m.OffsetY + y*m.Scale
}

// Resolve maps a selection in viewport coordinates to a clamped pixel
// rectangle in the source image.
func Resolve(src SourceSize, vp Viewport, sel Selection) (PixelRect, error) {
	m, err := NewMapping(src, vp)
	if err != nil {
		return PixelRect{}, err
	}
	x, y := m.Point(sel.Left, sel.Top)
	return clampRect(src, x, y, sel.Width*m.Scale, sel.Height*m.Scale), nil
}

// ResolveTargetBox maps the fixed square target box of the given viewport
// side length, centered in the viewport, to source pixels. The box center
// and side are mapped independently so the crop stays centered on the
// image center when aspects match.
func ResolveTargetBox(src SourceSize, vp Viewport, side float64) (PixelRect, error) {
	m, err := NewMapping(src, vp)
	if err != nil {
		return PixelRect{}, err
	}
	cx, cy := m.Point(vp.Width/2, vp.Height/2)
	size := side * m.Scale
	return clampRect(src, cx-size/2, cy-size/2, size, size), nil
}

// clampRect rounds to whole pixels and forces the rectangle inside src.
func clampRect(src SourceSize, x, y, w, h float64) PixelRect {
	px := roundClamp(x, 0, src.Width-1)
	py := roundClamp(y, 0, src.Height-1)
	return PixelRect{
		X:      px,
		Y:      py,
		Width:  roundClamp(w, 1, src.Width-px),
		Height: roundClamp(h, 1, src.Height-py),
	}
}

// roundClamp rounds v to the nearest integer within [lo, hi]. NaN maps to lo.
func roundClamp(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	r := math.Round(v)
	if r <= float64(lo) {
		return lo
	}
	if r >= float64(hi) {
		return hi
	}
	return int(r)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
