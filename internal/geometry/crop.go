package geometry

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// Size returns the pixel size of img.
func Size(img image.Image) SourceSize {
	b := img.Bounds()
	return SourceSize{Width: b.Dx(), Height: b.Dy()}
}

// Crop copies the rectangle out of img into a new buffer. The source image
// is never modified.
func Crop(img image.Image, r PixelRect) (*image.NRGBA, error) {
	if img == nil {
		return nil, &GeometryError{Operation: "crop", Err: errors.New("nil image")}
	}
	if !r.Within(Size(img)) {
		return nil, &GeometryError{
			Operation: "crop",
			Err:       fmt.Errorf("rect %s outside %dx%d image", r, img.Bounds().Dx(), img.Bounds().Dy()),
		}
	}
	o := img.Bounds().Min
	rect := image.Rect(o.X+r.X, o.Y+r.Y, o.X+r.X+r.Width, o.Y+r.Y+r.Height)
	return imaging.Crop(img, rect), nil
}

// Inverse maps a source pixel point back into viewport units.
func (m Mapping) Inverse(x, y float64) (float64, float64) {
	return (x - m.OffsetX) / m.Scale, (y - m.OffsetY) / m.Scale
}

// SuggestSelection frames the most salient square region of img and returns
// it as a selection in viewport coordinates, clamped to the viewport and to
// minSize. The suggestion goes through Resolve like any user selection.
func SuggestSelection(img image.Image, vp Viewport, minSize float64) (Selection, error) {
	m, err := NewMapping(Size(img), vp)
	if err != nil {
		return Selection{}, err
	}

	src := Size(img)
	side := min(src.Width, src.Height)
	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Linear})
	best, err := analyzer.FindBestCrop(img, side, side)
	if err != nil {
		return Selection{}, &GeometryError{Operation: "suggest", Err: err}
	}
	best = best.Sub(img.Bounds().Min)

	left, top := m.Inverse(float64(best.Min.X), float64(best.Min.Y))
	sel := Selection{
		Left:   left,
		Top:    top,
		Width:  float64(best.Dx()) / m.Scale,
		Height: float64(best.Dy()) / m.Scale,
	}
	return ClampSelection(sel, vp, minSize), nil
}

// resizer adapts imaging to smartcrop's resizer interface.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter) //nolint:gosec // G115: analyzer sizes fit in int
}
