package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Phone-style captures in both orientations.
	LandscapeSize = ImageSize{4000, 3000}
	PortraitSize  = ImageSize{1200, 1600}
	SmallSize     = ImageSize{320, 240}
)

// LesionConfig describes a synthetic skin image with a dark elliptical lesion.
type LesionConfig struct {
	Size    ImageSize
	CenterX float64 // relative 0..1
	CenterY float64 // relative 0..1
	RadiusX float64 // relative to width
	RadiusY float64 // relative to height
	Skin    color.NRGBA
	Lesion  color.NRGBA
}

// DefaultLesionConfig returns a centered lesion on a light skin tone.
func DefaultLesionConfig() LesionConfig {
	return LesionConfig{
		Size:    SmallSize,
		CenterX: 0.5,
		CenterY: 0.5,
		RadiusX: 0.12,
		RadiusY: 0.15,
		Skin:    color.NRGBA{224, 182, 160, 255},
		Lesion:  color.NRGBA{92, 54, 38, 255},
	}
}

// GenerateLesionImage renders cfg with a soft lesion border.
func GenerateLesionImage(cfg LesionConfig) *image.NRGBA {
	w, h := cfg.Size.Width, cfg.Size.Height
	img := imaging.New(w, h, cfg.Skin)
	cx, cy := cfg.CenterX*float64(w), cfg.CenterY*float64(h)
	rx, ry := math.Max(cfg.RadiusX*float64(w), 1), math.Max(cfg.RadiusY*float64(h), 1)

	for y := range h {
		for x := range w {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			d := math.Sqrt(dx*dx + dy*dy)
			if d > 1.15 {
				continue
			}
			// Linear falloff between 0.85 and 1.15 of the radius.
			a := math.Min(1, math.Max(0, (1.15-d)/0.3))
			img.SetNRGBA(x, y, blend(cfg.Skin, cfg.Lesion, a))
		}
	}
	return img
}

func blend(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x)*(1-t) + float64(y)*t)) }
	return color.NRGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92)))
	return buf.Bytes()
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// LesionJPEG is shorthand for a JPEG of a default lesion at the given size.
func LesionJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	cfg := DefaultLesionConfig()
	cfg.Size = ImageSize{w, h}
	return EncodeJPEG(t, GenerateLesionImage(cfg))
}
