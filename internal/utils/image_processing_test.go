package utils

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/dermascan/internal/mempool"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func TestResizeSquare_Stretches(t *testing.T) {
	out, err := ResizeSquare(gradient(300, 120), 224, imaging.Linear)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 224, 224), out.Bounds())
}

func TestResizeSquare_IdentityAtTargetSize(t *testing.T) {
	src := gradient(32, 32)
	out, err := ResizeSquare(src, 32, imaging.Linear)
	require.NoError(t, err)

	assert.Equal(t, src.Pix, out.Pix)
	// A copy, not the same buffer.
	out.Pix[0] = ^out.Pix[0]
	assert.NotEqual(t, src.Pix[0], out.Pix[0])
}

func TestResizeSquare_Errors(t *testing.T) {
	_, err := ResizeSquare(nil, 224, imaging.Linear)
	var ipe *ImageProcessingError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "resize", ipe.Operation)

	_, err = ResizeSquare(gradient(4, 4), 0, imaging.Linear)
	assert.Error(t, err)
}

func TestNormalizeNHWC_Layout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{51, 102, 153, 255})

	data, w, h, err := NormalizeNHWC(img)
	require.NoError(t, err)
	defer mempool.PutFloat32(data)

	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
	want := []float32{
		1, 0, 0, 0, 1, 0,
		0, 0, 1, 0.2, 0.4, 0.6,
	}
	require.Len(t, data, len(want))
	for i := range want {
		assert.InDelta(t, want[i], data[i], 1e-6, "index %d", i)
	}
}

func TestNormalizeNHWC_NonZeroOrigin(t *testing.T) {
	base := gradient(10, 10)
	sub := base.SubImage(image.Rect(3, 4, 5, 6))

	data, w, h, err := NormalizeNHWC(sub)
	require.NoError(t, err)
	defer mempool.PutFloat32(data)

	require.Equal(t, 2, w)
	require.Equal(t, 2, h)
	c := base.NRGBAAt(3, 4)
	assert.InDelta(t, float32(c.R)/255, data[0], 1e-6)
	assert.InDelta(t, float32(c.G)/255, data[1], 1e-6)
	assert.InDelta(t, float32(c.B)/255, data[2], 1e-6)
}

func TestNormalizeNHWC_Nil(t *testing.T) {
	_, _, _, err := NormalizeNHWC(nil)
	assert.Error(t, err)
}
