package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, img image.Image, f Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, img, f, 90))
	return buf.Bytes()
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.JPG"))
	assert.True(t, IsSupportedImage("dir/b.webp"))
	assert.True(t, IsSupportedImage("c.tiff"))
	assert.False(t, IsSupportedImage("d.gif"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestDecodeImage_Formats(t *testing.T) {
	src := gradient(40, 30)
	for _, f := range []Format{FormatJPEG, FormatPNG, FormatWebP} {
		t.Run(string(f), func(t *testing.T) {
			img, meta, err := DecodeImage(encoded(t, src, f))
			require.NoError(t, err)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, 30, img.Bounds().Dy())
			assert.Equal(t, 40, meta.Width)
			assert.InDelta(t, 40.0/30.0, meta.AspectRatio, 1e-9)
			assert.NotEmpty(t, meta.Format)
		})
	}
}

func TestDecodeImage_PNGIsLossless(t *testing.T) {
	src := gradient(8, 8)
	img, meta, err := DecodeImage(encoded(t, src, FormatPNG))
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, src.Pix, imaging.Clone(img).Pix)
}

func TestDecodeImage_Invalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"truncated jpeg": func() []byte {
			b := encoded(t, gradient(64, 64), FormatJPEG)
			return b[:20]
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeImage(data)
			var ipe *ImageProcessingError
			require.True(t, errors.As(err, &ipe))
			assert.Equal(t, "decode", ipe.Operation)
		})
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesion.png")
	require.NoError(t, SaveImage(path, gradient(20, 10), FormatPNG, 0))

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, path, meta.Path)
	assert.Equal(t, 20, img.Bounds().Dx())

	_, _, err = LoadImage(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
	_, _, err = LoadImage(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
	_, _, err = LoadImage("")
	assert.Error(t, err)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	for _, p := range []string{"b.jpg", "a.png", "skip.txt", filepath.Join("nested", "c.webp")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, p), []byte("x"), 0o600))
	}

	flat, err := ListImages([]string{dir}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.jpg")}, flat)

	all, err := ListImages([]string{dir}, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = ListImages([]string{filepath.Join(dir, "nope")}, false)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ext  string
		ct   string
	}{
		{"", FormatJPEG, ".jpg", "image/jpeg"},
		{"JPG", FormatJPEG, ".jpg", "image/jpeg"},
		{"png", FormatPNG, ".png", "image/png"},
		{"webp", FormatWebP, ".webp", "image/webp"},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, f)
		assert.Equal(t, tt.ext, f.Extension())
		assert.Equal(t, tt.ct, f.ContentType())
	}
	_, err := ParseFormat("gif")
	assert.Error(t, err)
}

func TestEncodeImage_QualityAffectsSize(t *testing.T) {
	img := gradient(128, 128)
	var lo, hi bytes.Buffer
	require.NoError(t, EncodeImage(&lo, img, FormatJPEG, 10))
	require.NoError(t, EncodeImage(&hi, img, FormatJPEG, 95))
	assert.Less(t, lo.Len(), hi.Len())

	assert.Error(t, EncodeImage(&lo, nil, FormatJPEG, 95))
	assert.Error(t, EncodeImage(&lo, img, Format("gif"), 95))
}

func TestSaveImage_WritesNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "crop.jpg")
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	img.Set(0, 0, color.White)

	require.NoError(t, SaveImage(path, img, FormatJPEG, 95))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "crop.jpg", entries[0].Name())
}
