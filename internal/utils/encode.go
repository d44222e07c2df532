package utils

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an output encoding for crop artifacts.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// DefaultQuality is the JPEG/WebP quality used for crop artifacts.
const DefaultQuality = 95

// ParseFormat validates a format name. "jpg" is accepted as an alias.
func ParseFormat(s string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("invalid image format: %s (must be one of: jpeg, png, webp)", s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// EncodeImage writes img to w. Quality outside 1..100 falls back to
// DefaultQuality; it is ignored for PNG.
func EncodeImage(w io.Writer, img image.Image, format Format, quality int) error {
	if img == nil {
		return &ImageProcessingError{Operation: "encode", Err: fmt.Errorf("input image is nil")}
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatJPEG, "":
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// SaveImage encodes img into path. The file is written under a temporary
// name and renamed so readers never observe a partial artifact.
func SaveImage(path string, img image.Image, format Format, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".crop-*")
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := EncodeImage(tmp, img, format, quality); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
