package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/dermascan/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ResizeSquare stretches img to n x n without preserving aspect ratio.
// An image that is already n x n is copied unchanged.
func ResizeSquare(img image.Image, n int, filter imaging.ResampleFilter) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if n <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid target size %d", n)}
	}
	b := img.Bounds()
	if b.Dx() == n && b.Dy() == n {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, n, n, filter), nil
}

// NormalizeNHWC converts img into a [1, H, W, 3] float32 tensor with
// channels scaled to [0, 1]. Alpha is dropped. The buffer comes from the
// mempool and must be returned with mempool.PutFloat32.
func NormalizeNHWC(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = imaging.Clone(img)
	}
	width, height := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	tensor := mempool.GetFloat32(height * width * 3)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		for x := range width {
			dst := (y*width + x) * 3
			src := x * 4
			tensor[dst] = float32(row[src]) / 255.0
			tensor[dst+1] = float32(row[src+1]) / 255.0
			tensor[dst+2] = float32(row[src+2]) / 255.0
		}
	}
	return tensor, width, height, nil
}
