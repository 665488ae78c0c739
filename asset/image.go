// Package asset decodes image bytes into GPU-uploadable surfaces.
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"

	// Stdlib codecs.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Extra codecs.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks a malformed or unsupported image payload.
var ErrDecode = errors.New("asset: cannot decode image")

// Decode turns raw image bytes into an RGBA image ready for texture
// upload. All source formats are normalized to RGBA for consistency.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)
	return rgba, nil
}

// Load reads and decodes an image file.
func Load(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return Decode(data)
}

// FlipVertical returns a vertically flipped copy of src. Useful when the
// consuming API's texture origin differs from the image's row order.
func FlipVertical(src *image.RGBA) *image.RGBA {
	bounds := src.Bounds()
	flipped := image.NewRGBA(bounds)
	height := bounds.Dy()

	// Row copies are faster than per-pixel At/Set.
	rowSize := bounds.Dx() * 4
	for y := 0; y < height; y++ {
		srcRow := src.Pix[((height-1)-y)*src.Stride:]
		dstRow := flipped.Pix[y*flipped.Stride:]
		copy(dstRow, srcRow[:rowSize])
	}
	return flipped
}
