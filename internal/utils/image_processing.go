package utils

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image processing error in %s (%s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// ToNRGBA returns a zero-origin NRGBA copy of img.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Luminance converts a color to 8-bit luma using the ITU-R 601-2 weights.
// Alpha is ignored.
func Luminance(c color.Color) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return luma(n.R, n.G, n.B)
}

// luma rounds to the nearest integer, as PIL's "L" conversion does.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*299 + uint32(g)*587 + uint32(b)*114 + 500) / 1000)
}

// LumaAt returns the luma of the NRGBA pixel at (x, y).
func LumaAt(img *image.NRGBA, x, y int) uint8 {
	i := img.PixOffset(x, y)
	return luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
}

// ToGray returns a zero-origin grayscale copy of img using the same luma as
// LumaAt.
func ToGray(img image.Image) *image.Gray {
	src := ToNRGBA(img)
	b := src.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Pix[out.PixOffset(x, y)] = LumaAt(src, x, y)
		}
	}
	return out
}

// HasMultipleColors reports whether rect (clipped to the image) holds more
// than one distinct RGBA value. An empty rectangle has no colors.
func HasMultipleColors(img *image.NRGBA, rect image.Rectangle) bool {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return false
	}
	first := img.PixOffset(rect.Min.X, rect.Min.Y)
	r, g, b, a := img.Pix[first], img.Pix[first+1], img.Pix[first+2], img.Pix[first+3]
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		i := img.PixOffset(rect.Min.X, y)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.Pix[i] != r || img.Pix[i+1] != g || img.Pix[i+2] != b || img.Pix[i+3] != a {
				return true
			}
			i += 4
		}
	}
	return false
}

// ContentBounds returns the smallest rectangle covering every column and
// every row that holds more than one distinct color. The second return value
// is false when no such row or column exists.
func ContentBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	column := func(x int) bool { return HasMultipleColors(img, image.Rect(x, b.Min.Y, x+1, b.Max.Y)) }
	row := func(y int) bool { return HasMultipleColors(img, image.Rect(b.Min.X, y, b.Max.X, y+1)) }

	x0 := b.Min.X
	for x0 < b.Max.X && !column(x0) {
		x0++
	}
	if x0 == b.Max.X {
		return image.Rectangle{}, false
	}
	x1 := b.Max.X
	for !column(x1 - 1) {
		x1--
	}

	y0 := b.Min.Y
	for y0 < b.Max.Y && !row(y0) {
		y0++
	}
	if y0 == b.Max.Y {
		return image.Rectangle{}, false
	}
	y1 := b.Max.Y
	for !row(y1 - 1) {
		y1--
	}
	return image.Rect(x0, y0, x1, y1), true
}

// AlphaBounds returns the bounding box of all pixels with non-zero alpha.
// The second return value is false for a fully transparent image.
func AlphaBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[i+3] != 0 {
				found = true
				minX = min(minX, x)
				minY = min(minY, y)
				maxX = max(maxX, x+1)
				maxY = max(maxY, y+1)
			}
			i += 4
		}
	}
	if !found {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX, maxY), true
}

// CropImageRect crops an image to the rectangle, intersected with its bounds.
func CropImageRect(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect.Intersect(img.Bounds()))
}
