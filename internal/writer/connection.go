package writer

import (
	"fmt"
	"image"
	"unicode"

	"github.com/MeKo-Tech/handwriter/internal/utils"
)

const inkCutoff = 128

// InvalidLetterInterconnectionError is returned for characters that cannot
// be joined to their neighbours.
type InvalidLetterInterconnectionError struct {
	Char rune
}

func (e *InvalidLetterInterconnectionError) Error() string {
	return fmt.Sprintf("letter %q cannot be interconnected", e.Char)
}

func checkConnectable(r rune) error {
	if !unicode.IsLetter(r) {
		return &InvalidLetterInterconnectionError{Char: r}
	}
	return nil
}

func isInk(img *image.NRGBA, x, y int) bool {
	c := img.NRGBAAt(x, y)
	if c.A < inkCutoff {
		return false
	}
	return int(utils.Luminance(c)) < inkCutoff
}

// firstInk returns the first ink row of column x within rows [y0, y1).
func firstInk(img *image.NRGBA, x, y0, y1 int) (int, bool) {
	for y := y0; y < y1; y++ {
		if isInk(img, x, y) {
			return y, true
		}
	}
	return 0, false
}

// ConnectionStart returns where a connection leaves a letter, relative to
// the letter image: the first ink pixel of its right-most column. found is
// false when the column holds no ink and the middle of the height is used.
func ConnectionStart(r rune, img *image.NRGBA) (p image.Point, found bool, err error) {
	if err := checkConnectable(r); err != nil {
		return image.Point{}, false, err
	}
	b := img.Bounds()
	if b.Empty() {
		return image.Point{}, false, nil
	}
	x := b.Max.X - 1
	if y, ok := firstInk(img, x, b.Min.Y, b.Max.Y); ok {
		return image.Pt(x-b.Min.X, y-b.Min.Y), true, nil
	}
	return image.Pt(x-b.Min.X, b.Dy()/2), false, nil
}

// ConnectionEnd returns where a connection enters a letter, relative to the
// letter image: the first ink pixel in the left-most ink column of the part
// above the baseline.
func ConnectionEnd(r rune, img *image.NRGBA, bbox BoundingBox) (p image.Point, found bool, err error) {
	if err := checkConnectable(r); err != nil {
		return image.Point{}, false, err
	}
	b := img.Bounds()
	above := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+int(bbox.BaselineY*float64(b.Dy()))).Intersect(b)

	for x := above.Min.X; x < above.Max.X; x++ {
		if y, ok := firstInk(img, x, above.Min.Y, above.Max.Y); ok {
			return image.Pt(x-b.Min.X, y-b.Min.Y), true, nil
		}
	}
	return image.Pt(0, b.Dy()/2), false, nil
}
