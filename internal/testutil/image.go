package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// Ink is the glyph color used by the synthetic sheets.
	Ink = color.NRGBA{0, 0, 0, 255}
	// Paper is the opaque background of a scanned sheet.
	Paper = color.NRGBA{255, 255, 255, 255}
	// Clear is the background left behind by the transparency stage.
	Clear = color.NRGBA{255, 255, 255, 0}
)

// SheetConfig describes a synthetic sheet of letter variations: a row of
// solid glyph blocks separated by gaps.
type SheetConfig struct {
	GlyphWidths []int
	Gap         int
	Margin      int
	Height      int
	Background  color.Color
	Foreground  color.Color
}

// DefaultSheetConfig returns three 40px glyphs spaced 30px apart on white paper.
func DefaultSheetConfig() SheetConfig {
	return SheetConfig{
		GlyphWidths: []int{40, 40, 40},
		Gap:         30,
		Margin:      30,
		Height:      80,
		Background:  Paper,
		Foreground:  Ink,
	}
}

// Width returns the total sheet width.
func (c SheetConfig) Width() int {
	w := 2 * c.Margin
	for i, gw := range c.GlyphWidths {
		w += gw
		if i > 0 {
			w += c.Gap
		}
	}
	return w
}

// GlyphRects returns the rectangles occupied by each glyph.
func (c SheetConfig) GlyphRects() []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(c.GlyphWidths))
	x := c.Margin
	for _, gw := range c.GlyphWidths {
		rects = append(rects, image.Rect(x, c.Height/4, x+gw, c.Height*3/4))
		x += gw + c.Gap
	}
	return rects
}

// GenerateSheet renders the sheet described by config.
func GenerateSheet(config SheetConfig) *image.NRGBA {
	img := imaging.New(config.Width(), config.Height, config.Background)
	for _, r := range config.GlyphRects() {
		FillRect(img, r, config.Foreground)
	}
	return img
}

// FillRect paints rect with col.
func FillRect(img draw.Image, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect, &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// CreateTestImage creates a uniformly colored image.
func CreateTestImage(width, height int, background color.Color) *image.NRGBA {
	return imaging.New(width, height, background)
}

// GenerateTextImage draws text with the basic 7x13 face on a white canvas.
func GenerateTextImage(text string, width, height int) *image.NRGBA {
	img := imaging.New(width, height, Paper)
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(Ink),
		Face: face,
	}
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	d.Dot = fixed.P((width-textWidth)/2, (height+textHeight)/2)
	d.DrawString(text)
	return img
}

// SaveImage saves an image to path, encoding by extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from path as NRGBA.
func LoadImage(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return imaging.Clone(img)
}

// CountColors returns the number of distinct NRGBA values in img.
func CountColors(img *image.NRGBA) int {
	seen := make(map[color.NRGBA]struct{})
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			seen[img.NRGBAAt(x, y)] = struct{}{}
		}
	}
	return len(seen)
}
