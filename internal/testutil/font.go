package testutil

import (
	"fmt"
	"image"
	"path/filepath"
	"testing"
)

// DefaultBoundingBoxes is a bounding box file covering the letters used by
// WriteSimpleFont.
const DefaultBoundingBoxes = `{
  "a": [0, 1, 0.8],
  "b": [0, 1, 0.8],
  "A": {"start_x": 0, "end_x": 1, "baseline_y": 0.8},
  ".": [0, 1, 1.0]
}`

// StrokeGlyph returns a transparent w×h glyph with a horizontal ink stroke
// across rows [y0, y1).
func StrokeGlyph(w, h, y0, y1 int) *image.NRGBA {
	img := CreateTestImage(w, h, Clear)
	FillRect(img, image.Rect(0, y0, w, y1), Ink)
	return img
}

// SolidGlyph returns a w×h glyph made entirely of ink.
func SolidGlyph(w, h int) *image.NRGBA {
	return CreateTestImage(w, h, Ink)
}

// WriteFont writes glyph variations as <dir>/<key>/<n>.png.
func WriteFont(t *testing.T, dir string, glyphs map[string][]image.Image) {
	t.Helper()
	for key, variations := range glyphs {
		for i, img := range variations {
			SaveImage(t, img, filepath.Join(dir, key, fmt.Sprintf("%d.png", i+1)))
		}
	}
}

// WriteSimpleFont writes a small font with solid 20×30 glyphs for a, b, A and
// a 6×6 dot, and the matching bounding box file. It returns the ready
// directory and the bounding box path.
func WriteSimpleFont(t *testing.T, root string) (readyDir, boxesPath string) {
	t.Helper()
	readyDir = filepath.Join(root, "ready")
	WriteFont(t, readyDir, map[string][]image.Image{
		"a":   {SolidGlyph(20, 30), SolidGlyph(22, 30)},
		"b":   {SolidGlyph(20, 30)},
		"_a":  {SolidGlyph(24, 40)},
		"dot": {SolidGlyph(6, 6)},
	})
	boxesPath = filepath.Join(root, "bounding-boxes.json")
	WriteFile(t, boxesPath, []byte(DefaultBoundingBoxes))
	return readyDir, boxesPath
}
