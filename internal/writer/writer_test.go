package writer

import (
	"bytes"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/pdf"
	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	ready, boxesPath := testutil.WriteSimpleFont(t, t.TempDir())
	boxes, err := LoadBoundingBoxes(boxesPath)
	require.NoError(t, err)
	return New(ready, boxes)
}

func TestWriter_Write(t *testing.T) {
	w := newTestWriter(t)

	img, err := w.Write("bb", 7, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	// Uppercase is taller and sets the line's baseline first.
	img, err = w.Write("Ab", 7, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 44, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestWriter_WriteErrors(t *testing.T) {
	w := newTestWriter(t)

	_, err := w.Write("   ", 1, DefaultOptions())
	require.ErrorIs(t, err, ErrNothingToDraw)

	_, err = w.Write("abc", 1, DefaultOptions())
	require.ErrorIs(t, err, ErrNoVariations)

	_, err = w.Write("a#", 1, DefaultOptions())
	var uce *UnsupportedCharError
	require.ErrorAs(t, err, &uce)
}

func TestWriter_SameSeedSameImage(t *testing.T) {
	w := newTestWriter(t)
	first, err := w.Write("aaaa aaaa", 99, DefaultOptions())
	require.NoError(t, err)
	second, err := w.Write("aaaa aaaa", 99, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first.Bounds(), second.Bounds())
	assert.Equal(t, first.Pix, second.Pix)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	img := testutil.SolidGlyph(10, 10)

	pngPath := filepath.Join(dir, "out.png")
	require.NoError(t, Save(img, pngPath, FormatPNG))
	assert.Equal(t, img.Bounds(), testutil.LoadImage(t, pngPath).Bounds())

	pdfPath := filepath.Join(dir, "out.pdf")
	require.NoError(t, Save(img, pdfPath, FormatPDF))
	n, err := pdf.PageCount(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Error(t, Save(img, filepath.Join(dir, "out.gif"), "gif"))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testutil.SolidGlyph(3, 2)))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), decoded.Bounds())
}
