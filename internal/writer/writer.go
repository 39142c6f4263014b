package writer

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/MeKo-Tech/handwriter/internal/pdf"
	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/disintegration/imaging"
)

// Output formats.
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// Writer renders text with the font in a ready directory.
type Writer struct {
	ReadyDir string
	Boxes    BoundingBoxes
}

// New returns a writer for the given font directory and bounding boxes.
func New(readyDir string, boxes BoundingBoxes) *Writer {
	return &Writer{ReadyDir: readyDir, Boxes: boxes}
}

// Write normalizes text, loads the letters it uses and renders it.
// A zero seed picks variations at random.
func (w *Writer) Write(text string, seed int64, opts Options) (*image.NRGBA, error) {
	text = NormalizeText(text)
	if len(Letters(text)) == 0 {
		return nil, ErrNothingToDraw
	}
	font, err := LoadFont(w.ReadyDir, w.Boxes, text, seed)
	if err != nil {
		return nil, err
	}
	return Render(font, text, opts)
}

// Save writes img to path as PNG or as a one page PDF.
func Save(img image.Image, path, format string) error {
	switch strings.ToLower(format) {
	case "", FormatPNG:
		return utils.SavePNG(img, path)
	case FormatPDF:
		return pdf.ExportImages(path, img)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Encode writes img to out as PNG.
func Encode(out io.Writer, img image.Image) error {
	return imaging.Encode(out, img, imaging.PNG)
}
