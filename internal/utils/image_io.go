package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// The format is sniffed from the content, not the extension.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}

	f, err := os.Open(path) //nolint:gosec // G304: image paths come from configured directories
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Path: path, Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Path: path, Err: err}
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// SaveImage encodes img to path, choosing the encoder from the file extension.
// An existing file is overwritten.
func SaveImage(img image.Image, path string) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: errors.New("input image is nil")}
	}
	if err := imaging.Save(img, path); err != nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: err}
	}
	return nil
}

// SaveImageAs encodes img to path like SaveImage. When the extension names
// no known format, the image is encoded as format instead, which is the
// decoder name LoadImage reports ("png", "jpeg", "bmp", ...).
func SaveImageAs(img image.Image, path, format string) error {
	if _, err := imaging.FormatFromFilename(path); err == nil {
		return SaveImage(img, path)
	}
	if img == nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: errors.New("input image is nil")}
	}
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: fmt.Errorf("format %q: %w", format, err)}
	}
	return encodeFile(img, path, f)
}

// SavePNG writes img to path as PNG regardless of the extension.
func SavePNG(img image.Image, path string) error {
	return encodeFile(img, path, imaging.PNG)
}

func encodeFile(img image.Image, path string, format imaging.Format) error {
	f, err := os.Create(path) //nolint:gosec // G304: output paths come from configured directories
	if err != nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: err}
	}
	if err := imaging.Encode(f, img, format); err != nil {
		_ = f.Close()
		return &ImageProcessingError{Operation: "encode", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: fmt.Errorf("close: %w", err)}
	}
	return nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
