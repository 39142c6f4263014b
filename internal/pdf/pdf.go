// Package pdf writes rendered handwriting into PDF documents and reads it back.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ExportImages writes one page per image to outFile, replacing any existing file.
func ExportImages(outFile string, imgs ...image.Image) error {
	if len(imgs) == 0 {
		return errors.New("no images to export")
	}

	tempDir, err := os.MkdirTemp("", "pdf-export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	files := make([]string, len(imgs))
	for i, img := range imgs {
		files[i] = filepath.Join(tempDir, fmt.Sprintf("page_%d.png", i+1))
		if err := utils.SavePNG(img, files[i]); err != nil {
			return err
		}
	}

	if err := utils.EnsureDir(filepath.Dir(outFile)); err != nil {
		return err
	}
	// pdfcpu appends to an existing file.
	if err := os.Remove(outFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", outFile, err)
	}

	if err := api.ImportImagesFile(files, outFile, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// PageCount returns the number of pages of a PDF file.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return n, nil
}

// ExtractImages extracts all images from a PDF file grouped by page number.
func ExtractImages(filename string) (map[int][]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "pdf-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(filename, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// collectExtractedImages groups the images in dir by page number.
// It expects filenames in the pdfcpu format: <name>_<page>_<obj>.<ext> or page_<num>_....
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	files, err := utils.ListFiles(dir, nil)
	if err != nil {
		return nil, err
	}

	result := make(map[int][]image.Image)
	for _, path := range files {
		pageNum, err := parsePageFromFilename(filepath.Base(path))
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(path)
		if err != nil {
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return 0, errors.New("invalid filename format")
	}
	if parts[0] == "page" {
		return strconv.Atoi(parts[1])
	}
	// pdfcpu: <basename>_<page>_<objnr>
	pageNum, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}
