package fontmaker

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/utils"
)

// UppercasePrefix marks series images of capital letters (e.g. "_a.png").
const UppercasePrefix = "_"

// ChopOptions controls letter span detection.
type ChopOptions struct {
	// Window is the width of the scanning strip.
	Window int
	// MinWidth and MaxWidth bound a kept span exclusively.
	MinWidth int
	MaxWidth int
	// MaxWidthUpper replaces MaxWidth for uppercase series.
	MaxWidthUpper int
}

// DefaultChopOptions returns the standard span limits.
func DefaultChopOptions() ChopOptions {
	return ChopOptions{Window: 10, MinWidth: 20, MaxWidth: 120, MaxWidthUpper: 200}
}

// MaxWidthFor returns the upper span limit for the series named stem.
func (o ChopOptions) MaxWidthFor(stem string) int {
	if strings.HasPrefix(stem, UppercasePrefix) {
		return o.MaxWidthUpper
	}
	return o.MaxWidth
}

func (o ChopOptions) keep(width, maxWidth int) bool {
	return o.MinWidth < width && width < maxWidth
}

// FindLetterSpans scans img left to right with a full-height strip of
// o.Window columns, clipped to the image. A strip holding more than one
// color is content. A span starts where content begins and ends where the
// strip turns uniform again; spans wider than o.MinWidth and narrower than
// maxWidth are returned, full height, in scan order.
func FindLetterSpans(img *image.NRGBA, o ChopOptions, maxWidth int) []image.Rectangle {
	b := img.Bounds()
	var spans []image.Rectangle
	ongoing := false
	start := 0

	// x == b.Max.X yields an empty strip, which closes a letter touching the right edge.
	for x := b.Min.X; x <= b.Max.X; x++ {
		content := utils.HasMultipleColors(img, image.Rect(x, b.Min.Y, x+o.Window, b.Max.Y))
		if !ongoing && content {
			ongoing = true
			start = x
		}
		if ongoing && !content {
			ongoing = false
			if o.keep(x-start, maxWidth) {
				spans = append(spans, image.Rect(start, b.Min.Y, x, b.Max.Y))
			}
		}
	}
	return spans
}

// ChopDir splits every *.png series in srcDir into dstDir/<stem>/<n>.png,
// numbering kept spans from 1. dstDir is emptied first.
func ChopDir(ctx context.Context, srcDir, dstDir string, o ChopOptions, progress pipeline.ProgressCallback) error {
	progress = pipeline.OrNoOp(progress)

	if err := utils.PrepareDestinationDirectory(dstDir); err != nil {
		return err
	}
	files, err := utils.ListFiles(srcDir, []string{"*.png"})
	if err != nil {
		return fmt.Errorf("list transparent images: %w", err)
	}

	progress.OnStart(len(files))
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			progress.OnError(i, err)
			return err
		}
		n, err := chopFile(src, dstDir, o)
		if err != nil {
			progress.OnError(i+1, err)
			return err
		}
		slog.Debug("chopped series", "src", src, "variations", n)
		progress.OnProgress(i+1, len(files))
	}
	progress.OnComplete()
	return nil
}

func chopFile(src, dstDir string, o ChopOptions) (int, error) {
	stem := utils.Stem(src)
	letterDir := filepath.Join(dstDir, stem)
	if err := os.MkdirAll(letterDir, 0o750); err != nil {
		return 0, fmt.Errorf("create %s: %w", letterDir, err)
	}

	img, _, err := utils.LoadImage(src)
	if err != nil {
		return 0, err
	}
	series := utils.ToNRGBA(img)

	spans := FindLetterSpans(series, o, o.MaxWidthFor(stem))
	for n, span := range spans {
		dst := filepath.Join(letterDir, strconv.Itoa(n+1)+".png")
		if err := utils.SavePNG(utils.CropImageRect(series, span), dst); err != nil {
			return n, err
		}
	}
	return len(spans), nil
}
