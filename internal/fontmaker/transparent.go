package fontmaker

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/utils"
)

// DefaultInkCutoff is the luma below which a pixel counts as ink.
const DefaultInkCutoff = 128

// Transparentize converts img to grayscale and makes the background
// transparent: each pixel becomes (L, L, L, A) with A = 255 when L < cutoff
// and A = 0 otherwise.
func Transparentize(img image.Image, cutoff int) *image.NRGBA {
	src := utils.ToNRGBA(img)
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := utils.LumaAt(src, x, y)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = l, l, l
			if int(l) < cutoff {
				out.Pix[i+3] = 255
			}
		}
	}
	return out
}

// TransparentizeDir writes <stem>.png into dstDir for every file in srcDir
// matching patterns, in name order. dstDir is emptied first.
func TransparentizeDir(ctx context.Context, srcDir, dstDir string, patterns []string, cutoff int,
	progress pipeline.ProgressCallback) error {
	progress = pipeline.OrNoOp(progress)
	if cutoff <= 0 {
		cutoff = DefaultInkCutoff
	}

	if err := utils.PrepareDestinationDirectory(dstDir); err != nil {
		return err
	}
	files, err := utils.ListFiles(srcDir, patterns)
	if err != nil {
		return fmt.Errorf("list black-and-white images: %w", err)
	}

	progress.OnStart(len(files))
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			progress.OnError(i, err)
			return err
		}
		img, _, err := utils.LoadImage(src)
		if err != nil {
			progress.OnError(i+1, err)
			return err
		}
		dst := filepath.Join(dstDir, utils.Stem(src)+".png")
		slog.Debug("transparentizing", "src", src, "dst", dst)
		if err := utils.SavePNG(Transparentize(img, cutoff), dst); err != nil {
			progress.OnError(i+1, err)
			return err
		}
		progress.OnProgress(i+1, len(files))
	}
	progress.OnComplete()
	return nil
}
