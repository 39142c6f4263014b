package fontmaker

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/utils"
)

// Trim crops img to the rows and columns that hold more than one color.
// An image without such rows or columns is returned unchanged.
func Trim(img image.Image) *image.NRGBA {
	src := utils.ToNRGBA(img)
	r, ok := utils.ContentBounds(src)
	if !ok {
		return src
	}
	return utils.CropImageRect(src, r)
}

// TrimDir mirrors every subdirectory of srcDir into dstDir, writing the
// trimmed version of each matching file as <n>.png, n from 1 in variation
// order. dstDir is emptied first.
func TrimDir(ctx context.Context, srcDir, dstDir string, patterns []string, progress pipeline.ProgressCallback) error {
	progress = pipeline.OrNoOp(progress)
	if len(patterns) == 0 {
		patterns = []string{"*.png"}
	}

	if err := utils.PrepareDestinationDirectory(dstDir); err != nil {
		return err
	}
	letters, err := utils.ListDirs(srcDir)
	if err != nil {
		return fmt.Errorf("list chopped letters: %w", err)
	}

	progress.OnStart(len(letters))
	for i, letterDir := range letters {
		if err := ctx.Err(); err != nil {
			progress.OnError(i, err)
			return err
		}
		n, err := trimLetter(ctx, letterDir, filepath.Join(dstDir, filepath.Base(letterDir)), patterns)
		if err != nil {
			progress.OnError(i+1, err)
			return err
		}
		slog.Debug("trimmed letter", "letter", filepath.Base(letterDir), "variations", n)
		progress.OnProgress(i+1, len(letters))
	}
	progress.OnComplete()
	return nil
}

func trimLetter(ctx context.Context, srcDir, dstDir string, patterns []string) (int, error) {
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return 0, fmt.Errorf("create %s: %w", dstDir, err)
	}
	files, err := utils.ListFiles(srcDir, patterns)
	if err != nil {
		return 0, err
	}
	SortVariations(files)

	for n, src := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		img, _, err := utils.LoadImage(src)
		if err != nil {
			return n, err
		}
		dst := filepath.Join(dstDir, strconv.Itoa(n+1)+".png")
		if err := utils.SavePNG(Trim(img), dst); err != nil {
			return n, err
		}
	}
	return len(files), nil
}

// SortVariations orders paths by numeric stem ("2.png" before "10.png"),
// falling back to name order for non-numeric stems, which sort last.
func SortVariations(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, aErr := strconv.Atoi(utils.Stem(paths[i]))
		b, bErr := strconv.Atoi(utils.Stem(paths[j]))
		switch {
		case aErr == nil && bErr == nil:
			if a != b {
				return a < b
			}
			return paths[i] < paths[j]
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return paths[i] < paths[j]
		}
	})
}
