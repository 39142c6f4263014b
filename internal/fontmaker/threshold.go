// Package fontmaker turns scanned sheets of letter variations into a
// per-letter image font: threshold, transparentize, chop and trim.
package fontmaker

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/ernyoke/imger/threshold"
)

// DefaultThresholdLevel is the luminance cutoff as a fraction of full white.
const DefaultThresholdLevel = 0.8

// Thresholder converts one image file into a black-and-white file.
type Thresholder interface {
	Threshold(ctx context.Context, src, dst string) error
}

// NativeThresholder thresholds in process.
type NativeThresholder struct {
	// Level is the cutoff in (0,1); pixels brighter than Level*255 become white.
	Level float64
}

// Threshold loads src, thresholds it and writes dst encoded by its
// extension, or in the source's own format when dst has no image extension.
func (n NativeThresholder) Threshold(_ context.Context, src, dst string) error {
	img, meta, err := utils.LoadImage(src)
	if err != nil {
		return err
	}
	out, err := ThresholdImage(img, n.level())
	if err != nil {
		return &utils.ImageProcessingError{Operation: "threshold", Path: src, Err: err}
	}
	return utils.SaveImageAs(out, dst, meta.Format)
}

func (n NativeThresholder) level() float64 {
	if n.Level <= 0 || n.Level >= 1 {
		return DefaultThresholdLevel
	}
	return n.Level
}

// ThresholdImage maps every pixel to white when its luma exceeds level*255,
// and to black otherwise.
func ThresholdImage(img image.Image, level float64) (*image.Gray, error) {
	return threshold.Threshold(utils.ToGray(img), whiteFrom(level), threshold.ThreshBinary)
}

// whiteFrom is the smallest luma strictly above level*255.
func whiteFrom(level float64) uint8 {
	return uint8(min(math.Floor(level*255)+1, 255))
}

// MagickThresholder delegates to ImageMagick: <binary> src -threshold N% dst.
type MagickThresholder struct {
	Binary string
	Level  float64
}

// Threshold runs the external tool for one file.
func (m MagickThresholder) Threshold(ctx context.Context, src, dst string) error {
	binary := m.Binary
	if binary == "" {
		binary = "convert"
	}
	level := m.Level
	if level <= 0 || level >= 1 {
		level = DefaultThresholdLevel
	}
	pct := strconv.FormatFloat(math.Round(level*10000)/100, 'f', -1, 64) + "%"
	if err := pipeline.RunCommand(ctx, "", binary, src, "-threshold", pct, dst); err != nil {
		return &utils.ImageProcessingError{Operation: "threshold", Path: src, Err: err}
	}
	return nil
}

// ThresholdDir thresholds every regular file in srcDir into dstDir under the
// same name. dstDir is created if missing and is not cleared; existing files
// are overwritten. Subdirectories are skipped. The first failing file stops
// the batch.
func ThresholdDir(ctx context.Context, srcDir, dstDir string, t Thresholder, progress pipeline.ProgressCallback) error {
	progress = pipeline.OrNoOp(progress)

	files, err := utils.ListFiles(srcDir, nil)
	if err != nil {
		return fmt.Errorf("list source images: %w", err)
	}
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dstDir, err)
	}

	progress.OnStart(len(files))
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			progress.OnError(i, err)
			return err
		}
		dst := filepath.Join(dstDir, filepath.Base(src))
		slog.Debug("thresholding", "src", src, "dst", dst)
		if err := t.Threshold(ctx, src, dst); err != nil {
			progress.OnError(i+1, err)
			return fmt.Errorf("threshold %s: %w", src, err)
		}
		progress.OnProgress(i+1, len(files))
	}
	progress.OnComplete()
	return nil
}
