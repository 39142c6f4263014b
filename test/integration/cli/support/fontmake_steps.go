package support

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/cucumber/godog"
)

// aSeriesSheetIn writes a synthetic sheet of n letter variations as <dir>/<name>.png.
func (testCtx *TestContext) aSeriesSheetIn(name string, n int, dir string) error {
	cfg := testutil.DefaultSheetConfig()
	cfg.GlyphWidths = make([]int, n)
	for i := range cfg.GlyphWidths {
		cfg.GlyphWidths[i] = 40
	}
	path := testCtx.WorkspacePath(filepath.Join(dir, name+".png"))
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return utils.SavePNG(testutil.GenerateSheet(cfg), path)
}

// theLetterShouldHaveVariations counts the PNG variations of a letter.
func (testCtx *TestContext) theLetterShouldHaveVariations(letter string, n int, dir string) error {
	files, err := utils.ListFiles(testCtx.WorkspacePath(filepath.Join(dir, letter)), []string{"*.png"})
	if err != nil {
		return err
	}
	if len(files) != n {
		return fmt.Errorf("expected %d variations of %s in %s, found %d", n, letter, dir, len(files))
	}
	for i := range files {
		want := testCtx.WorkspacePath(filepath.Join(dir, letter, fmt.Sprintf("%d.png", i+1)))
		if err := testCtx.theFileShouldExist(want); err != nil {
			return err
		}
	}
	return nil
}

// everyVariationShouldBeTrimmed checks that each variation has ink on all four edges.
func (testCtx *TestContext) everyVariationShouldBeTrimmed(dir string) error {
	files, err := utils.ListFiles(testCtx.WorkspacePath(dir), []string{"*.png"})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no variations in %s", dir)
	}
	for _, f := range files {
		img, _, err := utils.LoadImage(f)
		if err != nil {
			return err
		}
		nrgba := utils.ToNRGBA(img)
		bounds, ok := utils.AlphaBounds(nrgba)
		if !ok {
			return fmt.Errorf("%s is fully transparent", f)
		}
		if bounds != nrgba.Bounds() || bounds.Min != (image.Point{}) {
			return fmt.Errorf("%s is not trimmed: ink bounds %v, image bounds %v", f, bounds, nrgba.Bounds())
		}
	}
	return nil
}

// RegisterFontmakeSteps registers the pipeline workspace steps.
func (testCtx *TestContext) RegisterFontmakeSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a series sheet "([^"]*)" with (\d+) letters in "([^"]*)"$`, testCtx.aSeriesSheetIn)
	sc.Step(`^the letter "([^"]*)" should have (\d+) variations in "([^"]*)"$`, testCtx.theLetterShouldHaveVariations)
	sc.Step(`^every variation in "([^"]*)" should be trimmed$`, testCtx.everyVariationShouldBeTrimmed)
}
