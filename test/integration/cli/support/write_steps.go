package support

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/handwriter/internal/pdf"
	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/cucumber/godog"
)

// aHandwritingFont writes a small ready font and its bounding boxes into the
// workspace: solid glyphs for a (two variations), b, A and the dot.
func (testCtx *TestContext) aHandwritingFont() error {
	glyphs := map[string][]image.Image{
		"a":   {testutil.SolidGlyph(20, 30), testutil.SolidGlyph(22, 30)},
		"b":   {testutil.SolidGlyph(20, 30)},
		"_a":  {testutil.SolidGlyph(24, 40)},
		"dot": {testutil.SolidGlyph(6, 6)},
	}
	for key, variations := range glyphs {
		for i, img := range variations {
			path := testCtx.WorkspacePath(filepath.Join("ready", key, fmt.Sprintf("%d.png", i+1)))
			if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
				return err
			}
			if err := utils.SavePNG(img, path); err != nil {
				return err
			}
		}
	}
	return os.WriteFile(testCtx.WorkspacePath("bounding-boxes.json"), []byte(testutil.DefaultBoundingBoxes), 0o600)
}

// theImageShouldBe checks the pixel size of a PNG.
func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	img, _, err := utils.LoadImage(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		return fmt.Errorf("%s is %dx%d, want %dx%d", name, img.Bounds().Dx(), img.Bounds().Dy(), width, height)
	}
	return nil
}

// thePDFShouldHavePages checks the page count of a PDF.
func (testCtx *TestContext) thePDFShouldHavePages(name string, pages int) error {
	n, err := pdf.PageCount(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	if n != pages {
		return fmt.Errorf("%s has %d pages, want %d", name, n, pages)
	}
	return nil
}

// theFilesShouldBeIdentical compares two files byte for byte.
func (testCtx *TestContext) theFilesShouldBeIdentical(a, b string) error {
	first, err := os.ReadFile(testCtx.resolvePath(a))
	if err != nil {
		return err
	}
	second, err := os.ReadFile(testCtx.resolvePath(b))
	if err != nil {
		return err
	}
	if !bytes.Equal(first, second) {
		return fmt.Errorf("%s and %s differ", a, b)
	}
	return nil
}

// RegisterWriteSteps registers the text rendering steps.
func (testCtx *TestContext) RegisterWriteSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a handwriting font in the workspace$`, testCtx.aHandwritingFont)
	sc.Step(`^the image "([^"]*)" should be (\d+) by (\d+) pixels$`, testCtx.theImageShouldBe)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
	sc.Step(`^the files "([^"]*)" and "([^"]*)" should be identical$`, testCtx.theFilesShouldBeIdentical)
}
