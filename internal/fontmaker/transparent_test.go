package fontmaker

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransparentize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{100, 100, 100, 255})
	img.SetNRGBA(1, 0, color.NRGBA{200, 200, 200, 255})
	img.SetNRGBA(2, 0, color.NRGBA{127, 127, 127, 255})
	img.SetNRGBA(3, 0, color.NRGBA{255, 0, 0, 255}) // luma 76

	out := Transparentize(img, DefaultInkCutoff)
	assert.Equal(t, color.NRGBA{100, 100, 100, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{200, 200, 200, 0}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{127, 127, 127, 255}, out.NRGBAAt(2, 0))
	assert.Equal(t, color.NRGBA{76, 76, 76, 255}, out.NRGBAAt(3, 0))
}

func TestTransparentize_RoundedLumaAtCutoff(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	// 127.886 rounds to 128, which is background.
	img.SetNRGBA(0, 0, color.NRGBA{128, 128, 127, 255})

	assert.Equal(t, color.NRGBA{128, 128, 128, 0}, Transparentize(img, DefaultInkCutoff).NRGBAAt(0, 0))
}

// TestTransparentize_AlphaRule verifies alpha depends only on luma.
func TestTransparentize_AlphaRule(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("alpha is 255 exactly for dark pixels", prop.ForAll(
		func(r, g, b uint8) bool {
			img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			img.SetNRGBA(0, 0, color.NRGBA{r, g, b, 255})
			px := Transparentize(img, DefaultInkCutoff).NRGBAAt(0, 0)
			if px.R != px.G || px.G != px.B {
				return false
			}
			if px.R < DefaultInkCutoff {
				return px.A == 255
			}
			return px.A == 0
		},
		gen.UInt8(),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestTransparentizeDir(t *testing.T) {
	root := testutil.CreateTempDir(t)
	src := filepath.Join(root, "bnw")
	dst := filepath.Join(root, "transparent")

	sheet := testutil.GenerateSheet(testutil.DefaultSheetConfig())
	testutil.SaveImage(t, sheet, filepath.Join(src, "a.png"))
	testutil.SaveImage(t, sheet, filepath.Join(src, "_b.bmp"))
	testutil.WriteFile(t, filepath.Join(src, "notes.txt"), []byte("ignored"))
	testutil.WriteFile(t, filepath.Join(dst, "stale.png"), []byte("old"))
	require.NoError(t, testutil.EnsureDir(filepath.Join(dst, "old-dir")))

	err := TransparentizeDir(context.Background(), src, dst, []string{"*.png", "*.bmp"}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"_b.png", "a.png"}, testutil.ListNames(t, dst))

	out := testutil.LoadImage(t, filepath.Join(dst, "a.png"))
	assert.Equal(t, testutil.Ink, out.NRGBAAt(35, 30))
	assert.Equal(t, uint8(0), out.NRGBAAt(5, 5).A)
}

func TestTransparentizeDir_DecodeFailure(t *testing.T) {
	root := testutil.CreateTempDir(t)
	src := filepath.Join(root, "bnw")
	testutil.WriteFile(t, filepath.Join(src, "broken.png"), []byte("garbage"))

	err := TransparentizeDir(context.Background(), src, filepath.Join(root, "transparent"), []string{"*.png"}, 128, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestTransparentizeDir_MissingSource(t *testing.T) {
	root := testutil.CreateTempDir(t)
	err := TransparentizeDir(context.Background(), filepath.Join(root, "nope"), filepath.Join(root, "transparent"), nil, 128, nil)
	require.Error(t, err)
	assert.True(t, testutil.DirExists(filepath.Join(root, "transparent")))
}
