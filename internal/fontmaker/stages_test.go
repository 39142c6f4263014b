package fontmaker

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Paths.Root = root
	return &cfg
}

func TestNewStages(t *testing.T) {
	cfg := testConfig(t.TempDir())

	stages, err := NewStages(cfg, false, nil)
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, config.StageTransparentize, stages[0].Name)
	assert.Equal(t, AnnounceTransparentize, stages[0].Announcement)
	assert.Equal(t, AnnounceChop, stages[1].Announcement)
	assert.Equal(t, AnnounceTrim, stages[2].Announcement)

	stages, err = NewStages(cfg, true, nil)
	require.NoError(t, err)
	require.Len(t, stages, 4)
	assert.Equal(t, config.StageThreshold, stages[0].Name)
	assert.Equal(t, AnnounceThreshold, stages[0].Announcement)
}

func TestNewStage_Errors(t *testing.T) {
	cfg := testConfig(t.TempDir())
	_, err := NewStage(cfg, "polish", nil)
	require.Error(t, err)

	cfg.Threshold.Backend = "gimp"
	_, err = NewStage(cfg, config.StageThreshold, nil)
	require.Error(t, err)
	_, err = NewStages(cfg, true, nil)
	require.Error(t, err)
}

func TestNewThresholder(t *testing.T) {
	th, err := NewThresholder(config.ThresholdConfig{Backend: config.BackendNative, Level: 0.7})
	require.NoError(t, err)
	assert.Equal(t, NativeThresholder{Level: 0.7}, th)

	th, err = NewThresholder(config.ThresholdConfig{Backend: config.BackendMagick, Binary: "magick", Level: 0.8})
	require.NoError(t, err)
	assert.Equal(t, MagickThresholder{Binary: "magick", Level: 0.8}, th)
}

func TestNewStage_ExternalCommand(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	cfg.Stages.Chop.Command = "touch chopped-by-script"

	stage, err := NewStage(cfg, config.StageChop, nil)
	require.NoError(t, err)
	assert.Equal(t, AnnounceChop, stage.Announcement)
	require.NoError(t, stage.Run(context.Background()))
	assert.True(t, testutil.FileExists(filepath.Join(root, "chopped-by-script")))
}

// TestFontmakerEndToEnd runs all four stages on a synthetic scan.
func TestFontmakerEndToEnd(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	sheet := testutil.GenerateSheet(testutil.DefaultSheetConfig())
	testutil.SaveImage(t, sheet, filepath.Join(root, "src", "a.png"))
	upper := testutil.DefaultSheetConfig()
	upper.GlyphWidths = []int{150, 40}
	testutil.SaveImage(t, testutil.GenerateSheet(upper), filepath.Join(root, "src", "_a.png"))

	stages, err := NewStages(cfg, true, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	runner, err := pipeline.NewBuilder().WithOutput(&out).WithStages(stages...).Build()
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Succeeded)
	assert.Equal(t, AnnounceThreshold+"\n"+AnnounceTransparentize+"\n"+AnnounceChop+"\n"+AnnounceTrim+"\n"+pipeline.DoneMessage+"\n", out.String())

	ready := filepath.Join(root, "ready")
	assert.Equal(t, []string{"_a", "a"}, testutil.ListNames(t, ready))
	assert.Equal(t, []string{"1.png", "2.png", "3.png"}, testutil.ListNames(t, filepath.Join(ready, "a")))
	assert.Equal(t, []string{"1.png", "2.png"}, testutil.ListNames(t, filepath.Join(ready, "_a")))

	glyph := testutil.LoadImage(t, filepath.Join(ready, "a", "2.png"))
	assert.Equal(t, image.Rect(0, 0, 40, 40), glyph.Bounds())
	assert.Equal(t, testutil.Ink, glyph.NRGBAAt(20, 20))
	wide := testutil.LoadImage(t, filepath.Join(ready, "_a", "1.png"))
	assert.Equal(t, 150, wide.Bounds().Dx())
}

func TestFontmakerStopsAtFailingStage(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	testutil.WriteFile(t, filepath.Join(root, "bnw", "a.png"), []byte("garbage"))

	stages, err := NewStages(cfg, false, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	runner, err := pipeline.NewBuilder().WithOutput(&out).WithStages(stages...).Build()
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	var se *pipeline.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, config.StageTransparentize, se.Stage)
	assert.Equal(t, AnnounceTransparentize+"\n", out.String())
	assert.False(t, testutil.DirExists(filepath.Join(root, "chopped")), "chop never started")
}

func TestNewStage_ProgressFactory(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	require.NoError(t, testutil.EnsureDir(filepath.Join(root, "bnw")))

	var seen []string
	factory := func(name string) pipeline.ProgressCallback {
		seen = append(seen, name)
		return pipeline.NoOpProgressCallback{}
	}
	stage, err := NewStage(cfg, config.StageTransparentize, factory)
	require.NoError(t, err)
	require.NoError(t, stage.Run(context.Background()))
	assert.Equal(t, []string{config.StageTransparentize}, seen)
}
