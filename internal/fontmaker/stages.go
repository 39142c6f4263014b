package fontmaker

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
)

// Stage announcements, printed before each stage starts.
const (
	AnnounceThreshold      = "Thresholding source images..."
	AnnounceTransparentize = "Making background transparent..."
	AnnounceChop           = "Chopping letter variations..."
	AnnounceTrim           = "Trimming chopped variations..."
)

// StageNames lists every stage in pipeline order.
var StageNames = []string{
	config.StageThreshold,
	config.StageTransparentize,
	config.StageChop,
	config.StageTrim,
}

var announcements = map[string]string{
	config.StageThreshold:      AnnounceThreshold,
	config.StageTransparentize: AnnounceTransparentize,
	config.StageChop:           AnnounceChop,
	config.StageTrim:           AnnounceTrim,
}

// NewThresholder returns the backend selected by cfg.
func NewThresholder(cfg config.ThresholdConfig) (Thresholder, error) {
	switch cfg.Backend {
	case "", config.BackendNative:
		return NativeThresholder{Level: cfg.Level}, nil
	case config.BackendMagick:
		return MagickThresholder{Binary: cfg.Binary, Level: cfg.Level}, nil
	default:
		return nil, fmt.Errorf("unknown threshold backend %q", cfg.Backend)
	}
}

// ChopOptionsFrom converts the chop configuration.
func ChopOptionsFrom(cfg config.ChopConfig) ChopOptions {
	return ChopOptions{
		Window:        cfg.Window,
		MinWidth:      cfg.MinWidth,
		MaxWidth:      cfg.MaxWidth,
		MaxWidthUpper: cfg.MaxWidthUpper,
	}
}

// NewStage builds the named stage. A configured external command replaces
// the built-in implementation and runs in the root directory.
func NewStage(cfg *config.Config, name string, progress pipeline.ProgressFactory) (pipeline.Stage, error) {
	announcement, ok := announcements[name]
	if !ok {
		return pipeline.Stage{}, fmt.Errorf("unknown stage %q", name)
	}
	if command := cfg.Stages.Command(name); command != "" {
		return pipeline.CommandStage(name, announcement, command, cfg.Paths.Root), nil
	}
	if progress == nil {
		progress = pipeline.NoProgress
	}

	paths := cfg.Paths
	var run pipeline.StageFunc
	switch name {
	case config.StageThreshold:
		t, err := NewThresholder(cfg.Threshold)
		if err != nil {
			return pipeline.Stage{}, err
		}
		run = func(ctx context.Context) error {
			return ThresholdDir(ctx, paths.SourceDir(), paths.BlackWhiteDir(), t, progress(name))
		}
	case config.StageTransparentize:
		patterns, cutoff := cfg.Transparency.Patterns, cfg.Transparency.Cutoff
		run = func(ctx context.Context) error {
			return TransparentizeDir(ctx, paths.BlackWhiteDir(), paths.TransparentDir(), patterns, cutoff, progress(name))
		}
	case config.StageChop:
		opts := ChopOptionsFrom(cfg.Chop)
		run = func(ctx context.Context) error {
			return ChopDir(ctx, paths.TransparentDir(), paths.ChoppedDir(), opts, progress(name))
		}
	case config.StageTrim:
		patterns := cfg.Trim.Patterns
		run = func(ctx context.Context) error {
			return TrimDir(ctx, paths.ChoppedDir(), paths.ReadyDir(), patterns, progress(name))
		}
	}
	return pipeline.Stage{Name: name, Announcement: announcement, Run: run}, nil
}

// NewStages builds the font-making stages in order. The threshold preamble
// is included only when withThreshold is set.
func NewStages(cfg *config.Config, withThreshold bool, progress pipeline.ProgressFactory) ([]pipeline.Stage, error) {
	names := StageNames
	if !withThreshold {
		names = names[1:]
	}
	stages := make([]pipeline.Stage, 0, len(names))
	for _, name := range names {
		s, err := NewStage(cfg, name, progress)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}
