package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Stage names, in pipeline order.
const (
	StageThreshold      = "threshold"
	StageTransparentize = "transparentize"
	StageChop           = "chop"
	StageTrim           = "trim"
)

// Threshold backends.
const (
	BackendNative = "native"
	BackendMagick = "magick"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Paths: PathsConfig{
			Root:          ".",
			Source:        "src",
			BlackWhite:    "bnw",
			Transparent:   "transparent",
			Chopped:       "chopped",
			Ready:         "ready",
			BoundingBoxes: "bounding-boxes.json",
		},
		Threshold: ThresholdConfig{
			Backend: BackendNative,
			Binary:  "convert",
			Level:   0.8,
		},
		Transparency: TransparencyConfig{
			Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.bmp"},
			Cutoff:   128,
		},
		Chop: ChopConfig{
			Window:        10,
			MinWidth:      20,
			MaxWidth:      120,
			MaxWidthUpper: 200,
		},
		Trim: TrimConfig{
			Patterns: []string{"*.png"},
		},
		Pipeline: PipelineConfig{
			Threshold: false,
			Progress:  "none",
			LogEvery:  10,
		},
		Writer: WriterConfig{
			Output:              "out.png",
			Format:              "png",
			StartX:              100,
			StartY:              100,
			SpaceWidth:          60,
			CanvasMargin:        200,
			ConnectionThickness: 2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxTextKB:       64,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validBackends := []string{BackendNative, BackendMagick}
	if !contains(validBackends, c.Threshold.Backend) {
		return fmt.Errorf("invalid threshold backend: %s (must be one of: %s)", c.Threshold.Backend, strings.Join(validBackends, ", "))
	}
	if c.Threshold.Backend == BackendMagick && c.Threshold.Binary == "" {
		return fmt.Errorf("threshold backend %s needs threshold.binary", BackendMagick)
	}
	if c.Threshold.Level <= 0 || c.Threshold.Level >= 1 {
		return fmt.Errorf("invalid threshold level: %.2f (must be between 0 and 1, exclusive)", c.Threshold.Level)
	}
	if c.Transparency.Cutoff < 1 || c.Transparency.Cutoff > 255 {
		return fmt.Errorf("invalid transparency cutoff: %d (must be between 1 and 255)", c.Transparency.Cutoff)
	}

	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateChop(); err != nil {
		return err
	}

	validProgress := []string{"none", "console", "log", "both"}
	if !contains(validProgress, c.Pipeline.Progress) {
		return fmt.Errorf("invalid pipeline progress: %s (must be one of: %s)", c.Pipeline.Progress, strings.Join(validProgress, ", "))
	}
	if c.Pipeline.LogEvery <= 0 {
		return fmt.Errorf("invalid pipeline log_every: %d (must be positive)", c.Pipeline.LogEvery)
	}

	validFormats := []string{"png", "pdf"}
	if !contains(validFormats, c.Writer.Format) {
		return fmt.Errorf("invalid writer format: %s (must be one of: %s)", c.Writer.Format, strings.Join(validFormats, ", "))
	}
	if c.Writer.SpaceWidth < 0 || c.Writer.CanvasMargin < 0 {
		return fmt.Errorf("writer space width and canvas margin must not be negative")
	}
	if c.Writer.ConnectionThickness <= 0 {
		return fmt.Errorf("invalid connection thickness: %d (must be positive)", c.Writer.ConnectionThickness)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxTextKB <= 0 {
		return fmt.Errorf("invalid max text size: %d (must be positive)", c.Server.MaxTextKB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayKB < 0 {
		return errors.New("invalid rate limit: limits must not be negative")
	}

	return nil
}

func (c *Config) validatePaths() error {
	named := map[string]string{
		"paths.source":         c.Paths.Source,
		"paths.bnw":            c.Paths.BlackWhite,
		"paths.transparent":    c.Paths.Transparent,
		"paths.chopped":        c.Paths.Chopped,
		"paths.ready":          c.Paths.Ready,
		"paths.bounding_boxes": c.Paths.BoundingBoxes,
	}
	for key, value := range named {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}

	// Stages write into or wipe their destination, so no directory may
	// alias another stage's input, the scans included.
	dirs := []string{c.Paths.Source, c.Paths.BlackWhite, c.Paths.Transparent, c.Paths.Chopped, c.Paths.Ready}
	for i := range dirs {
		for j := i + 1; j < len(dirs); j++ {
			if filepath.Clean(dirs[i]) == filepath.Clean(dirs[j]) {
				return fmt.Errorf("stage directories must differ: %s is used twice", dirs[i])
			}
		}
	}
	return nil
}

func (c *Config) validateChop() error {
	if c.Chop.Window <= 0 {
		return fmt.Errorf("invalid chop window: %d (must be positive)", c.Chop.Window)
	}
	if c.Chop.MinWidth < 0 {
		return fmt.Errorf("invalid chop min width: %d (must not be negative)", c.Chop.MinWidth)
	}
	if c.Chop.MaxWidth <= c.Chop.MinWidth || c.Chop.MaxWidthUpper <= c.Chop.MinWidth {
		return fmt.Errorf("chop max widths (%d, %d) must exceed min width %d",
			c.Chop.MaxWidth, c.Chop.MaxWidthUpper, c.Chop.MinWidth)
	}
	return nil
}

// Resolve joins a configured path with the root directory unless it is absolute.
func (p PathsConfig) Resolve(path string) string {
	if filepath.IsAbs(path) || p.Root == "" {
		return path
	}
	return filepath.Join(p.Root, path)
}

// SourceDir returns the resolved source scan directory.
func (p PathsConfig) SourceDir() string { return p.Resolve(p.Source) }

// BlackWhiteDir returns the resolved thresholded image directory.
func (p PathsConfig) BlackWhiteDir() string { return p.Resolve(p.BlackWhite) }

// TransparentDir returns the resolved transparent image directory.
func (p PathsConfig) TransparentDir() string { return p.Resolve(p.Transparent) }

// ChoppedDir returns the resolved chopped variation directory.
func (p PathsConfig) ChoppedDir() string { return p.Resolve(p.Chopped) }

// ReadyDir returns the resolved font directory.
func (p PathsConfig) ReadyDir() string { return p.Resolve(p.Ready) }

// BoundingBoxesFile returns the resolved bounding box file.
func (p PathsConfig) BoundingBoxesFile() string { return p.Resolve(p.BoundingBoxes) }

// Command returns the external command configured for a stage, if any.
func (s StagesConfig) Command(stage string) string {
	switch stage {
	case StageThreshold:
		return s.Threshold.Command
	case StageTransparentize:
		return s.Transparentize.Command
	case StageChop:
		return s.Chop.Command
	case StageTrim:
		return s.Trim.Command
	default:
		return ""
	}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
