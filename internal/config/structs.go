//nolint:lll
package config

// Config represents the complete configuration for the handwriter application.
// It covers the font-making stages, the text writer and the HTTP service, and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Working directory layout
	Paths PathsConfig `mapstructure:"paths" yaml:"paths" json:"paths"`

	// Stage settings
	Threshold    ThresholdConfig    `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Transparency TransparencyConfig `mapstructure:"transparency" yaml:"transparency" json:"transparency"`
	Chop         ChopConfig         `mapstructure:"chop" yaml:"chop" json:"chop"`
	Trim         TrimConfig         `mapstructure:"trim" yaml:"trim" json:"trim"`

	// External overrides per stage
	Stages StagesConfig `mapstructure:"stages" yaml:"stages" json:"stages"`

	// Pipeline orchestration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Text rendering
	Writer WriterConfig `mapstructure:"writer" yaml:"writer" json:"writer"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PathsConfig names the stage directories. Relative paths are resolved against Root.
type PathsConfig struct {
	Root          string `mapstructure:"root" yaml:"root" json:"root"`
	Source        string `mapstructure:"source" yaml:"source" json:"source"`
	BlackWhite    string `mapstructure:"bnw" yaml:"bnw" json:"bnw"`
	Transparent   string `mapstructure:"transparent" yaml:"transparent" json:"transparent"`
	Chopped       string `mapstructure:"chopped" yaml:"chopped" json:"chopped"`
	Ready         string `mapstructure:"ready" yaml:"ready" json:"ready"`
	BoundingBoxes string `mapstructure:"bounding_boxes" yaml:"bounding_boxes" json:"bounding_boxes"`
}

// ThresholdConfig controls the black-and-white conversion of source scans.
type ThresholdConfig struct {
	Backend string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	Binary  string  `mapstructure:"binary" yaml:"binary" json:"binary"`
	Level   float64 `mapstructure:"level" yaml:"level" json:"level"`
}

// TransparencyConfig controls the background removal stage.
type TransparencyConfig struct {
	Patterns []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
	Cutoff   int      `mapstructure:"cutoff" yaml:"cutoff" json:"cutoff"`
}

// ChopConfig controls how series images are split into variations.
type ChopConfig struct {
	Window        int `mapstructure:"window" yaml:"window" json:"window"`
	MinWidth      int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MaxWidth      int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxWidthUpper int `mapstructure:"max_width_upper" yaml:"max_width_upper" json:"max_width_upper"`
}

// TrimConfig controls the trimming stage.
type TrimConfig struct {
	Patterns []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
}

// StageConfig replaces a built-in stage with an external command line.
type StageConfig struct {
	Command string `mapstructure:"command" yaml:"command" json:"command"`
}

// StagesConfig holds per-stage overrides.
type StagesConfig struct {
	Threshold      StageConfig `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Transparentize StageConfig `mapstructure:"transparentize" yaml:"transparentize" json:"transparentize"`
	Chop           StageConfig `mapstructure:"chop" yaml:"chop" json:"chop"`
	Trim           StageConfig `mapstructure:"trim" yaml:"trim" json:"trim"`
}

// PipelineConfig contains orchestration settings.
type PipelineConfig struct {
	Threshold bool   `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Progress  string `mapstructure:"progress" yaml:"progress" json:"progress"`
	// LogEvery is how many files pass between progress log lines.
	LogEvery int `mapstructure:"log_every" yaml:"log_every" json:"log_every"`
}

// WriterConfig contains text rendering settings.
type WriterConfig struct {
	Output              string `mapstructure:"output" yaml:"output" json:"output"`
	Format              string `mapstructure:"format" yaml:"format" json:"format"`
	Debug               bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
	Connect             bool   `mapstructure:"connect" yaml:"connect" json:"connect"`
	Seed                int64  `mapstructure:"seed" yaml:"seed" json:"seed"`
	StartX              int    `mapstructure:"start_x" yaml:"start_x" json:"start_x"`
	StartY              int    `mapstructure:"start_y" yaml:"start_y" json:"start_y"`
	SpaceWidth          int    `mapstructure:"space_width" yaml:"space_width" json:"space_width"`
	CanvasMargin        int    `mapstructure:"canvas_margin" yaml:"canvas_margin" json:"canvas_margin"`
	ConnectionThickness int    `mapstructure:"connection_thickness" yaml:"connection_thickness" json:"connection_thickness"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxTextKB       int    `mapstructure:"max_text_kb" yaml:"max_text_kb" json:"max_text_kb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting for /write; zero disables a limit.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayKB   int64 `mapstructure:"max_data_per_day_kb" yaml:"max_data_per_day_kb" json:"max_data_per_day_kb"`
}

// Enabled reports whether any limit is set.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerMinute > 0 || r.RequestsPerHour > 0 || r.MaxRequestsPerDay > 0 || r.MaxDataPerDayKB > 0
}
