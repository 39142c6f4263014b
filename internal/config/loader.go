package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "handwriter"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "HANDWRITER"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flag
// bindings made by the CLI are honoured.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the configuration from the search paths, the environment and
// the defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars only.
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps keys such as paths.root to HANDWRITER_PATHS_ROOT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("paths.root", d.Paths.Root)
	l.v.SetDefault("paths.source", d.Paths.Source)
	l.v.SetDefault("paths.bnw", d.Paths.BlackWhite)
	l.v.SetDefault("paths.transparent", d.Paths.Transparent)
	l.v.SetDefault("paths.chopped", d.Paths.Chopped)
	l.v.SetDefault("paths.ready", d.Paths.Ready)
	l.v.SetDefault("paths.bounding_boxes", d.Paths.BoundingBoxes)

	l.v.SetDefault("threshold.backend", d.Threshold.Backend)
	l.v.SetDefault("threshold.binary", d.Threshold.Binary)
	l.v.SetDefault("threshold.level", d.Threshold.Level)

	l.v.SetDefault("transparency.patterns", d.Transparency.Patterns)
	l.v.SetDefault("transparency.cutoff", d.Transparency.Cutoff)

	l.v.SetDefault("chop.window", d.Chop.Window)
	l.v.SetDefault("chop.min_width", d.Chop.MinWidth)
	l.v.SetDefault("chop.max_width", d.Chop.MaxWidth)
	l.v.SetDefault("chop.max_width_upper", d.Chop.MaxWidthUpper)

	l.v.SetDefault("trim.patterns", d.Trim.Patterns)

	l.v.SetDefault("stages.threshold.command", "")
	l.v.SetDefault("stages.transparentize.command", "")
	l.v.SetDefault("stages.chop.command", "")
	l.v.SetDefault("stages.trim.command", "")

	l.v.SetDefault("pipeline.threshold", d.Pipeline.Threshold)
	l.v.SetDefault("pipeline.progress", d.Pipeline.Progress)
	l.v.SetDefault("pipeline.log_every", d.Pipeline.LogEvery)

	l.v.SetDefault("writer.output", d.Writer.Output)
	l.v.SetDefault("writer.format", d.Writer.Format)
	l.v.SetDefault("writer.debug", d.Writer.Debug)
	l.v.SetDefault("writer.connect", d.Writer.Connect)
	l.v.SetDefault("writer.seed", d.Writer.Seed)
	l.v.SetDefault("writer.start_x", d.Writer.StartX)
	l.v.SetDefault("writer.start_y", d.Writer.StartY)
	l.v.SetDefault("writer.space_width", d.Writer.SpaceWidth)
	l.v.SetDefault("writer.canvas_margin", d.Writer.CanvasMargin)
	l.v.SetDefault("writer.connection_thickness", d.Writer.ConnectionThickness)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_text_kb", d.Server.MaxTextKB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day_kb", d.Server.RateLimit.MaxDataPerDayKB)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a configuration file holding every default.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "handwriter"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "handwriter"))
	}

	paths = append(paths, "/etc/handwriter")

	return paths
}
