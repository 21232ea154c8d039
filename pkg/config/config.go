// Package config loads faultline configuration from a YAML file, an optional
// .env file and FAULTLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingProject     = errors.New("project key is required")
	ErrInvalidFraction    = errors.New("release fraction must be in (0, 1]")
	ErrInvalidProportion  = errors.New("default proportion must be positive")
	ErrInvalidPageSize    = errors.New("tracker page size must be positive")
	ErrInvalidRate        = errors.New("tracker request rate must be positive")
	ErrInvalidSampleRatio = errors.New("trace sample ratio must be within [0, 1]")
	ErrInvalidTracker     = errors.New("unknown tracker kind")
	ErrMissingFile        = errors.New("file tracker needs tracker.file")
	ErrInvalidFormat      = errors.New("unknown output format")
	ErrInvalidFileSize    = errors.New("invalid max file size")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
)

// EnvPrefix prefixes environment overrides, e.g. FAULTLINE_PROJECT_KEY.
const EnvPrefix = "FAULTLINE"

// Config holds all faultline configuration.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig identifies the mined project.
type ProjectConfig struct {
	Key           string   `mapstructure:"key"`
	RepositoryURL string   `mapstructure:"repository_url"`
	Workdir       string   `mapstructure:"workdir"`
	TagPrefixes   []string `mapstructure:"tag_prefixes"`
}

// TrackerConfig selects and configures the issue tracker.
type TrackerConfig struct {
	Kind              string        `mapstructure:"kind"`
	BaseURL           string        `mapstructure:"base_url"`
	User              string        `mapstructure:"user"`
	Token             string        `mapstructure:"token"`
	PageSize          int           `mapstructure:"page_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	File              string        `mapstructure:"file"`
	CachePath         string        `mapstructure:"cache_path"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// AnalysisConfig tunes the mining pipeline.
type AnalysisConfig struct {
	ReleaseFraction       float64  `mapstructure:"release_fraction"`
	DefaultProportion     float64  `mapstructure:"default_proportion"`
	Workers               int      `mapstructure:"workers"`
	DiffCacheEntries      int      `mapstructure:"diff_cache_entries"`
	ExcludePathSubstrings []string `mapstructure:"exclude_path_substrings"`
	MaxFileSize           string   `mapstructure:"max_file_size"`
	DetectRenames         bool     `mapstructure:"detect_renames"`
}

// MaxFileBytes parses MaxFileSize. An empty value disables the limit.
func (a AnalysisConfig) MaxFileBytes() (int, error) {
	if a.MaxFileSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(a.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFileSize, a.MaxFileSize)
	}

	return int(n), nil
}

// OutputConfig selects the row sink.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// ResolvedPath returns Path, or <key>.csv / <key>.db when unset.
func (o OutputConfig) ResolvedPath(project string) string {
	if o.Path != "" {
		return o.Path
	}

	if o.Format == FormatSQLite {
		return project + ".db"
	}

	return project + ".csv"
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig configures tracing, metrics and the diagnostics server.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// LoadDotEnv loads environment variables from the given .env files, or from
// ./.env when none is given. Missing files are ignored and variables already
// set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}

	return nil
}

// LoadConfig loads configuration from configPath, or from .faultline.yaml in
// the working or home directory when configPath is empty, then applies
// environment overrides. The project key is not required here since flags
// may still set it; call Validate once overrides are applied.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".faultline")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("project.key", "")
	viperCfg.SetDefault("project.repository_url", "")
	viperCfg.SetDefault("project.workdir", DefaultWorkdir)
	viperCfg.SetDefault("project.tag_prefixes", []string{})

	viperCfg.SetDefault("tracker.kind", DefaultTrackerKind)
	viperCfg.SetDefault("tracker.base_url", DefaultTrackerBaseURL)
	viperCfg.SetDefault("tracker.user", "")
	viperCfg.SetDefault("tracker.token", "")
	viperCfg.SetDefault("tracker.page_size", DefaultPageSize)
	viperCfg.SetDefault("tracker.requests_per_second", DefaultRequestsPerSecond)
	viperCfg.SetDefault("tracker.timeout", DefaultTrackerTimeout)
	viperCfg.SetDefault("tracker.file", "")
	viperCfg.SetDefault("tracker.cache_path", "")
	viperCfg.SetDefault("tracker.cache_ttl", DefaultCacheTTL)

	viperCfg.SetDefault("analysis.release_fraction", DefaultReleaseFraction)
	viperCfg.SetDefault("analysis.default_proportion", DefaultProportion)
	viperCfg.SetDefault("analysis.workers", DefaultWorkers)
	viperCfg.SetDefault("analysis.diff_cache_entries", DefaultDiffCacheEntries)
	viperCfg.SetDefault("analysis.exclude_path_substrings", []string{DefaultExcludeSubstrings})
	viperCfg.SetDefault("analysis.max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("analysis.detect_renames", DefaultDetectRenames)

	viperCfg.SetDefault("output.format", DefaultFormat)
	viperCfg.SetDefault("output.path", "")

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}

// Validate checks the complete configuration, including values that flags
// may have overridden.
func (c *Config) Validate() error {
	if c.Project.Key == "" {
		return ErrMissingProject
	}

	if c.Output.Format != FormatCSV && c.Output.Format != FormatSQLite {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if c.Tracker.Kind == TrackerFile && c.Tracker.File == "" {
		return ErrMissingFile
	}

	return validateConfig(c)
}

func validateConfig(config *Config) error {
	if config.Analysis.ReleaseFraction <= 0 || config.Analysis.ReleaseFraction > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidFraction, config.Analysis.ReleaseFraction)
	}

	if config.Analysis.DefaultProportion <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidProportion, config.Analysis.DefaultProportion)
	}

	if config.Analysis.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Analysis.Workers)
	}

	if _, err := config.Analysis.MaxFileBytes(); err != nil {
		return err
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	if config.Tracker.Kind != TrackerJira && config.Tracker.Kind != TrackerFile {
		return fmt.Errorf("%w: %q", ErrInvalidTracker, config.Tracker.Kind)
	}

	if config.Tracker.PageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, config.Tracker.PageSize)
	}

	if config.Tracker.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, config.Tracker.RequestsPerSecond)
	}

	return nil
}
