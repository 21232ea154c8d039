package config

import "time"

// Project defaults.
const (
	DefaultWorkdir = "temp-repo"
)

// Tracker defaults.
const (
	TrackerJira = "jira"
	TrackerFile = "file"

	DefaultTrackerKind       = TrackerJira
	DefaultTrackerBaseURL    = "https://issues.apache.org/jira"
	DefaultPageSize          = 100
	DefaultRequestsPerSecond = 5.0
	DefaultTrackerTimeout    = 30 * time.Second
	DefaultCacheTTL          = 24 * time.Hour
)

// Analysis defaults.
const (
	DefaultReleaseFraction   = 0.34
	DefaultProportion        = 1.5
	DefaultWorkers           = 0
	DefaultDiffCacheEntries  = 4096
	DefaultMaxFileSize       = "2 MiB"
	DefaultDetectRenames     = true
	DefaultExcludeSubstrings = "test"
)

// Output defaults.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"

	DefaultFormat = FormatCSV
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Default returns a configuration holding every default. The project key
// is left empty.
func Default() Config {
	return Config{
		Project: ProjectConfig{Workdir: DefaultWorkdir},
		Tracker: TrackerConfig{
			Kind:              DefaultTrackerKind,
			BaseURL:           DefaultTrackerBaseURL,
			PageSize:          DefaultPageSize,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Timeout:           DefaultTrackerTimeout,
			CacheTTL:          DefaultCacheTTL,
		},
		Analysis: AnalysisConfig{
			ReleaseFraction:       DefaultReleaseFraction,
			DefaultProportion:     DefaultProportion,
			Workers:               DefaultWorkers,
			DiffCacheEntries:      DefaultDiffCacheEntries,
			ExcludePathSubstrings: []string{DefaultExcludeSubstrings},
			MaxFileSize:           DefaultMaxFileSize,
			DetectRenames:         DefaultDetectRenames,
		},
		Output: OutputConfig{Format: DefaultFormat},
		Log:    LogConfig{Level: DefaultLogLevel, JSON: DefaultLogJSON},
	}
}
