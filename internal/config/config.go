// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and LISTEVAL_ env vars on top.
// - Errors wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"time"
)

// MOS stimulus sources.
const (
	SourceDirs     = "dirs"
	SourceManifest = "manifest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"omitempty,oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ResultsDir receives one file per submission.
	ResultsDir string `koanf:"results_dir" validate:"required"`

	// ResultsFormat is xlsx or csv.
	ResultsFormat string `koanf:"results_format" validate:"oneof=xlsx csv"`

	// Alpha is the significance level of the report.
	Alpha float64 `koanf:"alpha" validate:"gt=0,lt=1"`

	// MaxSessions bounds the number of open forms kept in memory.
	MaxSessions int `koanf:"max_sessions" validate:"gte=0"`

	// SessionTTL expires forms left open longer than this. Zero disables it.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gte=0"`

	ABX ABX `koanf:"abx"`
	MOS MOS `koanf:"mos"`
}

// ABX configures the two-alternative preference test.
type ABX struct {
	Enabled      bool     `koanf:"enabled"`
	ReferenceDir string   `koanf:"reference_dir"`
	Extension    string   `koanf:"extension"`
	Systems      []string `koanf:"systems"`
	// Metric names the result column for preferences.
	Metric string `koanf:"metric"`
	// Prompt is shown above every pair.
	Prompt string  `koanf:"prompt"`
	Seed   *uint64 `koanf:"seed"`
}

// MOS configures the mean-opinion-score survey.
type MOS struct {
	Enabled bool `koanf:"enabled"`

	// Source is "dirs" (reference_dir + systems) or "manifest".
	Source       string   `koanf:"source" validate:"omitempty,oneof=dirs manifest"`
	Manifest     string   `koanf:"manifest"`
	ReferenceDir string   `koanf:"reference_dir"`
	Extension    string   `koanf:"extension"`
	Systems      []string `koanf:"systems"`

	// Nested discovers one item group per reference subfolder.
	Nested bool `koanf:"nested"`

	// FirstIsReference pins the reference first and leaves it unrated.
	FirstIsReference bool `koanf:"first_is_reference"`

	// ReferenceName is the system name recorded for the reference.
	ReferenceName string `koanf:"reference_name"`

	Metrics     []string `koanf:"metrics"`
	RevealNames bool     `koanf:"reveal_names"`
	Shuffle     bool     `koanf:"shuffle"`
	Seed        *uint64  `koanf:"seed"`

	// PageSize splits the survey; zero shows everything on one page.
	PageSize int `koanf:"page_size" validate:"gte=0"`

	ScoreMin int `koanf:"score_min"`
	ScoreMax int `koanf:"score_max"`
}

// New creates a Config with defaults. The context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		ResultsDir:    "results",
		ResultsFormat: "xlsx",
		Alpha:         0.05,
		MaxSessions:   10_000,
		SessionTTL:    12 * time.Hour,
		ABX: ABX{
			Extension: ".mp3",
			Metric:    "preference",
			Prompt:    "Which sample sounds better?",
		},
		MOS: MOS{
			Source:        SourceDirs,
			Extension:     ".mp3",
			ReferenceName: "reference",
			Shuffle:       true,
			ScoreMin:      1,
			ScoreMax:      5,
		},
	}
}
