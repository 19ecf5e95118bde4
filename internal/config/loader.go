package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LISTEVAL_"

// EnvConfigFile names the variable holding the YAML file path.
const EnvConfigFile = EnvPrefix + "CONFIG"

// DefaultMetric is used when MOS metrics are not configured.
const DefaultMetric = "quality"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. YAML file at path, or at $LISTEVAL_CONFIG when path is empty
//  3. env (prefix LISTEVAL_, "__" separates nested keys: LISTEVAL_MOS__SEED)
func Load(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps LISTEVAL_MOS__PAGE_SIZE to mos.page_size.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) normalize() {
	c.ResultsFormat = strings.ToLower(strings.TrimSpace(c.ResultsFormat))
	c.MOS.Source = strings.ToLower(strings.TrimSpace(c.MOS.Source))
	if len(c.MOS.Metrics) == 0 {
		c.MOS.Metrics = []string{DefaultMetric}
	}
	if c.MOS.Source == "" {
		c.MOS.Source = SourceDirs
	}
}

// Validate checks field constraints and the per-survey requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.ABX.Enabled && !c.MOS.Enabled {
		return fmt.Errorf("%w: no survey enabled", ErrInvalidConfig)
	}
	if c.ABX.Enabled {
		if c.ABX.ReferenceDir == "" {
			return fmt.Errorf("%w: abx.reference_dir must be set", ErrInvalidConfig)
		}
		if len(c.ABX.Systems) < 2 {
			return fmt.Errorf("%w: abx needs at least two systems", ErrInvalidConfig)
		}
		if c.ABX.Metric == "" {
			return fmt.Errorf("%w: abx.metric must not be empty", ErrInvalidConfig)
		}
	}
	if c.MOS.Enabled {
		switch c.MOS.Source {
		case SourceManifest:
			if c.MOS.Manifest == "" {
				return fmt.Errorf("%w: mos.manifest must be set", ErrInvalidConfig)
			}
		default:
			if c.MOS.ReferenceDir == "" {
				return fmt.Errorf("%w: mos.reference_dir must be set", ErrInvalidConfig)
			}
			if len(c.MOS.Systems) == 0 {
				return fmt.Errorf("%w: mos needs at least one system", ErrInvalidConfig)
			}
		}
		if c.MOS.ScoreMin >= c.MOS.ScoreMax {
			return fmt.Errorf("%w: mos score range [%d,%d] is empty", ErrInvalidConfig, c.MOS.ScoreMin, c.MOS.ScoreMax)
		}
		for _, m := range c.MOS.Metrics {
			if strings.TrimSpace(m) == "" {
				return fmt.Errorf("%w: empty mos metric", ErrInvalidConfig)
			}
		}
	}
	return nil
}
