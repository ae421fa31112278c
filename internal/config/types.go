package config

import (
	"fmt"

	"github.com/jackzampolin/bindery/internal/content"
)

// CacheConfig controls the parsed-document cache.
type CacheConfig struct {
	Path     string `mapstructure:"path"`
	Write    bool   `mapstructure:"write"`
	Fallback bool   `mapstructure:"fallback"`
}

// VisionConfig configures the vision model used for OCR and picture
// descriptions. APIKey may use ${ENV_VAR} syntax.
type VisionConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// Config is the full conversion configuration.
type Config struct {
	ModID                 string       `mapstructure:"mod_id"`
	OutDir                string       `mapstructure:"out_dir"`
	Workers               int          `mapstructure:"workers"`
	Pages                 string       `mapstructure:"pages"`
	Tables                string       `mapstructure:"tables"`
	OCR                   string       `mapstructure:"ocr"`
	PictureDescriptions   bool         `mapstructure:"picture_descriptions"`
	TableConfidence       float64      `mapstructure:"table_confidence"`
	TextCoverageThreshold float64      `mapstructure:"text_coverage_threshold"`
	DeterministicIDs      bool         `mapstructure:"deterministic_ids"`
	TOC                   bool         `mapstructure:"toc"`
	Cache                 CacheConfig  `mapstructure:"cache"`
	Vision                VisionConfig `mapstructure:"vision"`
}

// DefaultConfig returns the configuration used when no file or flags
// override it.
func DefaultConfig() *Config {
	return &Config{
		OutDir:                "dist",
		Workers:               1,
		Tables:                string(content.TableAuto),
		OCR:                   string(content.OCROff),
		TableConfidence:       content.DefaultTableConfidence,
		TextCoverageThreshold: content.DefaultTextCoverageThreshold,
		DeterministicIDs:      true,
		Cache: CacheConfig{
			Write:    false,
			Fallback: true,
		},
		Vision: VisionConfig{
			Model:      "gpt-4o-mini",
			MaxRetries: 3,
		},
	}
}

// Validate checks mode strings and numeric ranges before a run starts.
func (c *Config) Validate() error {
	if c.ModID == "" {
		return fmt.Errorf("mod_id is required")
	}
	if _, err := content.ParseTableMode(c.Tables); err != nil {
		return err
	}
	if _, err := content.ParseOCRMode(c.OCR); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.TableConfidence < 0 || c.TableConfidence > 1 {
		return fmt.Errorf("table_confidence must be in [0, 1], got %g", c.TableConfidence)
	}
	if c.TextCoverageThreshold < 0 || c.TextCoverageThreshold > 1 {
		return fmt.Errorf("text_coverage_threshold must be in [0, 1], got %g", c.TextCoverageThreshold)
	}
	return nil
}
