// Package config loads and validates the translation pipeline
// configuration. The core packages receive this struct; none of them
// read files or the environment themselves.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"epub-translator/internal/placeholder"
)

// Config is the full pipeline configuration.
type Config struct {
	// Language pair, BCP 47 tags.
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`

	// Chunking settings.
	MaxChunkTokens int     `json:"max_chunk_tokens"`
	SoftLimitRatio float64 `json:"soft_limit_ratio"`

	// Retry and fallback settings.
	MaxRetries              int  `json:"max_retries"`
	EnableAlignmentFallback bool `json:"enable_alignment_fallback"`

	// Placeholder settings.
	PlaceholderFormats []placeholder.Format `json:"placeholder_formats,omitempty"`
	ProtectEntities    bool                 `json:"protect_entities"`
	StrictValidation   bool                 `json:"strict_validation"`

	// Context window settings, tokens. Zero means the controller
	// defaults (which depend on thinking-model detection).
	InitialWindow int `json:"initial_window"`
	MaxWindow     int `json:"max_window"`

	// TrailingContextRunes is how much of the previous successful
	// translation is carried forward for terminological consistency.
	TrailingContextRunes int `json:"trailing_context_runes"`

	// CapabilityCachePath persists thinking-model detection across
	// runs. Empty keeps it in memory.
	CapabilityCachePath string `json:"capability_cache_path"`
}

// Default returns a configuration with workable defaults.
func Default() *Config {
	return &Config{
		SourceLang:              "en",
		TargetLang:              "fr",
		MaxChunkTokens:          1200,
		SoftLimitRatio:          0.8,
		MaxRetries:              3,
		EnableAlignmentFallback: true,
		ProtectEntities:         false,
		StrictValidation:        false,
		TrailingContextRunes:    300,
	}
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validate checks all numeric values and returns every violation.
func (c *Config) Validate() []*ValidationError {
	var errs []*ValidationError

	if c.SourceLang == "" {
		errs = append(errs, &ValidationError{"SourceLang", c.SourceLang, "must not be empty"})
	}
	if c.TargetLang == "" {
		errs = append(errs, &ValidationError{"TargetLang", c.TargetLang, "must not be empty"})
	}
	if c.MaxChunkTokens <= 0 {
		errs = append(errs, &ValidationError{"MaxChunkTokens", c.MaxChunkTokens, "must be greater than 0"})
	} else if c.MaxChunkTokens > 100000 {
		errs = append(errs, &ValidationError{"MaxChunkTokens", c.MaxChunkTokens, "must not exceed 100000"})
	}
	if c.SoftLimitRatio <= 0 || c.SoftLimitRatio > 1 {
		errs = append(errs, &ValidationError{"SoftLimitRatio", c.SoftLimitRatio, "must be in (0, 1]"})
	}
	if c.MaxRetries < 1 {
		errs = append(errs, &ValidationError{"MaxRetries", c.MaxRetries, "must be at least 1"})
	}
	if c.InitialWindow < 0 {
		errs = append(errs, &ValidationError{"InitialWindow", c.InitialWindow, "must be non-negative"})
	}
	if c.MaxWindow != 0 && c.MaxWindow < c.InitialWindow {
		errs = append(errs, &ValidationError{"MaxWindow", c.MaxWindow, "must be at least InitialWindow"})
	}
	if c.TrailingContextRunes < 0 {
		errs = append(errs, &ValidationError{"TrailingContextRunes", c.TrailingContextRunes, "must be non-negative"})
	}
	return errs
}

// Load reads a config file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
