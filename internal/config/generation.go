package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// GenerationConfig configures the generate, apply and repair loop.
type GenerationConfig struct {
	// OutputRoot prefixes every generated path ("" = paths used verbatim).
	OutputRoot string `yaml:"output_root"`

	MaxParseRetries int `yaml:"max_parse_retries"`
	MaxBuildRepairs int `yaml:"max_build_repairs"`

	BuildTimeout       string `yaml:"build_timeout"`
	MaxDiagnosticBytes int64  `yaml:"max_diagnostic_bytes"`
}

// GetBuildTimeout returns the build timeout as a duration.
func (c GenerationConfig) GetBuildTimeout() time.Duration {
	d, err := time.ParseDuration(c.BuildTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// RegistryPath is where the known-files context is persisted between runs.
func (c GenerationConfig) RegistryPath() string {
	return filepath.Join(c.OutputRoot, ".forge", "context.yaml")
}

// Validate checks the retry bounds.
func (c GenerationConfig) Validate() error {
	if c.MaxParseRetries <= 0 {
		return fmt.Errorf("generation.max_parse_retries must be positive, got %d", c.MaxParseRetries)
	}
	if c.MaxBuildRepairs <= 0 {
		return fmt.Errorf("generation.max_build_repairs must be positive, got %d", c.MaxBuildRepairs)
	}
	return nil
}
