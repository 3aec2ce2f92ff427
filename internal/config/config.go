package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all specforge configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Generation loop settings
	Generation GenerationConfig `yaml:"generation"`

	// Run journal
	Journal JournalConfig `yaml:"journal"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus text exposition at exit.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       DefaultOpenAIModel,
			BaseURL:     DefaultOpenAIBaseURL,
			APIVersion:  "2024-02-01",
			MaxTokens:   2000,
			Temperature: 0.5,
			Timeout:     "120s",
		},

		Generation: GenerationConfig{
			OutputRoot:         "dist",
			MaxParseRetries:    3,
			MaxBuildRepairs:    5,
			BuildTimeout:       "5m",
			MaxDiagnosticBytes: 64 * 1024,
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(".forge", "journal.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider != ProviderAzure {
			c.LLM.Provider = ProviderOpenAI
		}
	}

	// IS_AZURE switches the auth header to api-key; the key still comes from OPENAI_API_KEY.
	if strings.EqualFold(os.Getenv("IS_AZURE"), "true") {
		c.LLM.Provider = ProviderAzure
	}
	if url := os.Getenv("BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("FORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if root := os.Getenv("FORGE_OUTPUT_ROOT"); root != "" {
		c.Generation.OutputRoot = root
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	return c.Generation.Validate()
}

// JournalPath resolves the journal location relative to the output root.
func (c *Config) JournalPath() string {
	if c.Journal.Path == "" || filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	return filepath.Join(c.Generation.OutputRoot, c.Journal.Path)
}
