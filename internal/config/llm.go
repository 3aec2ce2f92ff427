package config

import (
	"fmt"
	"time"
)

// Supported completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// DefaultOpenAIBaseURL is the public OpenAI endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderOpenAI, ProviderAzure, ProviderGemini}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // openai, azure, gemini
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`       // model name, or deployment name on Azure
	BaseURL    string `yaml:"base_url"`    // may include the /chat/completions suffix
	APIVersion string `yaml:"api_version"` // azure only

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// GetTimeout returns the request timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate checks the provider and credentials.
func (c LLMConfig) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.Provider, ValidProviders)
	}

	if c.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}
