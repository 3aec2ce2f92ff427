package completion

import (
	"context"
	"fmt"

	"specforge/internal/config"
)

// New creates the client for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	params := Params{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}

	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderAzure:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Azure:      cfg.Provider == config.ProviderAzure,
			APIVersion: cfg.APIVersion,
			Params:     params,
			Timeout:    cfg.GetTimeout(),
		}), nil

	case config.ProviderGemini:
		base := cfg.BaseURL
		if base == config.DefaultOpenAIBaseURL {
			base = ""
		}
		model := cfg.Model
		if model == "" || model == config.DefaultOpenAIModel {
			model = config.DefaultGeminiModel
		}
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   model,
			BaseURL: base,
			Params:  params,
			Timeout: cfg.GetTimeout(),
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
