package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets openai provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{LLM: LLMConfig{Provider: "gemini"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY sets gemini provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	})

	t.Run("Precedence: OPENAI overrides GEMINI", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	})

	t.Run("IS_AZURE switches to azure with the openai key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "az-key")
		t.Setenv("IS_AZURE", "true")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "az-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderAzure, cfg.LLM.Provider)
	})

	t.Run("IS_AZURE other than true is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("IS_AZURE", "1")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	})

	t.Run("azure provider from file survives OPENAI_API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "az-key")

		cfg := &Config{LLM: LLMConfig{Provider: ProviderAzure}}
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderAzure, cfg.LLM.Provider)
	})
}

func TestEnvOverrides_Endpoints(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://example.openai.azure.com/openai/deployments/gpt/chat/completions")
	t.Setenv("FORGE_MODEL", "gpt-4o")
	t.Setenv("FORGE_OUTPUT_ROOT", "build/out")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "https://example.openai.azure.com/openai/deployments/gpt/chat/completions", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "build/out", cfg.Generation.OutputRoot)
}
