package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "IS_AZURE", "BASE_URL", "FORGE_MODEL", "FORGE_OUTPUT_ROOT"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 3, cfg.Generation.MaxParseRetries)
	assert.Equal(t, 5, cfg.Generation.MaxBuildRepairs)
	assert.Equal(t, "dist", cfg.Generation.OutputRoot)
	assert.Equal(t, 120*time.Second, cfg.LLM.GetTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Generation.GetBuildTimeout())
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(filepath.Join(t.TempDir(), "forge.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "forge.yaml")
		content := `
llm:
  provider: gemini
  model: gemini-2.5-flash
  api_key: from-file
generation:
  output_root: out
  max_build_repairs: 2
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
		assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
		assert.Equal(t, "from-file", cfg.LLM.APIKey)
		assert.Equal(t, "out", cfg.Generation.OutputRoot)
		assert.Equal(t, 2, cfg.Generation.MaxBuildRepairs)
		// untouched fields keep defaults
		assert.Equal(t, 3, cfg.Generation.MaxParseRetries)
		assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "forge.yaml")
		require.NoError(t, os.WriteFile(path, []byte("llm: [oops"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("env applies without a file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "env-key")

		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.LLM.APIKey)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "forge.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "custom-model"
	cfg.Metrics.Textfile = "metrics.prom"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = "k"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.APIKey = ""
		assert.ErrorContains(t, cfg.Validate(), "API key")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.Provider = "zai"
		assert.ErrorContains(t, cfg.Validate(), "invalid LLM provider")
	})

	t.Run("non-positive retry bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Generation.MaxParseRetries = 0
		assert.ErrorContains(t, cfg.Validate(), "max_parse_retries")

		cfg = valid()
		cfg.Generation.MaxBuildRepairs = -1
		assert.ErrorContains(t, cfg.Validate(), "max_build_repairs")
	})
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("dist", ".forge", "context.yaml"), cfg.Generation.RegistryPath())
	assert.Equal(t, filepath.Join("dist", ".forge", "journal.db"), cfg.JournalPath())

	cfg.Journal.Path = filepath.Join(string(filepath.Separator), "var", "forge.db")
	assert.Equal(t, cfg.Journal.Path, cfg.JournalPath())
}
