package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "quill/internal/llmClient"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "PORT", "DEFAULT_PROVIDER", "DEFAULT_MODEL", "REQUEST_TIMEOUT", "MAX_RETRIES",
		"ENABLE_CACHE", "CACHE_TTL", "CACHE_SIZE", "REDIS_URL", "CATALOG_FILE", "RUBRIC_FILE",
		"LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "SQLITE_PATH", "QUILL_CONFIG",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY", "DEEPSEEK_API_KEY", "GOOGLE_API_KEY",
		"GEMINI_API_KEY", "LMSTUDIO_API_KEY", "OLLAMA_HOST", "OLLAMA_PORT", "LMSTUDIO_HOST", "LMSTUDIO_PORT",
		"OPENAI_BASE_URL", "OLLAMA_BASE_URL", "LMSTUDIO_BASE_URL", "OPENAI_RPS", "OPENAI_BURST",
		"ARTIFACT_MINIO_ENDPOINT", "ARTIFACT_S3_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := fromEnv(fileConfig{})
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "OpenAI", cfg.DefaultProvider)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.EnableCache)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.Artifact.Enabled)

	_, ok := cfg.APIKey(llmclient.OpenAI)
	assert.False(t, ok)
	_, ok = cfg.BaseURL(llmclient.Ollama)
	assert.False(t, ok)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_PROVIDER", "ollama")
	t.Setenv("REQUEST_TIMEOUT", "12")
	t.Setenv("ENABLE_CACHE", "false")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OLLAMA_HOST", "gpu-box")
	t.Setenv("LMSTUDIO_PORT", "5555")
	t.Setenv("OPENAI_RPS", "2.5")
	t.Setenv("OPENAI_BURST", "4")

	cfg, err := fromEnv(fileConfig{})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "ollama", cfg.DefaultProvider)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.EnableCache)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)

	key, ok := cfg.APIKey(llmclient.OpenAI)
	assert.True(t, ok)
	assert.Equal(t, "sk-test", key)
	key, _ = cfg.APIKey(llmclient.Gemini)
	assert.Equal(t, "g-key", key)

	u, _ := cfg.BaseURL(llmclient.Ollama)
	assert.Equal(t, "http://gpu-box:11434", u)
	u, _ = cfg.BaseURL(llmclient.LMStudio)
	assert.Equal(t, "http://localhost:5555/v1", u)

	assert.Equal(t, ProviderConfig{APIKey: "sk-test", RPS: 2.5, Burst: 4}, cfg.Providers[llmclient.OpenAI])
}

func TestGoogleKeyPreferred(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("GEMINI_API_KEY", "gemini")
	cfg, err := fromEnv(fileConfig{})
	require.NoError(t, err)
	key, _ := cfg.APIKey(llmclient.Gemini)
	assert.Equal(t, "google", key)
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_PROVIDER", "Cohere")
	_, err := fromEnv(fileConfig{})
	var up *llmclient.UnknownProviderError
	assert.ErrorAs(t, err, &up)

	clearEnv(t)
	t.Setenv("MAX_RETRIES", "three")
	_, err = fromEnv(fileConfig{})
	assert.ErrorContains(t, err, "MAX_RETRIES")

	clearEnv(t)
	t.Setenv("LOG_LEVEL", "LOUD")
	_, err = fromEnv(fileConfig{})
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestConfigFileUnderEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_provider: Anthropic
default_model: claude-3-5-sonnet-latest
max_retries: 5
enable_cache: false
providers:
  anthropic:
    api_key: file-key
    rps: 1
`), 0o600))
	t.Setenv("QUILL_CONFIG", path)
	t.Setenv("DEFAULT_MODEL", "claude-3-5-haiku-latest")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Anthropic", cfg.DefaultProvider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.DefaultModel)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.False(t, cfg.EnableCache)
	key, _ := cfg.APIKey(llmclient.Anthropic)
	assert.Equal(t, "file-key", key)
	assert.Equal(t, 1.0, cfg.Providers[llmclient.Anthropic].RPS)
}

func TestArtifactConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.example.com")
	cfg, err := fromEnv(fileConfig{})
	require.NoError(t, err)
	assert.True(t, cfg.Artifact.Enabled)
	assert.True(t, cfg.Artifact.UseSSL)
	assert.Equal(t, "quill-reports", cfg.Artifact.Bucket)
}
