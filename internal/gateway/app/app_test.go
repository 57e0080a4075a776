package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/gateway/config"
	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
)

func TestNewServiceWithSQLite(t *testing.T) {
	cfg := &config.Config{
		Port:            ":0",
		DefaultProvider: "Ollama",
		DefaultModel:    "llama3.2",
		RequestTimeout:  time.Second,
		MaxRetries:      1,
		EnableCache:     true,
		CacheTTL:        time.Minute,
		CacheSize:       8,
		SQLitePath:      filepath.Join(t.TempDir(), "quill.db"),
	}
	svc, cleanup, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	models, err := svc.ListModels("")
	require.NoError(t, err)
	assert.NotEmpty(t, models)

	rec, err := svc.ScoreDocument(context.Background(), svcScoreEmpty(), nil)
	require.NoError(t, err)
	got, err := svc.Record(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.DocumentID, got.DocumentID)
}

func TestNewServiceRejectsBadCatalog(t *testing.T) {
	_, _, err := NewService(context.Background(), &config.Config{CatalogFile: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	assert.Error(t, err)
}

func TestResponseCacheSelection(t *testing.T) {
	cache, closeFn := initResponseCache(context.Background(), &config.Config{}, nilLogger())
	assert.Nil(t, cache)
	assert.Nil(t, closeFn)

	cache, _ = initResponseCache(context.Background(), &config.Config{EnableCache: true, CacheSize: 4, CacheTTL: time.Minute}, nilLogger())
	_, ok := cache.(*llm.MemoryCache)
	assert.True(t, ok)

	// An unreachable Redis falls back to memory.
	cache, closeFn = initResponseCache(context.Background(), &config.Config{EnableCache: true, RedisURL: "redis://127.0.0.1:1/0", CacheTTL: time.Minute}, nilLogger())
	_, ok = cache.(*llm.MemoryCache)
	assert.True(t, ok)
	assert.Nil(t, closeFn)
}

func TestRateLimits(t *testing.T) {
	cfg := &config.Config{Providers: map[llmclient.Provider]config.ProviderConfig{
		llmclient.Groq: {RPS: 2, Burst: 1},
	}}
	per := rateLimits(cfg)
	assert.Len(t, per(llmclient.Groq), 1)
	assert.Empty(t, per(llmclient.OpenAI))
}

func TestExporterDisabledByDefault(t *testing.T) {
	e, err := initExporter(&config.Config{}, nilLogger())
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = initExporter(&config.Config{Artifact: config.ArtifactConfig{Enabled: true}}, nilLogger())
	assert.Error(t, err)
}
