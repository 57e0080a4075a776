package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quill/internal/gateway/config"
	artifactrepo "quill/internal/gateway/repository/artifact"
	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
	"quill/internal/store"
)

func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{DatabaseURL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		logger.Info("record store: postgres")
	case strings.TrimSpace(cfg.SQLitePath) != "":
		logger.Info("record store: sqlite", "path", cfg.SQLitePath)
	default:
		logger.Info("record store: in-memory")
	}
	return st, nil
}

// initExporter returns nil when object storage is not configured.
func initExporter(cfg *config.Config, logger *slog.Logger) (*artifactrepo.Exporter, error) {
	if !cfg.Artifact.Enabled {
		return nil, nil
	}
	s3Cfg := artifactrepo.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	}
	s3Store, err := artifactrepo.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	logger.Info("report export: s3", "bucket", s3Cfg.Bucket, "endpoint", s3Cfg.Endpoint)
	return artifactrepo.NewExporter(s3Store), nil
}

// initResponseCache prefers Redis when REDIS_URL is set and reachable, and
// falls back to the in-process cache. It returns nil when caching is off.
func initResponseCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.ResponseCache, func() error) {
	if !cfg.EnableCache {
		return nil, nil
	}
	if url := strings.TrimSpace(cfg.RedisURL); url != "" {
		rc, err := llm.NewRedisCache(url, cfg.CacheTTL)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = rc.Ping(pingCtx)
			cancel()
			if err == nil {
				logger.Info("response cache: redis")
				return rc, rc.Close
			}
			_ = rc.Close()
		}
		logger.Warn("response cache: redis unavailable, using memory", "err", err)
	}
	return llm.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), nil
}

// rateLimits builds one limiter per configured provider, shared by every
// client the resolver constructs for it.
func rateLimits(cfg *config.Config) func(llmclient.Provider) []llm.Middleware {
	limiters := map[llmclient.Provider]*llm.Limiter{}
	for p, pc := range cfg.Providers {
		if l := llm.NewLimiter(pc.RPS, pc.Burst); l != nil {
			limiters[p] = l
		}
	}
	return func(p llmclient.Provider) []llm.Middleware {
		l, ok := limiters[p]
		if !ok {
			return nil
		}
		return []llm.Middleware{llm.SharedRateLimit(l)}
	}
}
