package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	llmclient "quill/internal/llmClient"
)

// ResponseCache stores raw replies keyed by a request fingerprint.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryCache is a process-local LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 512
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

func (c *MemoryCache) Len() int { return c.lru.Len() }

// RedisCache shares replies across processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opt), ttl: ttl, prefix: "quill:llm:"}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// WithCache serves repeated deterministic requests from cache. Only
// JSON-mode requests and requests pinned to temperature 0 are cached, and
// failures are never stored. Cache errors are logged and bypassed.
func WithCache(cache ResponseCache, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next llmclient.ChatClient) llmclient.ChatClient {
		if cache == nil {
			return next
		}
		return &cached{next: next, cache: cache, log: logger}
	}
}

type cached struct {
	next  llmclient.ChatClient
	cache ResponseCache
	log   *slog.Logger
}

func (c *cached) Name() string { return c.next.Name() }
func (c *cached) Close() error { return c.next.Close() }

func (c *cached) Chat(ctx context.Context, req llmclient.Request) (string, error) {
	if !cacheable(req) {
		return c.next.Chat(ctx, req)
	}
	key := CacheKey(c.next.Name(), req)
	if !cacheSkipped(ctx) {
		v, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.WarnContext(ctx, "response cache get failed", "client", c.next.Name(), "err", err)
		} else if ok {
			return v, nil
		}
	}
	out, err := c.next.Chat(ctx, req)
	if err != nil {
		return out, err
	}
	if err := c.cache.Set(ctx, key, out); err != nil {
		c.log.WarnContext(ctx, "response cache set failed", "client", c.next.Name(), "err", err)
	}
	return out, nil
}

func cacheable(req llmclient.Request) bool {
	if req.JSONMode {
		return true
	}
	return req.Temperature != nil && *req.Temperature == 0
}

// CacheKey fingerprints a request for a given client.
func CacheKey(client string, req llmclient.Request) string {
	h := sha256.New()
	h.Write([]byte(client))
	h.Write([]byte{0})
	b, _ := json.Marshal(struct {
		Messages    []llmclient.Message `json:"m"`
		Temperature *float64            `json:"t,omitempty"`
		MaxTokens   int                 `json:"n,omitempty"`
		JSONMode    bool                `json:"j,omitempty"`
	}{req.Messages, req.Temperature, req.MaxTokens, req.JSONMode})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
