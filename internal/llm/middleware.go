package llm

import (
	"context"
	"log/slog"
	"time"

	llmclient "quill/internal/llmClient"
)

// Middleware decorates a ChatClient to inject cross-cutting concerns
// (rate limiting, logging, caching).
type Middleware func(llmclient.ChatClient) llmclient.ChatClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.ChatClient, mws ...Middleware) llmclient.ChatClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// -------- Rate Limiting --------

// SharedRateLimit makes every wrapped client draw from l. A nil l disables
// limiting.
func SharedRateLimit(l *Limiter) Middleware {
	return func(next llmclient.ChatClient) llmclient.ChatClient {
		if l == nil {
			return next
		}
		return &rateLimited{next: next, rl: l}
	}
}

type rateLimited struct {
	next llmclient.ChatClient
	rl   *Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }

func (c *rateLimited) Chat(ctx context.Context, req llmclient.Request) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Chat(ctx, req)
}

// -------- Logging --------

// WithLogging logs request size, latency and errors. A nil logger uses
// slog.Default().
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next llmclient.ChatClient) llmclient.ChatClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.ChatClient
	log  *slog.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Chat(ctx context.Context, req llmclient.Request) (string, error) {
	size := 0
	for _, m := range req.Messages {
		size += len(m.Content)
	}
	start := time.Now()
	l.log.DebugContext(ctx, "llm request", "client", l.next.Name(), "stage", StageFrom(ctx), "bytes", size, "json_mode", req.JSONMode)
	out, err := l.next.Chat(ctx, req)
	if err != nil {
		l.log.WarnContext(ctx, "llm error", "client", l.next.Name(), "stage", StageFrom(ctx), "elapsed", time.Since(start), "err", err)
		return out, err
	}
	l.log.DebugContext(ctx, "llm response", "client", l.next.Name(), "stage", StageFrom(ctx), "elapsed", time.Since(start), "bytes", len(out))
	return out, nil
}
