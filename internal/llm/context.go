package llm

import "context"

type ctxKeyStage struct{}
type ctxKeyNoCache struct{}

// WithStage labels calls made with ctx, for logs.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ctxKeyStage{}, stage)
}

// StageFrom returns the label stored by WithStage.
func StageFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyStage{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// WithoutCache makes the response cache middleware skip lookups for calls
// made with ctx. Fresh replies are still stored.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyNoCache{}, true)
}

func cacheSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyNoCache{}).(bool)
	return v
}
