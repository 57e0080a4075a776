package llm

import (
	"context"

	llmclient "quill/internal/llmClient"
)

// CredentialProvider supplies per-provider secrets and endpoint overrides.
type CredentialProvider interface {
	APIKey(p llmclient.Provider) (string, bool)
	BaseURL(p llmclient.Provider) (string, bool)
}

// RuntimeManager reports on locally hosted model servers. The resolver
// consults it before building a client for a local provider.
type RuntimeManager interface {
	IsRunning(ctx context.Context, p llmclient.Provider) bool
	// EnsureModelAvailable may download the model as a side effect.
	EnsureModelAvailable(ctx context.Context, p llmclient.Provider, model string) bool
}
