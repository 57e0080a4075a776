package llm

import (
	"context"
	"time"

	llmclient "quill/internal/llmClient"
)

const DefaultTimeout = 30 * time.Second

// Invoker applies runtime parameters and provider quirks, then performs a
// single backend call. It never retries.
type Invoker struct {
	timeout time.Duration
}

// NewInvoker returns an invoker whose calls are bounded by timeout. A
// non-positive timeout uses DefaultTimeout.
func NewInvoker(timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{timeout: timeout}
}

// BuildMessages orders a conversation as system, prior turns, user turn.
// Empty system and user texts are dropped.
func BuildMessages(system string, history []llmclient.Message, user string) []llmclient.Message {
	out := make([]llmclient.Message, 0, len(history)+2)
	if system != "" {
		out = append(out, llmclient.Message{Role: llmclient.RoleSystem, Content: system})
	}
	out = append(out, history...)
	if user != "" {
		out = append(out, llmclient.Message{Role: llmclient.RoleUser, Content: user})
	}
	return out
}

// Invoke sends req through rc and returns the raw reply text. Failures are
// returned as *llmclient.BackendError, including timeouts.
func (iv *Invoker) Invoke(ctx context.Context, req llmclient.Request, rc *ResolvedClient) (string, error) {
	desc := rc.Descriptor()
	if req.Temperature == nil && desc.Temperature != nil {
		t := *desc.Temperature
		req.Temperature = &t
	}
	if req.JSONMode && !desc.SupportsJSONMode() {
		req.JSONMode = false
	}

	var client llmclient.ChatClient
	if desc.Provider == llmclient.Ollama {
		// num_predict is fixed per client; a different cap means a new client.
		// Uncapped calls go back to the descriptor's cap.
		limit := req.MaxTokens
		if limit <= 0 {
			limit = desc.MaxTokens
		}
		c, err := rc.withOutputCap(ctx, limit)
		if err != nil {
			return "", &llmclient.BackendError{Provider: desc.Provider, Model: desc.BackendID, Err: err}
		}
		client = c
	} else {
		if req.MaxTokens <= 0 && desc.MaxTokens > 0 {
			req.MaxTokens = desc.MaxTokens
		}
		client = rc.Client()
	}

	callCtx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()
	out, err := client.Chat(callCtx, req)
	if err != nil {
		return "", &llmclient.BackendError{Provider: desc.Provider, Model: desc.BackendID, Err: err}
	}
	return out, nil
}
