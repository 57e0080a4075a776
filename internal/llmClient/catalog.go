package llmclient

import (
	"context"
	"net/http"
	"time"
)

// Endpoint is everything a connector needs to construct a client.
type Endpoint struct {
	Provider Provider
	Model    string
	BaseURL  string
	APIKey   string
	// MaxTokens is the construction-time output cap. Only Ollama reads it;
	// every other connector takes the limit per call.
	MaxTokens     int
	ContextWindow int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

func (e Endpoint) baseURL() string {
	if e.BaseURL != "" {
		return trimSlash(e.BaseURL)
	}
	return e.Provider.DefaultBaseURL()
}

func (e Endpoint) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

type ClientFactory func(ctx context.Context, ep Endpoint) (ChatClient, error)

var connectors = map[Provider]ClientFactory{
	OpenAI:    newOpenAICompat,
	Groq:      newOpenAICompat,
	DeepSeek:  newOpenAICompat,
	LMStudio:  newOpenAICompat,
	Anthropic: func(_ context.Context, ep Endpoint) (ChatClient, error) { return NewAnthropicClient(ep), nil },
	Ollama:    func(_ context.Context, ep Endpoint) (ChatClient, error) { return NewOllamaClient(ep), nil },
	Gemini: func(ctx context.Context, ep Endpoint) (ChatClient, error) {
		return NewGeminiClient(ctx, ep)
	},
}

func newOpenAICompat(_ context.Context, ep Endpoint) (ChatClient, error) {
	return NewOpenAIClient(ep), nil
}

// Connector returns the factory for p.
func Connector(p Provider) (ClientFactory, bool) {
	f, ok := connectors[p]
	return f, ok
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
