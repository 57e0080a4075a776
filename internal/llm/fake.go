package llm

import (
	"context"
	"sync"

	llmclient "quill/internal/llmClient"
)

// FakeReply is one scripted result of a FakeClient call.
type FakeReply struct {
	Text string
	Err  error
}

// FakeClient returns scripted replies for offline runs and tests. Replies
// are consumed in order and the last one repeats. Respond, when set, takes
// precedence over the script.
type FakeClient struct {
	Label   string
	Replies []FakeReply
	Respond func(ctx context.Context, req llmclient.Request) (string, error)

	mu       sync.Mutex
	requests []llmclient.Request
	closed   int
}

func NewFakeClient(replies ...FakeReply) *FakeClient {
	return &FakeClient{Label: "Fake:fake", Replies: replies}
}

func (f *FakeClient) Name() string { return f.Label }

func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *FakeClient) Chat(ctx context.Context, req llmclient.Request) (string, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	respond := f.Respond
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(ctx, req)
	}
	if len(f.Replies) == 0 {
		return "{}", nil
	}
	if n >= len(f.Replies) {
		n = len(f.Replies) - 1
	}
	r := f.Replies[n]
	return r.Text, r.Err
}

// Calls reports how many requests reached the client.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of every request received.
func (f *FakeClient) Requests() []llmclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llmclient.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// FakeConnector builds every provider's clients with newClient, for use as
// ResolverOptions.Connector.
func FakeConnector(newClient func(ep llmclient.Endpoint) llmclient.ChatClient) func(llmclient.Provider) (llmclient.ClientFactory, bool) {
	return func(llmclient.Provider) (llmclient.ClientFactory, bool) {
		return func(_ context.Context, ep llmclient.Endpoint) (llmclient.ChatClient, error) {
			return newClient(ep), nil
		}, true
	}
}

// StaticCredentials is a map-backed CredentialProvider.
type StaticCredentials struct {
	Keys     map[llmclient.Provider]string
	BaseURLs map[llmclient.Provider]string
}

func (s StaticCredentials) APIKey(p llmclient.Provider) (string, bool) {
	v, ok := s.Keys[p]
	return v, ok && v != ""
}

func (s StaticCredentials) BaseURL(p llmclient.Provider) (string, bool) {
	v, ok := s.BaseURLs[p]
	return v, ok && v != ""
}
