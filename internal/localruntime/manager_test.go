package localruntime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
)

type ollamaServer struct {
	models []string
	lists  atomic.Int32

	mu     sync.Mutex
	pulled []string
}

func (o *ollamaServer) pulls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.pulled...)
}

func (o *ollamaServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		o.lists.Add(1)
		var out struct {
			Models []map[string]string `json:"models"`
		}
		for _, m := range o.models {
			out.Models = append(out.Models, map[string]string{"name": m})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name   string `json:"name"`
			Stream bool   `json:"stream"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.False(t, in.Stream)
		o.mu.Lock()
		o.pulled = append(o.pulled, in.Name)
		o.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	return mux
}

func newManager(url string, autoPull bool) *Manager {
	return New(Options{
		Credentials: llm.StaticCredentials{BaseURLs: map[llmclient.Provider]string{
			llmclient.Ollama:   url,
			llmclient.LMStudio: url + "/v1",
		}},
		AutoPull: autoPull,
	})
}

func TestMatchOllama(t *testing.T) {
	installed := []string{"llama3.2:latest", "qwen2.5:7b"}
	assert.Equal(t, "llama3.2:latest", matchOllama(installed, "llama3.2"))
	assert.Equal(t, "llama3.2:latest", matchOllama(installed, "llama3.2:latest"))
	assert.Equal(t, "qwen2.5:7b", matchOllama(installed, "qwen2.5:14b"))
	assert.Equal(t, "", matchOllama(installed, "mistral"))
}

func TestOllamaAvailability(t *testing.T) {
	o := &ollamaServer{models: []string{"llama3.2:latest"}}
	srv := httptest.NewServer(o.handler(t))
	defer srv.Close()
	m := newManager(srv.URL, false)
	ctx := context.Background()

	assert.True(t, m.IsRunning(ctx, llmclient.Ollama))
	assert.True(t, m.EnsureModelAvailable(ctx, llmclient.Ollama, "llama3.2"))
	before := o.lists.Load()
	assert.True(t, m.EnsureModelAvailable(ctx, llmclient.Ollama, "llama3.2"))
	assert.Equal(t, before, o.lists.Load(), "positive answers are cached")

	assert.False(t, m.EnsureModelAvailable(ctx, llmclient.Ollama, "mistral"))
	assert.Empty(t, o.pulls())
}

func TestOllamaAutoPull(t *testing.T) {
	o := &ollamaServer{}
	srv := httptest.NewServer(o.handler(t))
	defer srv.Close()
	m := newManager(srv.URL, true)

	assert.True(t, m.EnsureModelAvailable(context.Background(), llmclient.Ollama, "mistral"))
	assert.Equal(t, []string{"mistral:latest"}, o.pulls())
}

func TestLMStudioAvailability(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"qwen2.5-7b-instruct"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	m := newManager(srv.URL, true)
	ctx := context.Background()

	assert.True(t, m.IsRunning(ctx, llmclient.LMStudio))
	assert.True(t, m.EnsureModelAvailable(ctx, llmclient.LMStudio, "qwen2.5-7b-instruct"))
	assert.False(t, m.EnsureModelAvailable(ctx, llmclient.LMStudio, "other"))
}

func TestServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	m := newManager(url, true)
	ctx := context.Background()
	assert.False(t, m.IsRunning(ctx, llmclient.Ollama))
	assert.False(t, m.EnsureModelAvailable(ctx, llmclient.Ollama, "llama3.2"))
	assert.False(t, m.IsRunning(ctx, llmclient.OpenAI))
}

func TestResolverConsultsManager(t *testing.T) {
	o := &ollamaServer{models: []string{"llama3.2:latest"}}
	srv := httptest.NewServer(o.handler(t))
	defer srv.Close()
	m := newManager(srv.URL, false)

	r := llm.NewResolver(llm.ResolverOptions{
		Runtime:   m,
		Connector: llm.FakeConnector(func(llmclient.Endpoint) llmclient.ChatClient { return llm.NewFakeClient() }),
	})
	_, err := r.Resolve(context.Background(), "llama3.2", "Ollama")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "mistral", "Ollama")
	var mu *llmclient.ModelUnavailableError
	assert.ErrorAs(t, err, &mu)
}
