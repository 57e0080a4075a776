package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("ollama")
	require.NoError(t, err)
	assert.Equal(t, Ollama, p)

	p, err = ParseProvider(" LMStudio ")
	require.NoError(t, err)
	assert.Equal(t, LMStudio, p)

	_, err = ParseProvider("Mistral")
	var unknown *UnknownProviderError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Mistral", unknown.Provider)
}

func TestOpenAIClientWireFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Endpoint{Provider: OpenAI, Model: "gpt-4o", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"})
	out, err := c.Chat(context.Background(), Request{
		Messages:    []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
		Temperature: Temperature(0.2),
		MaxTokens:   64,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, 64.0, got["max_tokens"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAIClientOmitsUnsetFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Endpoint{Provider: LMStudio, Model: "local", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	_, hasTemp := got["temperature"]
	_, hasFormat := got["response_format"]
	assert.False(t, hasTemp)
	assert.False(t, hasFormat)
}

func TestOpenAIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Endpoint{Provider: Groq, Model: "m", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Unauthorized())
	assert.Len(t, se.Body, maxErrorBody)
	assert.Contains(t, err.Error(), "groq: unexpected status")
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Endpoint{Provider: DeepSeek, Model: "deepseek-chat", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicClientWireFormat(t *testing.T) {
	var got anthropicReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(Endpoint{Provider: Anthropic, Model: "claude", BaseURL: srv.URL, APIKey: "key"})
	out, err := c.Chat(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, anthropicDefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, RoleAssistant, got.Messages[1].Role)
}

func TestOllamaClientFixesNumPredictAtConstruction(t *testing.T) {
	var got ollamaGenerateReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"{\"a\":1}","done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(Endpoint{Provider: Ollama, Model: "llama3.2", BaseURL: srv.URL, MaxTokens: 128, ContextWindow: 4096})
	out, err := c.Chat(context.Background(), Request{
		Messages:  []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
		MaxTokens: 999,
		JSONMode:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.Equal(t, 128, got.Options.NumPredict)
	assert.Equal(t, 4096, got.Options.NumCtx)
	assert.Equal(t, 0.9, got.Options.TopP)
	assert.Equal(t, 1.1, got.Options.RepeatPenalty)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, "System: sys\n\nUser: hi\n\nAssistant:", got.Prompt)
}

func TestListLocalModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"qwen2.5:7b"}]}`))
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"qwen2.5-7b-instruct"}]}`))
		case "/api/pull":
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	names, err := ListOllamaModels(ctx, srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "qwen2.5:7b"}, names)

	ids, err := ListLMStudioModels(ctx, srv.Client(), srv.URL+"/v1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5-7b-instruct"}, ids)

	require.NoError(t, PullOllamaModel(ctx, srv.Client(), srv.URL, "mistral"))
}

func TestConnectorTableCoversEveryProvider(t *testing.T) {
	for _, p := range Providers() {
		_, ok := Connector(p)
		assert.True(t, ok, string(p))
	}
}

func TestGeminiClientWireFormat(t *testing.T) {
	var (
		got  map[string]any
		path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":"},{"text":"true}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), Endpoint{
		Provider:   Gemini,
		Model:      "gemini-1.5-flash",
		APIKey:     "g-key",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	out, err := c.Chat(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "q1"},
			{Role: RoleAssistant, Content: "a1"},
			{Role: RoleUser, Content: "q2"},
		},
		Temperature: Temperature(0.5),
		MaxTokens:   128,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.True(t, strings.HasSuffix(path, "gemini-1.5-flash:generateContent"), path)

	sys := got["systemInstruction"].(map[string]any)
	assert.Equal(t, "sys", sys["parts"].([]any)[0].(map[string]any)["text"])

	contents := got["contents"].([]any)
	require.Len(t, contents, 3)
	var roles []string
	for _, c := range contents {
		roles = append(roles, c.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"user", "model", "user"}, roles)

	gen := got["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.Equal(t, 128.0, gen["maxOutputTokens"])
	assert.InDelta(t, 0.5, gen["temperature"], 1e-6)
}

func TestGeminiClientEmptyAndFailedReplies(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusOK {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), Endpoint{Provider: Gemini, Model: "gemini-1.5-flash", APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	req := Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	_, err = c.Chat(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	status.Store(http.StatusBadRequest)
	_, err = c.Chat(context.Background(), req)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResponse)
}
