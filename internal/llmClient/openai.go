package llmclient

import (
	"context"
	"net/http"
	"strings"
)

// OpenAIClient calls an OpenAI-compatible Chat Completions API. OpenAI,
// Groq, DeepSeek and LM Studio all speak this format.
type OpenAIClient struct {
	http     *http.Client
	provider Provider
	apiKey   string
	model    string
	baseURL  string
}

func NewOpenAIClient(ep Endpoint) *OpenAIClient {
	return &OpenAIClient{
		http:     ep.httpClient(),
		provider: ep.Provider,
		apiKey:   ep.APIKey,
		model:    ep.Model,
		baseURL:  ep.baseURL(),
	}
}

func (c *OpenAIClient) Name() string { return string(c.provider) + ":" + c.model }
func (c *OpenAIClient) Close() error { return nil }

type chatCompletionReq struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Chat(ctx context.Context, req Request) (string, error) {
	body := chatCompletionReq{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	var out chatCompletionResp
	if err := postJSON(ctx, c.http, c.provider, c.baseURL+"/chat/completions", headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
