package llmclient

import (
	"context"
	"net/http"
	"strings"
)

// OllamaClient calls the Ollama generate endpoint. The output token cap
// (num_predict) is fixed when the client is built; Request.MaxTokens is
// ignored, so callers rebuild the client to change it.
type OllamaClient struct {
	http       *http.Client
	model      string
	baseURL    string
	numPredict int
	numCtx     int
}

func NewOllamaClient(ep Endpoint) *OllamaClient {
	return &OllamaClient{
		http:       ep.httpClient(),
		model:      ep.Model,
		baseURL:    ep.baseURL(),
		numPredict: ep.MaxTokens,
		numCtx:     ep.ContextWindow,
	}
}

func (c *OllamaClient) Name() string    { return "Ollama:" + c.model }
func (c *OllamaClient) Close() error    { return nil }
func (c *OllamaClient) NumPredict() int { return c.numPredict }

type ollamaOptions struct {
	NumPredict    int      `json:"num_predict,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	NumCtx        int      `json:"num_ctx,omitempty"`
}

type ollamaGenerateReq struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResp struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *OllamaClient) Chat(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateReq{
		Model:  c.model,
		Prompt: renderPrompt(req.Messages),
		Options: ollamaOptions{
			NumPredict:    c.numPredict,
			Temperature:   req.Temperature,
			TopP:          0.9,
			RepeatPenalty: 1.1,
			NumCtx:        c.numCtx,
		},
	}
	if req.JSONMode {
		body.Format = "json"
	}
	var out ollamaGenerateResp
	if err := postJSON(ctx, c.http, Ollama, c.baseURL+"/api/generate", nil, body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyResponse
	}
	return out.Response, nil
}

// renderPrompt flattens the conversation into labelled turns and leaves an
// open assistant turn when the last message came from the user.
func renderPrompt(msgs []Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch m.Role {
		case RoleSystem:
			sb.WriteString("System: ")
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == RoleUser {
		sb.WriteString("\n\nAssistant:")
	}
	return sb.String()
}
