package llmclient

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("empty response from LLM")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized, provider-neutral chat request. It is built
// fresh for every call.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
}

// ChatClient is implemented by every provider connector. It only performs
// the API call; cross-cutting concerns are layered on with middleware.
type ChatClient interface {
	Name() string
	Chat(ctx context.Context, req Request) (string, error)
	Close() error
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(v float64) *float64 { return &v }

// SystemText joins all system messages, in order.
func (r Request) SystemText() string {
	var out string
	for _, m := range r.Messages {
		if m.Role != RoleSystem || m.Content == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}

// Turns returns the non-system messages, in order.
func (r Request) Turns() []Message {
	out := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
