package llmclient

import "strings"

// Provider identifies a backend family.
type Provider string

const (
	OpenAI    Provider = "OpenAI"
	Anthropic Provider = "Anthropic"
	Groq      Provider = "Groq"
	DeepSeek  Provider = "DeepSeek"
	Gemini    Provider = "Gemini"
	Ollama    Provider = "Ollama"
	LMStudio  Provider = "LMStudio"
)

var allProviders = []Provider{OpenAI, Anthropic, Groq, DeepSeek, Gemini, Ollama, LMStudio}

// Providers lists every supported provider in a stable order.
func Providers() []Provider {
	out := make([]Provider, len(allProviders))
	copy(out, allProviders)
	return out
}

// ParseProvider matches s case-insensitively against the supported
// providers. It returns *UnknownProviderError when nothing matches.
func ParseProvider(s string) (Provider, error) {
	s = strings.TrimSpace(s)
	for _, p := range allProviders {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", &UnknownProviderError{Provider: s}
}

// Local reports whether the provider is a locally hosted server.
func (p Provider) Local() bool {
	return p == Ollama || p == LMStudio
}

// RequiresKey reports whether an API key must be present before a call.
func (p Provider) RequiresKey() bool {
	return !p.Local()
}

// DefaultBaseURL is used when no endpoint override is configured.
func (p Provider) DefaultBaseURL() string {
	switch p {
	case OpenAI:
		return "https://api.openai.com/v1"
	case Anthropic:
		return "https://api.anthropic.com/v1"
	case Groq:
		return "https://api.groq.com/openai/v1"
	case DeepSeek:
		return "https://api.deepseek.com/v1"
	case Ollama:
		return "http://localhost:11434"
	case LMStudio:
		return "http://localhost:1234/v1"
	default:
		return ""
	}
}
