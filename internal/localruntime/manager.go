// Package localruntime checks locally hosted model servers (Ollama and LM
// Studio) before the resolver builds a client for them.
package localruntime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
)

const (
	pingTimeout = 3 * time.Second
	pullTimeout  = 30 * time.Minute
)

type Options struct {
	// Credentials supplies base URL overrides and the optional LM Studio key.
	Credentials llm.CredentialProvider
	HTTPClient  *http.Client
	// AutoPull downloads missing Ollama models.
	AutoPull bool
	// AvailableTTL is how long a positive availability answer is reused.
	AvailableTTL time.Duration
	Logger       *slog.Logger
}

// Manager implements llm.RuntimeManager.
type Manager struct {
	creds     llm.CredentialProvider
	hc        *http.Client
	autoPull  bool
	available *expirable.LRU[string, bool]
	log       *slog.Logger
}

func New(opts Options) *Manager {
	ttl := opts.AvailableTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		creds:     opts.Credentials,
		hc:        hc,
		autoPull:  opts.AutoPull,
		available: expirable.NewLRU[string, bool](256, nil, ttl),
		log:       logger,
	}
}

var _ llm.RuntimeManager = (*Manager)(nil)

func (m *Manager) baseURL(p llmclient.Provider) string {
	if m.creds != nil {
		if u, ok := m.creds.BaseURL(p); ok {
			return u
		}
	}
	return p.DefaultBaseURL()
}

func (m *Manager) apiKey(p llmclient.Provider) string {
	if m.creds == nil {
		return ""
	}
	k, _ := m.creds.APIKey(p)
	return k
}

// Installed lists the models a local server can serve right now.
func (m *Manager) Installed(ctx context.Context, p llmclient.Provider) ([]string, error) {
	switch p {
	case llmclient.Ollama:
		return llmclient.ListOllamaModels(ctx, m.hc, m.baseURL(p))
	case llmclient.LMStudio:
		return llmclient.ListLMStudioModels(ctx, m.hc, m.baseURL(p), m.apiKey(p))
	default:
		return nil, &llmclient.UnknownProviderError{Provider: string(p)}
	}
}

// IsRunning reports whether the server answers its model listing.
func (m *Manager) IsRunning(ctx context.Context, p llmclient.Provider) bool {
	if !p.Local() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := m.Installed(ctx, p); err != nil {
		m.log.DebugContext(ctx, "local runtime not reachable", "provider", p, "err", err)
		return false
	}
	return true
}

// EnsureModelAvailable reports whether model can be served. For Ollama a
// missing model is pulled when AutoPull is set; LM Studio models must be
// loaded by the user.
func (m *Manager) EnsureModelAvailable(ctx context.Context, p llmclient.Provider, model string) bool {
	key := string(p) + "::" + model
	if ok, hit := m.available.Get(key); hit && ok {
		return true
	}

	listCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	names, err := m.Installed(listCtx, p)
	cancel()
	if err != nil {
		m.log.WarnContext(ctx, "list local models failed", "provider", p, "err", err)
		return false
	}

	var ok bool
	switch p {
	case llmclient.Ollama:
		ok = matchOllama(names, model) != ""
		if !ok && m.autoPull {
			ok = m.pull(ctx, model)
		}
	case llmclient.LMStudio:
		for _, n := range names {
			if n == model {
				ok = true
				break
			}
		}
		if !ok {
			m.log.WarnContext(ctx, "model not loaded in LM Studio", "model", model, "loaded", names)
		}
	}
	if ok {
		m.available.Add(key, true)
	}
	return ok
}

func (m *Manager) pull(ctx context.Context, model string) bool {
	name := model
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	m.log.InfoContext(ctx, "pulling ollama model", "model", name)
	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()
	if err := llmclient.PullOllamaModel(ctx, m.hc, m.baseURL(llmclient.Ollama), name); err != nil {
		m.log.WarnContext(ctx, "ollama pull failed", "model", name, "err", err)
		return false
	}
	return true
}

// matchOllama finds model among installed names: exact, then "model:tag",
// then same base name with any tag.
func matchOllama(installed []string, model string) string {
	for _, n := range installed {
		if n == model {
			return n
		}
	}
	for _, n := range installed {
		if strings.HasPrefix(n, model+":") {
			return n
		}
	}
	base, _, _ := strings.Cut(model, ":")
	for _, n := range installed {
		if b, _, _ := strings.Cut(n, ":"); b == base {
			return n
		}
	}
	return ""
}
