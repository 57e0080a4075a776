package llm

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	llmclient "quill/internal/llmClient"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ModelDescriptor describes one known backend model. Values returned by the
// catalog are copies; the catalog entry itself never changes after load.
type ModelDescriptor struct {
	DisplayName   string             `json:"display_name"`
	BackendID     string             `json:"backend_id"`
	Provider      llmclient.Provider `json:"provider"`
	MaxTokens     int                `json:"max_tokens,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	JSONMode      *bool              `json:"-"`
	Streaming     bool               `json:"supports_streaming"`
	ContextWindow int                `json:"context_window,omitempty"`
}

// SupportsJSONMode returns the explicit flag when set and the derived value
// otherwise.
func (d ModelDescriptor) SupportsJSONMode() bool {
	if d.JSONMode != nil {
		return *d.JSONMode
	}
	return DeriveJSONMode(d.Provider, d.BackendID)
}

var ollamaJSONFamilies = []string{"llama3", "llama3.1", "llama3.2", "neural-chat", "mistral", "mixtral", "qwen", "codeqwen"}

// DeriveJSONMode decides JSON-mode support from provider and backend id.
// DeepSeek and Gemini never support it; Ollama only for known families.
func DeriveJSONMode(p llmclient.Provider, backendID string) bool {
	id := strings.ToLower(strings.TrimSpace(backendID))
	if strings.HasPrefix(id, "deepseek") || strings.HasPrefix(id, "gemini") {
		return false
	}
	switch p {
	case llmclient.DeepSeek, llmclient.Gemini:
		return false
	case llmclient.Ollama:
		for _, fam := range ollamaJSONFamilies {
			if strings.Contains(id, fam) {
				return true
			}
		}
		return false
	case llmclient.OpenAI, llmclient.Anthropic, llmclient.Groq, llmclient.LMStudio:
		return true
	default:
		return false
	}
}

// Catalog is an in-memory registry of model descriptors keyed by
// provider and backend id.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]ModelDescriptor
	order  []string
}

func NewCatalog() *Catalog {
	return &Catalog{models: map[string]ModelDescriptor{}}
}

// DefaultCatalog returns a catalog loaded with the built-in model list.
func DefaultCatalog() (*Catalog, error) {
	c := NewCatalog()
	if err := c.LoadYAML(defaultCatalogYAML); err != nil {
		return nil, fmt.Errorf("load built-in catalog: %w", err)
	}
	return c, nil
}

func keyFor(p llmclient.Provider, backendID string) string {
	return strings.ToLower(string(p)) + "::" + strings.TrimSpace(backendID)
}

// Register adds d, replacing any entry with the same provider and backend id.
func (c *Catalog) Register(d ModelDescriptor) error {
	d.BackendID = strings.TrimSpace(d.BackendID)
	if d.BackendID == "" {
		return fmt.Errorf("register model: backend id is required")
	}
	if _, err := llmclient.ParseProvider(string(d.Provider)); err != nil {
		return fmt.Errorf("register model %q: %w", d.BackendID, err)
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		d.DisplayName = d.BackendID
	}
	k := keyFor(d.Provider, d.BackendID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.models[k]; !ok {
		c.order = append(c.order, k)
	}
	c.models[k] = d
	return nil
}

type catalogEntry struct {
	DisplayName   string   `yaml:"display_name"`
	BackendID     string   `yaml:"backend_id"`
	Provider      string   `yaml:"provider"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   *float64 `yaml:"temperature"`
	JSONMode      *bool    `yaml:"supports_json_mode"`
	Streaming     bool     `yaml:"supports_streaming"`
	ContextWindow int      `yaml:"context_window"`
}

type catalogFile struct {
	Models []catalogEntry `yaml:"models"`
}

// LoadYAML registers every entry of a catalog document.
func (c *Catalog) LoadYAML(data []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for _, e := range f.Models {
		p, err := llmclient.ParseProvider(e.Provider)
		if err != nil {
			return fmt.Errorf("model %q: %w", e.BackendID, err)
		}
		if err := c.Register(ModelDescriptor{
			DisplayName:   e.DisplayName,
			BackendID:     e.BackendID,
			Provider:      p,
			MaxTokens:     e.MaxTokens,
			Temperature:   e.Temperature,
			JSONMode:      e.JSONMode,
			Streaming:     e.Streaming,
			ContextWindow: e.ContextWindow,
		}); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile layers a YAML catalog file over the current entries.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := c.LoadYAML(data); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	return nil
}

// Lookup finds a descriptor by backend id, falling back to a
// case-insensitive display name match.
func (c *Catalog) Lookup(p llmclient.Provider, name string) (ModelDescriptor, bool) {
	name = strings.TrimSpace(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.models[keyFor(p, name)]; ok {
		return d, true
	}
	for _, k := range c.order {
		d := c.models[k]
		if d.Provider == p && strings.EqualFold(d.DisplayName, name) {
			return d, true
		}
	}
	return ModelDescriptor{}, false
}

// Describe returns the catalog entry for name, or an ad hoc descriptor with
// derived capabilities when the model is not listed.
func (c *Catalog) Describe(p llmclient.Provider, name string) ModelDescriptor {
	if d, ok := c.Lookup(p, name); ok {
		return d
	}
	name = strings.TrimSpace(name)
	return ModelDescriptor{DisplayName: name, BackendID: name, Provider: p}
}

// List returns descriptors in registration order. An empty provider lists
// every model.
func (c *Catalog) List(p llmclient.Provider) []ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelDescriptor, 0, len(c.order))
	for _, k := range c.order {
		d := c.models[k]
		if p != "" && d.Provider != p {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Providers returns the providers that have at least one entry, sorted.
func (c *Catalog) Providers() []llmclient.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[llmclient.Provider]bool{}
	for _, d := range c.models {
		seen[d.Provider] = true
	}
	out := make([]llmclient.Provider, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
