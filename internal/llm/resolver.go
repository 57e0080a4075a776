package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	llmclient "quill/internal/llmClient"
)

// ResolvedClient is the cached handle for one (provider, model) pair. The
// handle itself stays stable; for Ollama the underlying client is rebuilt
// when the requested output cap changes.
type ResolvedClient struct {
	desc  ModelDescriptor
	build func(ctx context.Context, maxTokens int) (llmclient.ChatClient, error)

	mu        sync.Mutex
	client    llmclient.ChatClient
	maxTokens int
}

func (rc *ResolvedClient) Descriptor() ModelDescriptor { return rc.desc }
func (rc *ResolvedClient) Provider() llmclient.Provider { return rc.desc.Provider }

func (rc *ResolvedClient) Name() string {
	return string(rc.desc.Provider) + ":" + rc.desc.BackendID
}

// Client returns the current underlying client.
func (rc *ResolvedClient) Client() llmclient.ChatClient {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client
}

// withOutputCap returns a client constructed with maxTokens, rebuilding the
// underlying client when the cap differs from the last build.
func (rc *ResolvedClient) withOutputCap(ctx context.Context, maxTokens int) (llmclient.ChatClient, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if maxTokens == rc.maxTokens && rc.client != nil {
		return rc.client, nil
	}
	next, err := rc.build(ctx, maxTokens)
	if err != nil {
		return nil, err
	}
	if rc.client != nil {
		_ = rc.client.Close()
	}
	rc.client = next
	rc.maxTokens = maxTokens
	return next, nil
}

func (rc *ResolvedClient) close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

type ResolverOptions struct {
	Catalog     *Catalog
	Credentials CredentialProvider
	// Runtime may be nil, in which case local servers are not checked.
	Runtime     RuntimeManager
	Middlewares []Middleware
	// PerProvider adds middlewares inside the shared ones, e.g. rate limits.
	PerProvider func(llmclient.Provider) []Middleware
	// Timeout bounds HTTP calls made by constructed clients.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Connector overrides the connector lookup table, mainly for tests.
	Connector func(llmclient.Provider) (llmclient.ClientFactory, bool)
}

// Resolver maps (model, provider) to a cached client. The cache is
// unbounded and only cleared by ClearCache.
type Resolver struct {
	catalog   *Catalog
	creds     CredentialProvider
	runtime   RuntimeManager
	mws       []Middleware
	perProv   func(llmclient.Provider) []Middleware
	timeout   time.Duration
	hc        *http.Client
	log       *slog.Logger
	connector func(llmclient.Provider) (llmclient.ClientFactory, bool)

	mu      sync.Mutex
	clients map[string]*ResolvedClient
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		catalog:   opts.Catalog,
		creds:     opts.Credentials,
		runtime:   opts.Runtime,
		mws:       opts.Middlewares,
		perProv:   opts.PerProvider,
		timeout:   opts.Timeout,
		hc:        opts.HTTPClient,
		log:       opts.Logger,
		connector: opts.Connector,
		clients:   map[string]*ResolvedClient{},
	}
	if r.catalog == nil {
		r.catalog = NewCatalog()
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.connector == nil {
		r.connector = llmclient.Connector
	}
	return r
}

func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Resolve returns the cached client for (model, provider), constructing it
// on first use. Resolution errors are *llmclient.UnknownProviderError,
// *llmclient.CredentialError and *llmclient.ModelUnavailableError.
func (r *Resolver) Resolve(ctx context.Context, model, provider string) (*ResolvedClient, error) {
	p, err := llmclient.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, &llmclient.ModelUnavailableError{Provider: p, Reason: "model name is empty"}
	}
	desc := r.catalog.Describe(p, model)
	key := keyFor(p, desc.BackendID)

	r.mu.Lock()
	if rc, ok := r.clients[key]; ok {
		r.mu.Unlock()
		return rc, nil
	}
	r.mu.Unlock()

	rc, err := r.construct(ctx, desc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[key]; ok {
		_ = rc.close()
		return existing, nil
	}
	r.clients[key] = rc
	r.log.InfoContext(ctx, "llm client constructed", "provider", p, "model", desc.BackendID)
	return rc, nil
}

func (r *Resolver) construct(ctx context.Context, desc ModelDescriptor) (*ResolvedClient, error) {
	p := desc.Provider
	factory, ok := r.connector(p)
	if !ok {
		return nil, &llmclient.UnknownProviderError{Provider: string(p)}
	}

	ep := llmclient.Endpoint{
		Provider:      p,
		Model:         desc.BackendID,
		ContextWindow: desc.ContextWindow,
		Timeout:       r.timeout,
		HTTPClient:    r.hc,
	}
	if r.creds != nil {
		ep.APIKey, _ = r.creds.APIKey(p)
		ep.BaseURL, _ = r.creds.BaseURL(p)
	}
	if p.RequiresKey() && strings.TrimSpace(ep.APIKey) == "" {
		return nil, &llmclient.CredentialError{Provider: p}
	}

	if p.Local() && r.runtime != nil {
		if !r.runtime.IsRunning(ctx, p) {
			return nil, &llmclient.ModelUnavailableError{Provider: p, Model: desc.BackendID, Reason: "server is not running"}
		}
		if !r.runtime.EnsureModelAvailable(ctx, p, desc.BackendID) {
			return nil, &llmclient.ModelUnavailableError{Provider: p, Model: desc.BackendID}
		}
	}

	mws := append([]Middleware{}, r.mws...)
	if r.perProv != nil {
		mws = append(mws, r.perProv(p)...)
	}
	build := func(ctx context.Context, maxTokens int) (llmclient.ChatClient, error) {
		e := ep
		e.MaxTokens = maxTokens
		c, err := factory(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("construct %s client: %w", p, err)
		}
		return Wrap(c, mws...), nil
	}

	initialCap := 0
	if p == llmclient.Ollama {
		initialCap = desc.MaxTokens
	}
	c, err := build(ctx, initialCap)
	if err != nil {
		return nil, err
	}
	return &ResolvedClient{desc: desc, build: build, client: c, maxTokens: initialCap}, nil
}

// ClearCache drops every cached client and closes it.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	old := r.clients
	r.clients = map[string]*ResolvedClient{}
	r.mu.Unlock()
	for _, rc := range old {
		_ = rc.close()
	}
}

// Len reports the number of cached clients.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
