package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/gateway/config"
	"quill/internal/gateway/handler/rpc"
	"quill/internal/gateway/server"
	"quill/internal/llm"
	"quill/internal/localruntime"
	"quill/internal/quill"
	"quill/internal/scoring"
)

type App struct {
	server  *server.Server
	svc     *quill.Service
	cleanup func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	svc, cleanup, err := NewService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := rpc.NewHandler(svc, logger)
	stream := rpc.NewScoreStream(svc, logger)

	// Routing & Server
	mux := server.NewMux(handler, stream)
	srv := server.New(cfg.Port, mux, logger)

	return &App{server: srv, svc: svc, cleanup: cleanup}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.cleanup()
	return err
}

// NewService builds the quill service from cfg. cleanup releases the
// store, the response cache and every resolved client.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*quill.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Dependencies
	catalog, err := llm.DefaultCatalog()
	if err != nil {
		return nil, nil, err
	}
	if cfg.CatalogFile != "" {
		if err := catalog.LoadFile(cfg.CatalogFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}
	rubric := scoring.DefaultRubric()
	if cfg.RubricFile != "" {
		if rubric, err = scoring.LoadRubric(cfg.RubricFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load rubric: %w", err)
		}
	}

	var closers []func() error
	cache, closeCache := initResponseCache(ctx, cfg, logger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}
	mws := []llm.Middleware{llm.WithLogging(logger)}
	if cache != nil {
		mws = append(mws, llm.WithCache(cache, logger))
	}

	runtime := localruntime.New(localruntime.Options{
		Credentials:  cfg,
		AutoPull:     true,
		AvailableTTL: 5 * time.Minute,
		Logger:       logger,
	})
	resolver := llm.NewResolver(llm.ResolverOptions{
		Catalog:     catalog,
		Credentials: cfg,
		Runtime:     runtime,
		Middlewares: mws,
		PerProvider: rateLimits(cfg),
		Timeout:     cfg.RequestTimeout,
		Logger:      logger,
	})

	st, err := initStore(ctx, cfg, logger)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, err
	}
	exporter, err := initExporter(cfg, logger)
	if err != nil {
		_ = st.Close()
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, err
	}

	opts := quill.Options{
		Resolver:        resolver,
		Invoker:         llm.NewInvoker(cfg.RequestTimeout),
		Store:           st,
		Rubric:          rubric,
		DefaultModel:    cfg.DefaultModel,
		DefaultProvider: cfg.DefaultProvider,
		MaxRetries:      cfg.MaxRetries,
		Logger:          logger,
	}
	if exporter != nil {
		opts.Exporter = exporter
	}
	svc := quill.New(opts)
	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close service", "err", err)
		}
		for _, c := range closers {
			_ = c()
		}
	}
	return svc, cleanup, nil
}
