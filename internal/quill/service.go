// Package quill is the entry point used by the HTTP API and the CLI: free
// chat, schema-bound chat, and document scoring with persisted results.
package quill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
	"quill/internal/schema"
	"quill/internal/scoring"
	"quill/internal/store"
	"quill/internal/structured"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrExportDisabled  = errors.New("report export is not configured")
)

// ChatError is returned by Chat once every attempt failed.
type ChatError struct {
	Attempts int
	Err      error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// ReportExporter keeps rendered reports in object storage.
type ReportExporter interface {
	Export(ctx context.Context, documentID, recordID, report string) (string, error)
	Key(documentID, recordID string) string
	Read(ctx context.Context, key string) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Reports(ctx context.Context, documentID string) ([]string, error)
}

type Options struct {
	Resolver *llm.Resolver
	// Invoker defaults to llm.NewInvoker(0).
	Invoker  structured.Invoker
	Store    store.Store
	Exporter ReportExporter
	Rubric   *scoring.Rubric

	DefaultModel    string
	DefaultProvider string
	MaxRetries      int
	Logger          *slog.Logger
}

type Service struct {
	resolver *llm.Resolver
	ctrl     *structured.Controller
	store    store.Store
	exporter ReportExporter
	rubric   *scoring.Rubric

	model    string
	provider string
	retries  int
	log      *slog.Logger
}

func New(opts Options) *Service {
	s := &Service{
		resolver: opts.Resolver,
		store:    opts.Store,
		exporter: opts.Exporter,
		rubric:   opts.Rubric,
		model:    opts.DefaultModel,
		provider: opts.DefaultProvider,
		retries:  opts.MaxRetries,
		log:      opts.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.resolver == nil {
		s.resolver = llm.NewResolver(llm.ResolverOptions{Logger: s.log})
	}
	if s.store == nil {
		s.store = store.NewMemory()
	}
	if s.rubric == nil {
		s.rubric = scoring.DefaultRubric()
	}
	if s.provider == "" {
		s.provider = string(llmclient.OpenAI)
	}
	if s.model == "" {
		s.model = "gpt-4o"
	}
	s.ctrl = structured.New(s.resolver, opts.Invoker, s.log)
	return s
}

func (s *Service) Rubric() *scoring.Rubric { return s.rubric }

func (s *Service) backend(model, provider string) (string, string) {
	return firstNonEmpty(model, s.model), firstNonEmpty(provider, s.provider)
}

func (s *Service) retriesOr(n int) int {
	if n > 0 {
		return n
	}
	return s.retries
}

type ChatRequest struct {
	Message     string
	Model       string
	Provider    string
	System      string
	History     []llmclient.Message
	Temperature *float64
	MaxTokens   int
	MaxRetries  int
}

// Chat returns the model's reply text. Resolution errors are returned as
// they are; backend failures only after every attempt failed, as *ChatError.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", fmt.Errorf("%w: message is required", ErrInvalidArgument)
	}
	model, provider := s.backend(req.Model, req.Provider)
	res, err := structured.RunText(ctx, s.ctrl, structured.Request{
		Model:       model,
		Provider:    provider,
		System:      req.System,
		History:     req.History,
		Message:     req.Message,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, s.retriesOr(req.MaxRetries), structured.NonEmpty, func(error) string { return "" })
	if err != nil {
		return "", err
	}
	if res.Fallback {
		return "", &ChatError{Attempts: res.Attempts, Err: res.LastErr}
	}
	return res.Value, nil
}

type StructuredRequest struct {
	Message    string
	Schema     *schema.Schema
	Model      string
	Provider   string
	System     string
	MaxRetries int
}

// ChatStructured always yields a value valid for req.Schema unless the
// backend cannot be resolved. Result.Fallback marks synthesized values.
func (s *Service) ChatStructured(ctx context.Context, req StructuredRequest) (structured.Result, error) {
	if req.Schema == nil {
		return structured.Result{}, fmt.Errorf("%w: schema is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Message) == "" {
		return structured.Result{}, fmt.Errorf("%w: message is required", ErrInvalidArgument)
	}
	model, provider := s.backend(req.Model, req.Provider)
	return s.ctrl.RunStructured(ctx, structured.Request{
		Model:    model,
		Provider: provider,
		System:   req.System,
		Message:  req.Message,
	}, req.Schema, s.retriesOr(req.MaxRetries))
}

type ScoreRequest struct {
	// DocumentID groups records of the same document. Empty gets a new id.
	DocumentID string
	Contents   map[string]string
	Model      string
	Provider   string
}

// ScoreDocument scores every rubric stage in req.Contents and saves the
// breakdown. The backend is resolved up front when any stage has content,
// so configuration errors are returned instead of turning into zero scores.
func (s *Service) ScoreDocument(ctx context.Context, req ScoreRequest, progress scoring.ProgressFunc) (store.Record, error) {
	if len(req.Contents) == 0 {
		return store.Record{}, fmt.Errorf("%w: no stage content", ErrInvalidArgument)
	}
	model, provider := s.backend(req.Model, req.Provider)
	if hasContent(req.Contents) {
		if _, err := s.resolver.Resolve(ctx, model, provider); err != nil {
			return store.Record{}, err
		}
	}
	b := scoring.NewAggregator(s.scorer(model, provider), s.rubric, s.log).ScoreDocument(ctx, req.Contents, progress)

	rec := store.NewRecord(req.DocumentID, b)
	rec.Model, rec.Provider = model, provider
	if err := s.store.Save(ctx, rec); err != nil {
		return rec, fmt.Errorf("save scoring record: %w", err)
	}
	s.log.InfoContext(ctx, "document scored", "record", rec.ID, "document", rec.DocumentID, "total", b.TotalScore, "skipped", len(b.Skipped))
	return rec, nil
}

func (s *Service) scorer(model, provider string) *scoring.Scorer {
	return scoring.NewScorer(s.ctrl, scoring.ScorerOptions{
		Model:      model,
		Provider:   provider,
		MaxRetries: s.retries,
		Rubric:     s.rubric,
		Logger:     s.log,
	})
}

type CritiqueRequest struct {
	Stage    string
	Content  string
	Model    string
	Provider string
}

// Critique returns structured feedback on one stage. Fallback feedback is
// not an error.
func (s *Service) Critique(ctx context.Context, req CritiqueRequest) (scoring.Feedback, error) {
	stage := scoring.StageID(strings.TrimSpace(req.Stage))
	if _, ok := s.rubric.Stage(stage); !ok {
		return scoring.Feedback{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidArgument, req.Stage)
	}
	if strings.TrimSpace(req.Content) == "" {
		return scoring.Feedback{}, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	model, provider := s.backend(req.Model, req.Provider)
	return s.scorer(model, provider).Critique(ctx, stage, req.Content)
}

func hasContent(contents map[string]string) bool {
	for _, v := range contents {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func (s *Service) Record(ctx context.Context, id string) (store.Record, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) Records(ctx context.Context, documentID string) ([]store.Record, error) {
	return s.store.ListByDocument(ctx, strings.TrimSpace(documentID))
}

func (s *Service) Summary(rec store.Record) scoring.Summary {
	return s.rubric.Summarize(rec.Breakdown)
}

// Report renders the plain-text report of a stored record.
func (s *Service) Report(ctx context.Context, recordID string) (string, error) {
	rec, err := s.Record(ctx, recordID)
	if err != nil {
		return "", err
	}
	return s.rubric.FormatReport(rec.DocumentID, rec.Breakdown), nil
}

// ExportReport uploads the record's report and returns the object key.
func (s *Service) ExportReport(ctx context.Context, recordID string) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	rec, err := s.Record(ctx, recordID)
	if err != nil {
		return "", err
	}
	return s.exporter.Export(ctx, rec.DocumentID, rec.ID, s.rubric.FormatReport(rec.DocumentID, rec.Breakdown))
}

// ExportedReport reads back the uploaded copy of a record's report and
// returns it with its object key.
func (s *Service) ExportedReport(ctx context.Context, recordID string) (key, report string, err error) {
	if s.exporter == nil {
		return "", "", ErrExportDisabled
	}
	rec, err := s.Record(ctx, recordID)
	if err != nil {
		return "", "", err
	}
	key = s.exporter.Key(rec.DocumentID, rec.ID)
	report, err = s.exporter.Read(ctx, key)
	if err != nil {
		return "", "", err
	}
	return key, report, nil
}

// ReportURL returns a download link for an exported report key. Stores
// without links return "".
func (s *Service) ReportURL(ctx context.Context, key string) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	return s.exporter.URL(ctx, key)
}

// ExportedReports lists the uploaded report keys of a document.
func (s *Service) ExportedReports(ctx context.Context, documentID string) ([]string, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidArgument)
	}
	return s.exporter.Reports(ctx, documentID)
}

// ListModels lists catalog entries, optionally for one provider.
func (s *Service) ListModels(provider string) ([]llm.ModelDescriptor, error) {
	var p llmclient.Provider
	if strings.TrimSpace(provider) != "" {
		parsed, err := llmclient.ParseProvider(provider)
		if err != nil {
			return nil, err
		}
		p = parsed
	}
	return s.resolver.Catalog().List(p), nil
}

// ClearCache drops every resolved client and reports how many there were.
func (s *Service) ClearCache() int {
	n := s.resolver.Len()
	s.resolver.ClearCache()
	s.log.Info("client cache cleared", "clients", n)
	return n
}

func (s *Service) Close() error {
	s.resolver.ClearCache()
	return s.store.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
