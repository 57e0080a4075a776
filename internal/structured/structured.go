// Package structured runs model calls that must end in a usable value: a
// bounded retry loop over invoke and parse, with a synthesized default once
// the attempts run out.
package structured

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"quill/internal/extract"
	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
	"quill/internal/locale"
	"quill/internal/schema"
)

const DefaultMaxRetries = 3

// ErrEmptyReply is the parse error for a blank free-text reply.
var ErrEmptyReply = errors.New("structured: empty reply")

type Resolver interface {
	Resolve(ctx context.Context, model, provider string) (*llm.ResolvedClient, error)
}

type Invoker interface {
	Invoke(ctx context.Context, req llmclient.Request, rc *llm.ResolvedClient) (string, error)
}

// Request is one logical call. Model and Provider name the backend;
// History holds earlier turns placed between System and Message.
type Request struct {
	Model       string
	Provider    string
	System      string
	History     []llmclient.Message
	Message     string
	Temperature *float64
	MaxTokens   int
	// Locale selects placeholder language for synthesized defaults. Empty
	// means detect from Message.
	Locale locale.Locale
}

func (r Request) locale() locale.Locale {
	if r.Locale != "" {
		return r.Locale
	}
	return locale.Detect(r.Message, locale.Chinese)
}

// Result is the outcome of RunStructured. Fallback marks a synthesized
// value; LastErr then holds the final attempt's failure.
type Result struct {
	Value    map[string]any
	Fallback bool
	Attempts int
	Strategy extract.Strategy
	LastErr  error
}

// Controller owns the retry loop. It never retries resolution errors.
type Controller struct {
	resolver Resolver
	invoker  Invoker
	log      *slog.Logger
}

func New(resolver Resolver, invoker Invoker, logger *slog.Logger) *Controller {
	if invoker == nil {
		invoker = llm.NewInvoker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{resolver: resolver, invoker: invoker, log: logger}
}

func attemptsFor(maxRetries int) int {
	if maxRetries <= 0 {
		return DefaultMaxRetries
	}
	return maxRetries
}

// RunStructured asks for a JSON object matching s and makes up to
// maxRetries attempts. Backend and extraction failures are swallowed; once
// attempts are exhausted the result is s.Synthesize with Fallback set. The
// only returned errors are resolution errors from the resolver.
func (c *Controller) RunStructured(ctx context.Context, req Request, s *schema.Schema, maxRetries int) (Result, error) {
	rc, err := c.resolver.Resolve(ctx, req.Model, req.Provider)
	if err != nil {
		return Result{}, err
	}

	system := s.Instruction()
	if strings.TrimSpace(req.System) != "" {
		system = req.System + "\n\n" + system
	}
	call := llmclient.Request{
		Messages:    llm.BuildMessages(system, req.History, req.Message),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSONMode:    true,
	}

	limit := attemptsFor(maxRetries)
	var res Result
	for res.Attempts < limit {
		if ctx.Err() != nil {
			res.LastErr = ctx.Err()
			break
		}
		res.Attempts++
		out, err := c.invoker.Invoke(attemptCtx(ctx, res.Attempts), call, rc)
		if err != nil {
			res.LastErr = err
			c.log.DebugContext(ctx, "structured attempt failed", "schema", s.Name(), "attempt", res.Attempts, "err", err)
			continue
		}
		ex := extract.Extract(out, s)
		if ex.OK() {
			res.Value = ex.Value
			res.Strategy = ex.Strategy
			res.LastErr = nil
			return res, nil
		}
		res.LastErr = ex.Err
		c.log.DebugContext(ctx, "structured extraction failed", "schema", s.Name(), "attempt", res.Attempts, "client", rc.Name())
	}

	c.log.WarnContext(ctx, "structured output fell back to defaults",
		"schema", s.Name(), "client", rc.Name(), "attempts", res.Attempts, "err", res.LastErr)
	res.Value = s.Synthesize(req.locale())
	res.Fallback = true
	return res, nil
}

// TextResult is the outcome of RunText.
type TextResult[T any] struct {
	Value    T
	Raw      string
	Fallback bool
	Attempts int
	LastErr  error
}

// RunText is the free-text mode: the reply is handed to parse, and a parse
// error counts as a failed attempt like a backend error. After maxRetries
// failures the result carries fallback() instead.
func RunText[T any](ctx context.Context, c *Controller, req Request, maxRetries int, parse func(string) (T, error), fallback func(lastErr error) T) (TextResult[T], error) {
	rc, err := c.resolver.Resolve(ctx, req.Model, req.Provider)
	if err != nil {
		return TextResult[T]{}, err
	}
	call := llmclient.Request{
		Messages:    llm.BuildMessages(req.System, req.History, req.Message),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	limit := attemptsFor(maxRetries)
	var res TextResult[T]
	for res.Attempts < limit {
		if ctx.Err() != nil {
			res.LastErr = ctx.Err()
			break
		}
		res.Attempts++
		out, err := c.invoker.Invoke(attemptCtx(ctx, res.Attempts), call, rc)
		if err != nil {
			res.LastErr = err
			c.log.DebugContext(ctx, "text attempt failed", "stage", llm.StageFrom(ctx), "attempt", res.Attempts, "err", err)
			continue
		}
		v, err := parse(out)
		if err != nil {
			res.LastErr = err
			continue
		}
		res.Value = v
		res.Raw = out
		res.LastErr = nil
		return res, nil
	}

	c.log.WarnContext(ctx, "text call fell back", "stage", llm.StageFrom(ctx), "client", rc.Name(), "attempts", res.Attempts, "err", res.LastErr)
	res.Value = fallback(res.LastErr)
	res.Fallback = true
	return res, nil
}

// NonEmpty is a parse func for RunText that accepts any non-blank reply.
func NonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyReply
	}
	return s, nil
}

// Attempts after the first skip response cache lookups.
func attemptCtx(ctx context.Context, attempt int) context.Context {
	if attempt > 1 {
		return llm.WithoutCache(ctx)
	}
	return ctx
}
