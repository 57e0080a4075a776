package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"quill/internal/gateway/repository/artifact"
	"quill/internal/quill"
	"quill/internal/schema"
)

// Handler serves the chat, scoring and model services over connect.
type Handler struct {
	svc *quill.Service
	log *slog.Logger
}

func NewHandler(svc *quill.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, log: logger}
}

// Register mounts every procedure on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	opts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
	mux.Handle(ChatProcedure, connect.NewUnaryHandler(ChatProcedure, h.Chat, opts...))
	mux.Handle(ChatStructuredProcedure, connect.NewUnaryHandler(ChatStructuredProcedure, h.ChatStructured, opts...))
	mux.Handle(ScoreDocumentProcedure, connect.NewUnaryHandler(ScoreDocumentProcedure, h.ScoreDocument, opts...))
	mux.Handle(GetRecordProcedure, connect.NewUnaryHandler(GetRecordProcedure, h.GetRecord, opts...))
	mux.Handle(CritiqueStageProcedure, connect.NewUnaryHandler(CritiqueStageProcedure, h.CritiqueStage, opts...))
	mux.Handle(ListExportsProcedure, connect.NewUnaryHandler(ListExportsProcedure, h.ListExports, opts...))
	mux.Handle(ListModelsProcedure, connect.NewUnaryHandler(ListModelsProcedure, h.ListModels, opts...))
	mux.Handle(ClearCacheProcedure, connect.NewUnaryHandler(ClearCacheProcedure, h.ClearCache, opts...))
}

func (h *Handler) Chat(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.Response[ChatResponse], error) {
	in := req.Msg
	out, err := h.svc.Chat(ctx, quill.ChatRequest{
		Message:     in.Message,
		Model:       in.Model,
		Provider:    in.Provider,
		System:      in.SystemMessage,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		MaxRetries:  in.MaxRetries,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ChatResponse{Reply: out}), nil
}

func (h *Handler) ChatStructured(ctx context.Context, req *connect.Request[ChatStructuredRequest]) (*connect.Response[ChatStructuredResponse], error) {
	in := req.Msg
	s, err := schemaFor(in)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	res, err := h.svc.ChatStructured(ctx, quill.StructuredRequest{
		Message:    in.Message,
		Schema:     s,
		Model:      in.Model,
		Provider:   in.Provider,
		System:     in.SystemMessage,
		MaxRetries: in.MaxRetries,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	out := &ChatStructuredResponse{
		Schema:   s.Name(),
		Value:    res.Value,
		Fallback: res.Fallback,
		Attempts: res.Attempts,
		Strategy: string(res.Strategy),
	}
	if res.Fallback && res.LastErr != nil {
		out.Error = res.LastErr.Error()
	}
	return connect.NewResponse(out), nil
}

func schemaFor(in *ChatStructuredRequest) (*schema.Schema, error) {
	if strings.TrimSpace(in.SchemaYAML) != "" {
		return schema.ParseYAML([]byte(in.SchemaYAML))
	}
	name := strings.TrimSpace(in.Schema)
	if name == "" {
		return nil, fmt.Errorf("schema or schema_yaml is required")
	}
	s, ok := schema.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (known: %s)", name, strings.Join(schema.Names(), ", "))
	}
	return s, nil
}

func (h *Handler) ScoreDocument(ctx context.Context, req *connect.Request[ScoreDocumentRequest]) (*connect.Response[ScoreDocumentResponse], error) {
	in := req.Msg
	rec, err := h.svc.ScoreDocument(ctx, quill.ScoreRequest{
		DocumentID: in.DocumentID,
		Contents:   in.Contents,
		Model:      in.Model,
		Provider:   in.Provider,
	}, nil)
	if err != nil {
		return nil, toConnectError(err)
	}
	out := &ScoreDocumentResponse{Record: rec, Summary: h.svc.Summary(rec)}
	if in.Export {
		key, err := h.svc.ExportReport(ctx, rec.ID)
		if err != nil {
			// The record is already saved; a failed upload does not fail the call.
			h.log.WarnContext(ctx, "report export failed", "record", rec.ID, "err", err)
		} else {
			out.ReportKey = key
			out.ReportURL = h.reportURL(ctx, key)
		}
	}
	return connect.NewResponse(out), nil
}

// reportURL is best effort; a missing link leaves the key usable.
func (h *Handler) reportURL(ctx context.Context, key string) string {
	u, err := h.svc.ReportURL(ctx, key)
	if err != nil {
		h.log.WarnContext(ctx, "report link failed", "key", key, "err", err)
		return ""
	}
	return u
}

func (h *Handler) GetRecord(ctx context.Context, req *connect.Request[GetRecordRequest]) (*connect.Response[GetRecordResponse], error) {
	id := strings.TrimSpace(req.Msg.RecordID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("record_id is required"))
	}
	rec, err := h.svc.Record(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	out := &GetRecordResponse{Record: rec, Summary: h.svc.Summary(rec)}
	if req.Msg.IncludeReport {
		out.Report = h.svc.Rubric().FormatReport(rec.DocumentID, rec.Breakdown)
	}
	if req.Msg.IncludeExport {
		key, exported, err := h.svc.ExportedReport(ctx, rec.ID)
		switch {
		case err == nil:
			out.Exported = true
			if !req.Msg.IncludeReport {
				out.Report = exported
			}
			out.ReportURL = h.reportURL(ctx, key)
		case errors.Is(err, artifact.ErrNotFound):
		default:
			return nil, toConnectError(err)
		}
	}
	return connect.NewResponse(out), nil
}

func (h *Handler) CritiqueStage(ctx context.Context, req *connect.Request[CritiqueStageRequest]) (*connect.Response[CritiqueStageResponse], error) {
	in := req.Msg
	fb, err := h.svc.Critique(ctx, quill.CritiqueRequest{
		Stage:    in.Stage,
		Content:  in.Content,
		Model:    in.Model,
		Provider: in.Provider,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CritiqueStageResponse{Feedback: fb}), nil
}

func (h *Handler) ListExports(ctx context.Context, req *connect.Request[ListExportsRequest]) (*connect.Response[ListExportsResponse], error) {
	keys, err := h.svc.ExportedReports(ctx, req.Msg.DocumentID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if keys == nil {
		keys = []string{}
	}
	return connect.NewResponse(&ListExportsResponse{Keys: keys}), nil
}

func (h *Handler) ListModels(_ context.Context, req *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error) {
	models, err := h.svc.ListModels(req.Msg.Provider)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListModelsResponse{Models: models}), nil
}

func (h *Handler) ClearCache(context.Context, *connect.Request[ClearCacheRequest]) (*connect.Response[ClearCacheResponse], error) {
	return connect.NewResponse(&ClearCacheResponse{Cleared: h.svc.ClearCache()}), nil
}
