package rpc

import (
	"quill/internal/llm"
	"quill/internal/scoring"
	"quill/internal/store"
)

const (
	ChatProcedure           = "/quill.v1.ChatService/Chat"
	ChatStructuredProcedure = "/quill.v1.ChatService/ChatStructured"
	ScoreDocumentProcedure  = "/quill.v1.ScoringService/ScoreDocument"
	GetRecordProcedure      = "/quill.v1.ScoringService/GetRecord"
	CritiqueStageProcedure  = "/quill.v1.ScoringService/CritiqueStage"
	ListExportsProcedure    = "/quill.v1.ScoringService/ListExports"
	ListModelsProcedure     = "/quill.v1.ModelService/ListModels"
	ClearCacheProcedure     = "/quill.v1.ModelService/ClearCache"
)

type ChatRequest struct {
	Message       string   `json:"message"`
	Model         string   `json:"model,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	SystemMessage string   `json:"system_message,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	MaxRetries    int      `json:"max_retries,omitempty"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// ChatStructuredRequest names a built-in schema or carries a YAML schema
// document inline. SchemaYAML wins when both are set.
type ChatStructuredRequest struct {
	Message       string `json:"message"`
	Schema        string `json:"schema,omitempty"`
	SchemaYAML    string `json:"schema_yaml,omitempty"`
	Model         string `json:"model,omitempty"`
	Provider      string `json:"provider,omitempty"`
	SystemMessage string `json:"system_message,omitempty"`
	MaxRetries    int    `json:"max_retries,omitempty"`
}

type ChatStructuredResponse struct {
	Schema   string         `json:"schema"`
	Value    map[string]any `json:"value"`
	Fallback bool           `json:"fallback"`
	Attempts int            `json:"attempts"`
	Strategy string         `json:"strategy,omitempty"`
	// Error describes the last failure when Fallback is set.
	Error string `json:"error,omitempty"`
}

type ScoreDocumentRequest struct {
	DocumentID string            `json:"document_id,omitempty"`
	Contents   map[string]string `json:"contents"`
	Model      string            `json:"model,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	// Export uploads the rendered report when object storage is configured.
	Export bool `json:"export,omitempty"`
}

type ScoreDocumentResponse struct {
	Record    store.Record    `json:"record"`
	Summary   scoring.Summary `json:"summary"`
	ReportKey string          `json:"report_key,omitempty"`
	// ReportURL is a time-limited download link when the store issues one.
	ReportURL string `json:"report_url,omitempty"`
}

type GetRecordRequest struct {
	RecordID      string `json:"record_id"`
	IncludeReport bool   `json:"include_report,omitempty"`
	// IncludeExport looks up the uploaded copy of the report.
	IncludeExport bool `json:"include_export,omitempty"`
}

type GetRecordResponse struct {
	Record    store.Record    `json:"record"`
	Summary   scoring.Summary `json:"summary"`
	Report    string          `json:"report,omitempty"`
	Exported  bool            `json:"exported,omitempty"`
	ReportURL string          `json:"report_url,omitempty"`
}

type CritiqueStageRequest struct {
	Stage    string `json:"stage"`
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type CritiqueStageResponse struct {
	Feedback scoring.Feedback `json:"feedback"`
}

type ListExportsRequest struct {
	DocumentID string `json:"document_id"`
}

type ListExportsResponse struct {
	Keys []string `json:"keys"`
}

type ListModelsRequest struct {
	Provider string `json:"provider,omitempty"`
}

type ListModelsResponse struct {
	Models []llm.ModelDescriptor `json:"models"`
}

type ClearCacheRequest struct{}

type ClearCacheResponse struct {
	Cleared int `json:"cleared"`
}
