package llmclient

import (
	"fmt"
	"net/http"
	"strings"
)

type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}

// ModelUnavailableError reports a model that a local server does not have
// loaded or could not fetch.
type ModelUnavailableError struct {
	Provider Provider
	Model    string
	Reason   string
}

func (e *ModelUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: model %q is not available", e.Provider, e.Model)
	}
	return fmt.Sprintf("%s: model %q is not available: %s", e.Provider, e.Model, e.Reason)
}

// CredentialError is returned before any network call when a provider that
// needs an API key has none configured.
type CredentialError struct {
	Provider Provider
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: api key is not configured", e.Provider)
}

// BackendError wraps a transport, HTTP status, or timeout failure from a
// connector call.
type BackendError struct {
	Provider Provider
	Model    string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s:%s: backend call failed: %v", e.Provider, e.Model, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// StatusError carries a non-2xx HTTP reply. Body is truncated.
type StatusError struct {
	Provider   Provider
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s: %s", strings.ToLower(string(e.Provider)), e.Status, e.Body)
}

// Unauthorized reports 401/403 replies.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
