package rpc

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"quill/internal/gateway/repository/artifact"
	llmclient "quill/internal/llmClient"
	"quill/internal/quill"
	"quill/internal/store"
)

func toConnectError(err error) error {
	var (
		unknown     *llmclient.UnknownProviderError
		unavailable *llmclient.ModelUnavailableError
		credential  *llmclient.CredentialError
		backend     *llmclient.BackendError
		chat        *quill.ChatError
	)
	switch {
	case errors.As(err, &unknown), errors.Is(err, quill.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &unavailable):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &credential), errors.Is(err, quill.ErrExportDisabled):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &chat), errors.As(err, &backend):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("quill service failed: %w", err))
	}
}

// wsCode is the error code string used on the websocket stream.
func wsCode(err error) string {
	var ce *connect.Error
	if errors.As(toConnectError(err), &ce) {
		return ce.Code().String()
	}
	return connect.CodeInternal.String()
}
