package server

import (
	"net/http"

	"quill/internal/gateway/handler/rpc"
	"quill/internal/gateway/middleware"
)

func NewMux(handler *rpc.Handler, stream *rpc.ScoreStream) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	handler.Register(mux)

	// Streaming
	mux.Handle(rpc.ScoreStreamPath, stream)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// Middleware
	return middleware.CORS(mux)
}
