package app

import (
	"io"
	"log/slog"

	"quill/internal/quill"
)

func nilLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func svcScoreEmpty() quill.ScoreRequest {
	return quill.ScoreRequest{DocumentID: "doc", Contents: map[string]string{"writing": ""}}
}
