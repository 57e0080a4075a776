package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"quill/internal/quill"
	"quill/internal/scoring"
	"quill/internal/store"
)

const ScoreStreamPath = "/ws/score"

// ScoreStream scores documents over a websocket, pushing one "stage" event
// per finished stage and a "done" event with the saved record.
type ScoreStream struct {
	svc *quill.Service
	log *slog.Logger
}

func NewScoreStream(svc *quill.Service, logger *slog.Logger) *ScoreStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreStream{svc: svc, log: logger}
}

const (
	scoreWSWriteWait = 10 * time.Second
	scoreWSPongWait  = 60 * time.Second
	scoreWSPingEvery = (scoreWSPongWait * 9) / 10
)

var scoreWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type scoreWSInbound struct {
	Type       string            `json:"type"`
	DocumentID string            `json:"documentId,omitempty"`
	Contents   map[string]string `json:"contents,omitempty"`
	Model      string            `json:"model,omitempty"`
	Provider   string            `json:"provider,omitempty"`
}

type scoreWSOutbound struct {
	Type    string               `json:"type"`
	Stage   scoring.StageID      `json:"stage,omitempty"`
	Result  *scoring.StageResult `json:"result,omitempty"`
	Record  *store.Record        `json:"record,omitempty"`
	Summary *scoring.Summary     `json:"summary,omitempty"`
	Code    string               `json:"code,omitempty"`
	Message string               `json:"message,omitempty"`
}

func (h *ScoreStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := scoreWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(scoreWSPongWait)); err != nil {
		h.log.Warn("score ws set read deadline failed", "err", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(scoreWSPongWait))
	})

	writeCh := make(chan scoreWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(scoreWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(scoreWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(scoreWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	busy := make(chan struct{}, 1)
	for {
		var in scoreWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushScoreWS(writeCh, scoreWSOutbound{Type: "pong"})
		case "score":
			select {
			case busy <- struct{}{}:
			default:
				pushScoreWS(writeCh, scoreWSOutbound{Type: "error", Code: "resource_exhausted", Message: "a document is already being scored"})
				continue
			}
			pushScoreWS(writeCh, scoreWSOutbound{Type: "accepted"})
			go func(in scoreWSInbound) {
				defer func() { <-busy }()
				h.score(ctx, in, writeCh)
			}(in)
		case "":
			pushScoreWS(writeCh, scoreWSOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		default:
			pushScoreWS(writeCh, scoreWSOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

func (h *ScoreStream) score(ctx context.Context, in scoreWSInbound, writeCh chan scoreWSOutbound) {
	rec, err := h.svc.ScoreDocument(ctx, quill.ScoreRequest{
		DocumentID: in.DocumentID,
		Contents:   in.Contents,
		Model:      in.Model,
		Provider:   in.Provider,
	}, func(stage scoring.StageID, result scoring.StageResult) {
		pushScoreWS(writeCh, scoreWSOutbound{Type: "stage", Stage: stage, Result: &result})
	})
	if err != nil {
		pushScoreWS(writeCh, scoreWSOutbound{Type: "error", Code: wsCode(err), Message: err.Error()})
		return
	}
	sum := h.svc.Summary(rec)
	pushScoreWS(writeCh, scoreWSOutbound{Type: "done", Record: &rec, Summary: &sum})
}

// pushScoreWS never blocks; when the buffer is full the oldest event goes.
func pushScoreWS(writeCh chan scoreWSOutbound, out scoreWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
