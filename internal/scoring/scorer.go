package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/llm"
	llmclient "quill/internal/llmClient"
	"quill/internal/locale"
	"quill/internal/structured"
)

// EmptyContentReason is the reason given for a stage with no content.
const EmptyContentReason = "empty content"

const (
	scoringMaxTokens   = 500
	scoringTemperature = 0.3
	summaryMaxRunes    = 300
)

// StageScore is one stage's grade. Fallback marks a grade produced without
// a usable model reply.
type StageScore struct {
	Stage    StageID `json:"stage"`
	RawScore int     `json:"raw_score"`
	Reason   string  `json:"reason"`
	Fallback bool    `json:"fallback,omitempty"`
}

type ScorerOptions struct {
	Model      string
	Provider   string
	MaxRetries int
	Rubric     *Rubric
	Logger     *slog.Logger
}

// Scorer grades single stages through the retry controller.
type Scorer struct {
	ctrl     *structured.Controller
	rubric   *Rubric
	model    string
	provider string
	retries  int
	log      *slog.Logger
}

func NewScorer(ctrl *structured.Controller, opts ScorerOptions) *Scorer {
	s := &Scorer{
		ctrl:     ctrl,
		rubric:   opts.Rubric,
		model:    opts.Model,
		provider: opts.Provider,
		retries:  opts.MaxRetries,
		log:      opts.Logger,
	}
	if s.rubric == nil {
		s.rubric = DefaultRubric()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *Scorer) Rubric() *Rubric { return s.rubric }

func (s *Scorer) request(system, message string) structured.Request {
	return structured.Request{
		Model:       s.model,
		Provider:    s.provider,
		System:      system,
		Message:     message,
		Temperature: llmclient.Temperature(scoringTemperature),
		MaxTokens:   scoringMaxTokens,
		Locale:      locale.Chinese,
	}
}

// ScoreStage grades content for stage. doc carries the other stages of the
// same document; the ideation stage reads the writing stage from it. Empty
// content scores 0 without a backend call. Failures never escape: they end
// as a zero score with the failure as reason.
func (s *Scorer) ScoreStage(ctx context.Context, stage StageID, content string, doc map[StageID]string) StageScore {
	st, ok := s.rubric.Stage(stage)
	if !ok {
		return StageScore{Stage: stage, Reason: fmt.Sprintf("未知的评分阶段: %s", stage)}
	}
	if strings.TrimSpace(content) == "" {
		return StageScore{Stage: stage, Reason: EmptyContentReason}
	}
	ctx = llm.WithStage(ctx, string(stage))

	var out StageScore
	if stage == Brainstorm && strings.TrimSpace(doc[Writing]) != "" {
		out = s.scoreIdeation(ctx, content, doc[Writing])
	} else {
		prompt := StagePrompt(st, content)
		if stage == Brainstorm {
			prompt = IdeationPrompt(st, content, "")
		}
		out = s.scoreRubric(ctx, prompt)
	}
	out.Stage = stage
	s.log.InfoContext(ctx, "stage scored", "stage", stage, "score", out.RawScore, "fallback", out.Fallback)
	return out
}

func (s *Scorer) scoreRubric(ctx context.Context, prompt string) StageScore {
	parse := func(raw string) (ParsedScore, error) {
		if strings.TrimSpace(raw) == "" {
			return ParsedScore{}, structured.ErrEmptyReply
		}
		s.log.DebugContext(ctx, "rubric reply", "stage", llm.StageFrom(ctx), "raw", raw)
		return ParseScore(raw), nil
	}
	fallback := func(err error) ParsedScore {
		return ParsedScore{Reason: failureReason(err)}
	}
	res, err := structured.RunText(ctx, s.ctrl, s.request("", prompt), s.retries, parse, fallback)
	if err != nil {
		return StageScore{Reason: failureReason(err), Fallback: true}
	}
	return StageScore{RawScore: res.Value.Score, Reason: res.Value.Reason, Fallback: res.Fallback}
}

// scoreIdeation grades the ideation by how closely a summary of the
// finished writing matches it. The similarity percentage is the score.
func (s *Scorer) scoreIdeation(ctx context.Context, ideation, writing string) StageScore {
	summary := ""
	res, err := structured.RunText(ctx, s.ctrl, s.request(summarySystem, SummaryPrompt(writing)), s.retries,
		structured.NonEmpty,
		func(error) string { return "" })
	if err == nil && !res.Fallback {
		summary = res.Value
	} else {
		s.log.WarnContext(ctx, "writing summary unavailable, using leading sentences", "err", firstErr(err, res.LastErr))
	}
	source := "模型摘要"
	if summary == "" {
		summary = LeadingSentences(writing, 3, summaryMaxRunes)
		source = "正文开头"
	}

	score := SimilarityScore(summary, ideation)
	reason := fmt.Sprintf("正文摘要与构思内容的相似度为%d%%，相似度百分比直接作为构思得分。\n正文摘要（%s）：%s", score, source, summary)
	return StageScore{RawScore: score, Reason: reason}
}

func failureReason(err error) string {
	if err == nil {
		return "评分失败"
	}
	return "评分失败: " + err.Error()
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
