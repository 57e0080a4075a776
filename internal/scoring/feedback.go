package scoring

import (
	"context"
	"fmt"

	"quill/internal/llm"
	"quill/internal/locale"
	"quill/internal/schema"
)

const (
	critiqueSystem    = "你是一名写作指导老师，对照评分标准给出具体、可操作的点评。"
	critiqueMaxTokens = 800
)

// Feedback is the typed form of schema.StageFeedback.
type Feedback struct {
	Stage           StageID            `json:"stage"`
	Summary         string             `json:"summary"`
	Strengths       []string           `json:"strengths"`
	Weaknesses      []string           `json:"weaknesses"`
	Suggestions     []string           `json:"suggestions"`
	Confidence      float64            `json:"confidence"`
	Verdict         string             `json:"verdict"`
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty"`
	Fallback        bool               `json:"fallback,omitempty"`
}

// Critique asks for structured feedback on one stage. When no reply
// yields a usable object, or the object does not decode, the synthesized
// defaults are returned with Fallback set. Only resolution errors and
// unknown stages fail.
func (s *Scorer) Critique(ctx context.Context, stage StageID, content string) (Feedback, error) {
	st, ok := s.rubric.Stage(stage)
	if !ok {
		return Feedback{}, fmt.Errorf("unknown stage %q", stage)
	}
	ctx = llm.WithStage(ctx, string(stage))
	req := s.request(critiqueSystem, CritiquePrompt(st, content))
	req.MaxTokens = critiqueMaxTokens
	res, err := s.ctrl.RunStructured(ctx, req, schema.StageFeedback, s.retries)
	if err != nil {
		return Feedback{}, err
	}

	fb := Feedback{Stage: stage, Fallback: res.Fallback}
	if err := schema.Decode(res.Value, &fb); err != nil {
		s.log.WarnContext(ctx, "stage feedback did not decode, using defaults", "stage", stage, "err", err)
		fb = Feedback{Stage: stage, Fallback: true}
		if err := schema.Decode(schema.StageFeedback.Synthesize(locale.Chinese), &fb); err != nil {
			return Feedback{}, err
		}
	}
	s.log.InfoContext(ctx, "stage critiqued", "stage", stage, "verdict", fb.Verdict, "fallback", fb.Fallback)
	return fb, nil
}
