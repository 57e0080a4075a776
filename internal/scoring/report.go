package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Summary is the reader-facing digest of a breakdown.
type Summary struct {
	TotalScore      int                 `json:"total_score"`
	Level           Level               `json:"score_level"`
	Weights         map[StageID]float64 `json:"weights"`
	Recommendations []string            `json:"recommendations"`
}

// Summarize grades the total and lists improvement advice: every stage
// under 60 needs work, under 80 has room to improve, and the stage with the
// lowest weighted score is flagged when that score is under 30.
func (r *Rubric) Summarize(b Breakdown) Summary {
	s := Summary{
		TotalScore: b.TotalScore,
		Level:      r.Level(b.TotalScore),
		Weights:    r.Weights(),
	}
	ids := orderedStages(r, b)
	for _, id := range ids {
		l := b.Stages[id]
		switch {
		case l.RawScore < 60:
			s.Recommendations = append(s.Recommendations, fmt.Sprintf("%s部分需要重点改进（当前%d分）", l.Name, l.RawScore))
		case l.RawScore < 80:
			s.Recommendations = append(s.Recommendations, fmt.Sprintf("%s部分有提升空间（当前%d分）", l.Name, l.RawScore))
		}
	}
	if len(ids) > 0 {
		lowest := ids[0]
		for _, id := range ids[1:] {
			if b.Stages[id].WeightedScore < b.Stages[lowest].WeightedScore {
				lowest = id
			}
		}
		if b.Stages[lowest].WeightedScore < 30 {
			s.Recommendations = append(s.Recommendations, fmt.Sprintf("建议重点关注%s部分，其权重较高且得分较低", b.Stages[lowest].Name))
		}
	}
	return s
}

// ValidateScores checks externally supplied stage scores.
func (r *Rubric) ValidateScores(scores map[string]float64) error {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := r.Stage(StageID(k)); !ok {
			return fmt.Errorf("未知的评分阶段: %s", k)
		}
		if v := scores[k]; v < 0 || v > 100 {
			return fmt.Errorf("评分必须在0-100之间: %s", k)
		}
	}
	return nil
}

// FormatReport renders a plain-text report for a scored document.
func (r *Rubric) FormatReport(documentID string, b Breakdown) string {
	var sb strings.Builder
	sb.WriteString("文章评分报告\n============\n\n")
	fmt.Fprintf(&sb, "文章ID: %s\n", documentID)
	ts := "N/A"
	if !b.ScoredAt.IsZero() {
		ts = b.ScoredAt.Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(&sb, "评分时间: %s\n", ts)
	fmt.Fprintf(&sb, "总分: %d分\n", b.TotalScore)
	level := r.Level(b.TotalScore)
	fmt.Fprintf(&sb, "评级: %s\n\n详细评分:\n", level.Label)

	ids := orderedStages(r, b)
	for _, id := range ids {
		l := b.Stages[id]
		fmt.Fprintf(&sb, "- %s: %d分 (权重%.0f%%) = %.1f分\n", l.Name, l.RawScore, l.Weight*100, l.WeightedScore)
	}
	if len(ids) > 0 {
		sb.WriteString("\n评分理由:\n")
		for _, id := range ids {
			l := b.Stages[id]
			fmt.Fprintf(&sb, "\n%s:\n%s\n", l.Name, l.Reason)
		}
	}
	if len(b.Skipped) > 0 {
		fmt.Fprintf(&sb, "\n未评分的阶段: %s\n", strings.Join(b.Skipped, ", "))
	}
	return sb.String()
}

// orderedStages lists the stages in b in rubric order.
func orderedStages(r *Rubric, b Breakdown) []StageID {
	var out []StageID
	for _, id := range r.IDs() {
		if _, ok := b.Stages[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
