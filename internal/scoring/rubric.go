// Package scoring grades a document stage by stage against a fixed rubric
// and combines the stage grades into one weighted total.
package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rubric.yaml
var defaultRubricYAML []byte

type StageID string

const (
	Brainstorm StageID = "brainstorm"
	Outline    StageID = "outline"
	Writing    StageID = "writing"
	Highlight  StageID = "highlight"
)

// Item is one labelled rubric line. Groups carry nested Items instead of
// Text.
type Item struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text,omitempty"`
	Items []Item `yaml:"items,omitempty"`
}

// Stage is the scoring standard for one authoring stage.
type Stage struct {
	ID                    StageID  `yaml:"id"`
	Name                  string   `yaml:"name"`
	Weight                float64  `yaml:"weight"`
	Description           string   `yaml:"description"`
	Criteria              []string `yaml:"criteria"`
	DetailedRequirements  []Item   `yaml:"detailed_requirements,omitempty"`
	SimilarityScoring     []Item   `yaml:"similarity_scoring,omitempty"`
	EvaluationProcess     []Item   `yaml:"evaluation_process,omitempty"`
	InnovationIndex       []Item   `yaml:"innovation_index,omitempty"`
	CommonPatternsPenalty []Item   `yaml:"common_patterns_penalty,omitempty"`
	InnovationBonus       []Item   `yaml:"innovation_bonus,omitempty"`
	DeductionRules        []Item   `yaml:"deduction_rules,omitempty"`
	ScoringGuide          []Item   `yaml:"scoring_guide,omitempty"`
}

// Level is a named band of total scores, inclusive on both ends.
type Level struct {
	ID          string `yaml:"id" json:"level"`
	Label       string `yaml:"label" json:"label"`
	Min         int    `yaml:"min" json:"min"`
	Max         int    `yaml:"max" json:"max"`
	Description string `yaml:"description" json:"description"`
}

// basisPoints is the fixed-point scale of stage weights.
const basisPoints = 10000

// Rubric is the read-only table of stage standards and score levels.
type Rubric struct {
	stages []Stage
	levels []Level
	byID   map[StageID]int
	// bp holds each weight in basis points so totals are exact integers.
	bp map[StageID]int64
}

type rubricFile struct {
	Stages []Stage `yaml:"stages"`
	Levels []Level `yaml:"levels"`
}

// ParseRubric loads a rubric document. Weights must be in [0,1] and sum
// to 1 at basis-point precision.
func ParseRubric(data []byte) (*Rubric, error) {
	var f rubricFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rubric: %w", err)
	}
	if len(f.Stages) == 0 {
		return nil, fmt.Errorf("rubric: no stages")
	}
	r := &Rubric{stages: f.Stages, levels: f.Levels, byID: map[StageID]int{}, bp: map[StageID]int64{}}
	var sum int64
	for i, s := range f.Stages {
		if s.ID == "" || s.Name == "" {
			return nil, fmt.Errorf("rubric: stage %d needs id and name", i)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("rubric: duplicate stage %q", s.ID)
		}
		if s.Weight < 0 || s.Weight > 1 {
			return nil, fmt.Errorf("rubric: stage %q weight %v out of range", s.ID, s.Weight)
		}
		r.byID[s.ID] = i
		r.bp[s.ID] = int64(math.Round(s.Weight * basisPoints))
		sum += r.bp[s.ID]
	}
	if sum != basisPoints {
		return nil, fmt.Errorf("rubric: weights sum to %v, want 1", float64(sum)/basisPoints)
	}
	for _, l := range f.Levels {
		if l.Min > l.Max {
			return nil, fmt.Errorf("rubric: level %q has min > max", l.ID)
		}
	}
	return r, nil
}

// LoadRubric reads a rubric file.
func LoadRubric(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRubric(data)
}

var defaultRubric = func() *Rubric {
	r, err := ParseRubric(defaultRubricYAML)
	if err != nil {
		panic(err)
	}
	return r
}()

// DefaultRubric is the built-in four-stage rubric.
func DefaultRubric() *Rubric { return defaultRubric }

func (r *Rubric) Stage(id StageID) (Stage, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Stage{}, false
	}
	return r.stages[i], true
}

// Weight is 0 for unknown stages.
func (r *Rubric) Weight(id StageID) float64 {
	s, _ := r.Stage(id)
	return s.Weight
}

// Total is round(Σ weight·raw) with halves rounded up, computed in fixed
// point over the rubric stages in order. Raw scores are clamped first and
// missing stages count as 0.
func (r *Rubric) Total(raw map[StageID]int) int {
	var n int64
	for _, s := range r.stages {
		n += int64(Clamp(raw[s.ID])) * r.bp[s.ID]
	}
	return Clamp(int((n + basisPoints/2) / basisPoints))
}

func (r *Rubric) Weights() map[StageID]float64 {
	out := make(map[StageID]float64, len(r.stages))
	for _, s := range r.stages {
		out[s.ID] = s.Weight
	}
	return out
}

// IDs lists stages in rubric order.
func (r *Rubric) IDs() []StageID {
	out := make([]StageID, len(r.stages))
	for i, s := range r.stages {
		out[i] = s.ID
	}
	return out
}

// StageName falls back to the id for unknown stages.
func (r *Rubric) StageName(id StageID) string {
	if s, ok := r.Stage(id); ok {
		return s.Name
	}
	return string(id)
}

// Level returns the band containing score, or an "unknown" level.
func (r *Rubric) Level(score int) Level {
	for _, l := range r.levels {
		if score >= l.Min && score <= l.Max {
			return l
		}
	}
	return Level{ID: "unknown", Label: "未知", Description: "无法确定评分等级"}
}

func (r *Rubric) Levels() []Level {
	out := make([]Level, len(r.levels))
	copy(out, r.levels)
	return out
}
