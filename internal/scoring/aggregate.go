package scoring

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxStageWorkers bounds concurrent stage scoring.
const maxStageWorkers = 4

// StageResult is one stage's line in a breakdown.
type StageResult struct {
	Name          string  `json:"name"`
	RawScore      int     `json:"raw_score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	Reason        string  `json:"reason"`
	Fallback      bool    `json:"fallback,omitempty"`
}

// Breakdown is the full result of scoring a document.
type Breakdown struct {
	Stages     map[StageID]StageResult `json:"stages"`
	TotalScore int                     `json:"total_score"`
	// Skipped lists input keys that are not rubric stages.
	Skipped  []string  `json:"skipped,omitempty"`
	ScoredAt time.Time `json:"scored_at"`
}

// StageScorer grades one stage. *Scorer is the production implementation.
type StageScorer interface {
	ScoreStage(ctx context.Context, stage StageID, content string, doc map[StageID]string) StageScore
}

// ProgressFunc observes each stage as it completes. Calls are serialized.
type ProgressFunc func(stage StageID, result StageResult)

type Aggregator struct {
	scorer StageScorer
	rubric *Rubric
	log    *slog.Logger
	now    func() time.Time
}

func NewAggregator(scorer StageScorer, rubric *Rubric, logger *slog.Logger) *Aggregator {
	if rubric == nil {
		rubric = DefaultRubric()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{scorer: scorer, rubric: rubric, log: logger, now: time.Now}
}

// ScoreDocument scores every rubric stage present in contents, concurrently
// and at most four at a time. Stages absent from contents are not scored.
// It never fails; per-stage failures are zero scores already.
func (a *Aggregator) ScoreDocument(ctx context.Context, contents map[string]string, progress ProgressFunc) Breakdown {
	doc := make(map[StageID]string, len(contents))
	var skipped []string
	for k, v := range contents {
		id := StageID(k)
		if _, ok := a.rubric.Stage(id); !ok {
			skipped = append(skipped, k)
			continue
		}
		doc[id] = v
	}
	sort.Strings(skipped)

	var (
		mu     sync.Mutex
		scores = make(map[StageID]StageScore, len(doc))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStageWorkers)
	for _, id := range a.rubric.IDs() {
		content, ok := doc[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			sc := a.scorer.ScoreStage(gctx, id, content, doc)
			sc.RawScore = Clamp(sc.RawScore)
			mu.Lock()
			defer mu.Unlock()
			scores[id] = sc
			if progress != nil {
				progress(id, a.line(id, sc))
			}
			return nil
		})
	}
	_ = g.Wait()

	b := a.build(scores)
	b.Skipped = skipped
	if len(skipped) > 0 {
		a.log.WarnContext(ctx, "unknown stages skipped", "stages", skipped)
	}
	a.log.InfoContext(ctx, "document scored", "stages", len(scores), "total", b.TotalScore)
	return b
}

// Compute builds a breakdown from known raw scores without calling any
// model. Unknown stages are reported as skipped.
func (a *Aggregator) Compute(raw map[string]int) Breakdown {
	scores := make(map[StageID]StageScore, len(raw))
	var skipped []string
	for k, v := range raw {
		id := StageID(k)
		if _, ok := a.rubric.Stage(id); !ok {
			skipped = append(skipped, k)
			continue
		}
		scores[id] = StageScore{Stage: id, RawScore: Clamp(v)}
	}
	sort.Strings(skipped)
	b := a.build(scores)
	b.Skipped = skipped
	return b
}

func (a *Aggregator) line(id StageID, sc StageScore) StageResult {
	w := a.rubric.Weight(id)
	return StageResult{
		Name:          a.rubric.StageName(id),
		RawScore:      sc.RawScore,
		Weight:        w,
		WeightedScore: float64(sc.RawScore) * w,
		Reason:        sc.Reason,
		Fallback:      sc.Fallback,
	}
}

func (a *Aggregator) build(scores map[StageID]StageScore) Breakdown {
	b := Breakdown{Stages: make(map[StageID]StageResult, len(scores)), ScoredAt: a.now()}
	raw := make(map[StageID]int, len(scores))
	for _, id := range a.rubric.IDs() {
		sc, ok := scores[id]
		if !ok {
			continue
		}
		b.Stages[id] = a.line(id, sc)
		raw[id] = sc.RawScore
	}
	b.TotalScore = a.rubric.Total(raw)
	return b
}
