package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		score  int
		reason string
		found  bool
	}{
		{"clamps high", "score: 137\nreason: good", 100, "good", true},
		{"clamps low", "score: -5", 0, "score: -5", true},
		{"chinese", "评分：85分\n理由：结构完整", 85, "结构完整", true},
		{"full width digits", "评分：９２\n理由：好", 92, "好", true},
		{"truncates decimals", "得分: 78.9", 78, "得分: 78.9", true},
		{"case insensitive", "SCORE : 40\nReason: meh", 40, "meh", true},
		{"markdown decor", "**评分**：66\n- 理由：一般", 66, "一般", true},
		{"multi line reason", "评分：70\n理由：第一点\n第二点\n\n第三点", 70, "第一点\n第二点\n第三点", true},
		{"first score wins", "评分：60\n评分：90\n理由：x", 60, "x", true},
		{"no number", "评分：暂无\n理由：无法判断", 0, "无法判断", true},
		{"no score line", "The text is fine overall.", 0, "The text is fine overall.", false},
		{"marker mid line is ignored", "my score: 90", 0, "my score: 90", false},
		{"reason without score keeps raw", "  看不出分数\n理由：结构松散\n", 0, "看不出分数\n理由：结构松散", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseScore(tc.raw)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.reason, got.Reason)
			assert.Equal(t, tc.found, got.Found)
		})
	}
}

func TestParseScoreHugeNumber(t *testing.T) {
	assert.Equal(t, 100, ParseScore("score: 99999999999999999999999999").Score)
	assert.Equal(t, 0, ParseScore("score: -99999999999999999999999999").Score)
}

func TestClampAndTotal(t *testing.T) {
	assert.Equal(t, 0, Clamp(-1))
	assert.Equal(t, 100, Clamp(101))
	assert.Equal(t, 55, Clamp(55))
}

func TestRubricTotalRoundsHalfUp(t *testing.T) {
	r := DefaultRubric()
	cases := []struct {
		raw  map[StageID]int
		want int
	}{
		{map[StageID]int{Highlight: 85}, 26},
		{map[StageID]int{Brainstorm: 0, Writing: 1, Highlight: 23}, 8},
		{map[StageID]int{Brainstorm: 5}, 1},
		{map[StageID]int{Brainstorm: 4}, 0},
		{map[StageID]int{Brainstorm: 100, Outline: 100, Writing: 100, Highlight: 100}, 100},
		{map[StageID]int{Writing: 130, Highlight: -3}, 60},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Total(tc.raw), "%v", tc.raw)
	}
}

func TestRubricTotalMatchesExactRounding(t *testing.T) {
	r := DefaultRubric()
	for b := 0; b <= 100; b++ {
		for w := 0; w <= 100; w += 3 {
			for h := 0; h <= 100; h += 7 {
				// weights 10/60/30 percent: exact sum is n/100
				n := b*10 + w*60 + h*30
				want := (n + 50) / 100
				got := r.Total(map[StageID]int{Brainstorm: b, Writing: w, Highlight: h})
				if got != want {
					t.Fatalf("b=%d w=%d h=%d: got %d want %d", b, w, h, got, want)
				}
			}
		}
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("人工智能改变教育", "人工智能改变教育"))
	assert.Equal(t, 1.0, Similarity("Hello, World!", "hello world"))
	assert.Equal(t, 0.0, Similarity("", "abc"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Equal(t, 1.0, Similarity("a", "A"))

	// night/nacht share only "ht" among four bigrams each.
	assert.InDelta(t, 0.25, Similarity("night", "nacht"), 1e-9)

	s := SimilarityScore("AI正在改变教育行业", "人工智能正在深刻改变教育")
	assert.Greater(t, s, 0)
	assert.Less(t, s, 100)
}

func TestLeadingSentences(t *testing.T) {
	text := "第一句。第二句！第三句？第四句。"
	assert.Equal(t, "第一句。第二句！", LeadingSentences(text, 2, 100))
	assert.Equal(t, "第一句", LeadingSentences(text, 5, 3))
	assert.Equal(t, "", LeadingSentences("  ", 2, 10))
}
