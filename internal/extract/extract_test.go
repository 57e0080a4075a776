package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/schema"
)

var verdict = schema.MustNew("verdict", "",
	schema.Field{Name: "verdict", Kind: schema.Choice, Choices: []string{"good", "bad"}},
	schema.Field{Name: "score", Kind: schema.Integer},
)

func TestExtractStrategies(t *testing.T) {
	want := map[string]any{"verdict": "good", "score": float64(7)}
	tests := []struct {
		name     string
		raw      string
		strategy Strategy
	}{
		{
			name:     "tagged block",
			raw:      "Here you go:\n\n```json\n{\"verdict\": \"good\", \"score\": 7}\n```\nThanks.",
			strategy: TaggedBlock,
		},
		{
			name:     "untagged block",
			raw:      "Result:\n\n```\n{\"verdict\": \"good\", \"score\": 7}\n```\n",
			strategy: AnyBlock,
		},
		{
			name:     "whole text",
			raw:      "  {\"verdict\": \"good\", \"score\": 7}\n",
			strategy: WholeText,
		},
		{
			name:     "brace scan",
			raw:      "I think the answer is {\"verdict\": \"good\", \"score\": 7} overall.",
			strategy: BraceScan,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Extract(tc.raw, verdict)
			require.True(t, res.OK(), "%v", res.Err)
			assert.Equal(t, tc.strategy, res.Strategy)
			assert.Equal(t, want, res.Value)
		})
	}
}

func TestTaggedBlockWinsRegardlessOfProse(t *testing.T) {
	block := "```json\n{\"verdict\": \"bad\", \"score\": 2}\n```"
	prose := []string{
		"",
		"Sure! ",
		"Some text with {\"verdict\": \"good\", \"score\": 9} inline.\n\n",
		"```\n{\"verdict\": \"good\", \"score\": 9}\n```\n\n",
	}
	for _, p := range prose {
		res := Extract(p+block+"\n\nHope that helps {not json}.", verdict)
		require.True(t, res.OK())
		assert.Equal(t, TaggedBlock, res.Strategy)
		assert.Equal(t, "bad", res.Value["verdict"])
	}
}

func TestInvalidCandidateFallsThrough(t *testing.T) {
	raw := "```json\n{\"verdict\": \"maybe\", \"score\": 1}\n```\n" +
		"Corrected: {\"verdict\": \"bad\", \"score\": 1}"
	res := Extract(raw, verdict)
	require.True(t, res.OK())
	assert.Equal(t, BraceScan, res.Strategy)
	assert.Equal(t, "bad", res.Value["verdict"])
}

func TestBraceScanTriesInnerObjects(t *testing.T) {
	raw := `{ the model said: {"verdict": "good", "score": 3} }`
	res := Extract(raw, verdict)
	require.True(t, res.OK())
	assert.Equal(t, "good", res.Value["verdict"])
}

func TestBracesInsideStrings(t *testing.T) {
	raw := `note {"verdict": "good", "score": 1, "extra": "a } b"} end`
	res := Extract(raw, verdict)
	require.True(t, res.OK())
	assert.Equal(t, "a } b", res.Value["extra"])
}

func TestBraceCandidatesOrderAndCap(t *testing.T) {
	assert.Equal(t, []string{`{"a": {"b": 1}}`, `{"b": 1}`, `{"c": "}"}`},
		braceCandidates(`x {"a": {"b": 1}} y } {"c": "}"} {unclosed`))

	many := strings.Repeat(`{"n": 1} `, 40)
	assert.Len(t, braceCandidates(many), maxBraceCandidates)
}

func TestBraceScanLinearOnUnmatchedBraces(t *testing.T) {
	raw := strings.Repeat("{", 200000) + `{"verdict": "good", "score": 2}`
	res := Extract(raw, verdict)
	require.True(t, res.OK())
	assert.Equal(t, BraceScan, res.Strategy)
	assert.Equal(t, "good", res.Value["verdict"])
}

func TestNoStructureYieldsFailure(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "[1, 2, 3]", "```json\nnope\n```"} {
		res := Extract(raw, verdict)
		assert.False(t, res.OK())
		assert.Nil(t, res.Value)
		var f *ExtractionFailure
		require.ErrorAs(t, res.Err, &f)
		assert.Equal(t, raw, f.Raw)
	}
}

func TestNilSchemaAcceptsAnyObject(t *testing.T) {
	res := Extract(`{"anything": true}`, nil)
	require.True(t, res.OK())
	assert.Equal(t, true, res.Value["anything"])
}

func TestDeterministic(t *testing.T) {
	raw := "x {\"verdict\": \"good\", \"score\": 5} y {\"verdict\": \"bad\", \"score\": 6}"
	first := Extract(raw, verdict)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(raw, verdict))
	}
	assert.Equal(t, "good", first.Value["verdict"])
}
