// Package extract recovers a structured value from free-text model output.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"quill/internal/schema"
	"quill/internal/util/jsonutil"
)

// Strategy names the parsing step that produced a value.
type Strategy string

const (
	TaggedBlock Strategy = "tagged_block"
	AnyBlock    Strategy = "any_block"
	WholeText   Strategy = "whole_text"
	BraceScan   Strategy = "brace_scan"
)

// Order is the fixed order strategies are tried in.
var Order = []Strategy{TaggedBlock, AnyBlock, WholeText, BraceScan}

// ExtractionFailure reports that no strategy yielded a valid value. Raw is
// the model reply, kept for diagnostics.
type ExtractionFailure struct {
	Raw      string
	Attempts []Attempt
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract: no structured value found after %d candidates", len(e.Attempts))
}

// Attempt records why one candidate was rejected.
type Attempt struct {
	Strategy Strategy
	Err      error
}

// Result is all-or-nothing: either Value is set and Err is nil, or Value is
// nil and Err is an *ExtractionFailure.
type Result struct {
	Value    map[string]any
	Strategy Strategy
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

var md = goldmark.New()

// Extract applies each strategy in Order and returns the first candidate
// that parses as a JSON object and validates against s. A nil schema
// accepts any object. Extract never panics and has no side effects.
func Extract(raw string, s *schema.Schema) Result {
	fail := &ExtractionFailure{Raw: raw}
	blocks := fencedBlocks(raw)

	try := func(st Strategy, candidate string) (map[string]any, bool) {
		v, err := parse(candidate, s)
		if err != nil {
			fail.Attempts = append(fail.Attempts, Attempt{Strategy: st, Err: err})
			return nil, false
		}
		return v, true
	}

	for _, b := range blocks {
		if !b.tagged {
			continue
		}
		if v, ok := try(TaggedBlock, b.body); ok {
			return Result{Value: v, Strategy: TaggedBlock}
		}
	}
	for _, b := range blocks {
		if b.tagged {
			continue
		}
		if v, ok := try(AnyBlock, b.body); ok {
			return Result{Value: v, Strategy: AnyBlock}
		}
	}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if v, ok := try(WholeText, trimmed); ok {
			return Result{Value: v, Strategy: WholeText}
		}
	}
	for _, c := range braceCandidates(raw) {
		if v, ok := try(BraceScan, c); ok {
			return Result{Value: v, Strategy: BraceScan}
		}
	}
	return Result{Err: fail}
}

func parse(candidate string, s *schema.Schema) (map[string]any, error) {
	v, err := jsonutil.Object([]byte(candidate))
	if err != nil {
		return nil, err
	}
	if s != nil {
		if err := s.Validate(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

type block struct {
	tagged bool
	body   string
}

// fencedBlocks lists fenced code blocks in document order. Blocks tagged
// json are marked; other info strings count as untagged.
func fencedBlocks(raw string) []block {
	src := []byte(raw)
	doc := md.Parser().Parse(text.NewReader(src))
	var out []block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(src))
		}
		lang := strings.ToLower(string(fb.Language(src)))
		out = append(out, block{tagged: lang == "json", body: sb.String()})
		return ast.WalkSkipChildren, nil
	})
	return out
}

// maxBraceCandidates bounds how many balanced spans BraceScan tries.
const maxBraceCandidates = 16

// braceCandidates returns balanced {...} substrings in order of their
// opening brace, so an enclosing object precedes the objects inside it.
// It is a single pass over raw with a stack of open braces. Quotes only
// start a string inside an open brace, and braces inside strings are
// ignored.
func braceCandidates(raw string) []string {
	type span struct{ start, end int }
	var (
		open     []int
		spans    []span
		inString bool
		escaped  bool
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				spans = append(spans, span{open[n-1], i})
				open = open[:n-1]
			}
		}
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	if len(spans) > maxBraceCandidates {
		spans = spans[:maxBraceCandidates]
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = raw[sp.start : sp.end+1]
	}
	return out
}
