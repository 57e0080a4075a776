package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reply grammar, applied line by line after NFKC normalization:
//
//	score-line  = *decor score-mark *space ":" rest    ; first one wins
//	reason-line = *decor reason-mark *space ":" text   ; continues to the end
//	score-mark  = "评分" / "得分" / "分数" / "score"    ; case-insensitive
//	reason-mark = "理由" / "reason"
//	decor       = "*" / "#" / "-" / ">" / space
//
// The score is the first signed decimal in rest, truncated toward zero and
// clamped to [0,100]. Trailing text such as "分" is ignored.
var (
	scoreMarks  = []string{"评分", "得分", "分数", "score"}
	reasonMarks = []string{"理由", "reason"}
	numberRe    = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
)

// ParsedScore is a decoded rubric reply. Found is false when no score line
// was present.
type ParsedScore struct {
	Score  int
	Reason string
	Found  bool
}

// ParseScore reads a rubric reply. It never fails: without a score line the
// score is 0 and the reason is the whole reply, as it is when no reason
// line is present.
func ParseScore(raw string) ParsedScore {
	var out ParsedScore
	var reason []string
	inReason := false

	for _, line := range strings.Split(norm.NFKC.String(raw), "\n") {
		body := strings.TrimLeft(strings.TrimSpace(line), "*#-> ")
		body = strings.ReplaceAll(body, "**", "")

		if rest, ok := afterMark(body, scoreMarks); ok {
			if !out.Found {
				out.Found = true
				out.Score = scoreOf(rest)
			}
			inReason = false
			continue
		}
		if rest, ok := afterMark(body, reasonMarks); ok {
			inReason = true
			if rest = strings.TrimSpace(rest); rest != "" {
				reason = append(reason, rest)
			}
			continue
		}
		if inReason && strings.TrimSpace(line) != "" {
			reason = append(reason, strings.TrimSpace(line))
		}
	}

	out.Reason = strings.Join(reason, "\n")
	// Without a score line the whole reply is kept for diagnosis, even
	// when part of it looks like a reason.
	if out.Reason == "" || !out.Found {
		out.Reason = strings.TrimSpace(raw)
	}
	return out
}

// afterMark returns the text after "<mark>:" when line starts with one of
// marks.
func afterMark(line string, marks []string) (string, bool) {
	for _, m := range marks {
		if len(line) < len(m) || !strings.EqualFold(line[:len(m)], m) {
			continue
		}
		rest := strings.TrimLeft(line[len(m):], " \t")
		if strings.HasPrefix(rest, ":") {
			return rest[1:], true
		}
	}
	return "", false
}

func scoreOf(rest string) int {
	m := numberRe.FindString(rest)
	if m == "" {
		return 0
	}
	// ParseFloat still returns ±Inf on overflow.
	f, _ := strconv.ParseFloat(m, 64)
	switch {
	case f >= 100:
		return 100
	case f <= 0:
		return 0
	}
	return int(f)
}

// Clamp limits a score to [0,100].
func Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
