package scoring

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Similarity is the Sørensen-Dice coefficient over character bigrams of
// the two texts, in [0,1]. Case, width, spacing and punctuation are
// ignored, so it works the same for Chinese and English prose.
func Similarity(a, b string) float64 {
	ra, rb := simplify(a), simplify(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) < 2 || len(rb) < 2 {
		if string(ra) == string(rb) {
			return 1
		}
		return 0
	}

	grams := make(map[[2]rune]int, len(ra))
	for i := 0; i+1 < len(ra); i++ {
		grams[[2]rune{ra[i], ra[i+1]}]++
	}
	shared := 0
	for i := 0; i+1 < len(rb); i++ {
		g := [2]rune{rb[i], rb[i+1]}
		if grams[g] > 0 {
			grams[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ra)-1+len(rb)-1)
}

// SimilarityScore is Similarity as a whole percentage.
func SimilarityScore(a, b string) int {
	return Clamp(int(math.Round(Similarity(a, b) * 100)))
}

func simplify(s string) []rune {
	s = strings.ToLower(norm.NFKC.String(s))
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
