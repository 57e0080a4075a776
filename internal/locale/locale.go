// Package locale picks the language used for prompts and placeholder text.
package locale

import (
	"strings"
	"sync"
	"unicode"

	"github.com/pemistahl/lingua-go"
)

type Locale string

const (
	Chinese Locale = "zh"
	English Locale = "en"
)

// Parse maps tags such as "zh-CN" or "en_US" to a Locale. Anything it does
// not recognise is Chinese, the language of the scoring rubric.
func Parse(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if strings.HasPrefix(tag, "en") {
		return English
	}
	return Chinese
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.Chinese, lingua.English).
			WithLowAccuracyMode().
			Build()
	})
	return detector
}

// Detect guesses the locale of text. Short or mixed text falls back to a
// Han-script ratio check; empty text is fallback.
func Detect(text string, fallback Locale) Locale {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	if hanRatio(text) >= 0.3 {
		return Chinese
	}
	if lang, ok := languageDetector().DetectLanguageOf(text); ok {
		switch lang {
		case lingua.Chinese:
			return Chinese
		case lingua.English:
			return English
		}
	}
	return fallback
}

func hanRatio(text string) float64 {
	var han, letters int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(han) / float64(letters)
}
