package schema

import "quill/internal/locale"

var placeholders = map[locale.Locale]string{
	locale.Chinese: "分析暂不可用",
	locale.English: "Analysis unavailable",
}

// Placeholder is the text that synthesized text fields carry.
func Placeholder(loc locale.Locale) string {
	if p, ok := placeholders[loc]; ok {
		return p
	}
	return placeholders[locale.Chinese]
}

// rule produces one field's default for a locale.
type rule struct {
	name  string
	value func(loc locale.Locale) any
}

func buildPolicy(fields []Field) []rule {
	out := make([]rule, 0, len(fields))
	for _, f := range fields {
		out = append(out, rule{name: f.Name, value: defaultFor(f)})
	}
	return out
}

func defaultFor(f Field) func(locale.Locale) any {
	if f.Default != nil {
		v := f.Default
		return func(locale.Locale) any { return v }
	}
	switch f.Kind {
	case Text:
		return func(loc locale.Locale) any { return Placeholder(loc) }
	case Integer:
		return func(locale.Locale) any { return 0 }
	case Number:
		return func(locale.Locale) any { return 0.0 }
	case Mapping:
		return func(locale.Locale) any { return map[string]any{} }
	case Choice:
		first := f.Choices[0]
		return func(locale.Locale) any { return first }
	default:
		return func(locale.Locale) any { return nil }
	}
}

// Synthesize builds the fallback instance for s. It never fails and the
// result always carries every declared field.
func (s *Schema) Synthesize(loc locale.Locale) map[string]any {
	out := make(map[string]any, len(s.policy))
	for _, r := range s.policy {
		out[r.name] = r.value(loc)
	}
	return out
}
