// Package jsonutil holds the tolerant JSON helpers used on model output.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned by Object when the payload parses but is not a
// JSON object.
var ErrNotObject = errors.New("jsonutil: payload is not an object")

// MarshalNoEscape encodes v without escaping <, > and & so report text and
// prompts stay readable.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation.
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// unescapeUnicode turns leftover \u003e-style sequences inside an already
// decoded string into characters.
func unescapeUnicode(s string) (string, error) {
	if !strings.Contains(s, `\u`) {
		return s, nil
	}
	esc := strings.ReplaceAll(s, `\`, `\\`)
	esc = strings.ReplaceAll(esc, `\\u`, `\u`)
	esc = strings.ReplaceAll(esc, `"`, `\"`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

// normalize parses raw, unwrapping up to two levels of JSON-in-a-string,
// and unescapes double-escaped unicode in every string value.
func normalize(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	for i := 0; i < 2; i++ {
		s, ok := v.(string)
		if !ok {
			break
		}
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			break
		}
		v = inner
	}
	return MarshalNoEscape(deepUnescape(v))
}

// UnmarshalFlex decodes raw into v, retrying after normalization when the
// payload is a quoted JSON document or carries double-escaped unicode.
func UnmarshalFlex(raw []byte, v any) error {
	first := json.Unmarshal(raw, v)
	if first == nil {
		return nil
	}
	norm, err := normalize(raw)
	if err != nil {
		return first
	}
	return json.Unmarshal(norm, v)
}

// Object decodes raw as a single JSON object.
func Object(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("jsonutil: empty payload")
	}
	var m map[string]any
	if err := UnmarshalFlex(raw, &m); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, ErrNotObject
		}
		return nil, err
	}
	if m == nil {
		return nil, ErrNotObject
	}
	return m, nil
}

func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := unescapeUnicode(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}
