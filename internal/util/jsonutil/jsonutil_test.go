package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject(t *testing.T) {
	m, err := Object([]byte(` {"a": 1, "b": "x"} `))
	require.NoError(t, err)
	assert.Equal(t, float64(1), m["a"])

	_, err = Object([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = Object([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = Object([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = Object(nil)
	assert.Error(t, err)
}

func TestObjectUnwrapsQuotedDocument(t *testing.T) {
	m, err := Object([]byte(`"{\"verdict\":\"strong\"}"`))
	require.NoError(t, err)
	assert.Equal(t, "strong", m["verdict"])
}

func TestDoubleEscapedUnicode(t *testing.T) {
	m, err := Object([]byte(`"{\"op\":\"a \\u003e b\"}"`))
	require.NoError(t, err)
	assert.Equal(t, "a > b", m["op"])
}

func TestMarshalNoEscape(t *testing.T) {
	b, err := MarshalNoEscape(map[string]string{"k": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<b>&"}`, string(b))

	b, err = MarshalNoEscapeIndent(map[string]int{"k": 1}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"k\": 1\n}", string(b))
}

func TestUnescapeUnicode(t *testing.T) {
	got, err := unescapeUnicode(`a \u003e b \u4e2d "q"`)
	require.NoError(t, err)
	assert.Equal(t, `a > b 中 "q"`, got)

	plain, err := unescapeUnicode(`C:\path`)
	require.NoError(t, err)
	assert.Equal(t, `C:\path`, plain)
}
