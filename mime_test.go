package gemini_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	gemini "github.com/knowfox/comet"
)

func TestParseMimeTypeInvalid(t *testing.T) {
	for _, s := range []string{"", "dumb", "dumb;dumber", "123456", "a/b/c", "text/gemini;lang"} {
		_, err := gemini.ParseMimeType(s)
		require.ErrorIs(t, err, gemini.ErrInvalidMimeType, s)
	}
}

func TestParseMimeType(t *testing.T) {
	tests := []struct {
		in     string
		main   string
		sub    string
		params map[string]string
	}{
		{"a/b", "a", "b", map[string]string{}},
		{"text/gemini", "text", "gemini", map[string]string{}},
		{"text/gemini;lang=en", "text", "gemini", map[string]string{"lang": "en"}},
		{"text/gemini ;lang=en", "text", "gemini", map[string]string{"lang": "en"}},
		{"text/gemini; charset=UTF-8; LANG=fr", "text", "gemini", map[string]string{"charset": "utf-8", "lang": "fr"}},
		{"Image/PNG", "Image", "PNG", map[string]string{}},
	}
	for _, tt := range tests {
		m, err := gemini.ParseMimeType(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.main, m.Main, tt.in)
		require.Equal(t, tt.sub, m.Sub, tt.in)
		require.Equal(t, tt.params, m.Params, tt.in)
	}
}

func TestMimeTypeHelpers(t *testing.T) {
	m, err := gemini.ParseMimeType("text/plain; charset=iso-8859-1")
	require.NoError(t, err)
	require.Equal(t, "text/plain", m.Short())
	require.Equal(t, "iso-8859-1", m.Charset())
	require.True(t, m.IsText())
	require.Equal(t, "text/plain; charset=iso-8859-1", m.String())

	m, err = gemini.ParseMimeType("image/png")
	require.NoError(t, err)
	require.Equal(t, gemini.DefaultCharset, m.Charset())
	require.False(t, m.IsText())

	require.Equal(t, "*/*", gemini.MimeType{}.Short())
	require.Equal(t, "text/gemini; charset=utf-8", gemini.DefaultMimeType.String())
}
