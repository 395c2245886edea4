package render_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowfox/comet/gemtext"
	"github.com/knowfox/comet/internal/render"
)

func TestWrap(t *testing.T) {
	require.Equal(t, "short", render.Wrap("short", 80, ""))
	require.Equal(t, "aaa bbb\nccc", render.Wrap("aaa bbb ccc", 7, ""))
	require.Equal(t, "aaa bbb\n  ccc", render.Wrap("aaa bbb ccc", 7, "  "))
	require.Equal(t, "abcd\nefgh\nij", render.Wrap("abcdefghij", 4, ""))
	// Wide runes count for two columns.
	require.Equal(t, "日本\n語", render.Wrap("日本語", 4, ""))
}

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := render.NewPrinter(&buf, 80, false)

	lines := []gemtext.Line{
		gemtext.Title{Level: 1, Text: "Hello"},
		gemtext.Empty{},
		gemtext.Paragraph{Text: "Some text"},
		gemtext.Link{URL: "gemini://a/", Label: "A"},
		gemtext.Link{URL: "b.gmi"},
		gemtext.ListItem{Text: "item"},
		gemtext.Blockquote{Text: "quote"},
		gemtext.PreFence{Caption: "code"},
		gemtext.PreText{Text: "  x := 1"},
		gemtext.PreFence{},
	}
	require.NoError(t, p.Update("gemini://a/", lines[:3]))
	require.NoError(t, p.Update("gemini://a/", lines))
	require.Equal(t, "# Hello\n\nSome text\n[1] A\n[2] b.gmi\n• item\n> quote\ncode\n  x := 1\n", buf.String())
	require.Equal(t, []string{"gemini://a/", "b.gmi"}, p.Links())

	// A new page starts over.
	buf.Reset()
	require.NoError(t, p.Update("gemini://b/", []gemtext.Line{gemtext.Link{URL: "c.gmi", Label: "C"}}))
	require.Equal(t, "[1] C\n", buf.String())
	require.Equal(t, []string{"c.gmi"}, p.Links())
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	p := render.NewPrinter(&buf, 80, true)
	require.NoError(t, p.Update("gemini://a/", []gemtext.Line{
		gemtext.Title{Level: 2, Text: "Sub"},
		gemtext.Link{URL: "x", Label: "X", Visited: true},
	}))
	require.Equal(t, "\x1b[1m## Sub\x1b[0m\n\x1b[35m[1] X\x1b[0m\n", buf.String())
}
