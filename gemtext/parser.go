package gemtext

import (
	"bytes"
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Encoding returns the decoder for a charset name, UTF-8 when the name is
// unknown. The boolean reports whether the name was recognised.
func Encoding(charset string) (encoding.Encoding, bool) {
	if charset == "" {
		return xunicode.UTF8, true
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return xunicode.UTF8, false
	}
	return enc, true
}

// Parse decodes chunks into Lines on a separate goroutine. The returned
// channel is unbuffered: the parser waits for the consumer before reading
// more input. It is closed when chunks is closed or ctx is done.
//
// Only LF-terminated lines are emitted; bytes following the last LF when
// chunks closes are dropped.
func Parse(ctx context.Context, chunks <-chan []byte, enc encoding.Encoding) <-chan Line {
	if enc == nil {
		enc = xunicode.UTF8
	}
	out := make(chan Line)
	go func() {
		defer close(out)
		dec := enc.NewDecoder()
		var buf []byte
		pre := false
		for {
			var chunk []byte
			var ok bool
			select {
			case chunk, ok = <-chunks:
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
			buf = append(buf, chunk...)
			for {
				i := bytes.IndexByte(buf, '\n')
				if i < 0 {
					break
				}
				raw := bytes.TrimSuffix(buf[:i], []byte{'\r'})
				text, err := dec.Bytes(raw)
				if err != nil {
					text = raw
				}
				buf = buf[i+1:]

				line := ParseLine(string(text), pre)
				if _, fence := line.(PreFence); fence {
					pre = !pre
				}
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ParseLine classifies a single line. pre tells whether the line is inside
// a preformatted block. Fences are checked first, then the preformatted
// state, then the other prefixes.
func ParseLine(line string, pre bool) Line {
	switch {
	case strings.HasPrefix(line, "```"):
		return PreFence{Caption: charsFrom(line, 3)}
	case pre:
		return PreText{Text: line}
	case strings.HasPrefix(line, "###"):
		return Title{Level: 3, Text: charsFrom(line, 3)}
	case strings.HasPrefix(line, "##"):
		return Title{Level: 2, Text: charsFrom(line, 2)}
	case strings.HasPrefix(line, "#"):
		return Title{Level: 1, Text: charsFrom(line, 1)}
	case strings.HasPrefix(line, "* "):
		return ListItem{Text: charsFrom(line, 2)}
	case strings.HasPrefix(line, ">"):
		return Blockquote{Text: charsFrom(line, 1)}
	case strings.HasPrefix(line, "=>"):
		rest := charsFrom(line, 2)
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return Link{URL: rest}
		}
		return Link{URL: rest[:i], Label: strings.TrimLeftFunc(rest[i+1:], unicode.IsSpace)}
	case line == "":
		return Empty{}
	default:
		return Paragraph{Text: line}
	}
}

// charsFrom returns the trimmed text after the first n bytes.
func charsFrom(line string, n int) string {
	return strings.TrimSpace(line[n:])
}
