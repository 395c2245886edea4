// Package render prints Gemtext lines to a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/knowfox/comet/gemtext"
)

const (
	defaultWidth = 80

	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiItalic  = "\x1b[3m"
	ansiLink    = "\x1b[34m"
	ansiVisited = "\x1b[35m"
)

// Printer writes lines as they arrive. Links are numbered from 1 in page
// order so that they can be selected by number.
type Printer struct {
	w     io.Writer
	width int
	color bool

	uri     string
	printed int
	links   []string
}

// NewPrinter returns a Printer for w wrapping at width columns. A width
// of zero or less means 80.
func NewPrinter(w io.Writer, width int, color bool) *Printer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Printer{w: w, width: width, color: color}
}

// ForFile configures a Printer for f: ANSI styling and the terminal width
// when f is a terminal, plain text otherwise.
func ForFile(f *os.File) *Printer {
	fd := f.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	width := defaultWidth
	if tty {
		if w, _, err := term.GetSize(int(fd)); err == nil && w > 0 {
			width = w
		}
	}
	return NewPrinter(f, width, tty)
}

// Update prints the lines of snapshot not printed yet. Snapshots of a new
// URI start a new page.
func (p *Printer) Update(uri string, lines []gemtext.Line) error {
	if uri != p.uri {
		p.uri = uri
		p.printed = 0
		p.links = nil
	}
	if len(lines) < p.printed {
		p.printed = 0
		p.links = nil
	}
	for _, line := range lines[p.printed:] {
		if err := p.print(line); err != nil {
			return err
		}
		p.printed++
	}
	return nil
}

// Links returns the link targets printed for the current page, in order.
func (p *Printer) Links() []string {
	return p.links
}

// Message prints a status line, dimmed on a terminal.
func (p *Printer) Message(format string, args ...any) error {
	_, err := fmt.Fprintln(p.w, p.style(ansiDim, fmt.Sprintf(format, args...)))
	return err
}

func (p *Printer) print(line gemtext.Line) error {
	var out string
	switch l := line.(type) {
	case gemtext.Empty:
		out = ""
	case gemtext.Paragraph:
		out = Wrap(l.Text, p.width, "")
	case gemtext.Title:
		out = p.style(ansiBold, Wrap(strings.Repeat("#", l.Level)+" "+l.Text, p.width, ""))
	case gemtext.Link:
		p.links = append(p.links, l.URL)
		label := l.Label
		if label == "" {
			label = l.URL
		}
		prefix := fmt.Sprintf("[%d] ", len(p.links))
		color := ansiLink
		if l.Visited {
			color = ansiVisited
		}
		out = p.style(color, Wrap(prefix+label, p.width, strings.Repeat(" ", len(prefix))))
	case gemtext.PreFence:
		if l.Caption == "" {
			return nil
		}
		out = p.style(ansiDim, l.Caption)
	case gemtext.PreText:
		out = l.Text
	case gemtext.Blockquote:
		out = p.style(ansiItalic, Wrap("> "+l.Text, p.width, "> "))
	case gemtext.ListItem:
		out = Wrap("• "+l.Text, p.width, "  ")
	default:
		return fmt.Errorf("render: unexpected line %T", line)
	}
	_, err := fmt.Fprintln(p.w, out)
	return err
}

func (p *Printer) style(code, s string) string {
	if !p.color || s == "" {
		return s
	}
	return code + s + ansiReset
}

// Wrap breaks s into lines of at most width display columns, breaking on
// spaces where possible. Continuation lines start with indent. Words wider
// than a line are split.
func Wrap(s string, width int, indent string) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	indentWidth := runewidth.StringWidth(indent)
	var b strings.Builder
	lineWidth := 0
	newLine := func() {
		b.WriteByte('\n')
		b.WriteString(indent)
		lineWidth = indentWidth
	}
	for i, word := range strings.Split(s, " ") {
		w := runewidth.StringWidth(word)
		if i > 0 {
			if lineWidth+1+w > width && lineWidth > indentWidth {
				newLine()
			} else {
				b.WriteByte(' ')
				lineWidth++
			}
		}
		for w > width-lineWidth && width-lineWidth > 0 && w > width-indentWidth {
			head := runewidth.Truncate(word, width-lineWidth, "")
			if head == "" {
				break
			}
			b.WriteString(head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
			newLine()
		}
		b.WriteString(word)
		lineWidth += w
	}
	return b.String()
}
