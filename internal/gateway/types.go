package gateway

import (
	"github.com/knowfox/comet/gemtext"
	"github.com/knowfox/comet/history"
)

// Outcomes of a page request.
const (
	OutcomeSuccess  = "success"
	OutcomeInput    = "input"
	OutcomeBinary   = "binary"
	OutcomeExternal = "external"
	OutcomeFailure  = "failure"
)

type Line struct {
	Type    gemtext.Kind `json:"type"`
	Text    string       `json:"text,omitempty"`
	Level   int          `json:"level,omitempty"`
	URL     string       `json:"url,omitempty"`
	Label   string       `json:"label,omitempty"`
	Visited bool         `json:"visited,omitempty"`
}

type PageResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	URL       string `json:"url"`
	Outcome   string `json:"outcome,omitempty"`
	Redirects int    `json:"redirects,omitempty"`
	Lines     []Line `json:"lines,omitempty"`

	// Input requests.
	Prompt    string `json:"prompt,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`

	// Binary responses and external links.
	MimeType string `json:"mimeType,omitempty"`
	Target   string `json:"target,omitempty"`

	// Failures.
	Message       string `json:"message,omitempty"`
	Details       string `json:"details,omitempty"`
	ServerDetails string `json:"serverDetails,omitempty"`
}

type HistoryResponse struct {
	Status  string          `json:"status"`
	Service string          `json:"service"`
	Message string          `json:"message,omitempty"`
	Entries []history.Entry `json:"entries"`
}

func toLine(l gemtext.Line) Line {
	out := Line{Type: l.Kind()}
	switch v := l.(type) {
	case gemtext.Paragraph:
		out.Text = v.Text
	case gemtext.Title:
		out.Text, out.Level = v.Text, v.Level
	case gemtext.Link:
		out.URL, out.Label, out.Visited = v.URL, v.Label, v.Visited
	case gemtext.PreFence:
		out.Text = v.Caption
	case gemtext.PreText:
		out.Text = v.Text
	case gemtext.Blockquote:
		out.Text = v.Text
	case gemtext.ListItem:
		out.Text = v.Text
	}
	return out
}

func toLines(lines []gemtext.Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = toLine(l)
	}
	return out
}
