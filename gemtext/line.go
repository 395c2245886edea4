// Package gemtext decodes text/gemini documents line by line as their
// bytes arrive.
package gemtext

// Line is one parsed Gemtext line. The concrete types are Empty, Paragraph,
// Title, Link, PreFence, PreText, Blockquote and ListItem.
type Line interface {
	Kind() Kind
}

// Kind names a Line variant.
type Kind string

const (
	KindEmpty      Kind = "empty"
	KindParagraph  Kind = "paragraph"
	KindTitle      Kind = "title"
	KindLink       Kind = "link"
	KindPreFence   Kind = "pre_fence"
	KindPreText    Kind = "pre_text"
	KindBlockquote Kind = "blockquote"
	KindListItem   Kind = "list_item"
)

type Empty struct{}

type Paragraph struct {
	Text string
}

// Title is a heading of level 1 to 3.
type Title struct {
	Level int
	Text  string
}

// Link is a "=>" line. Visited is never set by the parser.
type Link struct {
	URL     string
	Label   string
	Visited bool
}

// PreFence opens or closes a preformatted block.
type PreFence struct {
	Caption string
}

// PreText is a raw line inside a preformatted block.
type PreText struct {
	Text string
}

type Blockquote struct {
	Text string
}

type ListItem struct {
	Text string
}

func (Empty) Kind() Kind      { return KindEmpty }
func (Paragraph) Kind() Kind  { return KindParagraph }
func (Title) Kind() Kind      { return KindTitle }
func (Link) Kind() Kind       { return KindLink }
func (PreFence) Kind() Kind   { return KindPreFence }
func (PreText) Kind() Kind    { return KindPreText }
func (Blockquote) Kind() Kind { return KindBlockquote }
func (ListItem) Kind() Kind   { return KindListItem }
