package markdown

import "github.com/ByLCY/thermalprint/dither"

// Document is the parsed form of one extended-markdown source.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// BlockKind tags the variant stored in a Block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Header
	ListItem
	CodeBlock
	Quote
	Rule
	ImageBlock
)

func (k BlockKind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Header:
		return "header"
	case ListItem:
		return "list-item"
	case CodeBlock:
		return "code"
	case Quote:
		return "quote"
	case Rule:
		return "rule"
	case ImageBlock:
		return "image"
	default:
		return "unknown"
	}
}

// MarshalText lets debug JSON show kinds by name.
func (k BlockKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Align is the horizontal alignment of a block.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
	AlignSplit
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignSplit:
		return "split"
	default:
		return "left"
	}
}

func (a Align) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// parseAlign accepts the values of @align. split is set by \hfill only.
func parseAlign(v string) (Align, bool) {
	switch v {
	case "left":
		return AlignLeft, true
	case "center":
		return AlignCenter, true
	case "right":
		return AlignRight, true
	}
	return AlignLeft, false
}

// Block is one block-level element.
type Block struct {
	Kind  BlockKind   `json:"kind"`
	Align Align       `json:"align"`
	Runs  []InlineRun `json:"runs,omitempty"`

	// Level is the header depth (1..6).
	Level int `json:"level,omitempty"`

	// Ordered list items keep their number.
	Ordered bool `json:"ordered,omitempty"`
	Number  int  `json:"number,omitempty"`

	// Lines holds the verbatim lines of a code block.
	Lines []string `json:"lines,omitempty"`

	Image *ImageRef `json:"image,omitempty"`
}

// InlineRun is a piece of text sharing one style. A run with Fill set carries
// no text and marks the \hfill split point.
type InlineRun struct {
	Text   string `json:"text,omitempty"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Code   bool   `json:"code,omitempty"`
	Fill   bool   `json:"fill,omitempty"`
}

// ImageRef is the payload of an @image directive.
type ImageRef struct {
	Path      string           `json:"path"`
	Scale     float64          `json:"scale"`
	Algorithm dither.Algorithm `json:"algorithm"`
	// Raw is the directive line as written.
	Raw string `json:"raw,omitempty"`
}

// PlainText joins the text of all runs, ignoring styles and fill markers.
func (b Block) PlainText() string {
	n := 0
	for _, r := range b.Runs {
		n += len(r.Text)
	}
	buf := make([]byte, 0, n)
	for _, r := range b.Runs {
		buf = append(buf, r.Text...)
	}
	return string(buf)
}
