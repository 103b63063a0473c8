package markdown

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	mdtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/thermalprint/dither"
	"github.com/ByLCY/thermalprint/logging"
)

var (
	// blockParser 只识别块结构。没有注册任何行内解析器，强调与代码片段
	// 原样留在行文本中交给 parseInline。setext 标题、缩进代码块与 HTML 块不属于该方言。
	blockParser = parser.NewParser(
		parser.WithBlockParsers(
			util.Prioritized(parser.NewThematicBreakParser(), 200),
			util.Prioritized(parser.NewListParser(), 300),
			util.Prioritized(parser.NewListItemParser(), 400),
			util.Prioritized(parser.NewATXHeadingParser(), 600),
			util.Prioritized(parser.NewFencedCodeBlockParser(), 700),
			util.Prioritized(parser.NewBlockquoteParser(), 800),
			util.Prioritized(parser.NewParagraphParser(), 1000),
		),
	)

	directiveLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t]+`},
		{Name: "Symbol", Pattern: `[@:]`},
		{Name: "Word", Pattern: `[^@:\s]+`},
	})

	directiveParser = participle.MustBuild[directive](
		participle.Lexer(directiveLexer),
		participle.Elide("Whitespace"),
	)
)

// directive is one `@name:arg[:arg...]` line.
type directive struct {
	Name string   `parser:"'@' @Word"`
	Args []string `parser:"( ':' @Word )+"`
}

// ParseString parses extended markdown. It never fails: anything it cannot
// make sense of is kept as literal paragraph text.
func ParseString(text string) *Document {
	src := []byte(norm.NFC.String(strings.ReplaceAll(text, "\r\n", "\n")))
	b := &docBuilder{src: src, align: AlignLeft}
	root := blockParser.Parse(mdtext.NewReader(src))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		b.node(n)
	}
	return &Document{Blocks: b.blocks}
}

// Parse reads all of r and parses it. The only error is a read error.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取 markdown 失败: %w", err)
	}
	return ParseString(string(data)), nil
}

// docBuilder flattens the goldmark block tree into Blocks.
type docBuilder struct {
	src    []byte
	blocks []Block
	align  Align

	// paragraph lines waiting to be joined
	pending []string
}

func (b *docBuilder) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		text := strings.Join(trimmed(b.lines(n)), " ")
		b.emit(Block{Kind: Header, Level: n.Level, Align: b.align, Runs: parseInline(text)})
	case *ast.Paragraph, *ast.TextBlock:
		b.paragraph(b.lines(n))
	case *ast.List:
		number := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			b.listItem(item, n.IsOrdered(), number)
			number++
		}
	case *ast.FencedCodeBlock:
		lines := b.lines(n)
		for i, l := range lines {
			lines[i] = strings.TrimSuffix(l, "\n")
		}
		b.emit(Block{Kind: CodeBlock, Align: b.align, Lines: lines})
	case *ast.Blockquote:
		b.quote(n)
	case *ast.ThematicBreak:
		b.emit(Block{Kind: Rule, Align: b.align})
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			b.node(c)
		}
	}
}

// lines returns the raw source lines of a block node.
func (b *docBuilder) lines(n ast.Node) []string {
	segs := n.Lines()
	out := make([]string, 0, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		out = append(out, string(seg.Value(b.src)))
	}
	return out
}

func trimmed(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// paragraph handles a paragraph line by line: directives and \hfill lines
// stand alone, the rest join with a space.
func (b *docBuilder) paragraph(lines []string) {
	for _, line := range trimmed(lines) {
		if strings.HasPrefix(line, "@") && b.directive(line) {
			continue
		}
		b.paragraphLine(line)
	}
	b.flush()
}

func (b *docBuilder) paragraphLine(text string) {
	if !strings.Contains(text, `\hfill`) {
		b.pending = append(b.pending, text)
		return
	}
	b.flush()
	runs := parseInline(text)
	align := b.align
	for _, r := range runs {
		if r.Fill {
			align = AlignSplit
			break
		}
	}
	b.emit(Block{Kind: Paragraph, Align: align, Runs: runs})
}

// listItem emits the item's leading text, then any nested blocks after it.
func (b *docBuilder) listItem(item ast.Node, ordered bool, number int) {
	blk := Block{Kind: ListItem, Ordered: ordered, Align: b.align}
	if ordered {
		blk.Number = number
	}
	var text []string
	c := item.FirstChild()
	for ; c != nil && isTextBlock(c); c = c.NextSibling() {
		text = append(text, trimmed(b.lines(c))...)
	}
	blk.Runs = parseInline(strings.Join(text, " "))
	b.emit(blk)
	for ; c != nil; c = c.NextSibling() {
		b.node(c)
	}
}

func isTextBlock(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return true
	}
	return false
}

// quote merges every line inside the block quote into one Quote block.
func (b *docBuilder) quote(q *ast.Blockquote) {
	var text []string
	_ = ast.Walk(q, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			text = append(text, trimmed(b.lines(n))...)
		}
		return ast.WalkContinue, nil
	})
	if len(text) == 0 {
		return
	}
	b.emit(Block{Kind: Quote, Align: b.align, Runs: parseInline(strings.Join(text, " "))})
}

// directive handles an @-line and reports whether it was understood.
func (b *docBuilder) directive(text string) bool {
	d, err := directiveParser.ParseString("", text)
	if err != nil {
		logging.Logger().Debug("markdown: directive kept as text", "line", text, "err", err)
		return false
	}
	switch d.Name {
	case "align":
		if len(d.Args) != 1 {
			break
		}
		align, ok := parseAlign(d.Args[0])
		if !ok {
			break
		}
		b.flush()
		b.align = align
		return true
	case "image":
		ref, ok := parseImageArgs(d.Args)
		if !ok {
			break
		}
		ref.Raw = text
		b.flush()
		b.emit(Block{Kind: ImageBlock, Align: b.align, Image: ref})
		return true
	}
	logging.Logger().Debug("markdown: unknown or malformed directive kept as text", "line", text)
	return false
}

func parseImageArgs(args []string) (*ImageRef, bool) {
	if len(args) == 0 || len(args) > 3 {
		return nil, false
	}
	ref := &ImageRef{Path: args[0], Scale: 1, Algorithm: dither.FloydSteinberg}
	if len(args) > 1 {
		scale, err := strconv.ParseFloat(args[1], 64)
		if err != nil || math.IsNaN(scale) || !(scale > 0 && scale <= 1) {
			return nil, false
		}
		ref.Scale = scale
	}
	if len(args) > 2 {
		alg, ok := dither.ParseAlgorithm(args[2])
		if !ok {
			return nil, false
		}
		ref.Algorithm = alg
	}
	return ref, true
}

func (b *docBuilder) flush() {
	if len(b.pending) == 0 {
		return
	}
	text := strings.Join(b.pending, " ")
	b.emit(Block{Kind: Paragraph, Align: b.align, Runs: parseInline(text)})
	b.pending = nil
}

func (b *docBuilder) emit(blk Block) {
	b.blocks = append(b.blocks, blk)
}
