package markdown

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ByLCY/thermalprint/dither"
)

func kinds(doc *Document) []BlockKind {
	out := make([]BlockKind, len(doc.Blocks))
	for i, b := range doc.Blocks {
		out[i] = b.Kind
	}
	return out
}

func TestParseBlocks(t *testing.T) {
	src := "# Title\n\npara one\npara two\n\n- a\n1. b\n> q\n---\n```\ncode\n```"
	doc := ParseString(src)
	want := []BlockKind{Header, Paragraph, ListItem, ListItem, Quote, Rule, CodeBlock}
	if got := kinds(doc); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds: got %v want %v", got, want)
	}
	if doc.Blocks[0].Level != 1 || doc.Blocks[0].PlainText() != "Title" {
		t.Fatalf("header: %+v", doc.Blocks[0])
	}
	if got := doc.Blocks[1].PlainText(); got != "para one para two" {
		t.Fatalf("paragraph lines should join with a space, got %q", got)
	}
	if doc.Blocks[2].Ordered || !doc.Blocks[3].Ordered || doc.Blocks[3].Number != 1 {
		t.Fatalf("list items: %+v %+v", doc.Blocks[2], doc.Blocks[3])
	}
	if !reflect.DeepEqual(doc.Blocks[6].Lines, []string{"code"}) {
		t.Fatalf("code lines: %q", doc.Blocks[6].Lines)
	}
}

func TestHeaderLevels(t *testing.T) {
	doc := ParseString("### three\n\n#nospace\n\n####### seven")
	if doc.Blocks[0].Kind != Header || doc.Blocks[0].Level != 3 {
		t.Fatalf("h3: %+v", doc.Blocks[0])
	}
	for _, b := range doc.Blocks[1:] {
		if b.Kind != Paragraph {
			t.Fatalf("expected literal paragraph, got %+v", b)
		}
	}
}

func TestInlineStyles(t *testing.T) {
	got := parseInline("a **b** *c* `d`")
	want := []InlineRun{
		{Text: "a "},
		{Text: "b", Bold: true},
		{Text: " "},
		{Text: "c", Italic: true},
		{Text: " "},
		{Text: "d", Code: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestInlineNoNesting(t *testing.T) {
	got := parseInline("**a *b* c**")
	want := []InlineRun{{Text: "a *b* c", Bold: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}
	got = parseInline("`x **y**`")
	want = []InlineRun{{Text: "x **y**", Code: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}
}

func TestInlineLiteralDelimiters(t *testing.T) {
	cases := map[string]string{
		"a ** b":       "a ** b",
		"****":         "****",
		`\*not\*`:      "*not*",
		"price: 5 * 3": "price: 5 * 3",
		"tick ` alone": "tick ` alone",
		`back\slash`:   `back\slash`,
	}
	for in, want := range cases {
		runs := parseInline(in)
		if len(runs) != 1 || runs[0].Text != want || runs[0].Bold || runs[0].Italic || runs[0].Code {
			t.Fatalf("%q: got %+v want plain %q", in, runs, want)
		}
	}
}

func TestHfillSplit(t *testing.T) {
	doc := ParseString(`A\hfillB\hfillC`)
	blk := doc.Blocks[0]
	if blk.Align != AlignSplit {
		t.Fatalf("align: %s", blk.Align)
	}
	want := []InlineRun{{Text: "A"}, {Fill: true}, {Text: `B\hfillC`}}
	if !reflect.DeepEqual(blk.Runs, want) {
		t.Fatalf("runs: %+v", blk.Runs)
	}
}

func TestAlignDirectivePersists(t *testing.T) {
	doc := ParseString("@align:center\none\n\ntwo\n\n@align:right\nthree")
	want := []Align{AlignCenter, AlignCenter, AlignRight}
	for i, b := range doc.Blocks {
		if b.Align != want[i] {
			t.Fatalf("block %d: align %s want %s", i, b.Align, want[i])
		}
	}
}

func TestImageDirective(t *testing.T) {
	doc := ParseString("@image:logo.png\n@image:a.png:0.25:jjn")
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
	first := doc.Blocks[0].Image
	if first == nil || first.Path != "logo.png" || first.Scale != 1 || first.Algorithm != dither.FloydSteinberg {
		t.Fatalf("defaults: %+v", first)
	}
	second := doc.Blocks[1].Image
	if second.Scale != 0.25 || second.Algorithm != dither.JarvisJudiceNinke {
		t.Fatalf("args: %+v", second)
	}
	if first.Raw != "@image:logo.png" || second.Raw != "@image:a.png:0.25:jjn" {
		t.Fatalf("raw lines: %q %q", first.Raw, second.Raw)
	}
}

func TestMalformedDirectivesStayLiteral(t *testing.T) {
	for _, src := range []string{
		"@align",
		"@align:middle",
		"@bogus:x",
		"@image:a.png:2",
		"@image:a.png:0.5:nope",
		"@image:a.png:0:bayer",
		"@image:a.png:NaN",
		"@image:a.png:nan:atkinson",
		"@image:a.png:+Inf",
	} {
		doc := ParseString(src)
		if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != Paragraph {
			t.Fatalf("%q: expected literal paragraph, got %+v", src, doc.Blocks)
		}
		if got := doc.Blocks[0].PlainText(); got != src {
			t.Fatalf("%q: text changed to %q", src, got)
		}
	}
}

func TestUnclosedFenceRunsToEnd(t *testing.T) {
	doc := ParseString("```\nx\n\n  y")
	if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != CodeBlock {
		t.Fatalf("blocks: %+v", doc.Blocks)
	}
	if !reflect.DeepEqual(doc.Blocks[0].Lines, []string{"x", "", "  y"}) {
		t.Fatalf("lines: %q", doc.Blocks[0].Lines)
	}
}

func TestNormalization(t *testing.T) {
	doc := ParseString("café\r\nnext")
	if got := doc.Blocks[0].PlainText(); got != "café next" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyInput(t *testing.T) {
	if doc := ParseString(""); len(doc.Blocks) != 0 {
		t.Fatalf("expected no blocks, got %+v", doc.Blocks)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestParseReadError(t *testing.T) {
	if _, err := Parse(failingReader{}); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestCodeSpanKeepsEscapes(t *testing.T) {
	got := parseInline(`path ` + "`" + `C:\\tmp` + "`" + ` and \*`)
	want := []InlineRun{
		{Text: "path "},
		{Text: `C:\\tmp`, Code: true},
		{Text: " and *"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestDirectiveInsideParagraph(t *testing.T) {
	doc := ParseString("before\n@align:right\nafter")
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", doc.Blocks)
	}
	if doc.Blocks[0].PlainText() != "before" || doc.Blocks[0].Align != AlignLeft {
		t.Fatalf("first: %+v", doc.Blocks[0])
	}
	if doc.Blocks[1].PlainText() != "after" || doc.Blocks[1].Align != AlignRight {
		t.Fatalf("second: %+v", doc.Blocks[1])
	}
}

func TestHfillLinesStandAlone(t *testing.T) {
	doc := ParseString("Items\nTea\\hfill3\nCake\\hfill5\ntotal")
	want := []Align{AlignLeft, AlignSplit, AlignSplit, AlignLeft}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %+v", len(want), doc.Blocks)
	}
	for i, b := range doc.Blocks {
		if b.Align != want[i] {
			t.Fatalf("block %d: align %s want %s", i, b.Align, want[i])
		}
	}
}

func TestListNumbering(t *testing.T) {
	doc := ParseString("3. three\n4. four\n   more\n- sub")
	if len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %+v", doc.Blocks)
	}
	if doc.Blocks[0].Number != 3 || doc.Blocks[1].Number != 4 {
		t.Fatalf("numbers: %d %d", doc.Blocks[0].Number, doc.Blocks[1].Number)
	}
	if got := doc.Blocks[1].PlainText(); got != "four more" {
		t.Fatalf("continuation should join, got %q", got)
	}
	if doc.Blocks[2].Ordered {
		t.Fatalf("bullet after ordered list: %+v", doc.Blocks[2])
	}
}

func TestNestedListFlattens(t *testing.T) {
	doc := ParseString("- outer\n  - inner\n- last")
	want := []string{"outer", "inner", "last"}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %+v", len(want), doc.Blocks)
	}
	for i, b := range doc.Blocks {
		if b.Kind != ListItem || b.PlainText() != want[i] {
			t.Fatalf("block %d: %+v", i, b)
		}
	}
}

func TestQuoteLinesMerge(t *testing.T) {
	doc := ParseString("> one\n> *two*\n\nafter")
	if got := kinds(doc); !reflect.DeepEqual(got, []BlockKind{Quote, Paragraph}) {
		t.Fatalf("kinds: %v", got)
	}
	want := []InlineRun{{Text: "one "}, {Text: "two", Italic: true}}
	if !reflect.DeepEqual(doc.Blocks[0].Runs, want) {
		t.Fatalf("quote runs: %+v", doc.Blocks[0].Runs)
	}
}

func TestRuleAfterParagraph(t *testing.T) {
	doc := ParseString("text\n---")
	if got := kinds(doc); !reflect.DeepEqual(got, []BlockKind{Paragraph, Rule}) {
		t.Fatalf("--- under text must stay a rule, got %v", got)
	}
}
