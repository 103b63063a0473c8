package layout

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ByLCY/thermalprint/dither"
	"github.com/ByLCY/thermalprint/markdown"
)

// stubMetrics 用固定宽度模拟字体：16px 字号下每个字符 8px，行高为字号的 1.25 倍。
// "fi" 作为连字簇不可拆分。
type stubMetrics struct{}

func (stubMetrics) Measure(text string, s Style) (float64, float64) {
	return float64(utf8.RuneCountInString(text)) * s.Size / 2, s.Size * 1.25
}

func (stubMetrics) Clusters(text string, _ Style) []string {
	var out []string
	for len(text) > 0 {
		if strings.HasPrefix(text, "fi") {
			out = append(out, "fi")
			text = text[2:]
			continue
		}
		_, n := utf8.DecodeRuneInString(text)
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

type stubImages map[string]*dither.Gray

func (s stubImages) Decode(path string) (*dither.Gray, error) {
	g, ok := s[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return g, nil
}

func gradient(w, h int) *dither.Gray {
	g := &dither.Gray{Width: w, Height: h, Depth: dither.Depth8, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Pix[y*w+x] = byte(x * 255 / (w - 1))
		}
	}
	return g
}

func page(width int, margin float64) PageParams {
	return PageParams{WidthPx: width, PPI: 203, MarginMM: margin, BaseFontSizePx: 16}
}

func mustLayout(t *testing.T, src string, p PageParams, opts BuildOptions) *Result {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = stubMetrics{}
	}
	res, err := Layout(markdown.ParseString(src), p, opts)
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	return res
}

func lineText(l Line) string {
	var sb strings.Builder
	for _, r := range l.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func TestHeaderFitsWithoutShrinking(t *testing.T) {
	res := mustLayout(t, "# Hello", page(384, 2), BuildOptions{})
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	ln := res.Lines[0]
	if ln.FontSize != 32 {
		t.Fatalf("h1 should keep 2x base size, got %g", ln.FontSize)
	}
	if ln.Overflow || ln.Width > float64(res.AvailPx) {
		t.Fatalf("header overflowed: %+v", ln)
	}
	if lineText(ln) != "Hello" || !ln.Runs[0].Style.Bold {
		t.Fatalf("unexpected header runs: %+v", ln.Runs)
	}
}

func TestHeaderShrinksToFit(t *testing.T) {
	// 20 个字符，32px 字号需要 320px，只有 200px 可用
	res := mustLayout(t, "# "+strings.Repeat("H", 20), page(200, 0), BuildOptions{})
	ln := res.Lines[0]
	if ln.FontSize >= 32 || ln.FontSize < MinHeaderSizePx {
		t.Fatalf("unexpected header size %g", ln.FontSize)
	}
	if ln.Width > 200 || ln.Overflow {
		t.Fatalf("shrunk header should fit: width=%g overflow=%v", ln.Width, ln.Overflow)
	}
	if ln.FontSize != 20 {
		t.Fatalf("largest fitting size is 20px, got %g", ln.FontSize)
	}
}

func TestFitHeaderTerminates(t *testing.T) {
	var sizes []float64
	size, steps, overflow := fitHeader(32, 10, func(s float64) float64 {
		sizes = append(sizes, s)
		return s * 100
	})
	if !overflow || size != MinHeaderSizePx {
		t.Fatalf("expected overflow at the floor, got size=%g overflow=%v", size, overflow)
	}
	if bound := int((32-MinHeaderSizePx)/HeaderShrinkStepPx) + 1; len(sizes) > bound {
		t.Fatalf("loop ran %d times, bound is %d", len(sizes), bound)
	}
	if steps != len(sizes)-1 {
		t.Fatalf("steps=%d sizes=%d", steps, len(sizes))
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] >= sizes[i-1] {
			t.Fatalf("sizes must strictly decrease: %v", sizes)
		}
	}
}

func TestListItemsOnePerLine(t *testing.T) {
	res := mustLayout(t, "- item1\n- item2", page(384, 2), BuildOptions{})
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
	for i, ln := range res.Lines {
		want := "• item" + string(rune('1'+i))
		if got := lineText(ln); got != want {
			t.Fatalf("line %d: got %q want %q", i, got, want)
		}
	}
	if res.Lines[0].Block == res.Lines[1].Block {
		t.Fatalf("list items should come from distinct blocks")
	}
}

func TestOrderedListPrefix(t *testing.T) {
	res := mustLayout(t, "3. third", page(384, 0), BuildOptions{})
	if got := lineText(res.Lines[0]); got != "3. third" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitAlignsEdges(t *testing.T) {
	res := mustLayout(t, `Left\hfillRight`, page(384, 2), BuildOptions{})
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	ln := res.Lines[0]
	if len(ln.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %+v", ln.Runs)
	}
	left, right := ln.Runs[0], ln.Runs[1]
	if left.Text != "Left" || left.X != 0 {
		t.Fatalf("left run misplaced: %+v", left)
	}
	if right.Text != "Right" || right.X+right.Width != float64(res.AvailPx) {
		t.Fatalf("right run should end at avail=%d: %+v", res.AvailPx, right)
	}
	// 绝对坐标：右边缘落在 width - margin
	if got := float64(res.MarginPx) + right.X + right.Width; got != float64(384-res.MarginPx) {
		t.Fatalf("right edge at %g", got)
	}
}

func TestSplitFallsBackWhenTooWide(t *testing.T) {
	src := strings.Repeat("a", 30) + `\hfill` + strings.Repeat("b", 30)
	res := mustLayout(t, src, page(200, 0), BuildOptions{})
	ln := res.Lines[0]
	if !ln.Overflow {
		t.Fatalf("expected overflow flag")
	}
	left, right := ln.Runs[0], ln.Runs[1]
	if right.X <= left.X+left.Width {
		t.Fatalf("right run must follow left run: %+v %+v", left, right)
	}
}

func TestParagraphWrapsAtWordBoundaries(t *testing.T) {
	words := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	res := mustLayout(t, words, page(200, 0), BuildOptions{})
	if len(res.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(res.Lines))
	}
	valid := map[string]bool{"lorem": true, "ipsum": true, "dolor": true, "sit": true, "amet": true}
	for i, ln := range res.Lines {
		if ln.Width > float64(res.AvailPx) {
			t.Fatalf("line %d exceeds avail: %g", i, ln.Width)
		}
		for _, w := range strings.Fields(lineText(ln)) {
			if !valid[w] {
				t.Fatalf("line %d split a word: %q", i, w)
			}
		}
	}
}

func TestOversizeWordHardBreaks(t *testing.T) {
	res := mustLayout(t, strings.Repeat("x", 100), page(160, 0), BuildOptions{})
	if len(res.Lines) != 5 {
		t.Fatalf("100 chars at 20 per line: want 5 lines, got %d", len(res.Lines))
	}
	total := 0
	for _, ln := range res.Lines {
		if ln.Width > 160 || ln.Overflow {
			t.Fatalf("chunk too wide: %+v", ln)
		}
		total += len(lineText(ln))
	}
	if total != 100 {
		t.Fatalf("characters lost in hard break: %d", total)
	}
}

func TestLigatureNeverSplit(t *testing.T) {
	// 每行 3 个字符宽，"fi" 簇不能被拆开
	res := mustLayout(t, "fififififi", page(24, 0), BuildOptions{})
	for i, ln := range res.Lines {
		text := lineText(ln)
		if strings.Count(text, "fi")*2 != len(text) {
			t.Fatalf("line %d split a ligature: %q", i, text)
		}
	}
}

func TestRuleLine(t *testing.T) {
	res := mustLayout(t, "above\n\n---\n\nbelow", page(384, 0), BuildOptions{})
	if len(res.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(res.Lines))
	}
	r := res.Lines[1]
	if r.Kind != LineRule || r.Height != RuleHeightPx {
		t.Fatalf("unexpected rule line: %+v", r)
	}
}

func TestAlignmentOffsets(t *testing.T) {
	res := mustLayout(t, "@align:center\nabc\n\n@align:right\nabc", page(100, 0), BuildOptions{})
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
	// "abc" = 24px
	if x := res.Lines[0].Runs[0].X; x != 38 {
		t.Fatalf("center offset: got %g want 38", x)
	}
	if x := res.Lines[1].Runs[0].X; x != 76 {
		t.Fatalf("right offset: got %g want 76", x)
	}
}

func TestQuoteIndent(t *testing.T) {
	res := mustLayout(t, "> quoted", page(384, 0), BuildOptions{})
	ln := res.Lines[0]
	if !ln.Quote || ln.Runs[0].X != QuoteIndentPx {
		t.Fatalf("quote line misplaced: %+v", ln)
	}
}

func TestCodeBlockKeepsLines(t *testing.T) {
	res := mustLayout(t, "```\na\tb\n\nc\n```", page(384, 0), BuildOptions{})
	if len(res.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(res.Lines))
	}
	if got := lineText(res.Lines[0]); got != "a    b" {
		t.Fatalf("tab expansion: got %q", got)
	}
	if !res.Lines[0].Runs[0].Style.Code {
		t.Fatalf("code style missing")
	}
	if len(res.Lines[1].Runs) != 0 || res.Lines[1].Height == 0 {
		t.Fatalf("blank code line should keep its height: %+v", res.Lines[1])
	}
}

func TestImageScaledAndDithered(t *testing.T) {
	opts := BuildOptions{Images: stubImages{"test.png": gradient(200, 100)}}
	res := mustLayout(t, "@image:test.png:0.5:atkinson", page(384, 0), opts)
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	ln := res.Lines[0]
	if ln.Kind != LineImage || ln.Image == nil {
		t.Fatalf("expected image line: %+v", ln)
	}
	img := ln.Image
	if img.Width != 192 || img.Height != 96 || img.Algorithm != dither.Atkinson {
		t.Fatalf("unexpected image run: %dx%d %s", img.Width, img.Height, img.Algorithm)
	}
	if img.Rows.Stride != 24 {
		t.Fatalf("stride want 24, got %d", img.Rows.Stride)
	}
}

func TestMissingImageDegradesToText(t *testing.T) {
	res := mustLayout(t, "@image:nope.png:0.5:bayer", page(384, 0), BuildOptions{Images: stubImages{}})
	if len(res.Lines) != 1 || res.Lines[0].Kind != LineText {
		t.Fatalf("expected a text line, got %+v", res.Lines)
	}
	if got := lineText(res.Lines[0]); !strings.HasPrefix(got, "@image:nope.png") {
		t.Fatalf("fallback text: %q", got)
	}
}

func TestMissingImageKeepsSourceText(t *testing.T) {
	for _, src := range []string{"@image:logo.png", "@image:logo.png:0.5"} {
		res := mustLayout(t, src, page(384, 0), BuildOptions{Images: stubImages{}})
		if len(res.Lines) != 1 {
			t.Fatalf("%q: expected one line, got %d", src, len(res.Lines))
		}
		if got := lineText(res.Lines[0]); got != src {
			t.Fatalf("fallback text: got %q want %q", got, src)
		}
	}
}

type unsupportedImages struct{}

func (unsupportedImages) Decode(string) (*dither.Gray, error) {
	return nil, &dither.UnsupportedFormatError{Depth: 16, Reason: "16-bit"}
}

func TestUnsupportedImageIsFatal(t *testing.T) {
	_, err := Layout(markdown.ParseString("@image:deep.png"), page(384, 0), BuildOptions{Metrics: stubMetrics{}, Images: unsupportedImages{}})
	var ufe *dither.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestInvalidPage(t *testing.T) {
	doc := markdown.ParseString("x")
	cases := []PageParams{
		{WidthPx: 0, PPI: 203, BaseFontSizePx: 16},
		{WidthPx: 384, PPI: 0, BaseFontSizePx: 16},
		{WidthPx: 384, PPI: 203, BaseFontSizePx: 0},
		{WidthPx: 32, PPI: 203, MarginMM: 5, BaseFontSizePx: 16},
	}
	for _, p := range cases {
		if _, err := Layout(doc, p, BuildOptions{Metrics: stubMetrics{}}); !errors.Is(err, ErrInvalidPage) {
			t.Fatalf("%+v: expected ErrInvalidPage, got %v", p, err)
		}
	}
}

func TestLayoutDeterministic(t *testing.T) {
	src := "# Title\n\nSome **bold** and *italic* text with `code`.\n\n- one\n- two\n\nA\\hfillB"
	a := mustLayout(t, src, page(384, 2), BuildOptions{})
	b := mustLayout(t, src, page(384, 2), BuildOptions{})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("layout is not deterministic")
	}
}
