package layout

import (
	"math"
	"strings"
	"unicode"

	"github.com/ByLCY/thermalprint/markdown"
)

// piece is a styled fragment of a word.
type piece struct {
	text   string
	style  Style
	width  float64
	height float64
}

// word is a run of non-space text; line breaks never fall inside it unless it
// is wider than a whole line.
type word struct {
	pieces []piece
	width  float64
	height float64
}

// token is either a word or an inter-word space.
type token struct {
	space  bool
	word   word
	width  float64
	height float64
}

// lineContent is a line before alignment; run X values include indentation.
type lineContent struct {
	runs     []Run
	width    float64
	height   float64
	overflow bool
}

func (b *builder) styleFor(r markdown.InlineRun, base Style) Style {
	s := base
	s.Bold = s.Bold || r.Bold
	s.Italic = r.Italic
	s.Code = r.Code
	return s
}

// tokenize splits runs at whitespace. Adjacent non-space text in different
// styles stays in one word. Fill markers act as plain spaces.
func (b *builder) tokenize(runs []markdown.InlineRun, base Style) []token {
	var tokens []token
	var cur word
	flushWord := func() {
		if len(cur.pieces) == 0 {
			return
		}
		tokens = append(tokens, token{word: cur, width: cur.width, height: cur.height})
		cur = word{}
	}
	addSpace := func(style Style) {
		flushWord()
		if n := len(tokens); n > 0 && tokens[n-1].space {
			return
		}
		w, h := b.metrics.Measure(" ", style)
		tokens = append(tokens, token{space: true, width: w, height: h})
	}

	for _, r := range runs {
		if r.Fill {
			addSpace(base)
			continue
		}
		style := b.styleFor(r, base)
		for _, seg := range splitSpaces(r.Text) {
			if strings.TrimSpace(seg) == "" {
				addSpace(style)
				continue
			}
			w, h := b.metrics.Measure(seg, style)
			cur.pieces = append(cur.pieces, piece{text: seg, style: style, width: w, height: h})
			cur.width += w
			cur.height = math.Max(cur.height, h)
		}
	}
	flushWord()
	return tokens
}

// splitSpaces alternates whitespace and non-whitespace segments.
func splitSpaces(s string) []string {
	var out []string
	start := 0
	lastSpace := false
	for i, r := range s {
		isSpace := unicode.IsSpace(r)
		if i > start && isSpace != lastSpace {
			out = append(out, s[start:i])
			start = i
		}
		lastSpace = isSpace
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// wrap breaks tokens greedily into lines. firstIndent and indent are the
// starting x of the first and following lines.
func (b *builder) wrap(tokens []token, firstIndent, indent float64) []lineContent {
	var lines []lineContent
	cur := lineContent{width: firstIndent}
	start := firstIndent
	pending := 0.0
	empty := true

	emit := func() {
		lines = append(lines, cur)
		cur = lineContent{width: indent}
		start = indent
		pending = 0
		empty = true
	}
	place := func(w word) {
		x := cur.width + pending
		for _, p := range w.pieces {
			cur.runs = append(cur.runs, Run{Text: p.text, Style: p.style, X: x, Width: p.width, Height: p.height})
			x += p.width
		}
		cur.width = x
		cur.height = math.Max(cur.height, w.height)
		pending = 0
		empty = false
	}

	for _, tok := range tokens {
		if tok.space {
			if !empty {
				pending = tok.width
			}
			continue
		}
		w := tok.word
		if !empty && cur.width+pending+w.width > b.avail {
			emit()
		}
		if start+w.width <= b.avail {
			place(w)
			continue
		}
		// 单词比整行还宽：在簇边界硬断行
		if !empty {
			emit()
		}
		chunks := b.breakWordWithin(w, b.avail-start)
		for i, chunk := range chunks {
			if i > 0 {
				emit()
			}
			c := b.placeChunk(chunk, start)
			cur.runs = append(cur.runs, c.runs...)
			cur.width = c.width
			cur.height = math.Max(cur.height, c.height)
			cur.overflow = c.overflow
			empty = false
		}
	}
	if !empty || (len(lines) == 0 && len(tokens) > 0) {
		lines = append(lines, cur)
	}
	return lines
}

// placeInline puts all tokens on a single line without wrapping.
func (b *builder) placeInline(tokens []token, indent float64) lineContent {
	cur := lineContent{width: indent}
	pending := 0.0
	for _, tok := range tokens {
		if tok.space {
			if len(cur.runs) > 0 {
				pending = tok.width
			}
			continue
		}
		x := cur.width + pending
		for _, p := range tok.word.pieces {
			cur.runs = append(cur.runs, Run{Text: p.text, Style: p.style, X: x, Width: p.width, Height: p.height})
			x += p.width
		}
		cur.width = x
		cur.height = math.Max(cur.height, tok.word.height)
		pending = 0
	}
	return cur
}

// breakWord splits w into chunks no wider than a full line.
func (b *builder) breakWord(w word) [][]piece {
	return b.breakWordWithin(w, b.avail)
}

// breakWordWithin splits w at cluster boundaries so that each chunk fits limit.
// A single cluster wider than limit becomes a chunk of its own.
func (b *builder) breakWordWithin(w word, limit float64) [][]piece {
	var chunks [][]piece
	var cur []piece

	for _, p := range w.pieces {
		for _, cluster := range b.metrics.Clusters(p.text, p.style) {
			next := appendCluster(cur, cluster, p.style)
			if len(cur) > 0 && b.measurePieces(next) > limit {
				chunks = append(chunks, cur)
				cur = appendCluster(nil, cluster, p.style)
				continue
			}
			cur = next
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// appendCluster extends the last piece when styles match, else starts a new one.
func appendCluster(ps []piece, cluster string, style Style) []piece {
	out := make([]piece, len(ps), len(ps)+1)
	copy(out, ps)
	if n := len(out); n > 0 && out[n-1].style == style {
		out[n-1].text += cluster
		return out
	}
	return append(out, piece{text: cluster, style: style})
}

func (b *builder) measurePieces(ps []piece) float64 {
	total := 0.0
	for _, p := range ps {
		w, _ := b.metrics.Measure(p.text, p.style)
		total += w
	}
	return total
}

// placeChunk measures a hard-broken chunk and positions it at x.
func (b *builder) placeChunk(ps []piece, x float64) lineContent {
	c := lineContent{width: x}
	for _, p := range ps {
		w, h := b.metrics.Measure(p.text, p.style)
		c.runs = append(c.runs, Run{Text: p.text, Style: p.style, X: c.width, Width: w, Height: h})
		c.width += w
		c.height = math.Max(c.height, h)
	}
	c.overflow = c.width > b.avail
	return c
}
