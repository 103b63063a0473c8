package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/thermalprint/dither"
	"github.com/ByLCY/thermalprint/logging"
	"github.com/ByLCY/thermalprint/markdown"
)

const (
	// RuleHeightPx is the fixed height of the line produced by a Rule block.
	RuleHeightPx = 12
	// QuoteIndentPx shifts quote text right of the quote bar.
	QuoteIndentPx = 12
	// HeaderShrinkStepPx is subtracted from a header's size until it fits.
	HeaderShrinkStepPx = 1.0
	// MinHeaderSizePx is the floor; a header still too wide here overflows.
	MinHeaderSizePx = 6.0

	tabWidth = 4
)

var headerScale = [...]float64{1: 2.0, 2: 1.5, 3: 1.25, 4: 1, 5: 1, 6: 1}

// ErrInvalidPage 表示页面参数无法排版。
var ErrInvalidPage = errors.New("layout: invalid page parameters")

// Layout 将文档排成行序列。内容问题不会导致失败：超宽单元硬断行，放不下的
// \hfill 行退化为顺序拼接。只有页面参数非法、缺少字体度量或图片格式不受支持时返回错误。
func Layout(doc *markdown.Document, page PageParams, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Metrics == nil {
		return nil, fmt.Errorf("layout: 缺少字体度量 FontMetrics")
	}
	if page.WidthPx <= 0 || page.PPI <= 0 || page.BaseFontSizePx <= 0 || page.MarginMM < 0 {
		return nil, fmt.Errorf("%w: width=%d ppi=%g size=%g margin=%gmm", ErrInvalidPage, page.WidthPx, page.PPI, page.BaseFontSizePx, page.MarginMM)
	}
	avail := page.AvailPx()
	if avail <= 0 {
		return nil, fmt.Errorf("%w: margins leave %dpx of %dpx", ErrInvalidPage, avail, page.WidthPx)
	}

	b := &builder{
		page:    page,
		avail:   float64(avail),
		metrics: opts.Metrics,
		images:  opts.Images,
	}
	var lines []Line
	for i, blk := range doc.Blocks {
		out, err := b.block(i, blk)
		if err != nil {
			return nil, err
		}
		lines = append(lines, out...)
	}
	return &Result{
		Page:     page,
		MarginPx: page.MarginPx(),
		AvailPx:  avail,
		Lines:    lines,
	}, nil
}

type builder struct {
	page    PageParams
	avail   float64
	metrics FontMetrics
	images  ImageSource
}

func (b *builder) baseStyle() Style {
	return Style{Size: b.page.BaseFontSizePx}
}

func (b *builder) block(index int, blk markdown.Block) ([]Line, error) {
	var lines []Line
	switch blk.Kind {
	case markdown.Header:
		lines = []Line{b.header(blk)}
	case markdown.ListItem:
		lines = b.listItem(blk)
	case markdown.Quote:
		lines = b.paragraph(blk, QuoteIndentPx)
		for i := range lines {
			lines[i].Quote = true
		}
	case markdown.CodeBlock:
		lines = b.code(blk)
	case markdown.Rule:
		lines = []Line{{Kind: LineRule, Height: RuleHeightPx, Width: b.avail}}
	case markdown.ImageBlock:
		ln, err := b.image(blk)
		if err != nil {
			return nil, err
		}
		lines = ln
	default:
		if blk.Align == markdown.AlignSplit {
			lines = []Line{b.split(blk)}
		} else {
			lines = b.paragraph(blk, 0)
		}
	}
	for i := range lines {
		lines[i].Block = index
		if lines[i].Overflow {
			logging.Logger().Debug("layout: line overflows", "block", index, "width", lines[i].Width, "avail", b.avail)
		}
	}
	return lines, nil
}

func (b *builder) paragraph(blk markdown.Block, indent float64) []Line {
	tokens := b.tokenize(blk.Runs, b.baseStyle())
	contents := b.wrap(tokens, indent, indent)
	return b.finish(contents, blk.Align, b.page.BaseFontSizePx)
}

func (b *builder) listItem(blk markdown.Block) []Line {
	style := b.baseStyle()
	prefix := "• "
	if blk.Ordered {
		prefix = strconv.Itoa(blk.Number) + ". "
	}
	pw, ph := b.metrics.Measure(prefix, style)
	tokens := b.tokenize(blk.Runs, style)
	contents := b.wrap(tokens, pw, pw)
	if len(contents) == 0 {
		contents = []lineContent{{width: pw}}
	}
	first := &contents[0]
	first.runs = append([]Run{{Text: prefix, Style: style, X: 0, Width: pw, Height: ph}}, first.runs...)
	if ph > first.height {
		first.height = ph
	}
	return b.finish(contents, blk.Align, style.Size)
}

// header keeps the whole text on one line, shrinking the size as needed.
func (b *builder) header(blk markdown.Block) Line {
	level := blk.Level
	if level < 1 || level >= len(headerScale) {
		level = len(headerScale) - 1
	}
	start := b.page.BaseFontSizePx * headerScale[level]
	size, steps, overflow := fitHeader(start, b.avail, func(size float64) float64 {
		return b.placeInline(b.tokenize(blk.Runs, Style{Bold: true, Size: size}), 0).width
	})
	if steps > 0 {
		logging.Logger().Debug("layout: header shrunk", "from", start, "to", size, "steps", steps, "overflow", overflow)
	}
	content := b.placeInline(b.tokenize(blk.Runs, Style{Bold: true, Size: size}), 0)
	if content.height == 0 {
		_, content.height = b.metrics.Measure(" ", Style{Bold: true, Size: size})
	}
	content.overflow = overflow
	return b.finish([]lineContent{content}, blk.Align, size)[0]
}

// fitHeader returns the largest size, stepping down from start, at which the
// header width is within avail. The loop runs at most
// ceil((start-MinHeaderSizePx)/HeaderShrinkStepPx)+1 times.
func fitHeader(start, avail float64, width func(size float64) float64) (size float64, steps int, overflow bool) {
	size = start
	for {
		if width(size) <= avail {
			return size, steps, false
		}
		if size <= MinHeaderSizePx {
			return size, steps, true
		}
		size = math.Max(size-HeaderShrinkStepPx, MinHeaderSizePx)
		steps++
	}
}

// split lays out `left \hfill right` on one line.
func (b *builder) split(blk markdown.Block) Line {
	style := b.baseStyle()
	var leftRuns, rightRuns []markdown.InlineRun
	seen := false
	for _, r := range blk.Runs {
		switch {
		case r.Fill:
			seen = true
		case seen:
			rightRuns = append(rightRuns, r)
		default:
			leftRuns = append(leftRuns, r)
		}
	}
	left := b.placeInline(b.tokenize(leftRuns, style), 0)
	right := b.placeInline(b.tokenize(rightRuns, style), 0)

	gap := b.avail - left.width - right.width
	shift := b.avail - right.width
	overflow := false
	if gap < 0 {
		space, _ := b.metrics.Measure(" ", style)
		shift = left.width + space
		overflow = true
	}
	line := Line{
		Kind:     LineText,
		FontSize: style.Size,
		Width:    shift + right.width,
		Overflow: overflow,
	}
	line.Runs = append(line.Runs, left.runs...)
	for _, r := range right.runs {
		r.X += shift
		line.Runs = append(line.Runs, r)
	}
	h := math.Max(left.height, right.height)
	if h == 0 {
		_, h = b.metrics.Measure(" ", style)
	}
	line.Height = int(math.Ceil(h))
	if len(right.runs) == 0 {
		line.Width = left.width
	}
	return line
}

func (b *builder) code(blk markdown.Block) []Line {
	style := Style{Code: true, Size: b.page.BaseFontSizePx}
	_, blankHeight := b.metrics.Measure(" ", style)
	var contents []lineContent
	for _, raw := range blk.Lines {
		text := strings.ReplaceAll(raw, "\t", strings.Repeat(" ", tabWidth))
		text = strings.TrimRight(text, " ")
		if text == "" {
			contents = append(contents, lineContent{height: blankHeight})
			continue
		}
		for _, chunk := range b.breakWord(word{pieces: []piece{{text: text, style: style}}}) {
			contents = append(contents, b.placeChunk(chunk, 0))
		}
	}
	return b.finish(contents, blk.Align, style.Size)
}

func (b *builder) image(blk markdown.Block) ([]Line, error) {
	ref := blk.Image
	if ref == nil {
		return nil, nil
	}
	if b.images == nil {
		return b.imageFallback(blk, "no image source"), nil
	}
	gray, err := b.images.Decode(ref.Path)
	if err != nil {
		var ufe *dither.UnsupportedFormatError
		if errors.As(err, &ufe) {
			return nil, fmt.Errorf("嵌入图片 %s 失败: %w", ref.Path, err)
		}
		return b.imageFallback(blk, err.Error()), nil
	}
	target := int(math.Round(ref.Scale * b.avail))
	if target < 1 {
		target = 1
	}
	mono, err := dither.Dither(gray, target, ref.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("嵌入图片 %s 失败: %w", ref.Path, err)
	}
	x := int(alignOffset(b.avail, float64(mono.Width), blk.Align))
	return []Line{{
		Kind:   LineImage,
		Height: mono.Height,
		Width:  float64(mono.Width),
		Image: &ImageRun{
			X:         x,
			Width:     mono.Width,
			Height:    mono.Height,
			Algorithm: ref.Algorithm,
			Rows:      mono,
		},
	}}, nil
}

// imageFallback renders the directive as literal text.
func (b *builder) imageFallback(blk markdown.Block, reason string) []Line {
	ref := blk.Image
	logging.Logger().Debug("layout: image kept as text", "path", ref.Path, "reason", reason)
	text := ref.Raw
	if text == "" {
		text = "@image:" + ref.Path
	}
	lit := markdown.Block{Kind: markdown.Paragraph, Align: blk.Align, Runs: []markdown.InlineRun{{Text: text}}}
	return b.paragraph(lit, 0)
}

// finish converts line contents into aligned Lines.
func (b *builder) finish(contents []lineContent, align markdown.Align, size float64) []Line {
	lines := make([]Line, 0, len(contents))
	for _, c := range contents {
		offset := alignOffset(b.avail, c.width, align)
		runs := make([]Run, len(c.runs))
		for i, r := range c.runs {
			r.X += offset
			runs[i] = r
		}
		h := c.height
		if h == 0 {
			_, h = b.metrics.Measure(" ", Style{Size: size})
		}
		lines = append(lines, Line{
			Kind:     LineText,
			Height:   int(math.Ceil(h)),
			Width:    c.width,
			FontSize: size,
			Runs:     runs,
			Overflow: c.overflow || c.width > b.avail,
		})
	}
	return lines
}

// alignOffset 计算对齐偏移；超宽时回退为 0。
func alignOffset(avail, width float64, align markdown.Align) float64 {
	var off float64
	switch align {
	case markdown.AlignCenter:
		off = math.Floor((avail - width) / 2)
	case markdown.AlignRight:
		off = avail - width
	}
	if off < 0 {
		return 0
	}
	return off
}
