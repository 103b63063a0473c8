package bitmap

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ByLCY/thermalprint/layout"
	"github.com/ByLCY/thermalprint/logging"
)

const (
	// RuleThicknessPx is the stroke of a horizontal rule, centred in its line.
	RuleThicknessPx = 2
	// QuoteBarPx is the width of the bar drawn left of quote lines.
	QuoteBarPx = 3
	// InkAlpha is the coverage at which a glyph pixel becomes ink.
	InkAlpha = 128
)

// GlyphRasterizer 将一段文本按样式栅格化为覆盖度蒙版。
// 蒙版原点为左上角，高度为该样式的行框高度。
type GlyphRasterizer interface {
	Rasterize(text string, style layout.Style) (*image.Alpha, error)
}

// Compositor 将布局行绘制到页面位图上。
type Compositor struct {
	Rasterizer GlyphRasterizer
	// BlockSpacingPx 只加在相邻块之间。
	BlockSpacingPx int
}

// Height returns the bitmap height Composite produces for res.
func (c *Compositor) Height(res *layout.Result) int {
	h := 0
	for i, ln := range res.Lines {
		if i > 0 && ln.Block != res.Lines[i-1].Block {
			h += c.BlockSpacingPx
		}
		h += ln.Height
	}
	return h
}

// Composite draws every line of res top to bottom. Output depends only on res
// and the rasterizer.
func (c *Compositor) Composite(res *layout.Result) (*Bitmap, error) {
	if res == nil {
		return nil, fmt.Errorf("bitmap: 布局结果为空")
	}
	if res.Page.WidthPx <= 0 {
		return nil, fmt.Errorf("bitmap: invalid page width %d", res.Page.WidthPx)
	}
	page := newCanvas(res.Page.WidthPx, c.Height(res))
	left := res.MarginPx
	y := 0
	for i, ln := range res.Lines {
		if i > 0 && ln.Block != res.Lines[i-1].Block {
			y += c.BlockSpacingPx
		}
		if ln.Quote {
			page.fill(image.Rect(left, y, left+QuoteBarPx, y+ln.Height))
		}
		switch ln.Kind {
		case layout.LineRule:
			top := y + (ln.Height-RuleThicknessPx)/2
			page.fill(image.Rect(left, top, left+res.AvailPx, top+RuleThicknessPx))
		case layout.LineImage:
			drawImage(page, ln.Image, left, y)
		default:
			if err := c.drawText(page, ln, left, y); err != nil {
				return nil, err
			}
		}
		y += ln.Height
	}
	logging.Logger().Debug("bitmap: composited", "width", res.Page.WidthPx, "height", y, "lines", len(res.Lines))
	return page.freeze(), nil
}

func (c *Compositor) drawText(page *canvas, ln layout.Line, left, top int) error {
	for _, run := range ln.Runs {
		if strings.TrimSpace(run.Text) == "" {
			continue
		}
		if c.Rasterizer == nil {
			return fmt.Errorf("bitmap: 缺少字形栅格化器")
		}
		mask, err := c.Rasterizer.Rasterize(run.Text, run.Style)
		if err != nil {
			return fmt.Errorf("栅格化文本 %q 失败: %w", run.Text, err)
		}
		b := mask.Bounds()
		// 底部对齐：同一行中较小的字号贴住行底
		x0 := left + int(math.Round(run.X))
		y0 := top + ln.Height - b.Dy()
		for my := b.Min.Y; my < b.Max.Y; my++ {
			for mx := b.Min.X; mx < b.Max.X; mx++ {
				if mask.AlphaAt(mx, my).A >= InkAlpha {
					page.set(x0+mx-b.Min.X, y0+my-b.Min.Y)
				}
			}
		}
	}
	return nil
}

func drawImage(page *canvas, img *layout.ImageRun, left, top int) {
	if img == nil || img.Rows == nil {
		return
	}
	m := img.Rows
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Ink(x, y) {
				page.set(left+img.X+x, top+y)
			}
		}
	}
}
