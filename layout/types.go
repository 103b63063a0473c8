package layout

// 该文件定义页面参数与布局结果，供布局计算、位图合成与调试 JSON 共用。

import (
	"github.com/ByLCY/thermalprint/dither"
)

// PageParams 在整个渲染过程中保持不变。
type PageParams struct {
	WidthPx        int        `json:"widthPx"`
	PPI            float64    `json:"ppi"`
	MarginMM       float64    `json:"marginMM"`
	BaseFontSizePx float64    `json:"baseFontSizePx"`
	Fonts          FontFamily `json:"fonts"`
}

// FontFamily 按字形映射字体路径，路径可为文件或 embed:go-regular 形式。
type FontFamily struct {
	Regular    string `json:"regular"`
	Bold       string `json:"bold"`
	Italic     string `json:"italic"`
	BoldItalic string `json:"boldItalic"`
	Mono       string `json:"mono,omitempty"` // 为空时代码使用 Regular
}

// MarginPx 将毫米边距按 PPI 换算为像素。
func (p PageParams) MarginPx() int {
	return Length{Value: p.MarginMM, Unit: UnitMM}.Pixels(p.PPI)
}

// AvailPx 为可排版宽度：width_px - 2*margin_px。
func (p PageParams) AvailPx() int {
	return p.WidthPx - 2*p.MarginPx()
}

// Result 保存布局后的行序列。
type Result struct {
	Page     PageParams `json:"page"`
	MarginPx int        `json:"marginPx"`
	AvailPx  int        `json:"availPx"`
	Lines    []Line     `json:"lines"`
}

// LineKind 区分文本、图片与分隔线。
type LineKind int

const (
	LineText LineKind = iota
	LineImage
	LineRule
)

func (k LineKind) String() string {
	switch k {
	case LineImage:
		return "image"
	case LineRule:
		return "rule"
	default:
		return "text"
	}
}

func (k LineKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Line 是一行已定位的内容。Runs 与 Image 的 X 坐标相对内容区左边（已包含对齐偏移）。
type Line struct {
	Block    int       `json:"block"`
	Kind     LineKind  `json:"kind"`
	Height   int       `json:"height"`
	Width    float64   `json:"width"`
	FontSize float64   `json:"fontSize,omitempty"`
	Runs     []Run     `json:"runs,omitempty"`
	Image    *ImageRun `json:"image,omitempty"`
	Quote    bool      `json:"quote,omitempty"`
	// Overflow 标记超宽的行：无法再拆的单元、\hfill 回退或缩到下限仍放不下的标题。
	Overflow bool `json:"overflow,omitempty"`
}

// Run 是同一样式的一段已测量文本。
type Run struct {
	Text   string  `json:"text"`
	Style  Style   `json:"style"`
	X      float64 `json:"x"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageRun 保存已抖动的图片行。
type ImageRun struct {
	X         int              `json:"x"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Algorithm dither.Algorithm `json:"algorithm"`
	Rows      *dither.Mono     `json:"-"`
}
