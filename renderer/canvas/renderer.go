package canvasrenderer

import (
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rivo/uniseg"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/thermalprint/fonts"
	"github.com/ByLCY/thermalprint/layout"
	"github.com/ByLCY/thermalprint/logging"
	"github.com/ByLCY/thermalprint/renderer"
)

// measureCacheSize bounds the number of cached text measurements.
const measureCacheSize = 4096

// DefaultFonts 使用内置 Go 字体。
var DefaultFonts = layout.FontFamily{
	Regular:    fonts.EmbedPrefix + "go-regular",
	Bold:       fonts.EmbedPrefix + "go-bold",
	Italic:     fonts.EmbedPrefix + "go-italic",
	BoldItalic: fonts.EmbedPrefix + "go-bold-italic",
	Mono:       fonts.EmbedPrefix + "go-mono",
}

// Renderer measures and rasterizes text with github.com/tdewolff/canvas.
//
// 约定：布局以设备像素为单位。栅格化使用 DPMM(1)，因此 1mm 即 1px；
// 字号在与 canvas 交互时按 px→pt 换算（见 toPt）。
type Renderer struct {
	baseDir string
	fonts   layout.FontFamily

	fontMu   sync.Mutex
	families map[string]*canvas.FontFamily // by font path

	measures *lru.Cache[measureKey, measurement]
}

var _ renderer.Renderer = (*Renderer)(nil)

type measureKey struct {
	text  string
	style layout.Style
}

type measurement struct {
	width, height float64
}

// NewRenderer loads every face of family up front so later calls cannot fail
// on missing fonts. Empty entries fall back to DefaultFonts; relative paths
// resolve against baseDir.
func NewRenderer(family layout.FontFamily, baseDir string) (*Renderer, error) {
	family = withDefaults(family)
	cache, err := lru.New[measureKey, measurement](measureCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		baseDir:  baseDir,
		fonts:    family,
		families: map[string]*canvas.FontFamily{},
		measures: cache,
	}
	for _, path := range []string{family.Regular, family.Bold, family.Italic, family.BoldItalic, family.Mono} {
		if _, err := r.ensureFontFamily(path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func withDefaults(f layout.FontFamily) layout.FontFamily {
	if f.Regular == "" {
		f.Regular = DefaultFonts.Regular
	}
	if f.Bold == "" {
		f.Bold = DefaultFonts.Bold
	}
	if f.Italic == "" {
		f.Italic = DefaultFonts.Italic
	}
	if f.BoldItalic == "" {
		f.BoldItalic = DefaultFonts.BoldItalic
	}
	if f.Mono == "" {
		f.Mono = DefaultFonts.Mono
	}
	return f
}

// fontPath picks the face for a style.
func (r *Renderer) fontPath(s layout.Style) string {
	switch {
	case s.Code:
		return r.fonts.Mono
	case s.Bold && s.Italic:
		return r.fonts.BoldItalic
	case s.Bold:
		return r.fonts.Bold
	case s.Italic:
		return r.fonts.Italic
	default:
		return r.fonts.Regular
	}
}

func (r *Renderer) ensureFontFamily(path string) (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if family, ok := r.families[path]; ok {
		return family, nil
	}
	data, err := fonts.Load(path, r.baseDir)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily(path)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", path, err)
	}
	r.families[path] = family
	return family, nil
}

func (r *Renderer) fontFace(s layout.Style) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily(r.fontPath(s))
	if err != nil {
		return nil, err
	}
	return family.Face(toPt(s.Size), canvas.Black, canvas.FontRegular, canvas.FontNormal), nil
}

// Measure implements layout.FontMetrics. Width and height are in device pixels;
// height is the line box of the face.
func (r *Renderer) Measure(text string, s layout.Style) (float64, float64) {
	key := measureKey{text: text, style: s}
	if m, ok := r.measures.Get(key); ok {
		return m.width, m.height
	}
	face, err := r.fontFace(s)
	if err != nil {
		// 构造时已加载全部字体，这里只做估算兜底
		logging.Logger().Debug("canvas: measuring without face", "err", err)
		return float64(utf8.RuneCountInString(text)) * s.Size / 2, s.Size
	}
	m := measurement{width: face.TextWidth(text), height: lineHeight(face, s)}
	r.measures.Add(key, m)
	return m.width, m.height
}

func lineHeight(face *canvas.FontFace, s layout.Style) float64 {
	if h := face.Metrics().LineHeight; h > 0 {
		return h
	}
	return s.Size
}

// Clusters implements layout.FontMetrics: grapheme clusters, with f-ligature
// sequences kept together for proportional faces.
func (r *Renderer) Clusters(text string, s layout.Style) []string {
	var out []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		out = append(out, g.Str())
	}
	if s.Code {
		return out
	}
	return mergeLigatures(out)
}

// mergeLigatures joins ff, fi, fl, ffi and ffl.
func mergeLigatures(clusters []string) []string {
	out := clusters[:0:0]
	for i := 0; i < len(clusters); i++ {
		c := clusters[i]
		if c != "f" {
			out = append(out, c)
			continue
		}
		if i+1 < len(clusters) && clusters[i+1] == "f" {
			c += "f"
			i++
		}
		if i+1 < len(clusters) && (clusters[i+1] == "i" || clusters[i+1] == "l") {
			c += clusters[i+1]
			i++
		}
		out = append(out, c)
	}
	return out
}

// Rasterize implements bitmap.GlyphRasterizer. The mask is as wide as the
// measured text and as tall as the line box, with the baseline at the ascent.
func (r *Renderer) Rasterize(text string, s layout.Style) (*image.Alpha, error) {
	face, err := r.fontFace(s)
	if err != nil {
		return nil, err
	}
	w, h := r.Measure(text, s)
	width, height := int(math.Ceil(w)), int(math.Ceil(h))
	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 || strings.TrimSpace(text) == "" {
		return mask, nil
	}

	c := canvas.New(float64(width), float64(height))
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 左上角为原点，与布局一致
	ctx.DrawText(0, face.Metrics().Ascent, canvas.NewTextLine(face, text, canvas.Left))

	img := rasterizer.Draw(c, canvas.DPMM(1), canvas.DefaultColorSpace)
	b := img.Bounds().Intersect(mask.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			mask.Pix[mask.PixOffset(x, y)] = img.RGBAAt(x, y).A
		}
	}
	return mask, nil
}

// toPt 将像素字号换算为 pt：在 DPMM(1) 下 1px 即 1mm。
func toPt(px float64) float64 { return px * layout.MmToPt }
