package renderer

import (
	"github.com/ByLCY/thermalprint/bitmap"
	"github.com/ByLCY/thermalprint/layout"
)

// Renderer 是字体后端：为布局提供度量，为位图合成提供字形蒙版。
// 两者必须来自同一组字体，否则测得的宽度与绘制结果不一致。
type Renderer interface {
	layout.FontMetrics
	bitmap.GlyphRasterizer
}
