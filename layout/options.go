package layout

import "github.com/ByLCY/thermalprint/dither"

// BuildOptions 配置布局阶段所需的依赖。
type BuildOptions struct {
	Metrics FontMetrics
	// Images 为空时 @image 块退化为字面文本。
	Images ImageSource
}

// Style 描述一段文本的字形与字号（像素）。
type Style struct {
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
	Code   bool    `json:"code,omitempty"`
	Size   float64 `json:"size"`
}

// FontMetrics 负责测量文本，由字体后端实现。
type FontMetrics interface {
	// Measure 返回 text 在 style 下的像素宽高。
	Measure(text string, style Style) (width, height float64)
	// Clusters 将 text 拆成不可再分的测量单元（字素簇、连字）。
	Clusters(text string, style Style) []string
}

// ImageSource 将 @image 路径解码为 8 位灰度像素。
type ImageSource interface {
	Decode(path string) (*dither.Gray, error)
}
