// Package imageio decodes image files into the 8-bit grayscale buffers the
// dither package consumes.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/thermalprint/dither"
	"github.com/ByLCY/thermalprint/logging"
)

// Decoder 读取图片文件并归一化为 8-bit 灰度。实现 layout.ImageSource。
type Decoder struct {
	// BaseDir resolves relative paths; empty means the working directory.
	BaseDir string
}

// Decode opens path and converts it. Transparent areas become paper white.
func (d Decoder) Decode(path string) (*dither.Gray, error) {
	if path == "" {
		return nil, fmt.Errorf("图片路径为空")
	}
	if !filepath.IsAbs(path) && d.BaseDir != "" {
		path = filepath.Join(d.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", path, err)
	}
	defer f.Close()
	g, err := DecodeReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", path, err)
	}
	return g, nil
}

// DecodeReader decodes any registered format (png, jpeg, gif, bmp, tiff, webp).
func DecodeReader(r io.Reader) (*dither.Gray, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("imageio: decoded", "format", format, "bounds", img.Bounds().String())
	return ToGray(img), nil
}

// ToGray flattens img onto white and converts it to luminance, one byte per pixel.
func ToGray(img image.Image) *dither.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return &dither.Gray{
		Width:  dst.Rect.Dx(),
		Height: dst.Rect.Dy(),
		Depth:  dither.Depth8,
		Pix:    dst.Pix,
	}
}
