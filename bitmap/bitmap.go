// Package bitmap holds the print-ready 1-bit page and the compositor that
// draws layout results into it.
package bitmap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ByLCY/thermalprint/dither"
)

// Bitmap 是不可变的 1-bit 页面：每行 ceil(width/8) 字节，高位在前，1 表示着墨。
type Bitmap struct {
	width  int
	height int
	stride int
	data   []byte
}

// FromRows wraps packed rows. data must hold exactly height*ceil(width/8) bytes;
// it is copied.
func FromRows(width, height int, data []byte) (*Bitmap, error) {
	if width <= 0 || height < 0 {
		return nil, fmt.Errorf("bitmap: invalid size %dx%d", width, height)
	}
	stride := (width + 7) / 8
	if len(data) != stride*height {
		return nil, fmt.Errorf("bitmap: got %d bytes, want %d for %dx%d", len(data), stride*height, width, height)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Bitmap{width: width, height: height, stride: stride, data: buf}, nil
}

// FromMono copies a dithered image into a Bitmap.
func FromMono(m *dither.Mono) (*Bitmap, error) {
	if m == nil {
		return nil, fmt.Errorf("bitmap: nil image")
	}
	return FromRows(m.Width, m.Height, m.Pix)
}

func (b *Bitmap) Width() int  { return b.width }
func (b *Bitmap) Height() int { return b.height }

// Stride is the number of bytes per row.
func (b *Bitmap) Stride() int { return b.stride }

// Len is the total number of packed bytes.
func (b *Bitmap) Len() int { return len(b.data) }

// Bytes returns a copy of all rows, top to bottom.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Row returns a copy of row y.
func (b *Bitmap) Row(y int) []byte {
	out := make([]byte, b.stride)
	copy(out, b.data[y*b.stride:(y+1)*b.stride])
	return out
}

// Ink reports whether pixel (x, y) is set. Out-of-range pixels are blank.
func (b *Bitmap) Ink(x, y int) bool {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return false
	}
	return b.data[y*b.stride+x/8]&(0x80>>uint(x%8)) != 0
}

// Image 返回灰度预览：着墨为黑，其余为白。
func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.width, b.height))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			c := color.Gray{Y: 0xFF}
			if b.Ink(x, y) {
				c.Y = 0
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

// canvas is the mutable page used while compositing.
type canvas struct {
	m *dither.Mono
}

func newCanvas(width, height int) *canvas {
	return &canvas{m: dither.NewMono(width, height)}
}

// set marks (x, y), silently clipping outside the page.
func (c *canvas) set(x, y int) {
	if x < 0 || y < 0 || x >= c.m.Width || y >= c.m.Height {
		return
	}
	c.m.Set(x, y)
}

func (c *canvas) fill(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, c.m.Width, c.m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.m.Set(x, y)
		}
	}
}

func (c *canvas) freeze() *Bitmap {
	return &Bitmap{width: c.m.Width, height: c.m.Height, stride: c.m.Stride, data: c.m.Pix}
}
