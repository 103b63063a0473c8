package dither

import (
	"image"

	"golang.org/x/image/draw"
)

// ScaledHeight keeps the aspect ratio of a width x height image resized to
// targetWidth, never returning less than one row.
func ScaledHeight(width, height, targetWidth int) int {
	if width <= 0 {
		return 1
	}
	h := (height*targetWidth + width/2) / width
	if h < 1 {
		h = 1
	}
	return h
}

// Scale resizes src to targetWidth with bilinear filtering. src must be valid.
func Scale(src *Gray, targetWidth int) *Gray {
	if targetWidth == src.Width {
		pix := make([]byte, len(src.Pix))
		copy(pix, src.Pix)
		return &Gray{Width: src.Width, Height: src.Height, Depth: Depth8, Pix: pix}
	}
	targetHeight := ScaledHeight(src.Width, src.Height, targetWidth)
	in := &image.Gray{Pix: src.Pix, Stride: src.Width, Rect: image.Rect(0, 0, src.Width, src.Height)}
	dst := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), in, in.Bounds(), draw.Src, nil)
	return &Gray{Width: targetWidth, Height: targetHeight, Depth: Depth8, Pix: dst.Pix}
}
