package dither

// kernel is an error-diffusion matrix in integer form: each tap receives
// err*weight/divisor. Taps only point at pixels not yet visited in a single
// left-to-right, top-to-bottom pass.
type kernel struct {
	divisor int
	taps    []tap
}

type tap struct {
	dx, dy, weight int
}

var (
	floydSteinbergKernel = kernel{16, []tap{
		{1, 0, 7},
		{-1, 1, 3}, {0, 1, 5}, {1, 1, 1},
	}}

	// Atkinson spreads 6/8 of the error; the rest is dropped on purpose.
	atkinsonKernel = kernel{8, []tap{
		{1, 0, 1}, {2, 0, 1},
		{-1, 1, 1}, {0, 1, 1}, {1, 1, 1},
		{0, 2, 1},
	}}

	jarvisKernel = kernel{48, []tap{
		{1, 0, 7}, {2, 0, 5},
		{-2, 1, 3}, {-1, 1, 5}, {0, 1, 7}, {1, 1, 5}, {2, 1, 3},
		{-2, 2, 1}, {-1, 2, 3}, {0, 2, 5}, {1, 2, 3}, {2, 2, 1},
	}}

	stuckiKernel = kernel{42, []tap{
		{1, 0, 8}, {2, 0, 4},
		{-2, 1, 2}, {-1, 1, 4}, {0, 1, 8}, {1, 1, 4}, {2, 1, 2},
		{-2, 2, 1}, {-1, 2, 2}, {0, 2, 4}, {1, 2, 2}, {2, 2, 1},
	}}

	burkesKernel = kernel{32, []tap{
		{1, 0, 8}, {2, 0, 4},
		{-2, 1, 2}, {-1, 1, 4}, {0, 1, 8}, {1, 1, 4}, {2, 1, 2},
	}}

	sierraKernel = kernel{32, []tap{
		{1, 0, 5}, {2, 0, 3},
		{-2, 1, 2}, {-1, 1, 4}, {0, 1, 5}, {1, 1, 4}, {2, 1, 2},
		{-1, 2, 2}, {0, 2, 3}, {1, 2, 2},
	}}
)

// weightSum is the total of all tap weights.
func (k kernel) weightSum() int {
	s := 0
	for _, t := range k.taps {
		s += t.weight
	}
	return s
}

type errorDiffusion struct {
	k kernel
}

func (d errorDiffusion) Apply(src *Gray) *Mono {
	w, h := src.Width, src.Height
	out := NewMono(w, h)
	buf := make([]int32, len(src.Pix))
	for i, v := range src.Pix {
		buf[i] = int32(v)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := buf[y*w+x]
			var quant int32 = 255
			if old < 128 {
				quant = 0
				out.Set(x, y)
			}
			e := old - quant
			if e == 0 {
				continue
			}
			for _, t := range d.k.taps {
				nx, ny := x+t.dx, y+t.dy
				if nx < 0 || nx >= w || ny >= h {
					continue
				}
				buf[ny*w+nx] += e * int32(t.weight) / int32(d.k.divisor)
			}
		}
	}
	return out
}

// bayer8 is the standard 8x8 ordered-dither index matrix.
var bayer8 = [8][8]int{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

type ordered struct{}

// Apply marks a pixel as ink when intensity < (m+0.5)*256/64.
func (ordered) Apply(src *Gray) *Mono {
	out := NewMono(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		row := src.Pix[y*src.Width : (y+1)*src.Width]
		for x, v := range row {
			m := bayer8[y%8][x%8]
			if int(v)*64 < m*256+128 {
				out.Set(x, y)
			}
		}
	}
	return out
}
