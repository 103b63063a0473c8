// Package dither turns 8-bit grayscale pixel buffers into packed 1-bit rows.
//
// Every algorithm is a Ditherer; New selects one by tag. All arithmetic is
// integer so identical input always yields identical bits.
package dither

import (
	"fmt"
	"strings"
)

// Algorithm selects a dithering method.
type Algorithm int

const (
	FloydSteinberg Algorithm = iota
	Atkinson
	JarvisJudiceNinke
	Stucki
	Burkes
	Sierra
	Bayer
	Threshold
)

// Algorithms lists every algorithm in declaration order.
var Algorithms = []Algorithm{FloydSteinberg, Atkinson, JarvisJudiceNinke, Stucki, Burkes, Sierra, Bayer, Threshold}

var algorithmNames = map[Algorithm]string{
	FloydSteinberg:    "floyd-steinberg",
	Atkinson:          "atkinson",
	JarvisJudiceNinke: "jarvis-judice-ninke",
	Stucki:            "stucki",
	Burkes:            "burkes",
	Sierra:            "sierra",
	Bayer:             "bayer",
	Threshold:         "threshold",
}

var algorithmAliases = map[string]Algorithm{
	"floydsteinberg":    FloydSteinberg,
	"fs":                FloydSteinberg,
	"atkinson":          Atkinson,
	"jarvisjudiceninke": JarvisJudiceNinke,
	"jjn":               JarvisJudiceNinke,
	"stucki":            Stucki,
	"burkes":            Burkes,
	"sierra":            Sierra,
	"bayer":             Bayer,
	"ordered":           Bayer,
	"threshold":         Threshold,
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ParseAlgorithm resolves a name such as "atkinson", "Floyd_Steinberg" or "jjn".
func ParseAlgorithm(name string) (Algorithm, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	a, ok := algorithmAliases[key]
	return a, ok
}

// Depth8 is the only channel depth accepted by this package.
const Depth8 = 8

// Gray is a row-major grayscale buffer, one byte per pixel, 0 = black.
type Gray struct {
	Width  int
	Height int
	Depth  int
	Pix    []byte
}

// Mono is a packed 1-bit image: Stride = ceil(Width/8) bytes per row,
// most significant bit first, 1 = ink.
type Mono struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// NewMono allocates an all-white Mono.
func NewMono(width, height int) *Mono {
	stride := (width + 7) / 8
	return &Mono{Width: width, Height: height, Stride: stride, Pix: make([]byte, stride*height)}
}

// Set marks (x, y) as ink.
func (m *Mono) Set(x, y int) {
	m.Pix[y*m.Stride+x/8] |= 0x80 >> uint(x%8)
}

// Ink reports whether (x, y) is ink.
func (m *Mono) Ink(x, y int) bool {
	return m.Pix[y*m.Stride+x/8]&(0x80>>uint(x%8)) != 0
}

// Row returns row y, sharing storage with m.
func (m *Mono) Row(y int) []byte {
	return m.Pix[y*m.Stride : (y+1)*m.Stride]
}

// UnsupportedFormatError reports a pixel buffer that is not 8-bit grayscale.
type UnsupportedFormatError struct {
	Depth  int
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("dither: unsupported pixel format (depth %d): %s", e.Depth, e.Reason)
	}
	return fmt.Sprintf("dither: unsupported channel depth %d, want %d", e.Depth, Depth8)
}

// Ditherer converts a grayscale buffer into ink bits without resizing.
type Ditherer interface {
	Apply(src *Gray) *Mono
}

// New returns the Ditherer for a. Unknown values fall back to Floyd-Steinberg.
func New(a Algorithm) Ditherer {
	switch a {
	case Atkinson:
		return errorDiffusion{atkinsonKernel}
	case JarvisJudiceNinke:
		return errorDiffusion{jarvisKernel}
	case Stucki:
		return errorDiffusion{stuckiKernel}
	case Burkes:
		return errorDiffusion{burkesKernel}
	case Sierra:
		return errorDiffusion{sierraKernel}
	case Bayer:
		return ordered{}
	case Threshold:
		return threshold{level: 128}
	default:
		return errorDiffusion{floydSteinbergKernel}
	}
}

// Validate checks that src is a well-formed 8-bit buffer.
func Validate(src *Gray) error {
	if src == nil {
		return &UnsupportedFormatError{Reason: "nil buffer"}
	}
	if src.Depth != Depth8 {
		return &UnsupportedFormatError{Depth: src.Depth}
	}
	if src.Width <= 0 || src.Height <= 0 {
		return &UnsupportedFormatError{Depth: src.Depth, Reason: fmt.Sprintf("empty image %dx%d", src.Width, src.Height)}
	}
	if len(src.Pix) != src.Width*src.Height {
		return &UnsupportedFormatError{Depth: src.Depth, Reason: fmt.Sprintf("buffer holds %d bytes, want %d", len(src.Pix), src.Width*src.Height)}
	}
	return nil
}

// Dither scales src to targetWidth (aspect preserved) and dithers it with alg.
func Dither(src *Gray, targetWidth int, alg Algorithm) (*Mono, error) {
	if err := Validate(src); err != nil {
		return nil, err
	}
	if targetWidth <= 0 {
		return nil, fmt.Errorf("dither: target width %d must be positive", targetWidth)
	}
	scaled := Scale(src, targetWidth)
	return New(alg).Apply(scaled), nil
}

type threshold struct {
	level int
}

func (t threshold) Apply(src *Gray) *Mono {
	out := NewMono(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		row := src.Pix[y*src.Width : (y+1)*src.Width]
		for x, v := range row {
			if int(v) < t.level {
				out.Set(x, y)
			}
		}
	}
	return out
}
