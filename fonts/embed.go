package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// EmbedPrefix marks a font path that resolves to one of the built-in Go fonts.
const EmbedPrefix = "embed:"

var builtin = map[string][]byte{
	"go-regular":     goregular.TTF,
	"go-bold":        gobold.TTF,
	"go-italic":      goitalic.TTF,
	"go-bold-italic": gobolditalic.TTF,
	"go-mono":        gomono.TTF,
}

// Load returns font bytes for path. "embed:go-regular" (and the other go-* names)
// resolve to built-in fonts; anything else is read from disk, relative paths
// against baseDir.
func Load(path, baseDir string) ([]byte, error) {
	if strings.HasPrefix(path, EmbedPrefix) {
		name := strings.TrimPrefix(path, EmbedPrefix)
		data, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("内置字体 %s 不存在", name)
		}
		return data, nil
	}
	if path == "" {
		return nil, fmt.Errorf("字体路径为空")
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", path, err)
	}
	return data, nil
}

// Builtin reports whether name (without the embed: prefix) is a built-in font.
func Builtin(name string) bool {
	_, ok := builtin[strings.TrimPrefix(name, EmbedPrefix)]
	return ok
}
