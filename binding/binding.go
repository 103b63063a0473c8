// Package binding fills ${path} placeholders in markdown source with values
// from a JSON document, before the source is parsed.
package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/thermalprint/logging"
)

// placeholder matches ${path}; a leading $ escapes it ($${x} prints ${x}).
var placeholder = regexp.MustCompile(`\$?\$\{([^}]+)\}`)

// Data 是绑定用的 JSON 根对象。
type Data struct {
	root any
}

// Parse decodes raw JSON. Numbers keep their original spelling.
func Parse(raw []byte) (*Data, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("解析绑定数据失败: %w", err)
	}
	return &Data{root: root}, nil
}

// Interpolate 将 text 中的 ${a.b[0].c} 替换为数据中的值；路径不存在时保留原占位符。
// A nil Data leaves text unchanged apart from $$ escapes.
func (d *Data) Interpolate(text string) string {
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		if strings.HasPrefix(match, "$$") {
			return match[1:]
		}
		path := strings.TrimSpace(match[2 : len(match)-1])
		if d == nil || path == "" {
			return match
		}
		val, ok := d.Lookup(path)
		if !ok {
			logging.Logger().Debug("binding: unresolved placeholder", "path", path)
			return match
		}
		return Format(val)
	})
}

// Lookup resolves a dotted path with optional [index] suffixes.
func (d *Data) Lookup(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	current := d.root
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := splitSegment(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			obj, isObj := current.(map[string]any)
			if !isObj {
				return nil, false
			}
			if current, ok = obj[name]; !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			arr, isArr := current.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// splitSegment splits "items[2][0]" into "items" and [2 0].
func splitSegment(segment string) (string, []int, bool) {
	name, rest, found := strings.Cut(segment, "[")
	if !found {
		return segment, nil, segment != ""
	}
	rest = "[" + rest
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, n)
		rest = rest[end+1:]
	}
	return name, indexes, true
}

// Format renders a JSON value as text. Objects and arrays stay JSON.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(out)
	}
}
