package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ByLCY/thermalprint/layout"
)

const dumpTextWidth = 32

// dumpLayout 以表格列出每一行的块号、类型、尺寸与文本。
func dumpLayout(w io.Writer, res *layout.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Block", "Kind", "Height", "Width", "Size", "Flags", "Text"})
	for i, ln := range res.Lines {
		tw.AppendRow(table.Row{
			i,
			ln.Block,
			ln.Kind.String(),
			ln.Height,
			fmt.Sprintf("%.1f", ln.Width),
			sizeCell(ln),
			flags(ln),
			lineText(ln),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", totalHeight(res), res.AvailPx, "", "", fmt.Sprintf("margin %dpx", res.MarginPx)})
	tw.Render()
}

func sizeCell(ln layout.Line) string {
	if ln.FontSize == 0 {
		return ""
	}
	return fmt.Sprintf("%g", ln.FontSize)
}

func flags(ln layout.Line) string {
	var f []string
	if ln.Quote {
		f = append(f, "quote")
	}
	if ln.Overflow {
		f = append(f, "overflow")
	}
	return strings.Join(f, ",")
}

func lineText(ln layout.Line) string {
	if ln.Image != nil {
		return fmt.Sprintf("[image %dx%d %s]", ln.Image.Width, ln.Image.Height, ln.Image.Algorithm)
	}
	var sb strings.Builder
	for _, r := range ln.Runs {
		sb.WriteString(r.Text)
	}
	text := []rune(sb.String())
	if len(text) > dumpTextWidth {
		return string(text[:dumpTextWidth-1]) + "…"
	}
	return string(text)
}

func totalHeight(res *layout.Result) int {
	h := 0
	for _, ln := range res.Lines {
		h += ln.Height
	}
	return h
}
