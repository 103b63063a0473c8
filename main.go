package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/ByLCY/thermalprint/binding"
	"github.com/ByLCY/thermalprint/bitmap"
	"github.com/ByLCY/thermalprint/imageio"
	"github.com/ByLCY/thermalprint/layout"
	"github.com/ByLCY/thermalprint/logging"
	"github.com/ByLCY/thermalprint/markdown"
	"github.com/ByLCY/thermalprint/printer"
	canvasrenderer "github.com/ByLCY/thermalprint/renderer/canvas"
)

// options 汇总命令行参数。
type options struct {
	input    string
	output   string
	device   string
	debug    string
	data     string
	dump     bool
	autofeed bool

	widthPx   int
	ppi       float64
	margin    string
	fontSize  string
	spacingPx int
	fonts     layout.FontFamily

	printer printer.Config
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "in", "examples/receipt.md", "markdown 文件路径（- 表示标准输入）")
	flag.StringVar(&opts.output, "out", "", "位图预览 PNG 输出路径")
	flag.StringVar(&opts.device, "device", "", "打印机设备路径，例如 /dev/usb/lp0 或 tcp://127.0.0.1:9100")
	flag.StringVar(&opts.debug, "debug", "", "布局调试 JSON 输出路径")
	flag.StringVar(&opts.data, "data", "", "绑定到 ${path} 占位符的 JSON 数据")
	flag.BoolVar(&opts.dump, "dump", false, "以表格形式打印布局行")
	flag.BoolVar(&opts.autofeed, "autofeed", true, "打印结束后走纸")
	flag.IntVar(&opts.widthPx, "width", 384, "打印头宽度（像素）")
	flag.Float64Var(&opts.ppi, "ppi", 203, "打印分辨率（每英寸像素）")
	flag.StringVar(&opts.margin, "margin", "2mm", "左右边距，支持 mm/cm/in/pt/px")
	flag.StringVar(&opts.fontSize, "size", "16px", "正文字号，支持 mm/cm/in/pt/px")
	flag.IntVar(&opts.spacingPx, "spacing", 8, "块间距（像素）")
	flag.StringVar(&opts.fonts.Regular, "font", "", "正文字体（文件路径或 embed:go-regular）")
	flag.StringVar(&opts.fonts.Bold, "font-bold", "", "粗体字体")
	flag.StringVar(&opts.fonts.Italic, "font-italic", "", "斜体字体")
	flag.StringVar(&opts.fonts.BoldItalic, "font-bold-italic", "", "粗斜体字体")
	flag.StringVar(&opts.fonts.Mono, "font-mono", "", "代码块等宽字体")
	flag.IntVar(&opts.printer.ChunkSize, "chunk", printer.DefaultChunkSize, "每个数据包的字节数")
	flag.DurationVar(&opts.printer.ChunkDelay, "chunk-delay", printer.DefaultChunkDelay, "数据包之间的间隔（负值表示不等待）")
	flag.DurationVar(&opts.printer.HandshakeTimeout, "handshake-timeout", printer.DefaultHandshakeTimeout, "握手超时")
	crcPoly := flag.Uint("crc-poly", uint(printer.DefaultCRCPoly), "CRC8 多项式")
	crcInit := flag.Uint("crc-init", uint(printer.DefaultCRCInit), "CRC8 初始值")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	var err error
	if opts.printer.CRCPoly, err = crcByte("crc-poly", *crcPoly); err != nil {
		log.Fatal(err)
	}
	if opts.printer.CRCInit, err = crcByte("crc-init", *crcInit); err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("打印失败: %v", err)
	}
}

// run 串联解析、布局、合成与打印。
func run(ctx context.Context, opts options, stdout io.Writer) error {
	src, baseDir, err := readInput(opts.input)
	if err != nil {
		return err
	}
	if opts.data != "" {
		data, err := binding.Parse([]byte(opts.data))
		if err != nil {
			return err
		}
		src = data.Interpolate(src)
	}
	doc := markdown.ParseString(src)

	page, err := pageParams(opts)
	if err != nil {
		return err
	}
	r, err := canvasrenderer.NewRenderer(page.Fonts, baseDir)
	if err != nil {
		return fmt.Errorf("初始化字体失败: %w", err)
	}

	start := time.Now()
	result, err := layout.Layout(doc, page, layout.BuildOptions{
		Metrics: r,
		Images:  imageio.Decoder{BaseDir: baseDir},
	})
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	logging.Logger().Debug("layout done", "lines", len(result.Lines), "elapsed", time.Since(start))

	if opts.debug != "" {
		if err := writeDebug(result, opts.debug); err != nil {
			return err
		}
	}
	if opts.dump {
		dumpLayout(stdout, result)
	}

	comp := &bitmap.Compositor{Rasterizer: r, BlockSpacingPx: opts.spacingPx}
	bm, err := comp.Composite(result)
	if err != nil {
		return fmt.Errorf("位图合成失败: %w", err)
	}

	if opts.output != "" {
		if err := writePreview(bm, opts.output); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "已生成预览：%s (%dx%d)\n", opts.output, bm.Width(), bm.Height())
	}
	if opts.device == "" {
		return nil
	}

	t, err := printer.OpenDevice(opts.device)
	if err != nil {
		return err
	}
	return printer.Run(ctx, t, opts.printer, func(s *printer.Session) error {
		report, err := s.PrintBitmap(ctx, bm, opts.autofeed)
		fmt.Fprintf(stdout, "打印%s：%d/%d 字节，%d 个数据块\n", report.Status, report.BytesSent, report.TotalBytes, report.Chunks)
		return err
	})
}

// crcByte 校验 CRC 参数落在一个字节内。
func crcByte(name string, v uint) (byte, error) {
	if v > 0xFF {
		return 0, fmt.Errorf("-%s 超出范围: %#x 大于 0xff", name, v)
	}
	return byte(v), nil
}

func readInput(path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("读取标准输入失败: %w", err)
		}
		return string(data), ".", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("无法打开 markdown 文件 %s: %w", path, err)
	}
	return string(data), filepath.Dir(path), nil
}

func pageParams(opts options) (layout.PageParams, error) {
	margin, err := layout.ParseLength(opts.margin, layout.UnitMM)
	if err != nil {
		return layout.PageParams{}, fmt.Errorf("边距参数无效: %w", err)
	}
	size, err := layout.ParseLength(opts.fontSize, layout.UnitPX)
	if err != nil {
		return layout.PageParams{}, fmt.Errorf("字号参数无效: %w", err)
	}
	marginMM := margin.ToMM()
	if margin.Unit == layout.UnitPX {
		marginMM = margin.Value * layout.MmPerIn / opts.ppi
	}
	sizePx := size.Value
	if size.Unit != layout.UnitPX {
		sizePx = size.ToMM() * opts.ppi / layout.MmPerIn
	}
	return layout.PageParams{
		WidthPx:        opts.widthPx,
		PPI:            opts.ppi,
		MarginMM:       marginMM,
		BaseFontSizePx: sizePx,
		Fonts:          opts.fonts,
	}, nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

func writePreview(bm *bitmap.Bitmap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建预览文件失败: %w", err)
	}
	if err := png.Encode(f, bm.Image()); err != nil {
		f.Close()
		return fmt.Errorf("写入预览 PNG 失败: %w", err)
	}
	return f.Close()
}
