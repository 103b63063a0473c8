package printer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Transport 是与设备之间的字节通道，*os.File、net.Conn 与测试替身均满足该接口。
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// TCPPrefix selects a network emulator instead of a device node.
const TCPPrefix = "tcp://"

const dialTimeout = 5 * time.Second

// OpenDevice opens a printer by path: a device node such as /dev/usb/lp0, or
// tcp://host:port for an emulator.
func OpenDevice(path string) (Transport, error) {
	if addr, ok := strings.CutPrefix(path, TCPPrefix); ok {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return nil, fmt.Errorf("连接打印机 %s 失败: %w", addr, err)
		}
		return conn, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("打开打印机设备 %s 失败: %w", path, err)
	}
	return f, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
