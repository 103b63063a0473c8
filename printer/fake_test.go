package printer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"
)

// fakeDevice 在内存中模拟打印机固件：解析主机写入的数据包并排队应答。
type fakeDevice struct {
	crc *CRC8
	out bytes.Buffer

	signature string
	// silentInits 个初始化包不回应，模拟握手超时
	silentInits int
	// rejectChunk 为 1 起始的数据块序号，rejectTimes 次以 CRC 错误拒收（<0 表示一直拒收）
	rejectChunk int
	rejectTimes int
	// corruptAcks 个应答的校验字节被破坏
	corruptAcks int
	// failWriteAt 在收到第 n 个数据包时写入失败
	failWriteAt int

	packets    []Packet
	badCRC     int
	acked      int
	dataWrites int
	deadlines  []time.Time
	closed     bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{crc: NewCRC8(DefaultCRCPoly, DefaultCRCInit), signature: DefaultSignature}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.closed {
		return 0, os.ErrClosed
	}
	pkt, err := ReadPacket(bytes.NewReader(p), d.crc)
	if err != nil && !errors.Is(err, ErrChecksumMismatch) {
		return 0, err
	}
	if pkt.Command == CmdData {
		d.dataWrites++
		if d.failWriteAt > 0 && d.dataWrites >= d.failWriteAt {
			return 0, io.ErrClosedPipe
		}
	}
	d.packets = append(d.packets, Packet{Command: pkt.Command, Payload: append([]byte(nil), pkt.Payload...)})
	if err != nil {
		d.badCRC++
		d.ack(StatusCRCError)
		return len(p), nil
	}
	switch pkt.Command {
	case CmdInit:
		if d.silentInits > 0 {
			d.silentInits--
			break
		}
		d.reply(Packet{Command: CmdInit, Payload: []byte(d.signature)})
	case CmdData:
		chunk := d.acked + 1
		if chunk == d.rejectChunk && d.rejectTimes != 0 {
			d.rejectTimes--
			d.ack(StatusCRCError)
			break
		}
		d.acked++
		d.ack(StatusOK)
	default:
		d.ack(StatusOK)
	}
	return len(p), nil
}

func (d *fakeDevice) ack(status byte) {
	d.reply(Packet{Command: CmdAck, Payload: []byte{status}})
}

func (d *fakeDevice) reply(p Packet) {
	buf, _ := p.Marshal(d.crc)
	if d.corruptAcks > 0 && p.Command == CmdAck {
		d.corruptAcks--
		buf[len(buf)-1] ^= 0xFF
	}
	d.out.Write(buf)
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if d.closed {
		return 0, os.ErrClosed
	}
	if d.out.Len() == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return d.out.Read(p)
}

func (d *fakeDevice) SetReadDeadline(t time.Time) error {
	d.deadlines = append(d.deadlines, t)
	return nil
}

func (d *fakeDevice) Close() error {
	if d.closed {
		return os.ErrClosed
	}
	d.closed = true
	return nil
}

func (d *fakeDevice) count(cmd Command) int {
	n := 0
	for _, p := range d.packets {
		if p.Command == cmd {
			n++
		}
	}
	return n
}
