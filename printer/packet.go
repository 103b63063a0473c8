package printer

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Command is the first byte of every packet.
type Command byte

const (
	CmdInit  Command = 0xA0 // 握手，设备回显签名
	CmdBegin Command = 0xA1 // 开始作业：每行字节数、行数（各 2 字节 LE）
	CmdData  Command = 0xA2 // 位图数据块
	CmdFeed  Command = 0xA3 // 走纸行数（1 字节）
	CmdAck   Command = 0xA4 // 设备应答，负载为 1 字节状态
)

func (c Command) String() string {
	switch c {
	case CmdInit:
		return "init"
	case CmdBegin:
		return "begin"
	case CmdData:
		return "data"
	case CmdFeed:
		return "feed"
	case CmdAck:
		return "ack"
	default:
		return fmt.Sprintf("cmd(0x%02X)", byte(c))
	}
}

// Ack status codes.
const (
	StatusOK       byte = 0x00
	StatusCRCError byte = 0x01
)

const (
	// MaxPayload is the largest payload the 2-byte length field can carry.
	MaxPayload = 0xFFFF
	headerLen  = 3
)

// Packet is one frame on the wire: [cmd][len LE16][payload][crc8].
// The CRC covers cmd, len and payload.
type Packet struct {
	Command Command
	Payload []byte
}

// Marshal encodes p with the given checksum.
func (p Packet) Marshal(crc *CRC8) ([]byte, error) {
	if len(p.Payload) > MaxPayload {
		return nil, fmt.Errorf("printer: %s payload of %d bytes exceeds %d", p.Command, len(p.Payload), MaxPayload)
	}
	buf := make([]byte, headerLen+len(p.Payload)+1)
	buf[0] = byte(p.Command)
	binary.LittleEndian.PutUint16(buf[1:headerLen], uint16(len(p.Payload)))
	copy(buf[headerLen:], p.Payload)
	buf[len(buf)-1] = crc.Checksum(buf[:len(buf)-1])
	return buf, nil
}

// ReadPacket reads exactly one packet from r. A checksum failure returns the
// decoded packet together with an error wrapping ErrChecksumMismatch; the
// stream stays aligned on the next packet.
func ReadPacket(r io.Reader, crc *CRC8) (Packet, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	n := int(binary.LittleEndian.Uint16(hdr[1:]))
	body := make([]byte, n+1)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}
	p := Packet{Command: Command(hdr[0]), Payload: body[:n]}
	if want, got := crc.Checksum(hdr[:], body[:n]), body[n]; want != got {
		return p, fmt.Errorf("%w: %s packet crc 0x%02X, computed 0x%02X", ErrChecksumMismatch, p.Command, got, want)
	}
	return p, nil
}
