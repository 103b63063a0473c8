package printer

import (
	"fmt"
	"time"
)

// Protocol defaults.
const (
	DefaultChunkSize        = 1536
	DefaultChunkDelay       = 15 * time.Millisecond
	DefaultHandshakeTimeout = 500 * time.Millisecond
	DefaultHandshakeRetries = 3
	DefaultMaxRetries       = 3
	DefaultFeedLines        = 4
	DefaultSignature        = "TPv1"

	// DefaultCRCPoly and DefaultCRCInit are CRC-8/SMBUS. The firmware value
	// has not been confirmed against hardware yet; override through Config.
	DefaultCRCPoly byte = 0x07
	DefaultCRCInit byte = 0x00
)

// Config 控制协议时序与重试。零值字段使用默认值；重试次数为负表示不重试。
type Config struct {
	ChunkSize int
	// ChunkDelay paces data chunks. Zero takes the default; a negative value
	// sends chunks back to back.
	ChunkDelay time.Duration

	HandshakeTimeout time.Duration
	// HandshakeRetries is the number of extra init attempts after the first.
	HandshakeRetries int
	// MaxRetries is the number of resends of a packet the device rejected.
	MaxRetries int

	FeedLines int
	Signature string

	CRCPoly byte
	CRCInit byte

	// Sleep paces chunks; nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultConfig returns the documented protocol constants.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	switch {
	case c.ChunkDelay == 0:
		c.ChunkDelay = DefaultChunkDelay
	case c.ChunkDelay < 0:
		c.ChunkDelay = 0
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	switch {
	case c.HandshakeRetries == 0:
		c.HandshakeRetries = DefaultHandshakeRetries
	case c.HandshakeRetries < 0:
		c.HandshakeRetries = 0
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.FeedLines == 0 {
		c.FeedLines = DefaultFeedLines
	}
	if c.Signature == "" {
		c.Signature = DefaultSignature
	}
	if c.CRCPoly == 0 {
		c.CRCPoly = DefaultCRCPoly
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

func (c Config) validate() error {
	if c.ChunkSize < 1 || c.ChunkSize > MaxPayload {
		return fmt.Errorf("printer: chunk size %d outside 1..%d", c.ChunkSize, MaxPayload)
	}
	if c.FeedLines < 0 || c.FeedLines > 0xFF {
		return fmt.Errorf("printer: feed lines %d outside 0..255", c.FeedLines)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("printer: negative handshake timeout")
	}
	return nil
}
