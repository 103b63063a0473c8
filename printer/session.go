// Package printer drives a thermal printer over its checksummed packet protocol.
//
// A Session owns one device handle. Open performs the handshake; PrintBitmap
// streams one job as acknowledged chunks. Callers that share a printer must
// serialize access themselves; a second job on a busy session gets ErrBusy.
package printer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ByLCY/thermalprint/bitmap"
	"github.com/ByLCY/thermalprint/logging"
)

var (
	ErrHandshakeTimeout   = errors.New("printer: handshake timed out")
	ErrDeviceDisconnected = errors.New("printer: device disconnected")
	ErrChecksumMismatch   = errors.New("printer: checksum mismatch")
	ErrBusy               = errors.New("printer: a job is already in progress")
	ErrSessionClosed      = errors.New("printer: session closed")
	ErrUnexpectedReply    = errors.New("printer: unexpected reply")
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
	Handshaking
	Ready
	Printing
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Printing:
		return "printing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// JobStatus is the terminal status of a print job.
type JobStatus string

const (
	StatusSuccess JobStatus = "success"
	StatusPartial JobStatus = "partial"
	StatusFailed  JobStatus = "failed"
)

// Report 描述一次作业的进度。BytesSent 只统计设备已确认的位图字节。
type Report struct {
	BytesSent  int       `json:"bytesSent"`
	TotalBytes int       `json:"totalBytes"`
	Chunks     int       `json:"chunks"`
	Status     JobStatus `json:"status"`
}

// failed marks an aborted job: partial once any bitmap byte was acknowledged.
func (r *Report) failed() {
	if r.BytesSent > 0 {
		r.Status = StatusPartial
		return
	}
	r.Status = StatusFailed
}

// PrintFailedError aborts a job after a protocol fault. Err is the cause.
type PrintFailedError struct {
	Report Report
	Err    error
}

func (e *PrintFailedError) Error() string {
	return fmt.Sprintf("printer: job %s after %d of %d bytes: %v", e.Report.Status, e.Report.BytesSent, e.Report.TotalBytes, e.Err)
}

func (e *PrintFailedError) Unwrap() error { return e.Err }

// Session 独占一个设备句柄。
type Session struct {
	t   Transport
	cfg Config
	crc *CRC8

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
	closeErr  error
}

// Open takes ownership of t and runs the handshake. On failure t is closed
// and the error wraps ErrHandshakeTimeout or ErrDeviceDisconnected.
func Open(ctx context.Context, t Transport, cfg Config) (*Session, error) {
	if t == nil {
		return nil, fmt.Errorf("printer: nil transport")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		t.Close()
		return nil, err
	}
	s := &Session{
		t:     t,
		cfg:   cfg,
		crc:   NewCRC8(cfg.CRCPoly, cfg.CRCInit),
		state: Connected,
	}
	if err := s.handshake(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Run opens a session, hands it to fn and always releases the device.
func Run(ctx context.Context, t Transport, cfg Config, fn func(*Session) error) (err error) {
	s, err := Open(ctx, t, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Close releases the device. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != Error {
		s.state = Disconnected
	}
	s.mu.Unlock()
	return s.release()
}

func (s *Session) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.t.Close()
	})
	return s.closeErr
}

// fail moves to Error and releases the device.
func (s *Session) fail() {
	s.setState(Error)
	if err := s.release(); err != nil {
		logging.Logger().Debug("printer: close after failure", "err", err)
	}
}

func (s *Session) handshake(ctx context.Context) error {
	s.setState(Handshaking)
	attempts := 1 + s.cfg.HandshakeRetries
	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			s.fail()
			return err
		}
		err := s.handshakeOnce()
		if err == nil {
			if err := s.t.SetReadDeadline(time.Time{}); err != nil && !errors.Is(err, os.ErrNoDeadline) {
				s.fail()
				return fmt.Errorf("%w: %w", ErrDeviceDisconnected, err)
			}
			s.setState(Ready)
			logging.Logger().Info("printer: ready", "attempts", i)
			return nil
		}
		if errors.Is(err, ErrDeviceDisconnected) {
			s.fail()
			return err
		}
		last = err
		logging.Logger().Warn("printer: handshake attempt failed", "attempt", i, "of", attempts, "err", err)
	}
	s.fail()
	return fmt.Errorf("%w after %d attempts: %v", ErrHandshakeTimeout, attempts, last)
}

// handshakeOnce sends the init packet and waits for the echoed signature.
func (s *Session) handshakeOnce() error {
	if err := s.write(Packet{Command: CmdInit}); err != nil {
		return err
	}
	if err := s.t.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		if !errors.Is(err, os.ErrNoDeadline) {
			return fmt.Errorf("%w: %w", ErrDeviceDisconnected, err)
		}
		logging.Logger().Debug("printer: transport has no read deadline, handshake may block")
	}
	reply, err := ReadPacket(s.t, s.crc)
	switch {
	case err == nil:
	case isTimeout(err):
		return fmt.Errorf("no reply within %s", s.cfg.HandshakeTimeout)
	case errors.Is(err, ErrChecksumMismatch):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrDeviceDisconnected, err)
	}
	if reply.Command != CmdInit || !bytes.Equal(reply.Payload, []byte(s.cfg.Signature)) {
		return fmt.Errorf("%w: %s %q", ErrUnexpectedReply, reply.Command, reply.Payload)
	}
	return nil
}

// PrintBitmap streams bm to the device. The context is checked only before the
// first packet; once the stream has started the job runs to completion or
// failure. On failure the error is a *PrintFailedError, the session moves to
// Error and the device is released.
func (s *Session) PrintBitmap(ctx context.Context, bm *bitmap.Bitmap, autofeed bool) (Report, error) {
	if bm == nil {
		return Report{}, fmt.Errorf("printer: nil bitmap")
	}
	s.mu.Lock()
	switch s.state {
	case Ready:
		s.state = Printing
	case Printing:
		s.mu.Unlock()
		return Report{}, ErrBusy
	default:
		st := s.state
		s.mu.Unlock()
		return Report{}, fmt.Errorf("%w (state %s)", ErrSessionClosed, st)
	}
	s.mu.Unlock()

	data := bm.Bytes()
	report := Report{TotalBytes: len(data), Status: StatusFailed}
	if bm.Stride() > 0xFFFF || bm.Height() > 0xFFFF {
		s.setState(Ready)
		return report, fmt.Errorf("printer: bitmap %dx%d too large for one job", bm.Width(), bm.Height())
	}
	if err := ctx.Err(); err != nil {
		s.setState(Ready)
		return report, err
	}

	abort := func(err error) (Report, error) {
		report.failed()
		s.fail()
		logging.Logger().Warn("printer: job aborted", "sent", report.BytesSent, "total", report.TotalBytes, "err", err)
		return report, &PrintFailedError{Report: report, Err: err}
	}

	begin := make([]byte, 4)
	binary.LittleEndian.PutUint16(begin[0:2], uint16(bm.Stride()))
	binary.LittleEndian.PutUint16(begin[2:4], uint16(bm.Height()))
	if err := s.send(Packet{Command: CmdBegin, Payload: begin}); err != nil {
		return abort(err)
	}
	for off := 0; off < len(data); off += s.cfg.ChunkSize {
		if off > 0 && s.cfg.ChunkDelay > 0 {
			s.cfg.Sleep(s.cfg.ChunkDelay)
		}
		end := min(off+s.cfg.ChunkSize, len(data))
		if err := s.send(Packet{Command: CmdData, Payload: data[off:end]}); err != nil {
			return abort(err)
		}
		report.BytesSent = end
		report.Chunks++
	}
	if autofeed {
		if err := s.send(Packet{Command: CmdFeed, Payload: []byte{byte(s.cfg.FeedLines)}}); err != nil {
			return abort(err)
		}
	}
	report.Status = StatusSuccess
	s.setState(Ready)
	logging.Logger().Info("printer: job finished", "bytes", report.TotalBytes, "chunks", report.Chunks)
	return report, nil
}

func (s *Session) write(p Packet) error {
	buf, err := p.Marshal(s.crc)
	if err != nil {
		return err
	}
	if _, err := s.t.Write(buf); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrDeviceDisconnected, p.Command, err)
	}
	return nil
}

// send writes p and waits for its ack, resending on checksum errors.
func (s *Session) send(p Packet) error {
	for attempt := 0; ; attempt++ {
		if err := s.write(p); err != nil {
			return err
		}
		err := s.awaitAck(p.Command)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrChecksumMismatch) {
			return err
		}
		if attempt >= s.cfg.MaxRetries {
			return fmt.Errorf("%s rejected %d times: %w", p.Command, attempt+1, err)
		}
		logging.Logger().Warn("printer: resending packet", "cmd", p.Command.String(), "retry", attempt+1, "err", err)
	}
}

func (s *Session) awaitAck(cmd Command) error {
	ack, err := ReadPacket(s.t, s.crc)
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		return err
	case err != nil:
		return fmt.Errorf("%w: read ack for %s: %w", ErrDeviceDisconnected, cmd, err)
	case ack.Command != CmdAck || len(ack.Payload) != 1:
		return fmt.Errorf("%w: %s with %d bytes while waiting for %s ack", ErrUnexpectedReply, ack.Command, len(ack.Payload), cmd)
	}
	switch ack.Payload[0] {
	case StatusOK:
		return nil
	case StatusCRCError:
		return fmt.Errorf("%w: device rejected %s", ErrChecksumMismatch, cmd)
	default:
		return fmt.Errorf("%w: ack status 0x%02X", ErrUnexpectedReply, ack.Payload[0])
	}
}
