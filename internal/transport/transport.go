// Package transport owns the blocking TCP connection to the Execution
// Engine: exact-length read/write with EOF detection, and the
// write_frame primitive (prepend a big-endian length-including-self,
// send atomically).
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/eeipc/internal/constants"
)

// Transport is a blocking, ordered byte stream to the EE on localhost
// at a port chosen by the supervisor. There is never more than one
// outstanding request per Transport — the caller must serialize its
// own use.
type Transport struct {
	conn *net.TCPConn
}

// Dial connects to the EE at the given port with a single dial attempt
// bounded by constants.HandshakeTimeout; it does not retry. The
// supervisor gates this by waiting for the handshake line first.
func Dial(port int) (*Transport, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := net.DialTimeout("tcp", addr, constants.HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	tcpConn := conn.(*net.TCPConn)
	if err := setNoDelay(tcpConn); err != nil {
		tcpConn.Close()
		return nil, err
	}
	return &Transport{conn: tcpConn}, nil
}

// New wraps an already-established connection (used by tests; the
// driver itself connects through Dial in every launch mode).
func New(conn *net.TCPConn) *Transport {
	return &Transport{conn: conn}
}

// setNoDelay enables TCP_NODELAY via a raw syscall against the
// connection's file descriptor. Latency dominates over throughput at
// this protocol's small-request boundary, so Nagle's algorithm must
// stay off; net.TCPConn.SetNoDelay already does this on most
// platforms, but the driver goes through the raw fd so socket option
// failures surface as explicit transport errors rather than being
// silently accepted by a higher-level wrapper.
func setNoDelay(conn *net.TCPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("transport: SyscallConn: %w", err)
	}
	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return fmt.Errorf("transport: Control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("transport: TCP_NODELAY: %w", sockErr)
	}
	return nil
}

// WriteFrame writes payload_len+4 as a big-endian u32 followed by
// payload, retrying partial writes until the whole frame is sent.
func (t *Transport) WriteFrame(payload []byte) error {
	total := len(payload) + constants.FrameLengthPrefixSize
	header := make([]byte, constants.FrameLengthPrefixSize)
	binary.BigEndian.PutUint32(header, uint32(total))

	if err := t.writeAll(header); err != nil {
		return err
	}
	return t.writeAll(payload)
}

func (t *Transport) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := t.conn.Write(p)
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// ReadExact returns exactly n bytes or fails if the stream closes
// first: with io.EOF (wrapped) when no byte arrived, with
// io.ErrUnexpectedEOF (wrapped) when only some did.
func (t *Transport) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, fmt.Errorf("transport: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// ReadExactInto fills buf completely or fails, avoiding an allocation
// when the caller already owns a correctly sized buffer (e.g. a
// pooled scratch buffer).
func (t *Transport) ReadExactInto(buf []byte) error {
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return fmt.Errorf("transport: read %d bytes: %w", len(buf), err)
	}
	return nil
}

// ReadStatus reads the single status byte that begins every reply.
func (t *Transport) ReadStatus() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(t.conn, b[:]); err != nil {
		return 0, fmt.Errorf("transport: read status: %w", err)
	}
	return b[0], nil
}

// WriteByte writes a single byte directly to the socket, used by the
// reply reader for the DependencyFound/DependencyNotFound sub-replies,
// which bypass the frame buffer (still holding the outbound command).
func (t *Transport) WriteByte(b byte) error {
	return t.writeAll([]byte{b})
}

// WriteUint32 writes a big-endian u32 directly to the socket.
func (t *Transport) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return t.writeAll(buf[:])
}

// WriteBody writes arbitrary bytes directly to the socket, retrying
// partial writes. Used for the dependency-table body in a
// DependencyFound sub-reply.
func (t *Transport) WriteBody(p []byte) error {
	return t.writeAll(p)
}

// Close closes the socket; the EE treats this as its shutdown signal.
// Any blocked read/write unblocks with an error.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// SetDeadline is exposed for the rare higher-layer caller that wants
// to impose its own deadline by closing the driver from a timer; the
// transport itself never sets one implicitly.
func (t *Transport) SetDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}
