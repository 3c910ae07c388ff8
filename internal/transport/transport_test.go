package transport

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
)

// loopback sets up a connected pair of *net.TCPConn by listening on
// 127.0.0.1:0 and dialing it, which is the only portable way to get a
// real *net.TCPConn (required for SyscallConn-based TCP_NODELAY) in a
// unit test without a live EE.
func loopback(t *testing.T) (client *Transport, server *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan *net.TCPConn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- conn.(*net.TCPConn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case srv := <-acceptCh:
		return New(conn.(*net.TCPConn)), srv
	case err := <-errCh:
		t.Fatalf("accept: %v", err)
	}
	return nil, nil
}

func TestWriteFrameLengthPrefix(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	payload := []byte("abcdef")
	if err := client.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(server, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	total := binary.BigEndian.Uint32(header)
	if int(total) != len(payload)+4 {
		t.Fatalf("length prefix = %d, want %d", total, len(payload)+4)
	}

	body := make([]byte, len(payload))
	if _, err := io.ReadFull(server, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("body = %q, want %q", body, payload)
	}
}

func TestReadExactEOF(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	server.Close() // close before any bytes are sent

	if _, err := client.ReadExact(4); err == nil {
		t.Fatalf("expected error reading from a closed peer")
	}
}

func TestReadStatusRoundTrip(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	if _, err := server.Write([]byte{42}); err != nil {
		t.Fatalf("server write: %v", err)
	}
	status, err := client.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if status != 42 {
		t.Fatalf("status = %d, want 42", status)
	}
}
