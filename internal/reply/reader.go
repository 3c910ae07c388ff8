// Package reply implements the reply reader: the mid-reply callback
// loop, crash-report decoding, and exception decoding for replies
// coming back from the EE.
//
// The loop is implemented iteratively, not recursively, so the driver
// tolerates an EE that pulls an unbounded number of dependencies for a
// single plan fragment without growing the Go call stack.
package reply

import (
	"fmt"

	"github.com/ehrlich-b/eeipc/internal/buffer"
	"github.com/ehrlich-b/eeipc/internal/interfaces"
	"github.com/ehrlich-b/eeipc/internal/transport"
	"github.com/ehrlich-b/eeipc/internal/wire"
)

// socket is the minimal transport surface the reader needs; satisfied
// by *transport.Transport and by test doubles.
type socket interface {
	ReadStatus() (byte, error)
	ReadExact(n int) ([]byte, error)
	ReadExactInto(buf []byte) error
	WriteByte(b byte) error
	WriteUint32(v uint32) error
	WriteBody(p []byte) error
}

var _ socket = (*transport.Transport)(nil)

// Reader drives one reply: it consumes status bytes, services any
// RETRIEVE_DEPENDENCY sub-requests against a Coordinator, and returns
// once a terminal status is reached (SUCCESS, an exception, or a
// crash).
type Reader struct {
	sock        socket
	coordinator interfaces.Coordinator
	observer    interfaces.Observer
}

func New(sock socket, coordinator interfaces.Coordinator, observer interfaces.Observer) *Reader {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Reader{sock: sock, coordinator: coordinator, observer: observer}
}

// Await runs the status loop to completion and returns nil once a
// terminal SUCCESS status is read. Non-success terminal statuses are
// returned as an error (EEException, GenericEEError, or — after
// invoking the coordinator's crash handler — an error describing the
// crash for callers that don't os.Exit immediately).
func (r *Reader) Await() error {
	for {
		status, err := r.sock.ReadStatus()
		if err != nil {
			return fmt.Errorf("reply: read status: %w", err)
		}

		switch status {
		case wire.StatusRetrieveDependency:
			if err := r.serviceDependencyCallback(); err != nil {
				return err
			}
			continue // iterative, not recursive: loop back for the next status byte
		case wire.StatusCrashEE:
			return r.handleCrash()
		case wire.StatusSuccess:
			return nil
		default:
			return r.handleException(status)
		}
	}
}

// serviceDependencyCallback handles one RETRIEVE_DEPENDENCY
// sub-exchange: read the 4-byte dependency id, ask the coordinator for
// it, and write exactly one DependencyFound/DependencyNotFound reply
// on the raw socket (not the frame buffer, which is still holding the
// outbound command).
func (r *Reader) serviceDependencyCallback() error {
	idBytes, err := r.sock.ReadExact(4)
	if err != nil {
		return fmt.Errorf("reply: read dependency id: %w", err)
	}
	depID := wire.Uint32(idBytes)

	table, ok := r.coordinator.NextDependency(depID)
	r.observer.ObserveDependencyCallback(ok)

	if !ok {
		return r.sock.WriteByte(wire.StatusDependencyNotFound)
	}
	if err := r.sock.WriteByte(wire.StatusDependencyFound); err != nil {
		return fmt.Errorf("reply: write DependencyFound: %w", err)
	}
	if err := r.sock.WriteUint32(uint32(len(table))); err != nil {
		return fmt.Errorf("reply: write dependency length: %w", err)
	}
	if err := r.sock.WriteBody(table); err != nil {
		return fmt.Errorf("reply: write dependency table: %w", err)
	}
	return nil
}

// handleException decodes a non-SUCCESS, non-CRASH status: a 4-byte
// exception length, then that many bytes if non-zero.
func (r *Reader) handleException(status byte) error {
	lenBytes, err := r.sock.ReadExact(4)
	if err != nil {
		return fmt.Errorf("reply: read exception length: %w", err)
	}
	length := wire.Uint32(lenBytes)
	if length == 0 {
		return &GenericEEError{Status: status}
	}

	payload := buffer.GetScratch(length)
	defer buffer.PutScratch(payload)
	if err := r.sock.ReadExactInto(payload); err != nil {
		return fmt.Errorf("reply: read exception payload: %w", err)
	}

	// Re-prepend the length so the exception decoder sees the same
	// self-describing blob the EE produced.
	full := make([]byte, 4+length)
	wire.PutUint32(full[:4], length)
	copy(full[4:], payload)

	return &EEException{Status: status, Raw: full}
}

// handleCrash decodes a CRASH reply and invokes the coordinator's
// fatal-crash path. The crash message length is framed separately from
// ordinary exception payloads (outside any exception-length field).
func (r *Reader) handleCrash() error {
	msgLenBytes, err := r.sock.ReadExact(4)
	if err != nil {
		return fmt.Errorf("reply: read crash message length: %w", err)
	}
	msgLen := wire.Uint32(msgLenBytes)

	msg := buffer.GetScratch(msgLen)
	defer buffer.PutScratch(msg)
	if err := r.sock.ReadExactInto(msg); err != nil {
		return fmt.Errorf("reply: read crash message: %w", err)
	}

	report, err := decodeCrash(msg)
	if err != nil {
		return fmt.Errorf("reply: decode crash payload: %w", err)
	}

	r.coordinator.FatalCrash(report)
	return &CrashError{Report: report}
}
