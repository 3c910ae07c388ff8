// Package buffer provides the dispatcher's reusable frame buffer and a
// size-bucketed scratch-buffer pool for short-lived inbound payloads
// (exception and crash blobs).
package buffer

import "github.com/ehrlich-b/eeipc/internal/constants"

// FrameBuffer is a single large, reusable output buffer with a
// reserved 4-byte prefix slot for the outbound frame length. The
// dispatcher resets it before each command and writes starting at
// offset 4; the transport fills in the length prefix at flush time.
//
// The buffer never shrinks: it grows by allocating a new, larger
// region and copying over what has been written so far.
type FrameBuffer struct {
	buf []byte // buf[:n] is the bytes written so far, including the prefix slot
	n   int
}

// New allocates a FrameBuffer with the given initial capacity. The
// capacity should be at least constants.FrameLengthPrefixSize.
func New(initialCapacity int) *FrameBuffer {
	if initialCapacity < constants.FrameLengthPrefixSize {
		initialCapacity = constants.FrameLengthPrefixSize
	}
	fb := &FrameBuffer{buf: make([]byte, initialCapacity)}
	fb.Reset()
	return fb
}

// Reset truncates the buffer back to the reserved prefix slot. The
// dispatcher calls this before building every outbound command.
func (f *FrameBuffer) Reset() {
	f.n = constants.FrameLengthPrefixSize
}

// Len returns the number of bytes written so far, including the
// prefix slot.
func (f *FrameBuffer) Len() int { return f.n }

// Cap returns the buffer's current capacity.
func (f *FrameBuffer) Cap() int { return len(f.buf) }

// grow ensures at least `additional` more bytes can be written without
// reallocating again immediately, copying existing content into a new,
// larger backing array.
func (f *FrameBuffer) grow(additional int) {
	needed := f.n + additional
	if needed <= len(f.buf) {
		return
	}
	newCap := needed + constants.FrameBufferMargin
	newBuf := make([]byte, newCap)
	copy(newBuf, f.buf[:f.n])
	f.buf = newBuf
}

// Write implements io.Writer, appending p after growing if necessary.
func (f *FrameBuffer) Write(p []byte) (int, error) {
	f.grow(len(p))
	copy(f.buf[f.n:], p)
	f.n += len(p)
	return len(p), nil
}

// WriteByte appends a single byte, growing if necessary.
func (f *FrameBuffer) WriteByte(b byte) error {
	f.grow(1)
	f.buf[f.n] = b
	f.n++
	return nil
}

// Bytes returns the full written region, prefix slot included. The
// first constants.FrameLengthPrefixSize bytes are owned by the
// transport and must not be interpreted by callers before the
// transport fills them in at flush time.
func (f *FrameBuffer) Bytes() []byte {
	return f.buf[:f.n]
}

// Payload returns the bytes written after the reserved prefix slot —
// the command code and command-specific fields.
func (f *FrameBuffer) Payload() []byte {
	return f.buf[constants.FrameLengthPrefixSize:f.n]
}
