package buffer

import "sync"

// Scratch buffers back the short-lived inbound payloads the reply
// reader reads off the socket: exception and crash blobs. Dependency
// tables are not read into scratch buffers. They are size-bucketed
// (power-of-2 buckets from 4KiB to 1MiB) to balance memory reuse
// against allocation overhead.
//
// Payloads larger than the largest bucket are allocated directly and
// never returned to the pool.

const (
	size4k   = 4 * 1024
	size16k  = 16 * 1024
	size64k  = 64 * 1024
	size256k = 256 * 1024
	size1m   = 1024 * 1024
)

var scratchPool = struct {
	p4k   sync.Pool
	p16k  sync.Pool
	p64k  sync.Pool
	p256k sync.Pool
	p1m   sync.Pool
}{
	p4k:   sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	p16k:  sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	p64k:  sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	p256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
	p1m:   sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
}

// GetScratch returns a pooled buffer of at least the requested size.
// Callers must call PutScratch when done with it.
func GetScratch(size uint32) []byte {
	switch {
	case size <= size4k:
		return (*scratchPool.p4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*scratchPool.p16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*scratchPool.p64k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*scratchPool.p256k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*scratchPool.p1m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutScratch returns a buffer obtained from GetScratch to its pool.
// Buffers with a non-bucket capacity (the overflow case above) are
// simply dropped.
func PutScratch(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		scratchPool.p4k.Put(&buf)
	case size16k:
		scratchPool.p16k.Put(&buf)
	case size64k:
		scratchPool.p64k.Put(&buf)
	case size256k:
		scratchPool.p256k.Put(&buf)
	case size1m:
		scratchPool.p1m.Put(&buf)
	}
}
