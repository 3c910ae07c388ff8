package buffer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetKeepsPrefixSlot(t *testing.T) {
	fb := New(16)
	fb.Write([]byte("hello"))
	require.Equal(t, 9, fb.Len())

	fb.Reset()
	require.Equal(t, 4, fb.Len())
	require.Empty(t, fb.Payload())
}

func TestGrowPreservesWrittenBytes(t *testing.T) {
	fb := New(8) // capacity smaller than what we're about to write
	payload := bytes.Repeat([]byte{0xAB}, 64)

	n, err := fb.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, fb.Payload())
	require.GreaterOrEqual(t, fb.Cap(), fb.Len())
}

func TestWriteByteGrows(t *testing.T) {
	fb := New(4)
	for i := 0; i < 100; i++ {
		require.NoError(t, fb.WriteByte(byte(i)))
	}
	require.Len(t, fb.Payload(), 100)
}

// TestLengthPrefixInvariant exercises the boundary property that
// frame[0..4] == u32_be(frame.len()) once the transport writes the
// prefix at flush time.
func TestLengthPrefixInvariant(t *testing.T) {
	fb := New(32)
	fb.Write([]byte{0, 0, 0, 4}) // pretend command code
	fb.Write([]byte("payload"))

	binary.BigEndian.PutUint32(fb.Bytes()[0:4], uint32(fb.Len()))

	got := binary.BigEndian.Uint32(fb.Bytes()[0:4])
	require.Equal(t, fb.Len(), int(got))
}
