package wire

import (
	"bytes"
	"testing"
)

// TestTickFrameLiteral pins down a literal Tick encoding:
// Tick(time=1700000000000, lastCommittedTxnId=42) must serialize to
// an exact byte sequence.
func TestTickFrameLiteral(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteUint32(CmdTick)
	w.WriteUint64(1700000000000)
	w.WriteUint64(42)

	want := []byte{
		0x00, 0x00, 0x00, 0x04, // command code
		0x00, 0x00, 0x01, 0x8B, 0xCF, 0xE5, 0x68, 0x00, // time, big-endian
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A, // lastCommittedTxnId
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("Tick payload = % x, want % x", buf.Bytes(), want)
	}
}

func TestWriteString16(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteString16("host.example")

	r := NewReader(buf.Bytes())
	prefix, err := r.ReadBytes(2)
	if err != nil || !bytes.Equal(prefix, []byte{0x00, 0x0C}) {
		t.Fatalf("length prefix = % x, %v; want 00 0c, nil", prefix, err)
	}
	body, err := r.ReadBytes(r.Remaining())
	if err != nil || string(body) != "host.example" {
		t.Fatalf("body = %q, %v; want %q, nil", body, err, "host.example")
	}
}

func TestReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteUint32(7)
	w.WriteUint64(9999999999)
	w.WriteByte(1)

	r := NewReader(buf.Bytes())
	v32, err := r.ReadUint32()
	if err != nil || v32 != 7 {
		t.Fatalf("ReadUint32 = %d, %v; want 7, nil", v32, err)
	}
	v64, err := r.ReadUint64()
	if err != nil || v64 != 9999999999 {
		t.Fatalf("ReadUint64 = %d, %v; want 9999999999, nil", v64, err)
	}
	b, err := r.ReadByte()
	if err != nil || b != 1 {
		t.Fatalf("ReadByte = %d, %v; want 1, nil", b, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", r.Remaining())
	}
}
