package zipkit

import (
	"bytes"
	"testing"
)

func TestByteBufferRoundTrip(t *testing.T) {
	b := newByteBuffer(15)
	b.putUint8(0x42)
	b.putUint16(0x1234)
	b.putUint32(0xdeadbeef)
	b.putUint64(0x0102030405060708)
	if !b.ok {
		t.Fatalf("buffer reported !ok after a fitting write sequence")
	}

	b.setOffset(0)
	if got := b.getUint8(); got != 0x42 {
		t.Fatalf("getUint8 = %#x; want 0x42", got)
	}
	if got := b.getUint16(); got != 0x1234 {
		t.Fatalf("getUint16 = %#x; want 0x1234", got)
	}
	if got := b.getUint32(); got != 0xdeadbeef {
		t.Fatalf("getUint32 = %#x; want 0xdeadbeef", got)
	}
	if got := b.getUint64(); got != 0x0102030405060708 {
		t.Fatalf("getUint64 = %#x; want 0x0102030405060708", got)
	}
	if !b.eof() {
		t.Fatalf("expected eof after consuming the whole buffer")
	}
}

func TestByteBufferOverflowSticksOk(t *testing.T) {
	b := newByteBuffer(2)
	b.putUint32(1) // doesn't fit: 4 bytes into a 2-byte buffer
	if b.ok {
		t.Fatalf("expected ok=false after an overflowing put")
	}
	// Further operations on a !ok buffer must be silent no-ops, not panics.
	b.putUint8(9)
	if got := b.getUint16(); got != 0 {
		t.Fatalf("getUint16 on a failed buffer = %d; want 0", got)
	}
}

func TestByteBufferGetAliasesBackingArray(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	b := wrapByteBuffer(data)
	got := b.get(4)
	got[0] = 0xff
	if data[0] != 0xff {
		t.Fatalf("get() did not alias the original backing array")
	}
}

func TestCountWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &countWriter{w: &buf}
	n1, err := cw.Write([]byte("hello"))
	if err != nil || n1 != 5 {
		t.Fatalf("Write(hello) = %d, %v", n1, err)
	}
	n2, err := cw.Write([]byte(" world"))
	if err != nil || n2 != 6 {
		t.Fatalf("Write( world) = %d, %v", n2, err)
	}
	if cw.count != 11 {
		t.Fatalf("count = %d; want 11", cw.count)
	}
	if buf.String() != "hello world" {
		t.Fatalf("underlying writer got %q", buf.String())
	}
}
