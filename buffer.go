package zipkit

import (
	"encoding/binary"
	"io"
)

// byteBuffer is a bounded, little-endian reader/writer over a contiguous
// byte slice. It tracks overflow with ok rather than panicking or returning
// an error from every call: once an operation would read or write past the
// end, ok is set to false and every later operation becomes a silent no-op
// (returning zero values), so callers can perform a whole record's worth of
// gets/puts and check ok once at the end.
//
// byteBuffer either owns its backing array (newByteBuffer) or borrows it
// (wrapByteBuffer); borrowing avoids a copy when the bytes already live in a
// buffer the caller controls, such as the EOCD tail-scan window.
type byteBuffer struct {
	data []byte
	pos  int
	ok   bool
}

// newByteBuffer allocates a new, owned buffer of the given size.
func newByteBuffer(size int) *byteBuffer {
	return &byteBuffer{data: make([]byte, size), ok: true}
}

// wrapByteBuffer borrows data without copying it.
func wrapByteBuffer(data []byte) *byteBuffer {
	return &byteBuffer{data: data, ok: true}
}

func (b *byteBuffer) eof() bool {
	return b.pos >= len(b.data)
}

func (b *byteBuffer) left() int {
	if b.pos >= len(b.data) {
		return 0
	}
	return len(b.data) - b.pos
}

func (b *byteBuffer) setOffset(off int) {
	if off < 0 || off > len(b.data) {
		b.ok = false
		return
	}
	b.pos = off
}

func (b *byteBuffer) skip(n int) {
	b.setOffset(b.pos + n)
}

// get returns a slice of the next n bytes and advances the cursor. The
// returned slice aliases the buffer's backing array; callers that need to
// retain it past the buffer's lifetime must copy it.
func (b *byteBuffer) get(n int) []byte {
	if !b.ok || n < 0 || n > b.left() {
		b.ok = false
		return nil
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out
}

// peek is like get but does not advance the cursor.
func (b *byteBuffer) peek(n int) []byte {
	if !b.ok || n < 0 || n > b.left() {
		b.ok = false
		return nil
	}
	return b.data[b.pos : b.pos+n]
}

func (b *byteBuffer) put(p []byte) {
	if !b.ok || len(p) > b.left() {
		b.ok = false
		return
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
}

func (b *byteBuffer) getUint8() uint8 {
	v := b.get(1)
	if v == nil {
		return 0
	}
	return v[0]
}

func (b *byteBuffer) getUint16() uint16 {
	v := b.get(2)
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(v)
}

func (b *byteBuffer) getUint32() uint32 {
	v := b.get(4)
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(v)
}

func (b *byteBuffer) getUint64() uint64 {
	v := b.get(8)
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func (b *byteBuffer) putUint8(v uint8) {
	dst := b.get(1)
	if dst == nil {
		return
	}
	dst[0] = v
}

func (b *byteBuffer) putUint16(v uint16) {
	dst := b.get(2)
	if dst == nil {
		return
	}
	binary.LittleEndian.PutUint16(dst, v)
}

func (b *byteBuffer) putUint32(v uint32) {
	dst := b.get(4)
	if dst == nil {
		return
	}
	binary.LittleEndian.PutUint32(dst, v)
}

func (b *byteBuffer) putUint64(v uint64) {
	dst := b.get(8)
	if dst == nil {
		return
	}
	binary.LittleEndian.PutUint64(dst, v)
}

// writeBuf is the teacher's flat little-endian write cursor, kept for the
// single-pass header emission path (writeLocalHeader / writeCentralHeader)
// where a fixed-size array on the stack is cheaper than a *byteBuffer.
type writeBuf []byte

func (b *writeBuf) uint8(v uint8) {
	(*b)[0] = v
	*b = (*b)[1:]
}

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}

// countWriter is an io.Writer that tracks the total number of bytes written
// to it, used to know the on-disk size of the central directory as it is
// streamed out.
type countWriter struct {
	w     io.Writer
	count int64
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.count += int64(n)
	return n, err
}
