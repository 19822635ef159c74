package zipkit

import (
	"io"
	"testing"
)

func TestCRCSourcePassesMatchingChecksum(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	h := newCRC32()
	h.Write(data)
	want := h.Sum32()

	lower := NewBufferSource(data)
	lower.Keep()
	c := newCRCSource(lower, want, int64(len(data)))
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	got, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCRCSourceRejectsMismatch(t *testing.T) {
	data := []byte("some content")
	lower := NewBufferSource(data)
	lower.Keep()
	c := newCRCSource(lower, 0xDEADBEEF, int64(len(data)))
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, err := io.ReadAll(c)
	if err == nil {
		t.Fatalf("expected a CRC mismatch error")
	}
	zerr, ok := err.(*Error)
	if !ok || zerr.Kind != ErrKindCRCMismatch {
		t.Fatalf("err = %v; want ErrKindCRCMismatch", err)
	}
}

func TestCRCSourceStatReportsWantedCRC(t *testing.T) {
	lower := NewBufferSource([]byte("abc"))
	lower.Keep()
	c := newCRCSource(lower, 0x12345678, 3)
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	st, err := c.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Valid&StatCRC32 == 0 {
		t.Fatalf("Stat did not report StatCRC32 as valid")
	}
	if st.CRC32 != 0x12345678 {
		t.Fatalf("Stat.CRC32 = %#x; want %#x", st.CRC32, 0x12345678)
	}
}
