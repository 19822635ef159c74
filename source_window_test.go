package zipkit

import (
	"bytes"
	"io"
	"testing"
)

func TestWindowSourceReadWithinBounds(t *testing.T) {
	lower := NewBufferSource([]byte("0123456789abcdefghij"))
	lower.Keep()
	w := NewWindowSource(lower, 5, 10)
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(w)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "56789abcde" {
		t.Fatalf("window content = %q; want %q", got, "56789abcde")
	}
}

func TestWindowSourceSeekWithinWindow(t *testing.T) {
	lower := NewBufferSource([]byte("0123456789abcdefghij"))
	lower.Keep()
	w := NewWindowSource(lower, 5, 10)
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := w.Seek(3, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := io.ReadAll(w)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "89abcde" {
		t.Fatalf("post-seek content = %q; want %q", got, "89abcde")
	}
}

func TestWindowSourceSeekOutOfBoundsFails(t *testing.T) {
	lower := NewBufferSource([]byte("0123456789"))
	lower.Keep()
	w := NewWindowSource(lower, 0, 5)
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := w.Seek(100, io.SeekStart); err == nil {
		t.Fatalf("expected an out-of-window seek to fail")
	}
}

func TestWindowSourceResolveStartLazilyOffsets(t *testing.T) {
	lower := NewBufferSource([]byte("xxxxxHELLO"))
	lower.Keep()
	w := NewWindowSource(lower, 0, 5)
	w.resolveStart = func() (int64, error) { return 5, nil }
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(w)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "HELLO" {
		t.Fatalf("content = %q; want HELLO", got)
	}
}

func TestWindowSourceTruncatedLowerFailsUnexpectedEOF(t *testing.T) {
	lower := NewBufferSource([]byte("short"))
	lower.Keep()
	w := NewWindowSource(lower, 0, 100)
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err := io.ReadAll(w)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v; want io.ErrUnexpectedEOF", err)
	}
}

func TestWindowSourceOverNonSeekableLowerDiscardsPrefix(t *testing.T) {
	full := bytes.NewReader([]byte("prefix-to-skip:payload"))
	lower := NewFuncSource(FuncSourceOps{
		Read: func(p []byte) (int, error) { return full.Read(p) },
	})
	lower.Keep()
	w := NewWindowSource(lower, int64(len("prefix-to-skip:")), int64(len("payload")))
	if err := w.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(w)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("content = %q; want payload", got)
	}
}

func TestWindowSourceStatOverride(t *testing.T) {
	lower := NewBufferSource([]byte("data"))
	lower.Keep()
	w := NewWindowSource(lower, 0, 4).WithStatOverride(SourceStat{Valid: StatCRC32, CRC32: 0xABCD})
	st, err := w.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.CRC32 != 0xABCD {
		t.Fatalf("CRC32 = %#x; want 0xABCD", st.CRC32)
	}
}
