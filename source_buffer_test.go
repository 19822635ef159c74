package zipkit

import (
	"bytes"
	"io"
	"testing"
)

func TestBufferSourceWriteCommitReplacesData(t *testing.T) {
	src := NewBufferSource([]byte("old"))
	if err := src.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if _, err := src.Write([]byte("new content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := src.CommitWrite(); err != nil {
		t.Fatalf("CommitWrite: %v", err)
	}
	if string(src.Bytes()) != "new content" {
		t.Fatalf("Bytes() = %q; want %q", src.Bytes(), "new content")
	}
}

func TestBufferSourceRollbackLeavesDataUntouched(t *testing.T) {
	src := NewBufferSource([]byte("original"))
	if err := src.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if _, err := src.Write([]byte("discarded")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := src.RollbackWrite(); err != nil {
		t.Fatalf("RollbackWrite: %v", err)
	}
	if string(src.Bytes()) != "original" {
		t.Fatalf("Bytes() = %q; want %q (rollback should not apply pending write)", src.Bytes(), "original")
	}
}

func TestBufferSourceRemoveFailsSubsequentReads(t *testing.T) {
	src := NewBufferSource([]byte("data"))
	if err := src.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := src.Read(make([]byte, 4)); err == nil {
		t.Fatalf("expected Read on a removed source to fail")
	}
}

func TestFragmentSourceReadsAcrossFragmentBoundaries(t *testing.T) {
	f := NewFragmentSource()
	f.AddFragment(bytes.NewReader([]byte("hello-")), int64(len("hello-")))
	f.AddFragment(bytes.NewReader([]byte("world")), int64(len("world")))

	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello-world" {
		t.Fatalf("content = %q; want hello-world", got)
	}
}

func TestFragmentSourceSeekIntoSecondFragment(t *testing.T) {
	f := NewFragmentSource()
	f.AddFragment(bytes.NewReader([]byte("0123456789")), 10)
	f.AddFragment(bytes.NewReader([]byte("abcdefghij")), 10)

	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Seek(15, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "fghij" {
		t.Fatalf("content after seek = %q; want fghij", got)
	}
}

func TestFragmentSourceStatReportsTotalSize(t *testing.T) {
	f := NewFragmentSource()
	f.AddFragment(bytes.NewReader([]byte("12345")), 5)
	f.AddFragment(bytes.NewReader([]byte("678")), 3)

	st, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size != 8 {
		t.Fatalf("Size = %d; want 8", st.Size)
	}
}
