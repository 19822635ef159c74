package zipkit

import (
	"bytes"
	"io"
	"testing"
)

func TestPreviewMatchesCommittedBytesForFreshEntries(t *testing.T) {
	src := NewBufferSource(nil)
	a, err := Open(src, OpenFlagCreate, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a.AddData("one.txt", NewBufferSource([]byte("first file content")))
	a.AddData("two.txt", NewBufferSource([]byte("second file content, a bit longer")))

	preview, err := a.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	previewBytes, err := io.ReadAll(preview)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}

	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if !bytes.Equal(previewBytes, src.Bytes()) {
		t.Fatalf("Preview() output (%d bytes) does not match Commit() output (%d bytes)", len(previewBytes), len(src.Bytes()))
	}
}

func TestPreviewSeekable(t *testing.T) {
	src := NewBufferSource(nil)
	a, err := Open(src, OpenFlagCreate, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a.AddData("only.txt", NewBufferSource([]byte("some payload bytes")))

	preview, err := a.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	all, err := io.ReadAll(preview)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}

	if _, err := preview.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek back to start: %v", err)
	}
	again, err := io.ReadAll(preview)
	if err != nil {
		t.Fatalf("reading preview a second time: %v", err)
	}
	if !bytes.Equal(all, again) {
		t.Fatalf("re-reading the preview after Seek(0) produced different bytes")
	}
}
