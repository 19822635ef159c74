package zipkit

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func mustOpenEmpty(t *testing.T) (*Archive, *BufferSource) {
	t.Helper()
	src := NewBufferSource(nil)
	a, err := Open(src, OpenFlagCreate, "")
	if err != nil {
		t.Fatalf("Open(empty, OpenFlagCreate): %v", err)
	}
	return a, src
}

func TestArchiveAddCommitReopenRoundTrip(t *testing.T) {
	a, src := mustOpenEmpty(t)

	idx, err := a.AddData("hello.txt", NewBufferSource([]byte("hello, zipkit")))
	if err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if idx != 0 {
		t.Fatalf("AddData index = %d; want 0", idx)
	}
	if _, err := a.AddData("dir/nested.txt", NewBufferSource([]byte("nested content"))); err != nil {
		t.Fatalf("AddData (nested): %v", err)
	}

	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	committed := append([]byte(nil), src.Bytes()...)

	reopened, err := Open(NewBufferSource(committed), 0, "")
	if err != nil {
		t.Fatalf("reopen committed archive: %v", err)
	}
	if reopened.NumEntries() != 2 {
		t.Fatalf("NumEntries = %d; want 2", reopened.NumEntries())
	}

	for _, tc := range []struct {
		name    string
		content string
	}{
		{"hello.txt", "hello, zipkit"},
		{"dir/nested.txt", "nested content"},
	} {
		idx, ok := reopened.Locate(tc.name)
		if !ok {
			t.Fatalf("Locate(%s) missed", tc.name)
		}
		r, err := reopened.OpenEntry(idx, "")
		if err != nil {
			t.Fatalf("OpenEntry(%s): %v", tc.name, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("reading %s: %v", tc.name, err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("closing %s: %v", tc.name, err)
		}
		if string(got) != tc.content {
			t.Fatalf("content of %s = %q; want %q", tc.name, got, tc.content)
		}
	}
}

func TestArchiveCommitKeepsUntouchedEntryContent(t *testing.T) {
	a, src := mustOpenEmpty(t)
	if _, err := a.AddData("keep.txt", NewBufferSource([]byte("unchanged content"))); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if _, err := a.AddData("touch.txt", NewBufferSource([]byte("will be replaced"))); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if err := a.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	firstPass := append([]byte(nil), src.Bytes()...)

	reopenSrc := NewBufferSource(firstPass)
	reopened, err := Open(reopenSrc, 0, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	idx, ok := reopened.Locate("touch.txt")
	if !ok {
		t.Fatalf("Locate(touch.txt) missed")
	}
	if err := reopened.ReplaceData(idx, NewBufferSource([]byte("replaced!"))); err != nil {
		t.Fatalf("ReplaceData: %v", err)
	}
	// keep.txt is never touched, so Commit must splice its on-disk bytes
	// verbatim rather than recompressing them.
	if err := reopened.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	final, err := Open(NewBufferSource(append([]byte(nil), reopenSrc.Bytes()...)), 0, "")
	if err != nil {
		t.Fatalf("reopen final: %v", err)
	}
	keepIdx, _ := final.Locate("keep.txt")
	r, err := final.OpenEntry(keepIdx, "")
	if err != nil {
		t.Fatalf("OpenEntry(keep.txt): %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading keep.txt: %v", err)
	}
	if string(got) != "unchanged content" {
		t.Fatalf("keep.txt content = %q; want unchanged", got)
	}

	touchIdx, _ := final.Locate("touch.txt")
	r2, err := final.OpenEntry(touchIdx, "")
	if err != nil {
		t.Fatalf("OpenEntry(touch.txt): %v", err)
	}
	defer r2.Close()
	got2, err := io.ReadAll(r2)
	if err != nil {
		t.Fatalf("reading touch.txt: %v", err)
	}
	if string(got2) != "replaced!" {
		t.Fatalf("touch.txt content = %q; want replaced!", got2)
	}
}

func TestArchiveDeleteRenameRevert(t *testing.T) {
	a, _ := mustOpenEmpty(t)
	a.AddData("a.txt", NewBufferSource([]byte("a")))
	bIndex, _ := a.AddData("b.txt", NewBufferSource([]byte("b")))

	if err := a.Delete(0); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// index 0 is a stable slot, not a live position: once deleted it stays
	// unaddressable even though it's no longer the entry named "a.txt".
	if _, err := a.Stat(0); err == nil {
		t.Fatalf("expected Stat(0) to fail once slot 0 is deleted")
	}
	if _, ok := a.Locate("a.txt"); ok {
		t.Fatalf("Locate(a.txt) should fail after Delete")
	}
	if got, ok := a.Locate("b.txt"); !ok || got != bIndex {
		t.Fatalf("Locate(b.txt) = (%d, %v); want (%d, true) — b.txt's slot must not shift", got, ok, bIndex)
	}

	if err := a.Rename(bIndex, "renamed.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := a.Locate("b.txt"); ok {
		t.Fatalf("Locate(b.txt) should fail after Rename")
	}
	if got, ok := a.Locate("renamed.txt"); !ok || got != bIndex {
		t.Fatalf("Locate(renamed.txt) = (%d, %v); want (%d, true)", got, ok, bIndex)
	}
	if a.NumEntries() != 1 {
		t.Fatalf("NumEntries after delete = %d; want 1", a.NumEntries())
	}

	a.Revert()

	if a.NumEntries() != 0 {
		t.Fatalf("NumEntries after revert = %d; want 0 (nothing was ever committed)", a.NumEntries())
	}
}

func TestArchiveSetMtimeAndMethod(t *testing.T) {
	a, src := mustOpenEmpty(t)
	idx, _ := a.AddData("f.txt", NewBufferSource(bytes.Repeat([]byte("x"), 4096)))

	when := time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC)
	if err := a.SetMtime(idx, when); err != nil {
		t.Fatalf("SetMtime: %v", err)
	}
	if err := a.SetMethod(idx, Store, 0); err != nil {
		t.Fatalf("SetMethod: %v", err)
	}
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reopened, err := Open(NewBufferSource(append([]byte(nil), src.Bytes()...)), 0, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ridx, _ := reopened.Locate("f.txt")
	stat, err := reopened.Stat(ridx)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.CompMethod != Store {
		t.Fatalf("CompMethod = %d; want Store", stat.CompMethod)
	}
	if !stat.Modified.Equal(when) {
		t.Fatalf("Modified = %v; want %v", stat.Modified, when)
	}
}

func TestArchiveRejectsDuplicateName(t *testing.T) {
	a, _ := mustOpenEmpty(t)
	if _, err := a.AddData("dup.txt", NewBufferSource([]byte("1"))); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if _, err := a.AddData("dup.txt", NewBufferSource([]byte("2"))); err == nil {
		t.Fatalf("expected an error adding a duplicate name")
	}
}

func TestArchiveMutationWhileOpenFails(t *testing.T) {
	a, _ := mustOpenEmpty(t)
	idx, _ := a.AddData("f.txt", NewBufferSource([]byte("data")))
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := a.OpenEntry(idx, "")
	if err != nil {
		t.Fatalf("OpenEntry: %v", err)
	}
	if err := a.Delete(idx); err == nil {
		t.Fatalf("expected Delete to fail while the entry is open for reading")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Delete(idx); err != nil {
		t.Fatalf("Delete after Close: %v", err)
	}
}
