package zipkit

import "testing"

func TestNameHashAddLookup(t *testing.T) {
	h := newNameHash()
	h.addOriginal("a.txt", 0)
	h.addOriginal("b.txt", 1)

	if idx, ok := h.lookup("a.txt", false); !ok || idx != 0 {
		t.Fatalf("lookup(a.txt) = %d, %v; want 0, true", idx, ok)
	}
	if idx, ok := h.lookup("b.txt", false); !ok || idx != 1 {
		t.Fatalf("lookup(b.txt) = %d, %v; want 1, true", idx, ok)
	}
	if _, ok := h.lookup("missing.txt", false); ok {
		t.Fatalf("lookup(missing.txt) should miss")
	}
}

func TestNameHashAddRejectsDuplicate(t *testing.T) {
	h := newNameHash()
	h.addOriginal("a.txt", 0)
	if h.add("a.txt", 1) {
		t.Fatalf("add should reject a name already live")
	}
}

func TestNameHashDeleteKeepsOriginalForRevert(t *testing.T) {
	h := newNameHash()
	h.addOriginal("a.txt", 0)
	h.delete("a.txt")

	if _, ok := h.lookup("a.txt", false); ok {
		t.Fatalf("current lookup should miss after delete")
	}
	if idx, ok := h.lookup("a.txt", true); !ok || idx != 0 {
		t.Fatalf("orig lookup after delete = %d, %v; want 0, true", idx, ok)
	}
}

func TestNameHashDeleteAddedEntryUnlinksEntirely(t *testing.T) {
	h := newNameHash()
	h.add("new.txt", 0)
	h.delete("new.txt")

	if _, ok := h.lookup("new.txt", false); ok {
		t.Fatalf("current lookup should miss")
	}
	if _, ok := h.lookup("new.txt", true); ok {
		t.Fatalf("orig lookup should also miss: entry was never on disk")
	}
	if h.count != 0 {
		t.Fatalf("count = %d; want 0, node should be unlinked", h.count)
	}
}

func TestNameHashRename(t *testing.T) {
	h := newNameHash()
	h.addOriginal("old.txt", 0)
	h.rename("old.txt", "new.txt", 0)

	if _, ok := h.lookup("old.txt", false); ok {
		t.Fatalf("old name should no longer resolve")
	}
	if idx, ok := h.lookup("new.txt", false); !ok || idx != 0 {
		t.Fatalf("lookup(new.txt) = %d, %v; want 0, true", idx, ok)
	}
}

func TestNameHashRevert(t *testing.T) {
	h := newNameHash()
	h.addOriginal("a.txt", 0)
	h.addOriginal("b.txt", 1)
	h.add("c.txt", 2)
	h.delete("a.txt")
	h.rename("b.txt", "renamed.txt", 1)

	h.revert()

	if idx, ok := h.lookup("a.txt", false); !ok || idx != 0 {
		t.Fatalf("a.txt should be restored: got %d, %v", idx, ok)
	}
	if idx, ok := h.lookup("b.txt", false); !ok || idx != 1 {
		t.Fatalf("b.txt should be restored under its original name: got %d, %v", idx, ok)
	}
	if _, ok := h.lookup("renamed.txt", false); ok {
		t.Fatalf("renamed.txt should not exist after revert")
	}
	if _, ok := h.lookup("c.txt", false); ok {
		t.Fatalf("c.txt (added since open) should be gone after revert")
	}
}

func TestNameHashAbsorbCommit(t *testing.T) {
	h := newNameHash()
	h.addOriginal("a.txt", 0)
	h.add("b.txt", 1)
	h.rename("a.txt", "renamed.txt", 0)

	h.absorbCommit([]string{"renamed.txt", "b.txt"})

	for _, tc := range []struct {
		name string
		want int
	}{{"renamed.txt", 0}, {"b.txt", 1}} {
		cur, ok := h.lookup(tc.name, false)
		if !ok || cur != tc.want {
			t.Fatalf("lookup(%s) current = %d, %v; want %d, true", tc.name, cur, ok, tc.want)
		}
		orig, ok := h.lookup(tc.name, true)
		if !ok || orig != tc.want {
			t.Fatalf("lookup(%s) orig = %d, %v; want %d, true", tc.name, orig, ok, tc.want)
		}
	}
}

func TestNameHashGrowAndShrink(t *testing.T) {
	h := newNameHash()
	initial := len(h.buckets)

	// add (not addOriginal): orig == -1, so a later delete fully unlinks
	// the node instead of just clearing current, letting count shrink back.
	for i := 0; i < 1000; i++ {
		h.add(randName(i), i)
	}
	if len(h.buckets) <= initial {
		t.Fatalf("expected buckets to grow past %d, got %d", initial, len(h.buckets))
	}
	if h.loadFactor() > 0.75 {
		t.Fatalf("load factor %.3f exceeds 0.75 after growth", h.loadFactor())
	}

	for i := 0; i < 1000; i++ {
		h.delete(randName(i))
	}
	if len(h.buckets) != nameHashMinSize {
		t.Fatalf("buckets = %d; want shrink back to floor %d", len(h.buckets), nameHashMinSize)
	}
}

func randName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := []byte{letters[i%26], letters[(i/26)%26], letters[(i/676)%26]}
	return string(b) + "/file.bin"
}
