package zipkit

// nameHash maps archive filenames to entry indices, tracking both the
// index the entry had when the archive was opened (orig) and the index it
// has in the current, possibly-mutated, entry list (current). Either may be
// -1: orig is -1 for a newly-added entry, current is -1 for an entry that
// has been deleted (but is still tracked so revert can restore it).
//
// Keys hash with djb2 mod 2^32 into a power-of-two bucket table sized in
// [256, 2^31], growing when load factor exceeds 0.75 and shrinking when it
// drops below 0.01 (never below the 256 floor).
type nameHash struct {
	buckets [][]*nameHashEntry
	count   int
}

type nameHashEntry struct {
	name    string
	hash    uint32
	orig    int
	current int
}

const (
	nameHashMinSize = 256
	nameHashMaxSize = 1 << 31
)

func newNameHash() *nameHash {
	return &nameHash{buckets: make([][]*nameHashEntry, nameHashMinSize)}
}

func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func (h *nameHash) bucketIndex(hash uint32) int {
	return int(hash) & (len(h.buckets) - 1)
}

func (h *nameHash) lookupEntry(name string) *nameHashEntry {
	hash := djb2(name)
	for _, e := range h.buckets[h.bucketIndex(hash)] {
		if e.hash == hash && e.name == name {
			return e
		}
	}
	return nil
}

// lookup returns the entry index for name, or -1 and false on miss.
// unchanged selects between the current mapping (unchanged=false, the
// default lookup semantics) and the original mapping (unchanged=true).
func (h *nameHash) lookup(name string, unchanged bool) (int, bool) {
	e := h.lookupEntry(name)
	if e == nil {
		return -1, false
	}
	idx := e.current
	if unchanged {
		idx = e.orig
	}
	if idx < 0 {
		return -1, false
	}
	return idx, true
}

// add inserts name -> index into the current mapping. It fails with
// ErrKindInvalidArgument-shaped EEXISTS semantics (returned as ok=false) if
// the name already resolves to a live entry (current != -1). A deleted
// original's node is reused, keeping its orig so revert can restore it.
func (h *nameHash) add(name string, index int) bool {
	if e := h.lookupEntry(name); e != nil {
		if e.current != -1 {
			return false
		}
		e.current = index
		return true
	}
	h.insert(&nameHashEntry{name: name, hash: djb2(name), orig: -1, current: index})
	return true
}

// addOriginal is used only during archive open: every entry read from disk
// is inserted with orig == current == idx.
func (h *nameHash) addOriginal(name string, index int) {
	h.insert(&nameHashEntry{name: name, hash: djb2(name), orig: index, current: index})
}

func (h *nameHash) insert(e *nameHashEntry) {
	idx := h.bucketIndex(e.hash)
	h.buckets[idx] = append(h.buckets[idx], e)
	h.count++
	h.maybeGrow()
}

// delete clears the current mapping for name. If the entry has no original
// index (it was newly added, never on disk) the node is unlinked entirely;
// otherwise it is kept with current = -1 so revert can restore it.
func (h *nameHash) delete(name string) {
	e := h.lookupEntry(name)
	if e == nil {
		return
	}
	if e.orig == -1 {
		h.remove(e)
		return
	}
	e.current = -1
	h.maybeShrink()
}

func (h *nameHash) remove(target *nameHashEntry) {
	idx := h.bucketIndex(target.hash)
	bucket := h.buckets[idx]
	for i, e := range bucket {
		if e == target {
			h.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			h.count--
			h.maybeShrink()
			return
		}
	}
}

// rename moves the current mapping from oldName to newName. The caller is
// responsible for checking that newName is free.
func (h *nameHash) rename(oldName, newName string, index int) {
	h.delete(oldName)
	h.add(newName, index)
}

// revert evicts every node whose orig == -1 (entries added since open) and
// resets current = orig for every remaining node, reproducing the
// name -> index mapping the archive had immediately after open (property
// P5).
func (h *nameHash) revert() {
	for bi, bucket := range h.buckets {
		out := bucket[:0]
		for _, e := range bucket {
			if e.orig == -1 {
				h.count--
				continue
			}
			e.current = e.orig
			out = append(out, e)
		}
		h.buckets[bi] = out
	}
	h.maybeShrink()
}

// absorbCommit rebuilds the hash from scratch against names (in their
// post-commit index order), reflecting that every entry's orig and current
// index now collapse to the same value, as if the archive had just been
// freshly opened on its newly written content.
func (h *nameHash) absorbCommit(names []string) {
	fresh := newNameHash()
	for i, n := range names {
		fresh.addOriginal(n, i)
	}
	*h = *fresh
}

func (h *nameHash) loadFactor() float64 {
	return float64(h.count) / float64(len(h.buckets))
}

func (h *nameHash) maybeGrow() {
	if h.loadFactor() <= 0.75 || len(h.buckets) >= nameHashMaxSize {
		return
	}
	h.resize(len(h.buckets) * 2)
}

func (h *nameHash) maybeShrink() {
	if len(h.buckets) <= nameHashMinSize || h.loadFactor() >= 0.01 {
		return
	}
	newSize := len(h.buckets) / 2
	if newSize < nameHashMinSize {
		newSize = nameHashMinSize
	}
	h.resize(newSize)
}

func (h *nameHash) resize(newSize int) {
	newBuckets := make([][]*nameHashEntry, newSize)
	mask := newSize - 1
	for _, bucket := range h.buckets {
		for _, e := range bucket {
			idx := int(e.hash) & mask
			newBuckets[idx] = append(newBuckets[idx], e)
		}
	}
	h.buckets = newBuckets
}
