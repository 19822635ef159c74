package zipkit

import "bytes"

// ExtraScope marks which header(s) an extra field should appear in.
type ExtraScope int

const (
	ExtraLocal ExtraScope = 1 << iota
	ExtraCentral
	ExtraBoth = ExtraLocal | ExtraCentral
)

// Known extra field IDs, from spec.md section 6.
const (
	zip64ExtraID      uint16 = 0x0001
	winZipAESExtraID  uint16 = 0x9901
	utf8NameExtraID   uint16 = 0x7075
	utf8CommentExtraID uint16 = 0x6375
	extTimeExtraID    uint16 = 0x5455
)

// ExtraField is one TLV record attached to a Dirent. The core keeps these
// in an ordered slice rather than the teacher's intrusive linked list (a C
// artifact) but preserves insertion order, which several readers rely on.
type ExtraField struct {
	ID    uint16
	Data  []byte
	Scope ExtraScope
}

func (f ExtraField) size() int { return 4 + len(f.Data) }

// internalExtraIDs lists the IDs the core itself manages and synthesizes on
// write; these are filtered out of the list exposed to API callers so they
// never see (or duplicate) the fields the codec generates.
var internalExtraIDs = map[uint16]bool{
	zip64ExtraID:       true,
	winZipAESExtraID:   true,
	utf8NameExtraID:    true,
	utf8CommentExtraID: true,
}

// extraList is the ordered sequence of ExtraField records for one Dirent.
type extraList struct {
	fields []ExtraField
}

func (l *extraList) clone() extraList {
	out := extraList{fields: make([]ExtraField, len(l.fields))}
	copy(out.fields, l.fields)
	return out
}

// totalSize sums 4+len(Data) for every member whose scope intersects want.
func (l *extraList) totalSize(want ExtraScope) int {
	n := 0
	for _, f := range l.fields {
		if f.Scope&want != 0 {
			n += f.size()
		}
	}
	return n
}

// find returns the occurrence-th field (0-based) with the given id whose
// scope intersects want, or nil.
func (l *extraList) find(id uint16, occurrence int, want ExtraScope) *ExtraField {
	seen := 0
	for i := range l.fields {
		f := &l.fields[i]
		if f.ID != id || f.Scope&want == 0 {
			continue
		}
		if seen == occurrence {
			return f
		}
		seen++
	}
	return nil
}

func (l *extraList) count(id uint16, want ExtraScope) int {
	n := 0
	for _, f := range l.fields {
		if f.ID == id && f.Scope&want != 0 {
			n++
		}
	}
	return n
}

func (l *extraList) add(f ExtraField) {
	l.fields = append(l.fields, f)
}

// deleteByID removes the occurrence-th field with the given id whose scope
// intersects scope; occurrence -1 removes all matching occurrences.
func (l *extraList) deleteByID(id uint16, occurrence int, scope ExtraScope) {
	out := l.fields[:0]
	seen := 0
	for _, f := range l.fields {
		match := f.ID == id && f.Scope&scope != 0
		if match {
			if occurrence == -1 || seen == occurrence {
				seen++
				continue
			}
			seen++
		}
		out = append(out, f)
	}
	l.fields = out
}

// removeInternal filters out the IDs the core manages itself, producing the
// list as exposed through the public extra-field API.
func (l *extraList) removeInternal() extraList {
	out := extraList{}
	for _, f := range l.fields {
		if internalExtraIDs[f.ID] {
			continue
		}
		out.add(f)
	}
	return out
}

// merge appends elements of other into l, skipping any element whose
// (id, size, bytes) triple is already present in l; when a duplicate is
// found its scope flags are OR-combined into the existing element instead.
// merge(l, clone(l)) is idempotent (property P4): running it against a
// clone of itself changes nothing because every element is already an
// exact-duplicate match.
func (l *extraList) merge(other extraList) {
	for _, f := range other.fields {
		if idx := l.indexOfExact(f); idx >= 0 {
			l.fields[idx].Scope |= f.Scope
			continue
		}
		l.add(f)
	}
}

// indexOfExact returns the index of an existing field with the same
// (id, size, bytes) triple as f, ignoring scope (duplicates are detected by
// content; merge then OR-combines the scope flags).
func (l *extraList) indexOfExact(f ExtraField) int {
	for i, existing := range l.fields {
		if existing.ID == f.ID && len(existing.Data) == len(f.Data) && bytes.Equal(existing.Data, f.Data) {
			return i
		}
	}
	return -1
}

// encode serializes every member whose scope intersects want, in order.
func (l *extraList) encode(want ExtraScope) []byte {
	size := l.totalSize(want)
	buf := make([]byte, size)
	b := writeBuf(buf)
	for _, f := range l.fields {
		if f.Scope&want == 0 {
			continue
		}
		b.uint16(f.ID)
		b.uint16(uint16(len(f.Data)))
		copy(b, f.Data)
		b = b[len(f.Data):]
	}
	return buf
}

// parseExtraFields parses a raw extra-field blob (as found in a local or
// central header) into an extraList, tagging every parsed field with the
// scope it was read from. A truncated trailing record (fewer than 4 bytes,
// or a declared size longer than what remains) stops parsing at that point
// rather than failing the whole parse, matching how real-world archives
// sometimes carry slightly malformed trailing padding.
func parseExtraFields(raw []byte, scope ExtraScope) extraList {
	var out extraList
	pos := 0
	for pos+4 <= len(raw) {
		id := leUint16(raw[pos:])
		size := int(leUint16(raw[pos+2:]))
		pos += 4
		if pos+size > len(raw) {
			break
		}
		data := make([]byte, size)
		copy(data, raw[pos:pos+size])
		pos += size
		out.add(ExtraField{ID: id, Data: data, Scope: scope})
	}
	return out
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
