package zipkit

import "time"

// OpenFlags controls how Open interprets and validates an existing
// archive, per spec.md section 4.8.
type OpenFlags uint32

const (
	// OpenFlagCreate creates a new, empty archive if src reports no
	// existing data (spec.md section 4.8 step 1).
	OpenFlagCreate OpenFlags = 1 << iota

	// OpenFlagCheckConsistency re-parses every local header during Open and
	// compares its compression method and (for entries without a data
	// descriptor) its CRC32 with the central directory, failing with
	// ErrKindInconsistent on the first mismatch. Version needed, times,
	// names and sizes are not compared (spec.md section 4.8 step 5;
	// supplemented feature, see SPEC_FULL.md section 10).
	OpenFlagCheckConsistency

	// OpenFlagStrictEntryCount disables tolerance for the InfoZip
	// 64k-entry-count wraparound (spec.md section 9, open question b;
	// supplemented feature). By default a central directory whose
	// declared entry count undercounts by a multiple of 65536 is still
	// accepted as long as the records actually parsed match; this flag
	// makes that case a hard ErrKindInconsistent instead.
	OpenFlagStrictEntryCount
)

// ArchiveFlags mirrors spec.md's archive-level flags bitmask (distinct
// from OpenFlags, which only controls how Open behaves).
type ArchiveFlags uint32

const (
	// FlagRDOnly marks the archive read-only: every mutating operation
	// fails with ErrKindReadOnly.
	FlagRDOnly ArchiveFlags = 1 << iota
)

// Entry is one archive member's dual (orig, changes) state, per spec.md
// section 3: orig is nil for an entry added since open; changes is nil
// until the entry's metadata is modified; deleted marks an entry removed
// since open (but still tracked so Revert can restore it).
type Entry struct {
	orig    *Dirent
	changes *Dirent
	deleted bool

	// source, if non-nil, is where Commit reads this entry's new data
	// from (set by AddData/ReplaceData); nil means "keep the original
	// on-disk bytes", a pure metadata edit or an untouched entry.
	source Source
}

// spliceable reports whether e's on-disk bytes can be copied verbatim into
// the committed archive (no metadata or data change at all), versus needing
// to be (re)compressed/(re)encrypted, per spec.md section 4.9.
func (e *Entry) spliceable() bool {
	return e.orig != nil && e.source == nil && e.changes == nil
}

// active returns the Dirent that reflects this entry's current state:
// changes if set, otherwise orig.
func (e *Entry) active() *Dirent {
	if e.changes != nil {
		return e.changes
	}
	return e.orig
}

// ensureChanges returns e.changes, lazily cloning it from orig on first
// mutation (copy-on-write, per spec.md section 3).
func (e *Entry) ensureChanges() *Dirent {
	if e.changes == nil {
		e.changes = e.active().cloneForChange()
	}
	return e.changes
}

// Archive is the in-memory state machine over one ZIP archive's
// directory, per spec.md section 3/4.8-4.10. It owns a backing Source
// (the whole archive file), a dual-state entry list, and a name index
// kept in sync with that list.
type Archive struct {
	src       Source
	openFlags OpenFlags
	flags     ArchiveFlags

	defaultPassword string

	commentOrig    zipString
	commentChanges *zipString

	entries []*Entry
	names   *nameHash

	// openSources tracks entries currently open for reading (entry index
	// -> refcount), checked by mutation operations that must fail with
	// ErrKindInUse per spec.md section 4.2's "no modification of entries
	// currently open for reading".
	openSources map[int]int

	registry    *Registry
	encRegistry *EncryptionRegistry

	// WantTorrentZip requests TorrentZip normalization on Commit (spec.md
	// section 4.5; SPEC_FULL.md section 10 item 3).
	WantTorrentZip bool

	// IsTorrentZip reports whether the archive, as last opened or
	// committed, satisfied the TorrentZip fixed point.
	IsTorrentZip bool

	// Logf, if non-nil, receives diagnostic tracing during Open/Commit.
	// The library logs nothing by default (SPEC_FULL.md section 6).
	Logf func(format string, args ...interface{})

	// Progress, if non-nil, is invoked during Commit after each entry is
	// processed, with done/total entry counts (spec.md section 4.9's
	// progress-callback checkpoint).
	Progress func(done, total int)

	// Cancel, if non-nil, is polled by Commit between entries; once it
	// returns true, Commit stops writing further entries and fails with
	// ErrKindCancelled, rolling back the in-progress write transaction.
	Cancel func() bool

	discarded bool
	lastErr   *Error
}

func (a *Archive) logf(format string, args ...interface{}) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

// NumEntries returns the number of live (non-deleted) entries.
func (a *Archive) NumEntries() int {
	n := 0
	for _, e := range a.entries {
		if !e.deleted {
			n++
		}
	}
	return n
}

// entryAt returns the entry at the given index. Per spec.md section 3's
// (orig_index, current_index) model, index is a stable slot in a.entries
// that never shifts as other entries are deleted or appended — it is
// exactly the index the name hash's "current" field tracks. A deleted
// entry's slot is kept (so Revert can restore it) but is not addressable
// through entryAt until the delete itself is reverted.
func (a *Archive) entryAt(index int) *Entry {
	if index < 0 || index >= len(a.entries) {
		return nil
	}
	e := a.entries[index]
	if e.deleted {
		return nil
	}
	return e
}

// Name returns the name of the entry in slot index (see entryAt), or "" if
// index is out of range or its entry is deleted.
func (a *Archive) Name(index int) string {
	e := a.entryAt(index)
	if e == nil {
		return ""
	}
	return e.active().Name()
}

// Locate returns the current index of the entry named name, or (-1,
// false).
func (a *Archive) Locate(name string) (int, bool) {
	return a.names.lookup(name, false)
}

// Stat returns size/CRC/method information for the index-th entry,
// following its changes Dirent if set.
func (a *Archive) Stat(index int) (SourceStat, error) {
	e := a.entryAt(index)
	if e == nil {
		return SourceStat{}, newError(ErrKindInvalidArgument)
	}
	d := e.active()
	return SourceStat{
		Valid:            StatSize | StatCompSize | StatModified | StatCRC32 | StatCompMethod | StatEncryptionMethod,
		Size:             d.UncompressedSize64,
		CompSize:         d.CompressedSize64,
		Modified:         d.Modified,
		CRC32:            d.CRC32,
		CompMethod:       d.Method,
		EncryptionMethod: d.Encryption,
	}, nil
}

// Comment returns the archive-level comment.
func (a *Archive) Comment() string {
	if a.commentChanges != nil {
		return a.commentChanges.String()
	}
	return a.commentOrig.String()
}

// SetComment replaces the archive-level comment.
func (a *Archive) SetComment(comment string) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	s := newZipStringUTF8(comment, false)
	a.commentChanges = &s
	return nil
}

// Delete marks the index-th entry deleted and removes it from the name
// index (spec.md section 4.9: a deleted entry with orig != nil is kept
// around, current = -1, so Revert can restore it).
func (a *Archive) Delete(index int) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	if a.openSources[index] > 0 {
		return newError(ErrKindInUse)
	}
	a.names.delete(e.active().Name())
	e.deleted = true
	return nil
}

// Rename changes the index-th entry's name. Fails with
// ErrKindInvalidArgument if newName is already in use by a live entry,
// including this entry itself.
func (a *Archive) Rename(index int, newName string) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	if _, ok := a.names.lookup(newName, false); ok {
		return newError(ErrKindInvalidArgument)
	}
	oldName := e.active().Name()
	d := e.ensureChanges()
	d.name = newZipStringUTF8(newName, false)
	d.changed |= changedName
	a.names.rename(oldName, newName, index)
	return nil
}

// SetMtime changes the index-th entry's modification time.
func (a *Archive) SetMtime(index int, t time.Time) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	d := e.ensureChanges()
	d.Modified = t
	d.changed |= changedModified
	return nil
}

// SetMethod changes the compression method and level the index-th entry
// is (re-)written with on Commit.
func (a *Archive) SetMethod(index int, method uint16, level int) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	d := e.ensureChanges()
	d.Method = method
	d.Level = level
	d.changed |= changedMethod | changedLevel
	return nil
}

// SetEncryption changes the encryption method and password the index-th
// entry is (re-)written with on Commit.
func (a *Archive) SetEncryption(index int, method EncryptionMethod, password string) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	d := e.ensureChanges()
	d.Encryption = method
	d.password = password
	d.changed |= changedEncryption | changedPassword
	return nil
}

// AddData adds a new entry named name with content read from src, which
// the archive keeps (and releases on Discard/Revert). Fails with
// ErrKindInvalidArgument if name is already in use.
func (a *Archive) AddData(name string, src Source) (int, error) {
	if a.flags&FlagRDOnly != 0 {
		return -1, newError(ErrKindReadOnly)
	}
	if _, ok := a.names.lookup(name, false); ok {
		return -1, newError(ErrKindInvalidArgument)
	}
	d := &Dirent{Modified: time.Now(), Method: Deflate, Level: 6}
	d.name = newZipStringUTF8(name, false)
	src.Keep()
	e := &Entry{changes: d, source: src}
	a.entries = append(a.entries, e)
	index := len(a.entries) - 1
	a.names.add(name, index)
	return index, nil
}

// ReplaceData replaces the index-th entry's content with src, keeping its
// existing metadata unless separately changed.
func (a *Archive) ReplaceData(index int, src Source) error {
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	e := a.entryAt(index)
	if e == nil {
		return newError(ErrKindInvalidArgument)
	}
	if a.openSources[index] > 0 {
		return newError(ErrKindInUse)
	}
	src.Keep()
	if e.source != nil {
		e.source.Release()
	}
	e.source = src
	return nil
}

// Revert discards every uncommitted change: deleted entries are
// restored, added entries are dropped, renamed/modified entries revert
// to their orig Dirent (spec.md property P5).
func (a *Archive) Revert() {
	var kept []*Entry
	for _, e := range a.entries {
		if e.orig == nil {
			if e.source != nil {
				e.source.Release()
			}
			continue // added since open: drop entirely
		}
		e.changes = nil
		e.deleted = false
		if e.source != nil {
			e.source.Release()
			e.source = nil
		}
		kept = append(kept, e)
	}
	a.entries = kept
	a.commentChanges = nil
	a.names.revert()
}

// Discard releases the archive's backing source and every per-entry
// source it holds, and invalidates them: each one's next Open fails with
// ErrKindClosed (spec.md section 3). Reads on a source that is already
// open are not checked.
func (a *Archive) Discard() {
	if a.discarded {
		return
	}
	a.discarded = true
	for _, e := range a.entries {
		if e.source != nil {
			e.source.invalidate()
			e.source.Release()
		}
	}
	if a.src != nil {
		a.src.invalidate()
		a.src.Release()
	}
}
