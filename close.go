package zipkit

import (
	"bytes"
	"io"
)

// sourceWriter adapts a Source's write-stream commands to io.Writer, so the
// header/central-directory codecs in eocd.go (which only know about
// io.Writer) can drive the archive's backing Source directly during Commit.
type sourceWriter struct{ src Source }

func (w sourceWriter) Write(p []byte) (int, error) { return w.src.Write(p) }

// Commit writes every change accumulated since Open (or the last Commit) to
// the archive's backing Source, per spec.md section 4.9. It is atomic: the
// new archive is assembled in a fresh write transaction (Source.BeginWrite)
// and only replaces the old content on CommitWrite, so a failure partway
// through (including one injected by a faulty Source, property P7) leaves
// the previously committed archive untouched once RollbackWrite runs.
//
// Entries that are completely untouched (no metadata change, no new data)
// are spliced verbatim from the original archive bytes. Everything else —
// a fresh AddData/ReplaceData source, a renamed/retimed/re-mode'd entry, or
// one whose method/encryption changed — is (re)written: its plaintext is
// read, compressed, and (if requested) encrypted fresh, and a new local
// header/data descriptor is emitted for it.
func (a *Archive) Commit() error {
	if a.discarded {
		return newError(ErrKindClosed)
	}
	if a.flags&FlagRDOnly != 0 {
		return newError(ErrKindReadOnly)
	}
	for _, n := range a.openSources {
		if n > 0 {
			return newError(ErrKindInUse)
		}
	}

	if a.WantTorrentZip {
		a.normalizeTorrentZip()
	}

	live := a.liveEntries()

	if err := a.src.BeginWrite(); err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			a.src.RollbackWrite()
		}
	}()

	w := sourceWriter{a.src}
	offsets := make([]uint64, len(live))
	var pos int64

	for i, e := range live {
		d := e.active()
		offsets[i] = uint64(pos)
		n, err := a.writeEntry(w, e, d)
		if err != nil {
			return err
		}
		pos += n
		if a.Progress != nil {
			a.Progress(i+1, len(live))
		}
		if a.Cancel != nil && a.Cancel() {
			return newError(ErrKindCancelled)
		}
	}

	var cdirBuf bytes.Buffer
	for i, e := range live {
		if _, err := writeCentralHeader(&cdirBuf, e.active(), offsets[i]); err != nil {
			return err
		}
	}
	cdirOffset := uint64(pos)
	cdirSize := uint64(cdirBuf.Len())

	comment := a.resolveComment(cdirBuf.Bytes())

	if _, err := w.Write(cdirBuf.Bytes()); err != nil {
		return wrapError(ErrKindWrite, err)
	}

	needZip64 := uint64(len(live)) >= uint16max || cdirSize >= uint32max || cdirOffset >= uint32max
	for _, e := range live {
		if e.active().isZip64Sizes() {
			needZip64 = true
		}
	}
	if err := writeEOCDSet(w, uint64(len(live)), cdirSize, cdirOffset, comment, needZip64); err != nil {
		return err
	}

	if err := a.src.CommitWrite(); err != nil {
		return err
	}
	committed = true
	for i, e := range live {
		e.active().LocalOffset = offsets[i]
	}
	a.absorbCommit(live, comment)
	return nil
}

// liveEntries returns the archive's non-deleted entries in current order.
func (a *Archive) liveEntries() []*Entry {
	live := make([]*Entry, 0, len(a.entries))
	for _, e := range a.entries {
		if !e.deleted {
			live = append(live, e)
		}
	}
	return live
}

// resolveComment computes the archive-level comment to write: the
// TorrentZip fixed-point comment once the central directory bytes are
// known (spec.md section 4.5), or whatever SetComment last set, or the
// original comment unchanged.
func (a *Archive) resolveComment(cdirBytes []byte) []byte {
	if a.WantTorrentZip {
		return []byte(torrentZipComment(cdirBytes))
	}
	if a.commentChanges != nil {
		return a.commentChanges.raw
	}
	return a.commentOrig.raw
}

// writeEntry emits one live entry's local header, data, and (for a fresh
// write) data descriptor to w, returning the number of bytes written.
func (a *Archive) writeEntry(w io.Writer, e *Entry, d *Dirent) (int64, error) {
	if e.spliceable() {
		return a.spliceEntry(w, e.orig)
	}
	if e.source != nil {
		if err := e.source.Open(); err != nil {
			return 0, err
		}
		defer e.source.Close()
		return a.writeFreshEntry(w, d, e.source)
	}
	// Metadata changed (rename/mtime/mode/method/encryption/TorrentZip
	// normalization) but no new data was supplied: re-read the original
	// plaintext (under its *original* method/encryption, decrypted with
	// the archive's default password, not d's possibly-just-changed one)
	// and recompress/re-encrypt it under d's current settings.
	plain, err := a.openDirentPlaintext(e.orig, a.defaultPassword)
	if err != nil {
		return 0, err
	}
	defer plain.Close()
	return a.writeFreshEntry(w, d, plain)
}

// spliceEntry copies orig's entire on-disk local record (header, data, and
// optional data descriptor) verbatim from the archive's original backing
// bytes, since nothing about the entry changed. This avoids a pointless
// decompress/recompress round trip for the common case of a commit that
// only touches a handful of entries.
func (a *Archive) spliceEntry(w io.Writer, orig *Dirent) (int64, error) {
	a.src.Keep()
	defer a.src.Release()

	dataOff, err := localHeaderDataOffset(a.src, orig)
	if err != nil {
		return 0, err
	}
	recordLen := dataOff + int64(orig.CompressedSize64)
	if orig.Flags&0x8 != 0 {
		if orig.isZip64Sizes() {
			recordLen += 24
		} else {
			recordLen += 16
		}
	}

	window := NewWindowSource(a.src, orig.LocalOffset, recordLen)
	if err := window.Open(); err != nil {
		return 0, err
	}
	defer window.Close()

	cw := &countWriter{w: w}
	if _, err := io.Copy(cw, window); err != nil {
		return cw.count, wrapError(ErrKindWrite, err)
	}
	return cw.count, nil
}

// writeFreshEntry compresses (and, if d.Encryption is set, encrypts)
// plain's content fresh, updates d's CRC32/size fields from the result,
// and emits a new local header + data + data descriptor for it. It always
// uses a data descriptor (flag bit 3) rather than seeking back to patch
// the header, since plain's size isn't known until it has been fully
// consumed — the same streaming-friendly trade-off archive/zip's own
// Writer makes.
func (a *Archive) writeFreshEntry(w io.Writer, d *Dirent, plain io.Reader) (int64, error) {
	codec, ok := a.registry.Lookup(d.Method)
	if !ok {
		return 0, newError(ErrKindUnsupportedMethod)
	}

	cw := &countWriter{w: w}
	if err := writeLocalHeader(cw, d, false, true); err != nil {
		return cw.count, err
	}

	var crc uint32
	var uncompSize, compSize int64
	var err error
	if d.Encryption == EncryptionNone {
		crc, uncompSize, compSize, err = compressStream(codec, d.Level, cw, plain)
		if err != nil {
			return cw.count, err
		}
	} else {
		encCodec, ok := a.encRegistry.Lookup(d.Encryption)
		if !ok {
			return cw.count, newError(ErrKindUnsupportedEncryption)
		}
		var plainCompressed bytes.Buffer
		crc, uncompSize, _, err = compressStream(codec, d.Level, &plainCompressed, plain)
		if err != nil {
			return cw.count, err
		}
		compSize, err = encryptStream(encCodec, d.password, crc, cw, &plainCompressed)
		if err != nil {
			return cw.count, err
		}
	}

	d.CRC32 = crc
	d.UncompressedSize64 = uint64(uncompSize)
	d.CompressedSize64 = uint64(compSize)

	if err := writeDataDescriptor(cw, d, false); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}

// absorbCommit folds the just-written entries back into orig/changes==nil
// state (this is now what's actually on disk) and updates the archive's
// own bookkeeping, per spec.md section 4.9's "Commit also resets dual
// state: what was 'changes' becomes the new 'orig'".
func (a *Archive) absorbCommit(live []*Entry, comment []byte) {
	names := make([]string, len(live))
	for i, e := range live {
		if e.changes != nil {
			e.changes.changed = 0
			e.changes.cloned = false
			e.orig = e.changes
			e.changes = nil
		}
		if e.source != nil {
			e.source.Release()
			e.source = nil
		}
		names[i] = e.orig.Name()
	}
	a.entries = live
	a.commentOrig = newZipStringRaw(comment, a.WantTorrentZip)
	a.commentChanges = nil
	a.IsTorrentZip = a.WantTorrentZip || detectTorrentZip(a, comment)
	a.names.absorbCommit(names)
}
