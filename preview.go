package zipkit

import (
	"bytes"
	"io"
)

// Preview assembles the archive content Commit would write, as a single
// seekable io.ReadSeeker, without touching the backing Source's write
// transaction. It is meant for callers that want to hash, diff, or stream
// the staged result (e.g. to a temporary location for inspection) before
// committing for real — spec.md section 4.9's "changes are only visible
// to readers of the archive's own OpenEntry/Stat until Commit" implies the
// staged bytes themselves aren't otherwise observable as one stream.
//
// Spliced (untouched) entries are read lazily, straight from the original
// backing Source, exactly as Commit's spliceEntry would copy them. Entries
// that need fresh compression/encryption are fully rendered into memory
// up front, since their final size isn't known until they're produced.
// The central directory and EOCD are rendered the same way. A
// multiReadSeeker stitches all of these parts into one logical stream.
func (a *Archive) Preview() (io.ReadSeeker, error) {
	if a.discarded {
		return nil, newError(ErrKindClosed)
	}

	wantTorrentZip := a.WantTorrentZip
	if wantTorrentZip {
		a.normalizeTorrentZip()
	}
	live := a.liveEntries()

	var builder multiReadSeekerBuilder
	offsets := make([]uint64, len(live))
	var pos int64

	for i, e := range live {
		d := e.active()
		offsets[i] = uint64(pos)

		if e.spliceable() {
			dataOff, err := localHeaderDataOffset(a.src, e.orig)
			if err != nil {
				return nil, err
			}
			recordLen := dataOff + int64(e.orig.CompressedSize64)
			if e.orig.Flags&0x8 != 0 {
				if e.orig.isZip64Sizes() {
					recordLen += 24
				} else {
					recordLen += 16
				}
			}
			a.src.Keep()
			window := NewWindowSource(a.src, e.orig.LocalOffset, recordLen)
			if err := window.Open(); err != nil {
				a.src.Release()
				return nil, err
			}
			builder.add(window, recordLen)
			pos += recordLen
			continue
		}

		var buf bytes.Buffer
		var plain io.Reader
		if e.source != nil {
			if err := e.source.Open(); err != nil {
				return nil, err
			}
			defer e.source.Close()
			plain = e.source
		} else {
			stage, err := a.openDirentPlaintext(e.orig, a.defaultPassword)
			if err != nil {
				return nil, err
			}
			defer stage.Close()
			plain = stage
		}
		n, err := a.writeFreshEntry(&buf, d, plain)
		if err != nil {
			return nil, err
		}
		builder.add(bytes.NewReader(buf.Bytes()), n)
		pos += n
	}

	var cdirBuf bytes.Buffer
	for i, e := range live {
		if _, err := writeCentralHeader(&cdirBuf, e.active(), offsets[i]); err != nil {
			return nil, err
		}
	}
	cdirOffset := uint64(pos)
	cdirSize := uint64(cdirBuf.Len())
	builder.add(bytes.NewReader(cdirBuf.Bytes()), int64(cdirBuf.Len()))

	comment := a.resolveComment(cdirBuf.Bytes())
	var eocdBuf bytes.Buffer
	needZip64 := uint64(len(live)) >= uint16max || cdirSize >= uint32max || cdirOffset >= uint32max
	for _, e := range live {
		if e.active().isZip64Sizes() {
			needZip64 = true
		}
	}
	if err := writeEOCDSet(&eocdBuf, uint64(len(live)), cdirSize, cdirOffset, comment, needZip64); err != nil {
		return nil, err
	}
	builder.add(bytes.NewReader(eocdBuf.Bytes()), int64(eocdBuf.Len()))

	return builder.build(), nil
}
