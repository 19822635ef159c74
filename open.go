package zipkit

import (
	"io"
)

// sourceReaderAt adapts a Source (Read+Seek) to the io.ReaderAt-shaped
// readSeekerAt eocd.go needs, valid only because archive opening is
// single-threaded per spec.md section 5: every ReadAt repositions the
// shared Source before reading.
type sourceReaderAt struct{ src Source }

func (s sourceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.src.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.src, p)
}

const eocdTailMax = 22 + 65535 + 20 // EOCD + max comment + EOCD64 locator

// Open opens an existing archive on src, or creates a new empty one if
// OpenFlagCreate is set and src reports no existing data (spec.md section
// 4.8). The archive takes ownership of src: Discard releases it.
func Open(src Source, flags OpenFlags, defaultPassword string) (*Archive, error) {
	a := &Archive{
		src:             src,
		openFlags:       flags,
		defaultPassword: defaultPassword,
		names:           newNameHash(),
		openSources:     make(map[int]int),
		registry:        DefaultRegistry(),
		encRegistry:     DefaultEncryptionRegistry(),
	}
	if src.Supports()&SupportsWrite == 0 {
		a.flags |= FlagRDOnly
	}

	if err := src.Open(); err != nil {
		return nil, err
	}

	st, err := src.Stat()
	if err != nil {
		src.Close()
		return nil, err
	}
	if st.Size == 0 {
		if flags&OpenFlagCreate == 0 {
			src.Close()
			return nil, newError(ErrKindNotZip)
		}
		a.logf("zipkit: creating new empty archive")
		return a, nil
	}

	if err := a.readDirectory(src, st.Size); err != nil {
		src.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) readDirectory(src Source, size uint64) error {
	tailSize := int64(size)
	if tailSize > eocdTailMax {
		tailSize = eocdTailMax
	}
	tailStart := int64(size) - tailSize
	tail := make([]byte, tailSize)
	if _, err := src.Seek(tailStart, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(src, tail); err != nil {
		return wrapError(ErrKindPrematureEOF, err)
	}

	preferConsistent := true // spec.md section 9 open question a: default to "closest consistent match"
	rec, eocdPos, err := findEOCD(tail, tailStart, preferConsistent)
	if err != nil {
		return err
	}

	ra := sourceReaderAt{src: src}
	if rec64, err := findEOCD64(ra, eocdPos); err == nil && rec64 != nil {
		rec = rec64
	} else if err != nil {
		return err
	}

	if rec.offset+rec.size > size {
		return newError(ErrKindInconsistent)
	}

	if _, err := src.Seek(int64(rec.offset), io.SeekStart); err != nil {
		return err
	}
	limited := io.LimitReader(src, int64(rec.size))

	// Read every record the declared central-directory size actually
	// contains, rather than stopping at declaredCount: a 32-bit total
	// entry count that wrapped around 65536 (the InfoZip tolerance,
	// SPEC_FULL.md section 10 item 2) still has every record physically
	// present, so byte-size is the authoritative bound.
	declaredCount := rec.totalEntries
	var dirents []*Dirent
	for {
		d, err := readCentralHeader(limited)
		if err != nil {
			if wrapped, ok := err.(*Error); ok && wrapped.Err == io.EOF {
				break
			}
			return err
		}
		dirents = append(dirents, d)
	}

	actual := uint64(len(dirents))
	countMatches := actual == declaredCount
	wrappedMatches := !rec.isZip64 && actual > uint16max && actual%(uint16max+1) == declaredCount
	if a.openFlags&OpenFlagStrictEntryCount != 0 {
		if !countMatches {
			return newError(ErrKindInconsistent)
		}
	} else if !countMatches && !wrappedMatches {
		return newError(ErrKindInconsistent)
	}

	for i, d := range dirents {
		a.entries = append(a.entries, &Entry{orig: d})
		a.names.addOriginal(d.Name(), i)
	}

	if a.openFlags&OpenFlagCheckConsistency != 0 {
		if err := a.checkConsistency(src); err != nil {
			return err
		}
	}

	a.commentOrig = newZipStringRaw(rec.comment, false)
	a.IsTorrentZip = detectTorrentZip(a, rec.comment)
	return nil
}

// checkConsistency re-parses every local header and compares its signature,
// compression method and, when no data descriptor is used and the local
// CRC is non-zero, its CRC32 against the central directory entry; other
// fields are not compared (spec.md section 4.8 step 5; supplemented
// feature, SPEC_FULL.md section 10 item 1).
func (a *Archive) checkConsistency(src Source) error {
	for i, e := range a.entries {
		d := e.orig
		if _, err := src.Seek(int64(d.LocalOffset), io.SeekStart); err != nil {
			return err
		}
		var fixed [fileHeaderLen]byte
		if _, err := io.ReadFull(src, fixed[:]); err != nil {
			return entryError(ErrKindPrematureEOF, i, err)
		}
		if leUint32(fixed[0:4]) != fileHeaderSignature {
			return entryError(ErrKindInconsistent, i, nil)
		}
		localMethod := leUint16(fixed[8:10])
		localCRC := leUint32(fixed[14:18])
		if localMethod != d.Method {
			return entryError(ErrKindInconsistent, i, nil)
		}
		if d.Flags&0x8 == 0 && localCRC != 0 && localCRC != d.CRC32 {
			return entryError(ErrKindInconsistent, i, nil)
		}
	}
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
