package zipkit

import (
	"bytes"
	"encoding/binary"
	"io"
)

// parsedDirent is the result of decoding one central directory record: the
// Dirent plus the fields the codec needs but that don't belong on the
// public Dirent (raw name/comment bytes are folded into d.name/d.comment
// during parse).
type parsedDirent struct {
	dirent *Dirent
}

// readCentralHeader decodes one central directory record starting at the
// current position of r (a seekable reader positioned at a 'PK\1\2'
// signature) per spec.md section 4.5's central entry layout.
func readCentralHeader(r io.Reader) (*Dirent, error) {
	var fixed [directoryHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, wrapError(ErrKindPrematureEOF, err)
	}
	if binary.LittleEndian.Uint32(fixed[0:4]) != directoryHeaderSignature {
		return nil, newError(ErrKindNotZip)
	}
	d := &Dirent{}
	d.CreatorVersion = binary.LittleEndian.Uint16(fixed[4:6])
	d.ReaderVersion = binary.LittleEndian.Uint16(fixed[6:8])
	d.Flags = binary.LittleEndian.Uint16(fixed[8:10])
	d.Method = binary.LittleEndian.Uint16(fixed[10:12])
	modTime := binary.LittleEndian.Uint16(fixed[12:14])
	modDate := binary.LittleEndian.Uint16(fixed[14:16])
	d.Modified = msDosTimeToTime(modDate, modTime)
	d.CRC32 = binary.LittleEndian.Uint32(fixed[16:20])
	compSize := uint64(binary.LittleEndian.Uint32(fixed[20:24]))
	uncompSize := uint64(binary.LittleEndian.Uint32(fixed[24:28]))
	nameLen := int(binary.LittleEndian.Uint16(fixed[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(fixed[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(fixed[32:34]))
	disk := uint32(binary.LittleEndian.Uint16(fixed[34:36]))
	d.InternalAttrs = binary.LittleEndian.Uint16(fixed[36:38])
	d.ExternalAttrs = binary.LittleEndian.Uint32(fixed[38:42])
	offset := uint64(binary.LittleEndian.Uint32(fixed[42:46]))

	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, wrapError(ErrKindPrematureEOF, err)
	}
	extraBuf := make([]byte, extraLen)
	if _, err := io.ReadFull(r, extraBuf); err != nil {
		return nil, wrapError(ErrKindPrematureEOF, err)
	}
	commentBuf := make([]byte, commentLen)
	if _, err := io.ReadFull(r, commentBuf); err != nil {
		return nil, wrapError(ErrKindPrematureEOF, err)
	}

	utf8Flag := d.Flags&0x800 != 0
	d.name = newZipStringRaw(nameBuf, utf8Flag)
	d.comment = newZipStringRaw(commentBuf, utf8Flag)
	d.extra = parseExtraFields(extraBuf, ExtraCentral)
	d.DiskNumber = disk
	d.CompressedSize64 = compSize
	d.UncompressedSize64 = uncompSize
	d.LocalOffset = offset

	overlayZip64(d, &d.extra, compSize == uint32max, uncompSize == uint32max, offset == uint32max, disk == 0xffff)
	detectWinZipAES(d)
	processUnicodeExtras(d)

	return d, nil
}

// overlayZip64 replaces sentinel (0xFFFFFFFF/0xFFFF) standard fields with
// the values from the ZIP64 extra field, consuming exactly the fields that
// were overflowing, in the fixed order (uncompressed, compressed, offset,
// disk) specified by spec.md section 4.5.
func overlayZip64(d *Dirent, extra *extraList, compOverflow, uncompOverflow, offsetOverflow, diskOverflow bool) {
	if !compOverflow && !uncompOverflow && !offsetOverflow && !diskOverflow {
		return
	}
	f := extra.find(zip64ExtraID, 0, ExtraCentral|ExtraLocal)
	if f == nil {
		return
	}
	b := wrapByteBuffer(f.Data)
	if uncompOverflow {
		d.UncompressedSize64 = b.getUint64()
	}
	if compOverflow {
		d.CompressedSize64 = b.getUint64()
	}
	if offsetOverflow {
		d.LocalOffset = b.getUint64()
	}
	if diskOverflow {
		d.DiskNumber = b.getUint32()
	}
}

// detectWinZipAES promotes Encryption/Method when the WinZip-AES extra
// field (0x9901) marker is present, per spec.md section 4.5.
func detectWinZipAES(d *Dirent) {
	f := d.extra.find(winZipAESExtraID, 0, ExtraCentral|ExtraLocal)
	if f == nil || len(f.Data) < 7 {
		return
	}
	b := wrapByteBuffer(f.Data)
	b.getUint16() // vendor version
	b.getUint16() // vendor ID "AE"
	strength := b.getUint8()
	realMethod := b.getUint16()
	switch strength {
	case 1:
		d.Encryption = EncryptionWinZipAES128
	case 2:
		d.Encryption = EncryptionWinZipAES192
	case 3:
		d.Encryption = EncryptionWinZipAES256
	}
	d.Method = realMethod
}

// processUnicodeExtras applies the UTF-8 Name/Comment extras (0x7075,
// 0x6375), replacing the raw name/comment when their CRC32 matches the
// already-decoded bytes, per spec.md section 4.5.
func processUnicodeExtras(d *Dirent) {
	if f := d.extra.find(utf8NameExtraID, 0, ExtraBoth); f != nil {
		if s, ok := decodeUnicodeExtra(f.Data, d.name.raw); ok {
			d.name = newZipStringUTF8(s, true)
		}
	}
	if f := d.extra.find(utf8CommentExtraID, 0, ExtraBoth); f != nil {
		if s, ok := decodeUnicodeExtra(f.Data, d.comment.raw); ok {
			d.comment = newZipStringUTF8(s, true)
		}
	}
}

func decodeUnicodeExtra(data []byte, rawOriginal []byte) (string, bool) {
	if len(data) < 5 {
		return "", false
	}
	version := data[0]
	if version != 1 {
		return "", false
	}
	storedCRC := binary.LittleEndian.Uint32(data[1:5])
	if crc32IEEE(rawOriginal) != storedCRC {
		return "", false
	}
	return string(data[5:]), true
}

// writeLocalHeader emits the local file header for d (magic through
// filename+extra, no comment), per spec.md section 4.5's write algorithm.
// It does not write a data descriptor; the caller emits that separately
// once the entry's actual CRC/sizes are known.
func writeLocalHeader(w io.Writer, d *Dirent, forceZip64 bool, usesDataDescriptor bool) error {
	prepareDirentForWrite(d, forceZip64, usesDataDescriptor)

	extra := d.extra.clone()
	localSizesOverflow := forceZip64 || d.isZip64Sizes()
	if localSizesOverflow {
		var buf [16]byte
		b := writeBuf(buf[:])
		b.uint64(d.UncompressedSize64)
		b.uint64(d.CompressedSize64)
		extra.add(ExtraField{ID: zip64ExtraID, Data: buf[:], Scope: ExtraLocal})
	}
	addWinZipAESExtra(&extra, d, ExtraLocal)

	nameBytes := d.name.raw
	if len(nameBytes) > uint16max {
		return errLongName
	}
	extraBytes := extra.encode(ExtraLocal)
	if len(extraBytes) > uint16max {
		return errLongExtra
	}

	modDate, modTime := timeToMsDosTime(d.Modified)

	var fixed [fileHeaderLen]byte
	b := writeBuf(fixed[:])
	b.uint32(fileHeaderSignature)
	b.uint16(d.versionNeeded(forceZip64))
	b.uint16(d.Flags)
	b.uint16(d.Method)
	b.uint16(modTime)
	b.uint16(modDate)
	if usesDataDescriptor {
		b.uint32(0)
		b.uint32(0)
		b.uint32(0)
	} else {
		b.uint32(d.CRC32)
		if localSizesOverflow {
			b.uint32(uint32max)
			b.uint32(uint32max)
		} else {
			b.uint32(uint32(d.CompressedSize64))
			b.uint32(uint32(d.UncompressedSize64))
		}
	}
	b.uint16(uint16(len(nameBytes)))
	b.uint16(uint16(len(extraBytes)))

	if _, err := w.Write(fixed[:]); err != nil {
		return wrapError(ErrKindWrite, err)
	}
	if _, err := w.Write(nameBytes); err != nil {
		return wrapError(ErrKindWrite, err)
	}
	if _, err := w.Write(extraBytes); err != nil {
		return wrapError(ErrKindWrite, err)
	}
	return nil
}

// addWinZipAESExtra prepends a WinZip-AES extra field (0x9901) for AES
// methods, per spec.md section 4.5.
func addWinZipAESExtra(extra *extraList, d *Dirent, scope ExtraScope) {
	strength := byte(0)
	switch d.Encryption {
	case EncryptionWinZipAES128:
		strength = 1
	case EncryptionWinZipAES192:
		strength = 2
	case EncryptionWinZipAES256:
		strength = 3
	default:
		return
	}
	var buf [7]byte
	b := writeBuf(buf[:])
	b.uint16(2) // vendor version AE-2
	b.uint8('A')
	b.uint8('E')
	b.uint8(strength)
	b.uint16(d.Method)
	extra.add(ExtraField{ID: winZipAESExtraID, Data: buf[:], Scope: scope})
}

// prepareDirentForWrite fills in the UTF-8 flag, encryption flag, creator
// version (version made by), and data-descriptor flag (bit 3, APPNOTE 4.4.4), generalizing the
// teacher's prepareEntry from writer.go (which assumed a brand-new entry) to
// also tolerate an entry that already carries these fields from a previous
// read. usesDataDescriptor must match what the caller is about to write (or
// splice): a local header with zeroed CRC/sizes must advertise bit 3, and one
// carrying real CRC/sizes must not.
func prepareDirentForWrite(d *Dirent, forceZip64 bool, usesDataDescriptor bool) {
	if d.name.requiresUTF8Flag() || d.comment.requiresUTF8Flag() {
		d.Flags |= 0x800
	}
	d.CreatorVersion = d.CreatorVersion&0xff00 | zipVersion20
	if d.Encryption != EncryptionNone {
		d.Flags |= 0x1
	} else {
		d.Flags &^= 0x1
	}
	if usesDataDescriptor {
		d.Flags |= 0x8
	} else {
		d.Flags &^= 0x8
	}
}

// writeDataDescriptor emits the optional data descriptor (spec.md section
// 6), 8-byte sizes when zip64.
func writeDataDescriptor(w io.Writer, d *Dirent, forceZip64 bool) error {
	zip64 := forceZip64 || d.isZip64Sizes()
	size := 16
	if zip64 {
		size = 24
	}
	buf := make([]byte, size)
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(d.CRC32)
	if zip64 {
		b.uint64(d.CompressedSize64)
		b.uint64(d.UncompressedSize64)
	} else {
		b.uint32(uint32(d.CompressedSize64))
		b.uint32(uint32(d.UncompressedSize64))
	}
	_, err := w.Write(buf)
	if err != nil {
		return wrapError(ErrKindWrite, err)
	}
	return nil
}

// writeCentralHeader emits one central directory record for d at the given
// local-header offset, returning the number of bytes written.
func writeCentralHeader(w io.Writer, d *Dirent, offset uint64) (int64, error) {
	extra := d.extra.clone()
	needZip64 := d.isZip64Sizes() || offset >= uint32max
	if needZip64 {
		var buf [24]byte
		b := writeBuf(buf[:])
		b.uint64(d.UncompressedSize64)
		b.uint64(d.CompressedSize64)
		b.uint64(offset)
		extra.add(ExtraField{ID: zip64ExtraID, Data: buf[:], Scope: ExtraCentral})
	}
	addWinZipAESExtra(&extra, d, ExtraCentral)

	nameBytes := d.name.raw
	commentBytes := d.comment.raw
	if len(nameBytes) > uint16max {
		return 0, errLongName
	}
	extraBytes := extra.encode(ExtraCentral)
	if len(extraBytes) > uint16max {
		return 0, errLongExtra
	}

	modDate, modTime := timeToMsDosTime(d.Modified)

	var fixed [directoryHeaderLen]byte
	b := writeBuf(fixed[:])
	b.uint32(directoryHeaderSignature)
	b.uint16(d.CreatorVersion)
	b.uint16(d.versionNeeded(needZip64))
	b.uint16(d.Flags)
	b.uint16(d.Method)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(d.CRC32)
	if needZip64 {
		b.uint32(uint32max)
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(d.CompressedSize64))
		b.uint32(uint32(d.UncompressedSize64))
	}
	b.uint16(uint16(len(nameBytes)))
	b.uint16(uint16(len(extraBytes)))
	b.uint16(uint16(len(commentBytes)))
	b.uint16(0) // disk number start (multi-disk unsupported)
	b.uint16(d.InternalAttrs)
	b.uint32(d.ExternalAttrs)
	if offset >= uint32max {
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(offset))
	}

	cw := &countWriter{w: w}
	if _, err := cw.Write(fixed[:]); err != nil {
		return cw.count, wrapError(ErrKindWrite, err)
	}
	if _, err := cw.Write(nameBytes); err != nil {
		return cw.count, wrapError(ErrKindWrite, err)
	}
	if _, err := cw.Write(extraBytes); err != nil {
		return cw.count, wrapError(ErrKindWrite, err)
	}
	if _, err := cw.Write(commentBytes); err != nil {
		return cw.count, wrapError(ErrKindWrite, err)
	}
	return cw.count, nil
}

// eocdRecord is the decoded (32-bit or zip64-overlaid) end-of-central-
// directory information used to locate and size the central directory.
type eocdRecord struct {
	diskEntries   uint64
	totalEntries  uint64
	size          uint64
	offset        uint64
	comment       []byte
	isZip64       bool
}

// findEOCD scans tail (the last min(size, 64k+22+20) bytes of the archive)
// for the EOCD signature, per spec.md section 4.8 step 2. preferConsistent
// selects between "closest-to-end-that-also-parses-consistently" and
// "first match scanning from the front" when multiple candidates exist
// (spec.md section 9, open question a).
func findEOCD(tail []byte, tailStart int64, preferConsistent bool) (*eocdRecord, int64, error) {
	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], directoryEndSignature)

	type candidate struct {
		pos int
		rec *eocdRecord
	}
	var candidates []candidate

	for i := 0; i+directoryEndLen <= len(tail); i++ {
		if !bytes.Equal(tail[i:i+4], sig[:]) {
			continue
		}
		rec, ok := parseEOCDAt(tail, i)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{pos: i, rec: rec})
		if !preferConsistent {
			break
		}
	}
	if len(candidates) == 0 {
		return nil, 0, newError(ErrKindNotZip)
	}

	chosen := candidates[len(candidates)-1]
	if preferConsistent {
		for i := len(candidates) - 1; i >= 0; i-- {
			c := candidates[i]
			if eocdLooksConsistent(c.rec, tailStart+int64(c.pos)) {
				chosen = c
				break
			}
		}
	}
	return chosen.rec, tailStart + int64(chosen.pos), nil
}

func parseEOCDAt(tail []byte, pos int) (*eocdRecord, bool) {
	if pos+directoryEndLen > len(tail) {
		return nil, false
	}
	b := wrapByteBuffer(tail[pos : pos+directoryEndLen])
	b.skip(4) // signature
	diskNum := b.getUint16()
	diskStart := b.getUint16()
	diskEntries := b.getUint16()
	totalEntries := b.getUint16()
	size := b.getUint32()
	offset := b.getUint32()
	commentLen := b.getUint16()
	if diskNum != 0 || diskStart != 0 {
		// multi-disk archives are out of scope; treat as not a match.
		return nil, false
	}
	commentStart := pos + directoryEndLen
	if commentStart+int(commentLen) > len(tail) {
		return nil, false
	}
	comment := append([]byte(nil), tail[commentStart:commentStart+int(commentLen)]...)
	return &eocdRecord{
		diskEntries:  uint64(diskEntries),
		totalEntries: uint64(totalEntries),
		size:         uint64(size),
		offset:       uint64(offset),
		comment:      comment,
	}, true
}

// eocdLooksConsistent is a light sanity check used to pick the
// "most consistent" EOCD candidate when several signature matches exist in
// the tail: the declared central directory must fit before this EOCD.
func eocdLooksConsistent(rec *eocdRecord, eocdPos int64) bool {
	if rec.isZip64 {
		return true
	}
	if rec.offset == uint32max || rec.size == uint32max {
		return true // defers to zip64 record
	}
	return int64(rec.offset)+int64(rec.size) <= eocdPos
}

// findEOCD64 looks immediately before the EOCD position for an EOCD64
// locator, and if present follows it to the EOCD64 record, per spec.md
// section 4.8 step 3.
func findEOCD64(src readSeekerAt, eocdPos int64) (*eocdRecord, error) {
	locPos := eocdPos - directory64LocLen
	if locPos < 0 {
		return nil, nil
	}
	locBuf := make([]byte, directory64LocLen)
	if _, err := src.ReadAt(locBuf, locPos); err != nil {
		return nil, nil
	}
	if binary.LittleEndian.Uint32(locBuf[0:4]) != directory64LocSignature {
		return nil, nil
	}
	eocd64Offset := int64(binary.LittleEndian.Uint64(locBuf[8:16]))

	hdr := make([]byte, directory64EndLen)
	if _, err := src.ReadAt(hdr, eocd64Offset); err != nil {
		return nil, wrapError(ErrKindInconsistent, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != directory64EndSignature {
		return nil, newError(ErrKindInconsistent)
	}
	b := wrapByteBuffer(hdr[12:])
	b.skip(4) // version made by / needed
	b.skip(8) // disk numbers
	diskEntries := b.getUint64()
	totalEntries := b.getUint64()
	size := b.getUint64()
	offset := b.getUint64()
	return &eocdRecord{
		diskEntries:  diskEntries,
		totalEntries: totalEntries,
		size:         size,
		offset:       offset,
		isZip64:      true,
	}, nil
}

// readSeekerAt is the minimal random-access read interface eocd.go needs;
// Source satisfies it via its Stat/Read/Seek commands (see source.go).
type readSeekerAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// writeEOCDSet emits, in order: ZIP64 EOCD + locator (if needed), then the
// 32-bit EOCD + comment, per spec.md section 4.5 write algorithm / 4.9 step
// 6. needZip64 is true if any entry or the total count forced promotion
// earlier in the commit; records/size/offset are the already-computed
// central directory statistics.
func writeEOCDSet(w io.Writer, records uint64, size, offset uint64, comment []byte, needZip64 bool) error {
	end := offset + size
	if needZip64 || records >= uint16max || size >= uint32max || offset >= uint32max {
		var buf [directory64EndLen + directory64LocLen]byte
		b := writeBuf(buf[:])
		b.uint32(directory64EndSignature)
		b.uint64(directory64EndLen - 12)
		b.uint16(zipVersion45)
		b.uint16(zipVersion45)
		b.uint32(0)
		b.uint32(0)
		b.uint64(records)
		b.uint64(records)
		b.uint64(size)
		b.uint64(offset)

		b.uint32(directory64LocSignature)
		b.uint32(0)
		b.uint64(end)
		b.uint32(1)

		if _, err := w.Write(buf[:]); err != nil {
			return wrapError(ErrKindWrite, err)
		}
		records = uint16max
		size = uint32max
		offset = uint32max
	}

	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(directoryEndSignature)
	b.uint16(0) // disk number
	b.uint16(0) // disk with start of central directory
	b.uint16(uint16(records))
	b.uint16(uint16(records))
	b.uint32(uint32(size))
	b.uint32(uint32(offset))
	b.uint16(uint16(len(comment)))
	if _, err := w.Write(buf[:]); err != nil {
		return wrapError(ErrKindWrite, err)
	}
	if _, err := w.Write(comment); err != nil {
		return wrapError(ErrKindWrite, err)
	}
	return nil
}
