package zipkit

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// torrentZipFixedTime is the constant modification time TorrentZip
// stamps on every entry (1996-12-24 00:00:00 UTC), chosen by the format
// so that re-zipping the same content byte-for-byte always reproduces the
// same archive (spec.md section 4.5's "fixed point" requirement, P10).
var torrentZipFixedTime = time.Date(1996, time.December, 24, 0, 0, 0, 0, time.UTC)

const torrentZipCommentPrefix = "TORRENTZIPPED-"

// normalizeTorrentZip rewrites every entry's metadata to the TorrentZip
// canonical form and sorts entries by name (byte-wise ascending, matching
// the reference implementations), per spec.md section 4.5. It does not
// touch entry data; the caller (Commit) still recompresses each entry at
// Deflate level 9 because the canonical form fixes the method.
func (a *Archive) normalizeTorrentZip() {
	for _, e := range a.entries {
		if e.deleted {
			continue
		}
		d := e.ensureChanges()
		d.Modified = torrentZipFixedTime
		d.Method = Deflate
		d.Level = 9
		d.Encryption = EncryptionNone
		d.extra = extraList{}
		d.CreatorVersion = zipVersion20
		d.Flags &^= 0x800 // TorrentZip names are always DOS/CP437-safe ASCII
		d.changed |= changedMethod | changedLevel | changedModified | changedEncryption | changedExtra
	}
	sort.Slice(a.entries, func(i, j int) bool {
		if a.entries[i].deleted != a.entries[j].deleted {
			return !a.entries[i].deleted // keep deleted entries out of the sorted prefix
		}
		return a.entries[i].active().Name() < a.entries[j].active().Name()
	})
}

// torrentZipComment computes the final archive comment once the central
// directory bytes are known: "TORRENTZIPPED-" followed by the uppercase
// hex CRC32 of the central directory.
func torrentZipComment(centralDirectoryBytes []byte) string {
	return fmt.Sprintf("%s%08X", torrentZipCommentPrefix, crc32IEEE(centralDirectoryBytes))
}

// detectTorrentZip reports whether comment matches the
// TORRENTZIPPED-XXXXXXXX form for the central directory bytes that were
// just read (spec.md section 4.8 step 6). The CRC itself can only be
// checked by the caller once it has re-serialized the directory, which
// Open does not do; detectTorrentZip here is the syntactic check, the
// stronger byte-exact verification is property P10's test-only concern.
func detectTorrentZip(a *Archive, comment []byte) bool {
	s := string(comment)
	if !strings.HasPrefix(s, torrentZipCommentPrefix) {
		return false
	}
	rest := s[len(torrentZipCommentPrefix):]
	if len(rest) != 8 {
		return false
	}
	for _, c := range rest {
		if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
