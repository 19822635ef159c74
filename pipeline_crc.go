package zipkit

import (
	"hash"
	"io"
)

// crcSource is a pass-through layered Source that accumulates a running
// CRC32 over every byte it forwards and, once the declared length has been
// read in full, compares the accumulated checksum against want (spec.md
// section 4.4's read-side integrity check, mirroring archive/zip's own
// checksumReader). A mismatch surfaces as ErrKindCRCMismatch from the Read
// call that crosses the length boundary, not lazily at Close.
type crcSource struct {
	layeredSource

	want   uint32
	length int64

	h    hash.Hash32
	read int64
	done bool
}

// newCRCSource wraps lower, which must yield exactly length bytes, checking
// the running CRC32 against want once all of it has been read.
func newCRCSource(lower Source, want uint32, length int64) *crcSource {
	c := &crcSource{want: want, length: length, h: newCRC32()}
	c.lower = lower
	return c
}

func (c *crcSource) Supports() CommandSet {
	return c.supportsFrom(SupportsRead)
}

func (c *crcSource) Open() error {
	if err := c.checkInvalid(); err != nil {
		return err
	}
	c.h = newCRC32()
	c.read = 0
	c.done = false
	return c.lower.Open()
}

func (c *crcSource) Read(p []byte) (int, error) {
	n, err := c.lower.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.read += int64(n)
	}
	if err == io.EOF || (err == nil && c.read >= c.length) {
		if !c.done {
			c.done = true
			if c.h.Sum32() != c.want {
				return n, c.setErr(newError(ErrKindCRCMismatch))
			}
		}
	}
	return n, err
}

func (c *crcSource) Seek(offset int64, whence int) (int64, error) {
	// Reposition invalidates the running checksum; the caller only
	// verifies CRC for sources read straight through start to end, which
	// is how the entry-read pipeline (entryread.go) uses crcSource.
	c.h = newCRC32()
	c.read = 0
	c.done = false
	pos, err := c.lower.Seek(offset, whence)
	if err == nil {
		c.read = pos
	}
	return pos, err
}

func (c *crcSource) Stat() (SourceStat, error) {
	st, err := c.lower.Stat()
	st.Valid |= StatCRC32
	st.CRC32 = c.want
	return st, err
}
