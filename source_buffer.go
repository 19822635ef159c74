package zipkit

import (
	"bytes"
	"io"
)

// BufferSource is an in-memory Source over a byte slice: seekable,
// EOF-aware, and writable via the standard two-phase begin/commit/rollback
// protocol. Remove marks the buffer deleted and drops its data; later
// reads fail.
type BufferSource struct {
	sourceBase

	data []byte
	pos  int64

	writeBuf    *bytes.Buffer
	deleted     bool
}

// NewBufferSource wraps data (not copied) as a Source.
func NewBufferSource(data []byte) *BufferSource {
	return &BufferSource{data: data}
}

func (b *BufferSource) Supports() CommandSet {
	return SupportsRead | SupportsSeek | SupportsWrite | SupportsRemove
}

func (b *BufferSource) AcceptEmpty() bool { return true }

func (b *BufferSource) Open() error {
	if err := b.checkInvalid(); err != nil {
		return err
	}
	b.openCount++
	b.pos = 0
	return nil
}

func (b *BufferSource) Close() error {
	if b.openCount > 0 {
		b.openCount--
	}
	return nil
}

func (b *BufferSource) Read(p []byte) (int, error) {
	if b.deleted {
		return 0, b.setErr(newError(ErrKindRead))
	}
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *BufferSource) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = b.pos + offset
	case io.SeekEnd:
		newPos = int64(len(b.data)) + offset
	}
	if newPos < 0 {
		return 0, b.setErr(newError(ErrKindSeek))
	}
	b.pos = newPos
	return newPos, nil
}

func (b *BufferSource) Tell() (int64, error) { return b.pos, nil }

func (b *BufferSource) Stat() (SourceStat, error) {
	return SourceStat{Valid: StatSize, Size: uint64(len(b.data))}, nil
}

func (b *BufferSource) BeginWrite() error {
	b.writeBuf = &bytes.Buffer{}
	b.wstate = writeOpen
	return nil
}

func (b *BufferSource) Write(p []byte) (int, error) {
	if b.wstate != writeOpen {
		return 0, b.setErr(newError(ErrKindInvalidArgument))
	}
	return b.writeBuf.Write(p)
}

func (b *BufferSource) TellWrite() (int64, error) {
	return int64(b.writeBuf.Len()), nil
}

func (b *BufferSource) CommitWrite() error {
	b.data = b.writeBuf.Bytes()
	b.writeBuf = nil
	b.wstate = writeClosed
	b.deleted = false
	b.pos = 0
	return nil
}

func (b *BufferSource) RollbackWrite() error {
	b.writeBuf = nil
	b.wstate = writeClosed
	return nil
}

func (b *BufferSource) Remove() error {
	b.deleted = true
	b.data = nil
	return nil
}

// Bytes returns the buffer's current contents. It must not be called while
// a write is in progress.
func (b *BufferSource) Bytes() []byte { return b.data }

// fragment is one (offset, source) piece of a fragmentSource, directly
// grounded on the teacher's offsetAndData (io.go).
type fragment struct {
	offset int64
	length int64
	data   io.ReaderAt
}

// FragmentSource is a Source over a logically contiguous buffer that is
// physically stored as a list of separate byte ranges, so a large archive
// member never needs one contiguous allocation. It is read-only; BeginWrite
// is unsupported (a FragmentSource is built once via AddFragment and then
// read). Commit does not use it; it splices unchanged entries through a
// WindowSource. Grounded directly on the teacher's multiReaderAt
// (io.go): same prefix-sum + binary-search lookup, generalized from
// io.ReaderAt to the Source read/seek protocol.
type FragmentSource struct {
	sourceBase
	fragments []fragment
	size      int64
	pos       int64
}

func NewFragmentSource() *FragmentSource {
	return &FragmentSource{}
}

// AddFragment appends a (data, length) piece to the end of the logical
// buffer. It must be called before the source is opened for reading.
func (f *FragmentSource) AddFragment(data io.ReaderAt, length int64) {
	if length <= 0 {
		return
	}
	f.fragments = append(f.fragments, fragment{offset: f.size, length: length, data: data})
	f.size += length
}

func (f *FragmentSource) Supports() CommandSet { return SupportsRead | SupportsSeek }
func (f *FragmentSource) AcceptEmpty() bool    { return true }

func (f *FragmentSource) Open() error {
	if err := f.checkInvalid(); err != nil {
		return err
	}
	f.pos = 0
	return nil
}

func (f *FragmentSource) Close() error { return nil }

func (f *FragmentSource) endOffset(i int) int64 {
	if i == len(f.fragments)-1 {
		return f.size
	}
	return f.fragments[i+1].offset
}

// fragmentIndex finds the fragment containing offset via binary search
// over cumulative offsets, the same approach as the teacher's
// multiReaderAt.ReadAtContext.
func (f *FragmentSource) fragmentIndex(offset int64) int {
	lo, hi := 0, len(f.fragments)
	for lo < hi {
		mid := (lo + hi) / 2
		if f.endOffset(mid) > offset {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (f *FragmentSource) Read(p []byte) (int, error) {
	if f.pos >= f.size {
		return 0, io.EOF
	}
	idx := f.fragmentIndex(f.pos)
	if idx >= len(f.fragments) {
		return 0, io.EOF
	}
	frag := f.fragments[idx]
	fragOffset := f.pos - frag.offset
	remaining := frag.length - fragOffset
	toRead := int64(len(p))
	if toRead > remaining {
		toRead = remaining
	}
	n, err := frag.data.ReadAt(p[:toRead], fragOffset)
	f.pos += int64(n)
	if err == io.EOF && int64(n) == remaining {
		err = nil
	}
	return n, err
}

func (f *FragmentSource) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = f.size + offset
	}
	if newPos < 0 {
		return 0, f.setErr(newError(ErrKindSeek))
	}
	f.pos = newPos
	return newPos, nil
}

func (f *FragmentSource) Tell() (int64, error) { return f.pos, nil }

func (f *FragmentSource) Stat() (SourceStat, error) {
	return SourceStat{Valid: StatSize, Size: uint64(f.size)}, nil
}
