package zipkit

import "time"

// CommandSet is the bitmask a Source's Supports method returns (spec.md
// section 4.2). Supports is recomputed on every call and not cached; a
// FileSource's answer changes once its target file exists.
type CommandSet uint32

const (
	SupportsRead CommandSet = 1 << iota
	SupportsSeek
	SupportsWrite
	SupportsRemove
	SupportsBeginWriteCloning
	SupportsReopen
)

func (c CommandSet) has(bit CommandSet) bool { return c&bit != 0 }

// writeState is the two-phase write state machine from spec.md section 4.2:
// Closed -> BeginWrite -> Writing -> {CommitWrite|RollbackWrite} -> Closed.
type writeState int

const (
	writeClosed writeState = iota
	writeOpen
	writeFailed
	writeRemoved
)

// SourceStat is the answer to the Stat command: size/mtime/crc/method
// information a source can report about the data it guards, with Valid
// marking which fields the source actually knows.
type SourceStat struct {
	Valid StatField

	Size             uint64
	CompSize         uint64
	Modified         time.Time
	CRC32            uint32
	CompMethod       uint16
	EncryptionMethod EncryptionMethod
}

// StatField marks which SourceStat fields are populated.
type StatField uint32

const (
	StatSize StatField = 1 << iota
	StatCompSize
	StatModified
	StatCRC32
	StatCompMethod
	StatEncryptionMethod
)

// FileAttributes is the answer to the GetFileAttributes command: host
// filesystem attributes for a file-backed source.
type FileAttributes struct {
	Valid         bool
	ExternalAttrs uint32
	CreatorOS     uint16
}

// Source is the stackable I/O abstraction every byte entering or leaving an
// archive flows through (spec.md section 3/4.2). A Source is created
// detached, may be opened for reading and/or writing, and is reference
// counted: Keep bumps the refcount (used when a higher layer wraps this
// source and wants to share its lifetime), Release decrements it and
// reports whether it reached zero. Release does not close the source or
// free its resources itself.
//
// Concrete adapters embed sourceBase and override only the methods they
// implement; the embedded default returns ErrKindUnsupportedOperation,
// which is itself a valid, cacheable answer for Supports().
type Source interface {
	Open() error
	Read(p []byte) (int, error)
	Close() error
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Stat() (SourceStat, error)
	Supports() CommandSet
	AcceptEmpty() bool
	SupportsReopen() bool
	GetFileAttributes() (FileAttributes, error)

	BeginWrite() error
	Write(p []byte) (int, error)
	SeekWrite(offset int64, whence int) (int64, error)
	TellWrite() (int64, error)
	CommitWrite() error
	RollbackWrite() error
	Remove() error
	BeginWriteCloning(prefixLen int64) error

	// Error returns the (zip kind, system detail) pair cached from the
	// most recent failing command, mirroring the source-language
	// ZIP_SOURCE_ERROR wire protocol.
	Error() *Error

	// Keep/Release manage the refcount; Release returns true once it has
	// dropped to zero.
	Keep()
	Release() bool

	// invalidate is called by the owning Archive on Discard; an invalidated
	// source fails its next Open with ErrKindClosed (spec.md section 3,
	// "Source" lifecycle). Other commands do not check the flag, so a
	// source that is already open keeps working.
	invalidate()
}

// sourceBase implements the unsupported-by-default behavior every concrete
// Source embeds, plus the shared refcount/invalidation/error-cache
// bookkeeping from spec.md section 3.
type sourceBase struct {
	refcount   int
	openCount  int
	wstate     writeState
	lastErr    *Error
	eof        bool
	invalid    bool
	hadReadErr bool
}

func (s *sourceBase) Open() error                                { return nil }
func (s *sourceBase) Read(p []byte) (int, error)                 { return 0, s.unsupported() }
func (s *sourceBase) Close() error                               { return nil }
func (s *sourceBase) Seek(int64, int) (int64, error)             { return 0, s.unsupported() }
func (s *sourceBase) Tell() (int64, error)                       { return 0, s.unsupported() }
func (s *sourceBase) Stat() (SourceStat, error)                  { return SourceStat{}, s.unsupported() }
func (s *sourceBase) AcceptEmpty() bool                          { return false }
func (s *sourceBase) SupportsReopen() bool                       { return false }
func (s *sourceBase) GetFileAttributes() (FileAttributes, error) { return FileAttributes{}, nil }

func (s *sourceBase) BeginWrite() error                    { return s.unsupported() }
func (s *sourceBase) Write([]byte) (int, error)            { return 0, s.unsupported() }
func (s *sourceBase) SeekWrite(int64, int) (int64, error)  { return 0, s.unsupported() }
func (s *sourceBase) TellWrite() (int64, error)            { return 0, s.unsupported() }
func (s *sourceBase) CommitWrite() error                   { return s.unsupported() }
func (s *sourceBase) RollbackWrite() error                 { return s.unsupported() }
func (s *sourceBase) Remove() error                        { return s.unsupported() }
func (s *sourceBase) BeginWriteCloning(int64) error        { return s.unsupported() }

func (s *sourceBase) Error() *Error { return s.lastErr }

func (s *sourceBase) Keep() { s.refcount++ }

// Release decrements the refcount and reports whether it reached zero.
// Concrete sources that hold resources (file handles, etc.) should check
// the return value and free them when true.
func (s *sourceBase) Release() bool {
	s.refcount--
	return s.refcount <= 0
}

func (s *sourceBase) invalidate() { s.invalid = true }

func (s *sourceBase) checkInvalid() error {
	if s.invalid {
		err := newError(ErrKindClosed)
		s.lastErr = err
		return err
	}
	return nil
}

func (s *sourceBase) unsupported() error {
	err := newError(ErrKindUnsupportedOperation)
	s.lastErr = err
	return err
}

func (s *sourceBase) setErr(err *Error) *Error {
	s.lastErr = err
	return err
}

// layeredSource is the base every pipeline stage (CRC, compress, decrypt,
// window) embeds: it owns a lower Source (returned by passToLowerLayer) and
// forwards Open, Close, Tell, GetFileAttributes and AcceptEmpty to it. Any
// other command a stage does not override falls through to sourceBase and
// is not forwarded. Per spec.md section
// 4.2's layer contract, a layered source must never claim to support write
// commands regardless of what its lower source supports.
type layeredSource struct {
	sourceBase
	lower Source
}

func (l *layeredSource) passToLowerLayer() Source { return l.lower }

func (l *layeredSource) Open() error {
	if err := l.checkInvalid(); err != nil {
		return err
	}
	return l.lower.Open()
}

func (l *layeredSource) Close() error {
	return l.lower.Close()
}

func (l *layeredSource) Tell() (int64, error) {
	return l.lower.Tell()
}

func (l *layeredSource) GetFileAttributes() (FileAttributes, error) {
	return l.lower.GetFileAttributes()
}

func (l *layeredSource) AcceptEmpty() bool { return l.lower.AcceptEmpty() }

// Supports is computed by intersecting what this layer itself can do with
// what the lower layer supports, per spec.md section 4.2 ("A layered
// source's Supports is computed by calling the callback with command
// Supports and the lower supports-bitmask as input"), minus the write bits
// a layer is never allowed to claim.
func (l *layeredSource) supportsFrom(own CommandSet) CommandSet {
	lowerSupports := l.lower.Supports()
	combined := own & lowerSupports
	return combined &^ (SupportsWrite | SupportsRemove | SupportsBeginWriteCloning)
}
