package zipkit

import (
	"io"
	"os"
)

// FileVTable is the platform abstraction FileSource is parameterized by,
// mirroring spec.md section 3's "Source-file context ... parameterized by a
// platform vtable." A default, os-package-backed implementation
// (osFileVTable) is installed automatically; tests substitute a fault-
// injecting vtable to exercise P7 (atomic commit on a failing write).
type FileVTable interface {
	Open(name string, write bool) (FileHandle, error)
	Stat(name string) (os.FileInfo, bool)
	CreateTempOutput(dest string) (FileHandle, string, error)
	CommitWrite(tempName, destName string, handle FileHandle) error
	RollbackWrite(tempName string, handle FileHandle) error
	Remove(name string) error
}

// FileHandle is the minimal random-access file handle FileVTable hands
// back; *os.File satisfies it.
type FileHandle interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
}

// osFileVTable is the default FileVTable, backed directly by the os
// package.
type osFileVTable struct{}

func (osFileVTable) Open(name string, write bool) (FileHandle, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	return os.OpenFile(name, flag, 0)
}

func (osFileVTable) Stat(name string) (os.FileInfo, bool) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, false
	}
	return fi, true
}

func (osFileVTable) CreateTempOutput(dest string) (FileHandle, string, error) {
	name, err := tempFileName(dest, fileExists)
	if err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, "", wrapError(ErrKindTempOpen, err)
	}
	return f, name, nil
}

func (osFileVTable) CommitWrite(tempName, destName string, handle FileHandle) error {
	if err := handle.Sync(); err != nil {
		handle.Close()
		os.Remove(tempName)
		return wrapError(ErrKindClose, err)
	}
	if err := handle.Close(); err != nil {
		os.Remove(tempName)
		return wrapError(ErrKindClose, err)
	}
	if err := os.Rename(tempName, destName); err != nil {
		os.Remove(tempName)
		return wrapError(ErrKindRename, err)
	}
	return nil
}

func (osFileVTable) RollbackWrite(tempName string, handle FileHandle) error {
	handle.Close()
	if err := os.Remove(tempName); err != nil && !os.IsNotExist(err) {
		return wrapError(ErrKindRemove, err)
	}
	return nil
}

func (osFileVTable) Remove(name string) error {
	if err := os.Remove(name); err != nil {
		return wrapError(ErrKindRemove, err)
	}
	return nil
}

// FileSource is a Source backed by a named file on disk, supporting the
// full two-phase write protocol (spec.md section 3/4.3). If the target
// does not exist and createIfMissing is set, the source is writable-only:
// Stat reports an empty, invalid file (the "ENOENT stat-error sentinel"
// spec.md section 4.3 uses to detect the create path at archive-open time).
type FileSource struct {
	sourceBase

	vtable FileVTable
	name   string
	create bool

	handle FileHandle

	tempHandle FileHandle
	tempName   string
}

// NewFileSource opens name through the default os-backed vtable.
func NewFileSource(name string, createIfMissing bool) *FileSource {
	return NewFileSourceVTable(name, createIfMissing, osFileVTable{})
}

// NewFileSourceVTable is NewFileSource with an explicit FileVTable, used by
// tests to inject faults.
func NewFileSourceVTable(name string, createIfMissing bool, vtable FileVTable) *FileSource {
	return &FileSource{name: name, create: createIfMissing, vtable: vtable}
}

func (f *FileSource) Supports() CommandSet {
	c := SupportsRead | SupportsSeek | SupportsWrite | SupportsRemove | SupportsBeginWriteCloning | SupportsReopen
	if _, ok := f.vtable.Stat(f.name); !ok && !f.create {
		return SupportsRemove
	}
	return c
}

func (f *FileSource) AcceptEmpty() bool    { return true }
func (f *FileSource) SupportsReopen() bool { return true }

func (f *FileSource) Open() error {
	if err := f.checkInvalid(); err != nil {
		return err
	}
	if f.openCount > 0 {
		f.openCount++
		return nil
	}
	_, exists := f.vtable.Stat(f.name)
	if !exists {
		if !f.create {
			return f.setErr(wrapError(ErrKindOpen, os.ErrNotExist))
		}
		f.openCount++
		return nil // writable-only until CommitWrite materializes the file
	}
	h, err := f.vtable.Open(f.name, false)
	if err != nil {
		return f.setErr(wrapError(ErrKindOpen, err))
	}
	f.handle = h
	f.openCount++
	return nil
}

func (f *FileSource) Close() error {
	if f.openCount == 0 {
		return nil
	}
	f.openCount--
	if f.openCount == 0 && f.handle != nil {
		err := f.handle.Close()
		f.handle = nil
		if err != nil {
			return f.setErr(wrapError(ErrKindClose, err))
		}
	}
	return nil
}

func (f *FileSource) Read(p []byte) (int, error) {
	if f.handle == nil {
		return 0, f.setErr(newError(ErrKindRead))
	}
	if f.hadReadErr {
		return 0, f.lastErr
	}
	n, err := f.handle.Read(p)
	if err != nil && err != io.EOF {
		f.hadReadErr = true
		f.setErr(wrapError(ErrKindRead, err))
	}
	return n, err
}

func (f *FileSource) Seek(offset int64, whence int) (int64, error) {
	if f.handle == nil {
		return 0, f.setErr(newError(ErrKindSeek))
	}
	n, err := f.handle.Seek(offset, whence)
	if err != nil {
		return n, f.setErr(wrapError(ErrKindSeek, err))
	}
	f.hadReadErr = false
	return n, nil
}

func (f *FileSource) Tell() (int64, error) {
	if f.handle == nil {
		return 0, nil
	}
	return f.handle.Seek(0, io.SeekCurrent)
}

func (f *FileSource) Stat() (SourceStat, error) {
	fi, ok := f.vtable.Stat(f.name)
	if !ok {
		return SourceStat{}, nil
	}
	return SourceStat{Valid: StatSize | StatModified, Size: uint64(fi.Size()), Modified: fi.ModTime()}, nil
}

func (f *FileSource) GetFileAttributes() (FileAttributes, error) {
	fi, ok := f.vtable.Stat(f.name)
	if !ok {
		return FileAttributes{}, nil
	}
	d := &Dirent{}
	d.SetMode(fi.Mode())
	return FileAttributes{Valid: true, ExternalAttrs: d.ExternalAttrs, CreatorOS: creatorUnix}, nil
}

func (f *FileSource) BeginWrite() error {
	h, name, err := f.vtable.CreateTempOutput(f.name)
	if err != nil {
		return f.setErr(err.(*Error))
	}
	f.tempHandle = h
	f.tempName = name
	f.wstate = writeOpen
	return nil
}

// BeginWriteCloning begins a write that preserves the first prefixLen bytes
// of the existing file by copying them into the fresh temp file before
// further writes append after them (spec.md section 4.2's
// BeginWriteCloning). Commit does not call it; it always starts from an
// empty temp file via BeginWrite.
func (f *FileSource) BeginWriteCloning(prefixLen int64) error {
	if err := f.BeginWrite(); err != nil {
		return err
	}
	if prefixLen <= 0 {
		return nil
	}
	src, ok := f.vtable.Stat(f.name)
	if !ok || src.Size() < prefixLen {
		return f.setErr(newError(ErrKindInconsistent))
	}
	rh, err := f.vtable.Open(f.name, false)
	if err != nil {
		return f.setErr(wrapError(ErrKindOpen, err))
	}
	defer rh.Close()
	if _, err := io.CopyN(f.tempHandle, rh, prefixLen); err != nil {
		return f.setErr(wrapError(ErrKindWrite, err))
	}
	return nil
}

func (f *FileSource) Write(p []byte) (int, error) {
	if f.wstate != writeOpen {
		return 0, f.setErr(newError(ErrKindInvalidArgument))
	}
	n, err := f.tempHandle.Write(p)
	if err != nil {
		f.wstate = writeFailed
		return n, f.setErr(wrapError(ErrKindWrite, err))
	}
	return n, nil
}

func (f *FileSource) SeekWrite(offset int64, whence int) (int64, error) {
	return f.tempHandle.Seek(offset, whence)
}

func (f *FileSource) TellWrite() (int64, error) {
	return f.tempHandle.Seek(0, io.SeekCurrent)
}

func (f *FileSource) CommitWrite() error {
	if f.wstate != writeOpen {
		return f.setErr(newError(ErrKindInvalidArgument))
	}
	err := f.vtable.CommitWrite(f.tempName, f.name, f.tempHandle)
	f.tempHandle = nil
	f.tempName = ""
	f.wstate = writeClosed
	if err != nil {
		return f.setErr(err.(*Error))
	}
	return nil
}

func (f *FileSource) RollbackWrite() error {
	if f.tempHandle == nil {
		f.wstate = writeClosed
		return nil
	}
	err := f.vtable.RollbackWrite(f.tempName, f.tempHandle)
	f.tempHandle = nil
	f.tempName = ""
	f.wstate = writeClosed
	if err != nil {
		return f.setErr(err.(*Error))
	}
	return nil
}

func (f *FileSource) Remove() error {
	if err := f.vtable.Remove(f.name); err != nil {
		return f.setErr(err.(*Error))
	}
	return nil
}

// HandleFileSource is a Source backed by an already-open file handle
// (spec.md section 4.3: "File-by-handle: non-writable; read-only seekable;
// ignores temp-file ops"). It never closes the handle itself.
type HandleFileSource struct {
	sourceBase
	handle FileHandle
	start  int64
}

func NewHandleFileSource(handle FileHandle) *HandleFileSource {
	return &HandleFileSource{handle: handle}
}

func (h *HandleFileSource) Supports() CommandSet { return SupportsRead | SupportsSeek }
func (h *HandleFileSource) AcceptEmpty() bool    { return true }

func (h *HandleFileSource) Open() error {
	if err := h.checkInvalid(); err != nil {
		return err
	}
	var err error
	h.start, err = h.handle.Seek(0, io.SeekCurrent)
	return err
}

func (h *HandleFileSource) Close() error { return nil }

func (h *HandleFileSource) Read(p []byte) (int, error) { return h.handle.Read(p) }

func (h *HandleFileSource) Seek(offset int64, whence int) (int64, error) {
	return h.handle.Seek(offset, whence)
}

func (h *HandleFileSource) Tell() (int64, error) {
	return h.handle.Seek(0, io.SeekCurrent)
}

func (h *HandleFileSource) Stat() (SourceStat, error) {
	return SourceStat{}, nil
}
