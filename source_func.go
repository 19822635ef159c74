package zipkit

import "io"

// FuncSourceOps is the user callback surface a FuncSource wraps: any subset
// may be nil. A nil Open or Close is a no-op that succeeds; any other nil
// callback makes that command report ErrKindUnsupportedOperation.
type FuncSourceOps struct {
	Read  func(p []byte) (int, error)
	Seek  func(offset int64, whence int) (int64, error)
	Tell  func() (int64, error)
	Stat  func() (SourceStat, error)
	Close func() error
	Open  func() error
}

// FuncSource wraps a user-supplied set of callbacks as a Source, with no
// lower source of its own. It is the escape hatch for data that doesn't fit
// the file/buffer/window adapters, e.g. a network-backed reader.
type FuncSource struct {
	sourceBase
	ops FuncSourceOps
}

func NewFuncSource(ops FuncSourceOps) *FuncSource {
	return &FuncSource{ops: ops}
}

func (f *FuncSource) Supports() CommandSet {
	var c CommandSet
	if f.ops.Read != nil {
		c |= SupportsRead
	}
	if f.ops.Seek != nil {
		c |= SupportsSeek
	}
	return c
}

func (f *FuncSource) Open() error {
	if err := f.checkInvalid(); err != nil {
		return err
	}
	if f.ops.Open == nil {
		return nil
	}
	if err := f.ops.Open(); err != nil {
		return f.setErr(wrapError(ErrKindOpen, err))
	}
	return nil
}

func (f *FuncSource) Close() error {
	if f.ops.Close == nil {
		return nil
	}
	if err := f.ops.Close(); err != nil {
		return f.setErr(wrapError(ErrKindClose, err))
	}
	return nil
}

func (f *FuncSource) Read(p []byte) (int, error) {
	if f.ops.Read == nil {
		return 0, f.unsupported()
	}
	if f.hadReadErr {
		return 0, f.lastErr
	}
	n, err := f.ops.Read(p)
	if err != nil && err != io.EOF {
		f.hadReadErr = true
		f.setErr(wrapError(ErrKindRead, err))
		return n, f.lastErr
	}
	return n, err
}

func (f *FuncSource) Seek(offset int64, whence int) (int64, error) {
	if f.ops.Seek == nil {
		return 0, f.unsupported()
	}
	n, err := f.ops.Seek(offset, whence)
	if err != nil {
		return n, f.setErr(wrapError(ErrKindSeek, err))
	}
	f.hadReadErr = false
	return n, nil
}

func (f *FuncSource) Tell() (int64, error) {
	if f.ops.Tell == nil {
		return 0, f.unsupported()
	}
	return f.ops.Tell()
}

func (f *FuncSource) Stat() (SourceStat, error) {
	if f.ops.Stat == nil {
		return SourceStat{}, f.unsupported()
	}
	return f.ops.Stat()
}
