package zipkit

import (
	"errors"
	"fmt"
)

// ErrorKind is the zip-level error taxonomy from the on-disk/API error
// transport: every failure an archive or source reports boils down to one
// of these kinds, plus an optional system-level detail (SysKind/SysCode).
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota

	// Programmer errors.
	ErrKindInvalidArgument
	ErrKindUnsupportedOperation
	ErrKindClosed

	// Resource errors.
	ErrKindMemory
	ErrKindOpen
	ErrKindTempOpen
	ErrKindRead
	ErrKindWrite
	ErrKindSeek
	ErrKindTell
	ErrKindRename
	ErrKindRemove
	ErrKindClose

	// Format errors.
	ErrKindNotZip
	ErrKindInconsistent
	ErrKindPrematureEOF
	ErrKindDataLengthMismatch

	// Capability errors.
	ErrKindUnsupportedMethod
	ErrKindUnsupportedEncryption
	ErrKindMultiDisk

	// Crypto errors.
	ErrKindNoPassword
	ErrKindWrongPassword
	ErrKindCRCMismatch

	// State errors.
	ErrKindChanged
	ErrKindDeleted
	ErrKindReadOnly
	ErrKindInUse
	ErrKindCancelled
	ErrKindNotAllowed
)

var errKindStrings = map[ErrorKind]string{
	ErrKindNone:                  "no error",
	ErrKindInvalidArgument:       "invalid argument",
	ErrKindUnsupportedOperation:  "operation not supported",
	ErrKindClosed:                "archive closed",
	ErrKindMemory:                "memory allocation failure",
	ErrKindOpen:                  "open error",
	ErrKindTempOpen:              "temporary file open error",
	ErrKindRead:                  "read error",
	ErrKindWrite:                 "write error",
	ErrKindSeek:                  "seek error",
	ErrKindTell:                  "tell error",
	ErrKindRename:                "rename error",
	ErrKindRemove:                "remove error",
	ErrKindClose:                 "close error",
	ErrKindNotZip:                "not a zip archive",
	ErrKindInconsistent:          "inconsistent central directory",
	ErrKindPrematureEOF:          "premature end of file",
	ErrKindDataLengthMismatch:    "data length mismatch",
	ErrKindUnsupportedMethod:     "unsupported compression method",
	ErrKindUnsupportedEncryption: "unsupported encryption method",
	ErrKindMultiDisk:             "multi-disk archives not supported",
	ErrKindNoPassword:            "password required",
	ErrKindWrongPassword:         "wrong password",
	ErrKindCRCMismatch:           "CRC32 mismatch",
	ErrKindChanged:               "entry changed",
	ErrKindDeleted:               "entry deleted",
	ErrKindReadOnly:              "archive is read-only",
	ErrKindInUse:                 "entry in use",
	ErrKindCancelled:             "operation cancelled",
	ErrKindNotAllowed:            "operation not allowed",
}

func (k ErrorKind) String() string {
	if s, ok := errKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown error kind %d", int(k))
}

// SysErrorKind tags how SysCode/SysErr should be interpreted.
type SysErrorKind int

const (
	SysNone SysErrorKind = iota
	SysErrno
	SysZlib
	SysInternal
)

// Error is the error value every zipkit API returns on failure: a zip-level
// Kind plus an optional system-level detail, mirroring the "(zip_code,
// system_code)" wire pair from the on-disk error-reporting protocol this
// library models (see Source.Error).
type Error struct {
	Kind ErrorKind

	SysKind SysErrorKind
	SysCode int

	// EntryIndex is the archive entry the error concerns, or -1.
	EntryIndex int

	// Err, if non-nil, is the underlying Go error (I/O error, wrapped
	// codec error, etc.). Error.Unwrap returns it so callers can use
	// errors.Is/As against it as well as against Kind.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.EntryIndex >= 0 {
		msg = fmt.Sprintf("%s (entry %d)", msg, e.EntryIndex)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	} else if e.SysKind != SysNone {
		msg = fmt.Sprintf("%s: sys code %d", msg, e.SysCode)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &zipkit.Error{Kind: zipkit.ErrKindInUse}) style
// checks, matching on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// newError builds an *Error with no entry context and no wrapped cause.
func newError(kind ErrorKind) *Error {
	return &Error{Kind: kind, EntryIndex: -1}
}

// wrapError builds an *Error wrapping a lower-level Go error.
func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, EntryIndex: -1, Err: err}
}

// entryError builds an *Error tagged with the entry index it concerns.
func entryError(kind ErrorKind, index int, err error) *Error {
	return &Error{Kind: kind, EntryIndex: index, Err: err}
}

// kindError is a sentinel usable with errors.Is to test only the Kind,
// ignoring any wrapped cause or entry index.
func kindError(kind ErrorKind) *Error {
	return &Error{Kind: kind, EntryIndex: -1}
}

// Is reports whether err is a *Error of the given kind (or wraps one),
// regardless of its system detail or wrapped cause.
func Is(err error, kind ErrorKind) bool {
	return errors.Is(err, kindError(kind))
}

// Sentinel errors kept from the teacher (errLongName/errLongExtra in its
// writer.go) for the few cases that are plain argument-validation failures
// rather than archive state. writeLocalHeader and writeCentralHeader return
// them as they are, not wrapped in an *Error.
var (
	errLongName  = errors.New("zipkit: FileHeader.Name too long")
	errLongExtra = errors.New("zipkit: FileHeader.Extra too long")
)
