// Package editorfs maps an editor's filesystem capability (stat/read/write/
// readdir/create/delete/rename, named only by contract in spec.md §1 as an
// external collaborator) onto the device.Driver/device.File contract, with
// a lazily-populated node cache mirroring editor paths the guest has
// touched.
//
// Grounded on spec.md §4.2 directly; method shapes follow
// internal/device.Driver/File (itself grounded on tetratelabs-wazero's
// internal/fsapi.File).
package editorfs

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// EntryKind is the editor-reported type of a path.
type EntryKind int

const (
	EntryUnknown EntryKind = iota
	EntryFile
	EntryDirectory
)

// Stat is what the editor capability reports for a path.
type Stat struct {
	Kind EntryKind
	Size uint64
	Atim time.Time
	Mtim time.Time
}

// DirEntry is one entry the editor capability's readdir returns.
type DirEntry struct {
	Name string
	Kind EntryKind
}

// Error is an editor capability failure. Concrete editor implementations
// return one of the sentinel Errors below (or wrap them); editorfs maps
// each to a WASI errno per spec.md §4.2's fixed table.
type Error struct {
	Code EditorErrorCode
}

func (e *Error) Error() string { return e.Code.String() }

// EditorErrorCode enumerates the editor capability's own error vocabulary.
type EditorErrorCode int

const (
	ErrUnknown EditorErrorCode = iota
	ErrFileNotFound
	ErrFileExists
	ErrFileNotADirectory
	ErrFileIsADirectory
	ErrNoPermissions
	ErrUnavailable
)

func (c EditorErrorCode) String() string {
	switch c {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileExists:
		return "FileExists"
	case ErrFileNotADirectory:
		return "FileNotADirectory"
	case ErrFileIsADirectory:
		return "FileIsADirectory"
	case ErrNoPermissions:
		return "NoPermissions"
	case ErrUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// toErrno implements spec.md §4.2's fixed editor-error-to-WASI-errno table.
func toErrno(err error) wasiabi.Errno {
	if err == nil {
		return wasiabi.ErrnoSuccess
	}
	ee, ok := err.(*Error)
	if !ok {
		return wasiabi.ErrnoInval
	}
	switch ee.Code {
	case ErrFileNotFound:
		return wasiabi.ErrnoNoent
	case ErrFileExists:
		return wasiabi.ErrnoExist
	case ErrFileNotADirectory:
		return wasiabi.ErrnoNotdir
	case ErrFileIsADirectory:
		return wasiabi.ErrnoIsdir
	case ErrNoPermissions:
		return wasiabi.ErrnoPerm
	case ErrUnavailable:
		return wasiabi.ErrnoBusy
	default:
		return wasiabi.ErrnoInval
	}
}

// Capability is the editor's filesystem API, named only by contract per
// spec.md §1. Paths are editor-native (forward-slash, rooted at whatever
// the editor considers this capability's root).
type Capability interface {
	Stat(path string) (Stat, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
	Readdir(path string) ([]DirEntry, error)
	Create(path string, dir bool) error
	Delete(path string) error
	Rename(oldPath, newPath string) error
}
