// Package device defines the capability trait every virtualized back-end
// (editor filesystem, in-memory filesystem, console, pty, pipe) implements,
// plus the default mixins concrete drivers compose to avoid restating
// "not implemented" boilerplate.
//
// Grounded on tetratelabs/wazero's internal/fsapi.File interface and its
// unimplementedFile mixin (internal/fsapi/unimplemented.go), generalized
// from syscall.Errno to this runtime's wasiabi.Errno and extended with the
// character-device notion spec.md §5 requires alongside regular files.
package device

import (
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// Kind distinguishes the back-end family a Device belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindEditorFS
	KindMemFS
	KindConsole
	KindPTY
	KindPipe
)

func (k Kind) String() string {
	switch k {
	case KindEditorFS:
		return "editor-fs"
	case KindMemFS:
		return "mem-fs"
	case KindConsole:
		return "console"
	case KindPTY:
		return "pty"
	case KindPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// Device identifies one mounted back-end instance. The Locator is a stable
// URI-shaped identifier surfaced in trace output and diagnostics, minted
// once per mount so repeated mounts of the same kind are distinguishable.
type Device struct {
	ID      uint64
	Kind    Kind
	Locator string
}

// NewDevice mints a Device of the given kind with a fresh random locator
// suffix, e.g. "mem-fs:3f29c2de-...".
func NewDevice(id uint64, kind Kind) *Device {
	return &Device{ID: id, Kind: kind, Locator: kind.String() + ":" + uuid.NewString()}
}

// Stat mirrors the fields path_filestat_get/fd_filestat_get must report.
type Stat struct {
	Ino      uint64
	Filetype wasiabi.Filetype
	Nlink    uint64
	Size     uint64
	Atim     time.Time
	Mtim     time.Time
	Ctim     time.Time
}

// Dirent is one entry produced by a Readdir cursor.
type Dirent struct {
	Ino      uint64
	Name     string
	Filetype wasiabi.Filetype
}

// Readdir is a stateful cursor over a directory's entries, matching
// fd_readdir's cookie-based pagination contract (spec.md §4).
type Readdir interface {
	// Offset returns how many entries Next has returned so far, which is
	// the 0-based index of the entry Next will return next.
	Offset() uint64
	// Rewind seeks the cursor to offset, where 0 always succeeds.
	Rewind(offset uint64) wasiabi.Errno
	// Next returns the next entry, or (nil, ErrnoSuccess) at end of stream.
	Next() (*Dirent, wasiabi.Errno)
	Close() wasiabi.Errno
}

// File is the operation set every open descriptor's back-end implements.
// All methods return wasiabi.Errno rather than Go's error, mirroring the
// WASI boundary's constrained error vocabulary (spec.md §7).
type File interface {
	Stat() (Stat, wasiabi.Errno)
	IsDir() (bool, wasiabi.Errno)

	Read(buf []byte) (n int, errno wasiabi.Errno)
	Pread(buf []byte, off int64) (n int, errno wasiabi.Errno)
	Write(buf []byte) (n int, errno wasiabi.Errno)
	Pwrite(buf []byte, off int64) (n int, errno wasiabi.Errno)
	Seek(offset int64, whence wasiabi.Whence) (newOffset int64, errno wasiabi.Errno)

	// PollRead reports whether a subsequent Read would return data without
	// blocking past timeout (nil blocks indefinitely).
	PollRead(timeout *time.Duration) (ready bool, errno wasiabi.Errno)

	Readdir() (Readdir, wasiabi.Errno)

	Truncate(size int64) wasiabi.Errno
	Sync() wasiabi.Errno
	Datasync() wasiabi.Errno
	SetTimes(atim, mtim time.Time) wasiabi.Errno

	Close() wasiabi.Errno
}

// Driver is the per-mount operation set the virtual root (internal/vroot)
// and syscall service (internal/wasisvc) dispatch path_* operations to. A
// Driver resolves guest-relative paths within its own mount; internal/vroot
// is responsible for choosing which Driver owns a given path.
type Driver interface {
	// Mounted returns the Device identity of this mount.
	Mounted() *Device

	// OpenAt opens path relative to this driver's root.
	OpenAt(path string, oflags wasiabi.Oflags, fdflags wasiabi.Fdflags, write bool) (File, wasiabi.Errno)

	PathFilestatGet(path string) (Stat, wasiabi.Errno)
	PathCreateDirectory(path string) wasiabi.Errno
	PathRemoveDirectory(path string) wasiabi.Errno
	PathUnlinkFile(path string) wasiabi.Errno
	PathRename(oldPath, newPath string) wasiabi.Errno
	PathSetTimes(path string, atim, mtim time.Time) wasiabi.Errno
}

// Unimplemented is embedded by Driver implementations that don't support a
// given operation, so new Driver methods added later default to ENOSYS
// instead of failing to compile every existing driver.
type Unimplemented struct{}

func (Unimplemented) PathCreateDirectory(string) wasiabi.Errno        { return wasiabi.ErrnoNosys }
func (Unimplemented) PathRemoveDirectory(string) wasiabi.Errno        { return wasiabi.ErrnoNosys }
func (Unimplemented) PathUnlinkFile(string) wasiabi.Errno             { return wasiabi.ErrnoNosys }
func (Unimplemented) PathRename(string, string) wasiabi.Errno         { return wasiabi.ErrnoNosys }
func (Unimplemented) PathSetTimes(string, time.Time, time.Time) wasiabi.Errno {
	return wasiabi.ErrnoNosys
}

// ReadOnly is embedded by drivers backing read-only mounts (spec.md's
// extension-bundle mount kind): every mutating Driver method returns
// ErrnoPerm regardless of what Unimplemented would otherwise report.
type ReadOnly struct{}

func (ReadOnly) PathCreateDirectory(string) wasiabi.Errno        { return wasiabi.ErrnoPerm }
func (ReadOnly) PathRemoveDirectory(string) wasiabi.Errno        { return wasiabi.ErrnoPerm }
func (ReadOnly) PathUnlinkFile(string) wasiabi.Errno             { return wasiabi.ErrnoPerm }
func (ReadOnly) PathRename(string, string) wasiabi.Errno         { return wasiabi.ErrnoPerm }
func (ReadOnly) PathSetTimes(string, time.Time, time.Time) wasiabi.Errno {
	return wasiabi.ErrnoPerm
}

// ReadOnlyFile is embedded by File implementations backing a read-only
// mount: every mutating File method returns ErrnoPerm.
type ReadOnlyFile struct{}

func (ReadOnlyFile) Write([]byte) (int, wasiabi.Errno)          { return 0, wasiabi.ErrnoPerm }
func (ReadOnlyFile) Pwrite([]byte, int64) (int, wasiabi.Errno)  { return 0, wasiabi.ErrnoPerm }
func (ReadOnlyFile) Truncate(int64) wasiabi.Errno               { return wasiabi.ErrnoPerm }
func (ReadOnlyFile) SetTimes(time.Time, time.Time) wasiabi.Errno { return wasiabi.ErrnoPerm }

// NoopSync is embedded by File implementations with nothing to flush: Sync
// and Datasync succeed trivially, matching fsapi.File's documented
// "returns with no error instead of ENOSYS when unimplemented" contract.
type NoopSync struct{}

func (NoopSync) Sync() wasiabi.Errno     { return wasiabi.ErrnoSuccess }
func (NoopSync) Datasync() wasiabi.Errno { return wasiabi.ErrnoSuccess }
