package vroot

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// virtualDirFile is the synthetic directory descriptor path_open returns
// when a path resolves to a virtual directory, per spec.md §4.4.
type virtualDirFile struct {
	device.ReadOnlyFile
	device.NoopSync
	n *node
}

func newVirtualDirFile(n *node) *virtualDirFile { return &virtualDirFile{n: n} }

func (f *virtualDirFile) Stat() (device.Stat, wasiabi.Errno) {
	return syntheticStat(f.n), wasiabi.ErrnoSuccess
}

func (f *virtualDirFile) IsDir() (bool, wasiabi.Errno) { return true, wasiabi.ErrnoSuccess }

func (f *virtualDirFile) Read([]byte) (int, wasiabi.Errno)         { return 0, wasiabi.ErrnoIsdir }
func (f *virtualDirFile) Pread([]byte, int64) (int, wasiabi.Errno) { return 0, wasiabi.ErrnoIsdir }

func (f *virtualDirFile) Seek(int64, wasiabi.Whence) (int64, wasiabi.Errno) {
	return 0, wasiabi.ErrnoIsdir
}

func (f *virtualDirFile) PollRead(*time.Duration) (bool, wasiabi.Errno) {
	return true, wasiabi.ErrnoSuccess
}

func (f *virtualDirFile) Readdir() (device.Readdir, wasiabi.Errno) {
	var entries []*device.Dirent
	for name, child := range f.n.children {
		entries = append(entries, &device.Dirent{Ino: child.ino, Name: name, Filetype: wasiabi.FiletypeDirectory})
	}
	return &virtualDirCursor{entries: entries}, wasiabi.ErrnoSuccess
}

func (f *virtualDirFile) Close() wasiabi.Errno { return wasiabi.ErrnoSuccess }

// virtualDirCursor implements device.Readdir over a fixed snapshot of a
// virtual directory's children.
type virtualDirCursor struct {
	entries []*device.Dirent
	offset  int
}

func (c *virtualDirCursor) Offset() uint64 { return uint64(c.offset) }

func (c *virtualDirCursor) Rewind(offset uint64) wasiabi.Errno {
	if offset > uint64(len(c.entries)) {
		return wasiabi.ErrnoInval
	}
	c.offset = int(offset)
	return wasiabi.ErrnoSuccess
}

func (c *virtualDirCursor) Next() (*device.Dirent, wasiabi.Errno) {
	if c.offset >= len(c.entries) {
		return nil, wasiabi.ErrnoSuccess
	}
	e := c.entries[c.offset]
	c.offset++
	return e, wasiabi.ErrnoSuccess
}

func (c *virtualDirCursor) Close() wasiabi.Errno { return wasiabi.ErrnoSuccess }
