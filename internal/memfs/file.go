package memfs

import (
	"sort"
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

type file struct {
	n      *node
	fs     *FS
	cursor int64
	append bool

	dirSnapshot []*node
	dirOffset   int
}

func (f *file) Stat() (device.Stat, wasiabi.Errno) {
	return statOf(f.n), wasiabi.ErrnoSuccess
}

func (f *file) IsDir() (bool, wasiabi.Errno) {
	return f.n.kind == kindDir, wasiabi.ErrnoSuccess
}

func (f *file) Read(buf []byte) (int, wasiabi.Errno) {
	n, errno := f.Pread(buf, f.cursor)
	if errno == wasiabi.ErrnoSuccess {
		f.cursor += int64(n)
	}
	return n, errno
}

func (f *file) Pread(buf []byte, off int64) (int, wasiabi.Errno) {
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	switch f.n.kind {
	case kindDir:
		return 0, wasiabi.ErrnoIsdir
	case kindCharDevice:
		if f.n.readable == nil {
			return 0, wasiabi.ErrnoNosys
		}
		return f.n.readable(buf)
	}
	if errno := f.n.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
		return 0, errno
	}
	if off < 0 {
		return 0, wasiabi.ErrnoInval
	}
	if off >= int64(len(f.n.content)) {
		return 0, wasiabi.ErrnoSuccess
	}
	n := copy(buf, f.n.content[off:])
	return n, wasiabi.ErrnoSuccess
}

func (f *file) Write(buf []byte) (int, wasiabi.Errno) {
	if f.append {
		f.n.mu.Lock()
		f.cursor = int64(len(f.n.content))
		f.n.mu.Unlock()
	}
	n, errno := f.Pwrite(buf, f.cursor)
	if errno == wasiabi.ErrnoSuccess {
		f.cursor += int64(n)
	}
	return n, errno
}

func (f *file) Pwrite(buf []byte, off int64) (int, wasiabi.Errno) {
	if f.fs.readOnly {
		return 0, wasiabi.ErrnoPerm
	}
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	switch f.n.kind {
	case kindDir:
		return 0, wasiabi.ErrnoIsdir
	case kindCharDevice:
		if f.n.writable == nil {
			return 0, wasiabi.ErrnoNosys
		}
		return f.n.writable(buf)
	}
	if off < 0 {
		return 0, wasiabi.ErrnoInval
	}
	need := off + int64(len(buf))
	if need > int64(len(f.n.content)) {
		grown := make([]byte, need)
		copy(grown, f.n.content)
		f.n.content = grown
	}
	n := copy(f.n.content[off:], buf)
	f.n.loaded = true
	f.n.mtim = time.Now()
	return n, wasiabi.ErrnoSuccess
}

func (f *file) Seek(offset int64, whence wasiabi.Whence) (int64, wasiabi.Errno) {
	f.n.mu.Lock()
	size := int64(len(f.n.content))
	f.n.mu.Unlock()

	var next int64
	switch whence {
	case wasiabi.WhenceSet:
		next = offset
	case wasiabi.WhenceCur:
		next = f.cursor + offset
	case wasiabi.WhenceEnd:
		next = size + offset
	default:
		return 0, wasiabi.ErrnoInval
	}
	if next < 0 {
		return 0, wasiabi.ErrnoInval
	}
	f.cursor = next
	return next, wasiabi.ErrnoSuccess
}

func (f *file) PollRead(timeout *time.Duration) (bool, wasiabi.Errno) {
	// In-memory content is always immediately available; no blocking I/O
	// happens underneath a memfs node.
	return true, wasiabi.ErrnoSuccess
}

func (f *file) Readdir() (device.Readdir, wasiabi.Errno) {
	if f.n.kind != kindDir {
		return nil, wasiabi.ErrnoNotdir
	}
	f.n.mu.Lock()
	names := make([]string, 0, len(f.n.children))
	for name := range f.n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	snapshot := make([]*node, 0, len(names))
	for _, name := range names {
		snapshot = append(snapshot, f.n.children[name])
	}
	f.n.mu.Unlock()
	return &dirCursor{entries: snapshot}, wasiabi.ErrnoSuccess
}

func (f *file) Truncate(size int64) wasiabi.Errno {
	if f.fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	if f.n.kind == kindDir {
		return wasiabi.ErrnoIsdir
	}
	if size < 0 {
		return wasiabi.ErrnoInval
	}
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	if errno := f.n.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if int64(len(f.n.content)) == size {
		return wasiabi.ErrnoSuccess
	}
	grown := make([]byte, size)
	copy(grown, f.n.content)
	f.n.content = grown
	f.n.mtim = time.Now()
	return wasiabi.ErrnoSuccess
}

func (f *file) Sync() wasiabi.Errno     { return wasiabi.ErrnoSuccess }
func (f *file) Datasync() wasiabi.Errno { return wasiabi.ErrnoSuccess }

func (f *file) SetTimes(atim, mtim time.Time) wasiabi.Errno {
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	f.n.atim, f.n.mtim = atim, mtim
	return wasiabi.ErrnoSuccess
}

func (f *file) Close() wasiabi.Errno { return wasiabi.ErrnoSuccess }

// dirCursor walks a point-in-time snapshot of a directory's children, taken
// when Readdir creates the cursor. Rewind only moves within that snapshot;
// a fresh listing takes a new Readdir call, as fd_readdir does on cookie==0.
type dirCursor struct {
	entries []*node
	offset  int
}

func (c *dirCursor) Offset() uint64 { return uint64(c.offset) }

func (c *dirCursor) Rewind(offset uint64) wasiabi.Errno {
	if offset > uint64(len(c.entries)) {
		return wasiabi.ErrnoInval
	}
	c.offset = int(offset)
	return wasiabi.ErrnoSuccess
}

func (c *dirCursor) Next() (*device.Dirent, wasiabi.Errno) {
	if c.offset >= len(c.entries) {
		return nil, wasiabi.ErrnoSuccess
	}
	n := c.entries[c.offset]
	c.offset++
	return &device.Dirent{Ino: n.ino, Name: n.name, Filetype: n.filetype()}, wasiabi.ErrnoSuccess
}

func (c *dirCursor) Close() wasiabi.Errno { return wasiabi.ErrnoSuccess }
