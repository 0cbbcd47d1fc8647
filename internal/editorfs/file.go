package editorfs

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

type file struct {
	fs     *FS
	path   string
	n      *cacheNode
	cursor int64
	append bool
	closed bool
}

// ensureLoaded fetches path's content through the editor capability on
// first read and caches it on the node, per spec.md §4.2.
func (f *file) ensureLoaded() wasiabi.Errno {
	f.fs.mu.Lock()
	loaded := f.n.loaded
	f.fs.mu.Unlock()
	if loaded {
		return wasiabi.ErrnoSuccess
	}
	content, err := f.fs.cap.Read(f.path)
	if err != nil {
		return toErrno(err)
	}
	f.fs.mu.Lock()
	f.n.content = content
	f.n.loaded = true
	f.fs.mu.Unlock()
	return wasiabi.ErrnoSuccess
}

func (f *file) Stat() (device.Stat, wasiabi.Errno) {
	return f.fs.PathFilestatGet(f.path)
}

func (f *file) IsDir() (bool, wasiabi.Errno) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.n.isDir, wasiabi.ErrnoSuccess
}

// Read implements spec.md §4.2's fd_read: read cached content from cursor,
// advancing cursor by the bytes returned.
func (f *file) Read(buf []byte) (int, wasiabi.Errno) {
	n, errno := f.Pread(buf, f.cursor)
	if errno == wasiabi.ErrnoSuccess {
		f.cursor += int64(n)
	}
	return n, errno
}

func (f *file) Pread(buf []byte, off int64) (int, wasiabi.Errno) {
	if f.n.isDir {
		return 0, wasiabi.ErrnoIsdir
	}
	if errno := f.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
		return 0, errno
	}
	if off < 0 {
		return 0, wasiabi.ErrnoInval
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if off >= int64(len(f.n.content)) {
		return 0, wasiabi.ErrnoSuccess
	}
	return copy(buf, f.n.content[off:]), wasiabi.ErrnoSuccess
}

// Write implements spec.md §4.2's fd_write: if append, reset cursor to
// content length; grow the buffer to cursor+len(buf); persist to the
// back-end; advance cursor.
func (f *file) Write(buf []byte) (int, wasiabi.Errno) {
	if f.append {
		if errno := f.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
			return 0, errno
		}
		f.fs.mu.Lock()
		f.cursor = int64(len(f.n.content))
		f.fs.mu.Unlock()
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
	if f.n.isDir {
		return 0, wasiabi.ErrnoIsdir
	}
	if off < 0 {
		return 0, wasiabi.ErrnoInval
	}
	if errno := f.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
		return 0, errno
	}

	f.fs.mu.Lock()
	need := off + int64(len(buf))
	if need > int64(len(f.n.content)) {
		grown := make([]byte, need)
		copy(grown, f.n.content)
		f.n.content = grown
	}
	n := copy(f.n.content[off:], buf)
	snapshot := append([]byte(nil), f.n.content...)
	f.n.mtim = time.Now()
	f.fs.mu.Unlock()

	if err := f.fs.cap.Write(f.path, snapshot); err != nil {
		return 0, toErrno(err)
	}
	return n, wasiabi.ErrnoSuccess
}

func (f *file) Seek(offset int64, whence wasiabi.Whence) (int64, wasiabi.Errno) {
	if errno := f.ensureLoaded(); errno != wasiabi.ErrnoSuccess && !f.n.isDir {
		return 0, errno
	}
	f.fs.mu.Lock()
	size := int64(len(f.n.content))
	f.fs.mu.Unlock()

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
	return true, wasiabi.ErrnoSuccess
}

// Readdir implements spec.md §4.2's fd_readdir: list entries from the
// back-end; for each, get-or-create a child node (refcount not bumped).
func (f *file) Readdir() (device.Readdir, wasiabi.Errno) {
	if !f.n.isDir {
		return nil, wasiabi.ErrnoNotdir
	}
	entries, err := f.fs.cap.Readdir(f.path)
	if err != nil {
		return nil, toErrno(err)
	}
	out := make([]*device.Dirent, 0, len(entries))
	for _, e := range entries {
		childPath := f.path
		if len(childPath) > 0 && childPath[len(childPath)-1] != '/' {
			childPath += "/"
		}
		childPath += e.Name
		child := f.fs.getOrCreateNode(childPath, e.Kind == EntryDirectory)
		out = append(out, &device.Dirent{Ino: child.ino, Name: e.Name, Filetype: kindToFiletype(e.Kind)})
	}
	return &dirCursor{entries: out}, wasiabi.ErrnoSuccess
}

func (f *file) Truncate(size int64) wasiabi.Errno {
	if f.fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	if f.n.isDir {
		return wasiabi.ErrnoIsdir
	}
	if size < 0 {
		return wasiabi.ErrnoInval
	}
	if errno := f.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
		return errno
	}
	f.fs.mu.Lock()
	grown := make([]byte, size)
	copy(grown, f.n.content)
	f.n.content = grown
	snapshot := append([]byte(nil), grown...)
	f.fs.mu.Unlock()

	if err := f.fs.cap.Write(f.path, snapshot); err != nil {
		return toErrno(err)
	}
	return wasiabi.ErrnoSuccess
}

func (f *file) Sync() wasiabi.Errno     { return wasiabi.ErrnoSuccess }
func (f *file) Datasync() wasiabi.Errno { return wasiabi.ErrnoSuccess }

func (f *file) SetTimes(atim, mtim time.Time) wasiabi.Errno {
	return f.fs.PathSetTimes(f.path, atim, mtim)
}

// Close decrements the node's reference count, per spec.md §3's descriptor
// lifecycle ("fd_close... decrements the inode's refcount").
func (f *file) Close() wasiabi.Errno {
	if f.closed {
		return wasiabi.ErrnoSuccess
	}
	f.closed = true
	f.fs.mu.Lock()
	f.n.refcount--
	f.fs.mu.Unlock()
	return wasiabi.ErrnoSuccess
}

type dirCursor struct {
	entries []*device.Dirent
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
	e := c.entries[c.offset]
	c.offset++
	return e, wasiabi.ErrnoSuccess
}

func (c *dirCursor) Close() wasiabi.Errno { return wasiabi.ErrnoSuccess }
