package editorfs

import (
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// cacheNode mirrors one editor path the guest has touched. Grounded on
// spec.md §4.2's "node cache": inode id, reference count, parent pointer,
// cached basename invalidated on rename/delete, lazily fetched content.
type cacheNode struct {
	ino      uint64
	refcount int32
	parent   *cacheNode
	name     string
	isDir    bool

	content []byte
	loaded  bool

	atim, mtim time.Time
}

// tombstone preserves a deleted-but-referenced node's stat and content so
// descriptors opened before the delete keep working, per spec.md §3.
type tombstone struct {
	stat    Stat
	content []byte
}

// FS is the filesystem-over-editor driver.
type FS struct {
	dev *device.Device
	cap Capability

	mu         sync.Mutex
	nextIno    uint64
	nodes      map[string]*cacheNode // editor path -> node
	tombstones map[uint64]*tombstone
	readOnly   bool
}

// New builds an editorfs driver over cap.
func New(dev *device.Device, cap Capability, readOnly bool) *FS {
	return &FS{
		dev: dev, cap: cap, nextIno: 2,
		nodes: map[string]*cacheNode{}, tombstones: map[uint64]*tombstone{},
		readOnly: readOnly,
	}
}

func (fs *FS) Mounted() *device.Device { return fs.dev }

func basename(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// getOrCreateNode returns the cached node for path, creating one (without
// bumping refcount) if absent. isDir reflects the freshly observed type
// when creating.
func (fs *FS) getOrCreateNode(path string, isDir bool) *cacheNode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n, ok := fs.nodes[path]; ok {
		return n
	}
	n := &cacheNode{ino: fs.nextIno, name: basename(path), isDir: isDir}
	fs.nextIno++
	fs.nodes[path] = n
	return n
}

func (fs *FS) dropNode(path string) *cacheNode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := fs.nodes[path]
	delete(fs.nodes, path)
	return n
}

func kindToFiletype(k EntryKind) wasiabi.Filetype {
	if k == EntryDirectory {
		return wasiabi.FiletypeDirectory
	}
	return wasiabi.FiletypeRegularFile
}

func toDeviceStat(ino uint64, s Stat) device.Stat {
	return device.Stat{
		Ino: ino, Filetype: kindToFiletype(s.Kind), Nlink: 1, Size: s.Size,
		Atim: s.Atim, Mtim: s.Mtim, Ctim: s.Mtim,
	}
}

// PathFilestatGet implements device.Driver.
func (fs *FS) PathFilestatGet(path string) (device.Stat, wasiabi.Errno) {
	stat, err := fs.cap.Stat(path)
	if err != nil {
		return device.Stat{}, toErrno(err)
	}
	n := fs.getOrCreateNode(path, stat.Kind == EntryDirectory)
	return toDeviceStat(n.ino, stat), wasiabi.ErrnoSuccess
}

// PathCreateDirectory implements device.Driver.
func (fs *FS) PathCreateDirectory(path string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	if err := fs.cap.Create(path, true); err != nil {
		return toErrno(err)
	}
	return wasiabi.ErrnoSuccess
}

// PathRemoveDirectory implements device.Driver.
func (fs *FS) PathRemoveDirectory(path string) wasiabi.Errno {
	return fs.unlink(path)
}

// PathUnlinkFile implements device.Driver.
func (fs *FS) PathUnlinkFile(path string) wasiabi.Errno {
	return fs.unlink(path)
}

// unlink implements spec.md §4.2's "stat and, if refcount>0, tombstone"
// delete policy, shared between unlink and rmdir.
func (fs *FS) unlink(path string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	stat, err := fs.cap.Stat(path)
	if err != nil {
		return toErrno(err)
	}

	fs.mu.Lock()
	n, hasNode := fs.nodes[path]
	fs.mu.Unlock()

	if hasNode && n.refcount > 0 {
		fs.mu.Lock()
		fs.tombstones[n.ino] = &tombstone{
			stat:    stat,
			content: append([]byte(nil), n.content...),
		}
		fs.mu.Unlock()
	}

	if err := fs.cap.Delete(path); err != nil {
		return toErrno(err)
	}
	fs.dropNode(path)
	return wasiabi.ErrnoSuccess
}

// PathRename implements device.Driver. On success, the cached node moves to
// the new path while keeping its inode id, so open descriptors referencing
// the renamed file keep seeing the same cached content.
func (fs *FS) PathRename(oldPath, newPath string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	if err := fs.cap.Rename(oldPath, newPath); err != nil {
		return toErrno(err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n, ok := fs.nodes[oldPath]; ok {
		delete(fs.nodes, oldPath)
		n.name = basename(newPath)
		fs.nodes[newPath] = n
	}
	return wasiabi.ErrnoSuccess
}

// PathSetTimes implements device.Driver. The editor capability has no
// utimes equivalent; this runtime only caches the requested times.
func (fs *FS) PathSetTimes(path string, atim, mtim time.Time) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	n := fs.getOrCreateNode(path, false)
	fs.mu.Lock()
	n.atim, n.mtim = atim, mtim
	fs.mu.Unlock()
	return wasiabi.ErrnoSuccess
}

// OpenAt implements device.Driver, following spec.md §4.2's path_open
// policy: stat, then branch on absent/present, then optionally zero-length
// write for O_CREAT/O_TRUNC.
func (fs *FS) OpenAt(path string, oflags wasiabi.Oflags, fdflags wasiabi.Fdflags, write bool) (device.File, wasiabi.Errno) {
	stat, err := fs.cap.Stat(path)
	exists := err == nil
	if !exists {
		ee, ok := err.(*Error)
		if !ok || ee.Code != ErrFileNotFound {
			return nil, toErrno(err)
		}
		if oflags&wasiabi.OflagCreat == 0 {
			return nil, wasiabi.ErrnoNoent
		}
		if fs.readOnly {
			return nil, wasiabi.ErrnoPerm
		}
		if err := fs.cap.Create(path, false); err != nil {
			return nil, toErrno(err)
		}
		stat = Stat{Kind: EntryFile}
	} else if oflags&wasiabi.OflagExcl != 0 {
		return nil, wasiabi.ErrnoExist
	}

	if oflags&wasiabi.OflagDirectory != 0 && stat.Kind != EntryDirectory {
		return nil, wasiabi.ErrnoNotdir
	}
	if write && fs.readOnly {
		return nil, wasiabi.ErrnoPerm
	}

	n := fs.getOrCreateNode(path, stat.Kind == EntryDirectory)
	fs.mu.Lock()
	n.refcount++
	fs.mu.Unlock()

	f := &file{fs: fs, path: path, n: n, append: fdflags&wasiabi.FdflagAppend != 0}

	if stat.Kind != EntryDirectory && (oflags&wasiabi.OflagCreat != 0 || oflags&wasiabi.OflagTrunc != 0) {
		if fs.readOnly {
			return nil, wasiabi.ErrnoPerm
		}
		if err := fs.cap.Write(path, nil); err != nil {
			return nil, toErrno(err)
		}
		fs.mu.Lock()
		n.content = nil
		n.loaded = true
		fs.mu.Unlock()
	}

	return f, wasiabi.ErrnoSuccess
}
