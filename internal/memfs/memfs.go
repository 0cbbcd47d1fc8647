// Package memfs implements the in-memory filesystem driver: a process-local
// tree of files, directories, and character-device nodes with zero external
// I/O, optionally read-only.
//
// Grounded on tetratelabs/wazero's internal/fsapi.File contract (method
// shapes, PollRead semantics) generalized to wasiabi.Errno, and on
// spec.md §4.3's node model (inline-or-lazy file content, directory size
// formula, inode numbering from 2).
package memfs

import (
	"sync"
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// direntSize is the on-wire size of one fd_readdir record, used by the
// directory size formula in spec.md §4.3.
const direntSize = 24
const dirBlockSize = 4096

// ReaderThunk lazily produces a file's content the first time it is read,
// for nodes materialized on demand rather than populated up front.
type ReaderThunk func() ([]byte, wasiabi.Errno)

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDir
	kindCharDevice
)

type node struct {
	mu sync.Mutex

	ino  uint64
	kind nodeKind
	name string

	// kindFile
	content []byte
	thunk   ReaderThunk
	loaded  bool

	// kindDir
	children map[string]*node
	parent   *node

	// kindCharDevice
	readable func(buf []byte) (int, wasiabi.Errno)
	writable func(buf []byte) (int, wasiabi.Errno)

	atim, mtim, ctim time.Time
}

func (n *node) ensureLoaded() wasiabi.Errno {
	if n.loaded || n.thunk == nil {
		return wasiabi.ErrnoSuccess
	}
	content, errno := n.thunk()
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	n.content = content
	n.loaded = true
	return wasiabi.ErrnoSuccess
}

func (n *node) filetype() wasiabi.Filetype {
	switch n.kind {
	case kindDir:
		return wasiabi.FiletypeDirectory
	case kindCharDevice:
		return wasiabi.FiletypeCharacterDevice
	default:
		return wasiabi.FiletypeRegularFile
	}
}

func (n *node) size() uint64 {
	switch n.kind {
	case kindDir:
		entries := uint64(len(n.children))
		blocks := (entries*direntSize + dirBlockSize - 1) / dirBlockSize
		if blocks == 0 {
			blocks = 1
		}
		return blocks * dirBlockSize
	case kindCharDevice:
		return 101
	default:
		return uint64(len(n.content))
	}
}

// FS is an in-memory filesystem instance.
type FS struct {
	mu       sync.Mutex
	dev      *device.Device
	root     *node
	nextIno  uint64
	readOnly bool
}

// New creates an empty, optionally read-only in-memory filesystem mounted
// as dev.
func New(dev *device.Device, readOnly bool) *FS {
	fs := &FS{dev: dev, nextIno: 2, readOnly: readOnly}
	fs.root = &node{ino: 1, kind: kindDir, children: map[string]*node{}}
	now := time.Now()
	fs.root.atim, fs.root.mtim, fs.root.ctim = now, now, now
	return fs
}

func (fs *FS) allocIno() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextIno
	fs.nextIno++
	return ino
}

// Mounted implements device.Driver.
func (fs *FS) Mounted() *device.Device { return fs.dev }

// WriteFile installs a file node at path (creating intermediate
// directories), used by process construction to seed a memory filesystem
// with a bundle's contents before the guest starts.
func (fs *FS) WriteFile(path string, content []byte) wasiabi.Errno {
	dir, base, errno := fs.resolveParent(path, true)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	now := time.Now()
	dir.children[base] = &node{
		ino: fs.allocIno(), kind: kindFile, name: base, parent: dir,
		content: content, loaded: true,
		atim: now, mtim: now, ctim: now,
	}
	return wasiabi.ErrnoSuccess
}

// WriteLazyFile installs a file node whose content is fetched on first
// read, for bundles that stream large assets.
func (fs *FS) WriteLazyFile(path string, thunk ReaderThunk) wasiabi.Errno {
	dir, base, errno := fs.resolveParent(path, true)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	now := time.Now()
	dir.children[base] = &node{
		ino: fs.allocIno(), kind: kindFile, name: base, parent: dir,
		thunk: thunk, atim: now, mtim: now, ctim: now,
	}
	return wasiabi.ErrnoSuccess
}

// WriteCharDevice installs a character-device node at path, bound to the
// given optional read/write callbacks.
func (fs *FS) WriteCharDevice(path string, readable, writable func([]byte) (int, wasiabi.Errno)) wasiabi.Errno {
	dir, base, errno := fs.resolveParent(path, true)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	now := time.Now()
	dir.children[base] = &node{
		ino: fs.allocIno(), kind: kindCharDevice, name: base, parent: dir,
		readable: readable, writable: writable,
		atim: now, mtim: now, ctim: now,
	}
	return wasiabi.ErrnoSuccess
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				seg := path[start:i]
				if seg != "." {
					parts = append(parts, seg)
				}
			}
			start = i + 1
		}
	}
	return parts
}

// resolveParent walks to the directory containing path's final segment,
// creating intermediate directories when mkdirAll is set.
func (fs *FS) resolveParent(path string, mkdirAll bool) (*node, string, wasiabi.Errno) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", wasiabi.ErrnoInval
	}
	dir := fs.root
	for _, seg := range parts[:len(parts)-1] {
		dir.mu.Lock()
		child, ok := dir.children[seg]
		if !ok {
			if !mkdirAll {
				dir.mu.Unlock()
				return nil, "", wasiabi.ErrnoNoent
			}
			child = &node{ino: fs.allocIno(), kind: kindDir, name: seg, parent: dir, children: map[string]*node{}}
			dir.children[seg] = child
		}
		dir.mu.Unlock()
		if child.kind != kindDir {
			return nil, "", wasiabi.ErrnoNotdir
		}
		dir = child
	}
	return dir, parts[len(parts)-1], wasiabi.ErrnoSuccess
}

func (fs *FS) resolve(path string) (*node, wasiabi.Errno) {
	parts := splitPath(path)
	n := fs.root
	for _, seg := range parts {
		n.mu.Lock()
		if n.kind != kindDir {
			n.mu.Unlock()
			return nil, wasiabi.ErrnoNotdir
		}
		child, ok := n.children[seg]
		n.mu.Unlock()
		if !ok {
			return nil, wasiabi.ErrnoNoent
		}
		n = child
	}
	return n, wasiabi.ErrnoSuccess
}

func statOf(n *node) device.Stat {
	n.mu.Lock()
	defer n.mu.Unlock()
	return device.Stat{
		Ino: n.ino, Filetype: n.filetype(), Nlink: 1, Size: n.size(),
		Atim: n.atim, Mtim: n.mtim, Ctim: n.ctim,
	}
}

// PathFilestatGet implements device.Driver.
func (fs *FS) PathFilestatGet(path string) (device.Stat, wasiabi.Errno) {
	n, errno := fs.resolve(path)
	if errno != wasiabi.ErrnoSuccess {
		return device.Stat{}, errno
	}
	return statOf(n), wasiabi.ErrnoSuccess
}

// PathCreateDirectory implements device.Driver.
func (fs *FS) PathCreateDirectory(path string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	dir, base, errno := fs.resolveParent(path, false)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, exists := dir.children[base]; exists {
		return wasiabi.ErrnoExist
	}
	now := time.Now()
	dir.children[base] = &node{
		ino: fs.allocIno(), kind: kindDir, name: base, parent: dir,
		children: map[string]*node{}, atim: now, mtim: now, ctim: now,
	}
	return wasiabi.ErrnoSuccess
}

// PathRemoveDirectory implements device.Driver.
func (fs *FS) PathRemoveDirectory(path string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	return fs.unlink(path, kindDir)
}

// PathUnlinkFile implements device.Driver.
func (fs *FS) PathUnlinkFile(path string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	return fs.unlink(path, kindFile)
}

func (fs *FS) unlink(path string, want nodeKind) wasiabi.Errno {
	dir, base, errno := fs.resolveParent(path, false)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	child, ok := dir.children[base]
	if !ok {
		return wasiabi.ErrnoNoent
	}
	if want == kindDir && child.kind != kindDir {
		return wasiabi.ErrnoNotdir
	}
	if want == kindFile && child.kind == kindDir {
		return wasiabi.ErrnoIsdir
	}
	if child.kind == kindDir && len(child.children) > 0 {
		return wasiabi.ErrnoNotempty
	}
	delete(dir.children, base)
	return wasiabi.ErrnoSuccess
}

// PathRename implements device.Driver.
func (fs *FS) PathRename(oldPath, newPath string) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	oldDir, oldBase, errno := fs.resolveParent(oldPath, false)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	newDir, newBase, errno := fs.resolveParent(newPath, false)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	oldDir.mu.Lock()
	child, ok := oldDir.children[oldBase]
	if !ok {
		oldDir.mu.Unlock()
		return wasiabi.ErrnoNoent
	}
	delete(oldDir.children, oldBase)
	oldDir.mu.Unlock()

	child.name = newBase
	child.parent = newDir
	newDir.mu.Lock()
	newDir.children[newBase] = child
	newDir.mu.Unlock()
	return wasiabi.ErrnoSuccess
}

// PathSetTimes implements device.Driver.
func (fs *FS) PathSetTimes(path string, atim, mtim time.Time) wasiabi.Errno {
	if fs.readOnly {
		return wasiabi.ErrnoPerm
	}
	n, errno := fs.resolve(path)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.atim, n.mtim = atim, mtim
	return wasiabi.ErrnoSuccess
}

// OpenAt implements device.Driver.
func (fs *FS) OpenAt(path string, oflags wasiabi.Oflags, fdflags wasiabi.Fdflags, write bool) (device.File, wasiabi.Errno) {
	n, errno := fs.resolve(path)
	if errno == wasiabi.ErrnoNoent && oflags&wasiabi.OflagCreat != 0 {
		if fs.readOnly {
			return nil, wasiabi.ErrnoPerm
		}
		dir, base, perr := fs.resolveParent(path, false)
		if perr != wasiabi.ErrnoSuccess {
			return nil, perr
		}
		dir.mu.Lock()
		now := time.Now()
		n = &node{ino: fs.allocIno(), kind: kindFile, name: base, parent: dir, loaded: true, atim: now, mtim: now, ctim: now}
		dir.children[base] = n
		dir.mu.Unlock()
	} else if errno != wasiabi.ErrnoSuccess {
		return nil, errno
	} else if oflags&wasiabi.OflagExcl != 0 {
		return nil, wasiabi.ErrnoExist
	}

	if oflags&wasiabi.OflagDirectory != 0 && n.kind != kindDir {
		return nil, wasiabi.ErrnoNotdir
	}
	if write && fs.readOnly {
		return nil, wasiabi.ErrnoPerm
	}
	if n.kind == kindFile && (oflags&wasiabi.OflagTrunc != 0) {
		if fs.readOnly {
			return nil, wasiabi.ErrnoPerm
		}
		n.mu.Lock()
		n.content = nil
		n.loaded = true
		n.mu.Unlock()
	}

	f := &file{n: n, fs: fs, append: fdflags&wasiabi.FdflagAppend != 0}
	if n.kind == kindFile && f.append {
		n.mu.Lock()
		if errno := n.ensureLoaded(); errno != wasiabi.ErrnoSuccess {
			n.mu.Unlock()
			return nil, errno
		}
		f.cursor = int64(len(n.content))
		n.mu.Unlock()
	}
	return f, wasiabi.ErrnoSuccess
}
