// Package vroot composes multiple device.Driver mounts into one POSIX
// namespace when more than one mount exists (or a non-root mount exists),
// per spec.md §4.4.
//
// Grounded on spec.md §4.4's find/add_mount/path_open text directly; the
// tree-of-virtual-directories-with-mount-leaves shape follows
// moby-moby's layered-filesystem path resolvers (walk-then-dispatch over a
// segment tree) adapted to this runtime's device.Driver contract.
package vroot

import (
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// node is one entry in the virtual directory tree: either a pure virtual
// directory (children non-nil, driver nil) or a mount-point leaf (driver
// set, children nil).
type node struct {
	ino      uint64
	name     string
	children map[string]*node
	driver   device.Driver
}

func (n *node) isMount() bool { return n.driver != nil }

// Root composes mounted drivers under distinct paths into one namespace.
type Root struct {
	mu      sync.Mutex
	dev     *device.Device
	root    *node
	nextIno uint64
	started time.Time
}

// New builds an empty virtual root. Callers add mounts with AddMount before
// serving any guest syscall.
func New(dev *device.Device) *Root {
	return &Root{
		dev:     dev,
		root:    &node{ino: 1, name: "", children: map[string]*node{}},
		nextIno: 2,
		started: time.Now(),
	}
}

func (r *Root) Mounted() *device.Device { return r.dev }

func tokenize(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// AddMount attaches driver at path, creating intermediate virtual
// directories as needed. Mounting over an existing mount fails.
func (r *Root) AddMount(path string, driver device.Driver) wasiabi.Errno {
	r.mu.Lock()
	defer r.mu.Unlock()

	segs := tokenize(path)
	if len(segs) == 0 {
		if r.root.isMount() {
			return wasiabi.ErrnoExist
		}
		r.root.driver = driver
		return wasiabi.ErrnoSuccess
	}

	cur := r.root
	for _, seg := range segs[:len(segs)-1] {
		if cur.isMount() {
			return wasiabi.ErrnoExist
		}
		child, ok := cur.children[seg]
		if !ok {
			child = &node{ino: r.nextIno, name: seg, children: map[string]*node{}}
			r.nextIno++
			cur.children[seg] = child
		}
		cur = child
	}

	last := segs[len(segs)-1]
	if cur.isMount() {
		return wasiabi.ErrnoExist
	}
	if existing, ok := cur.children[last]; ok && existing.isMount() {
		return wasiabi.ErrnoExist
	}
	cur.children[last] = &node{ino: r.nextIno, name: last, driver: driver}
	r.nextIno++
	return wasiabi.ErrnoSuccess
}

// findResult is what find returns: either a virtual directory (mount nil)
// or a mount with the remainder path still to resolve within it.
type findResult struct {
	dir      *node // non-nil only when the walk ends at a virtual directory
	mount    *node // non-nil only when the walk ends at, or passes through, a mount
	remainder string
}

// find walks path from the root, per spec.md §4.4: if a mount node is hit
// mid-path, returns (mount, remainder-of-path-joined); if the walk ends at
// a virtual directory, returns (dir, none); if it ends at a mount itself,
// returns (mount, ".").
func (r *Root) find(path string) findResult {
	segs := tokenize(path)
	cur := r.root
	if cur.isMount() {
		return findResult{mount: cur, remainder: joinRemainder(segs)}
	}
	for i, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			return findResult{}
		}
		if child.isMount() {
			return findResult{mount: child, remainder: joinRemainder(segs[i+1:])}
		}
		cur = child
	}
	return findResult{dir: cur}
}

func joinRemainder(segs []string) string {
	if len(segs) == 0 {
		return "."
	}
	return strings.Join(segs, "/")
}

func syntheticStat(n *node) device.Stat {
	return device.Stat{
		Ino: n.ino, Filetype: wasiabi.FiletypeDirectory, Nlink: 1,
		Size: uint64(len(n.children)),
	}
}

// PathFilestatGet implements device.Driver for virtual-directory paths;
// calls landing on a mount are forwarded to that driver.
func (r *Root) PathFilestatGet(path string) (device.Stat, wasiabi.Errno) {
	r.mu.Lock()
	res := r.find(path)
	r.mu.Unlock()

	switch {
	case res.dir != nil:
		return syntheticStat(res.dir), wasiabi.ErrnoSuccess
	case res.mount != nil:
		return res.mount.driver.PathFilestatGet(res.remainder)
	default:
		return device.Stat{}, wasiabi.ErrnoNoent
	}
}

// OpenAt implements device.Driver: virtual directories get a synthetic
// directory descriptor; mounts are forwarded with the remainder path.
func (r *Root) OpenAt(path string, oflags wasiabi.Oflags, fdflags wasiabi.Fdflags, write bool) (device.File, wasiabi.Errno) {
	r.mu.Lock()
	res := r.find(path)
	r.mu.Unlock()

	switch {
	case res.dir != nil:
		if write {
			return nil, wasiabi.ErrnoPerm
		}
		return newVirtualDirFile(res.dir), wasiabi.ErrnoSuccess
	case res.mount != nil:
		return res.mount.driver.OpenAt(res.remainder, oflags, fdflags, write)
	default:
		return nil, wasiabi.ErrnoNoent
	}
}

// PathCreateDirectory implements device.Driver: perm inside a virtual
// directory, delegated inside a mount.
func (r *Root) PathCreateDirectory(path string) wasiabi.Errno {
	return r.delegateOrPerm(path, func(d device.Driver, rel string) wasiabi.Errno {
		return d.PathCreateDirectory(rel)
	})
}

func (r *Root) PathRemoveDirectory(path string) wasiabi.Errno {
	return r.delegateOrPerm(path, func(d device.Driver, rel string) wasiabi.Errno {
		return d.PathRemoveDirectory(rel)
	})
}

func (r *Root) PathUnlinkFile(path string) wasiabi.Errno {
	return r.delegateOrPerm(path, func(d device.Driver, rel string) wasiabi.Errno {
		return d.PathUnlinkFile(rel)
	})
}

func (r *Root) PathSetTimes(path string, atim, mtim time.Time) wasiabi.Errno {
	return r.delegateOrPerm(path, func(d device.Driver, rel string) wasiabi.Errno {
		return d.PathSetTimes(rel, atim, mtim)
	})
}

func (r *Root) delegateOrPerm(path string, op func(device.Driver, string) wasiabi.Errno) wasiabi.Errno {
	r.mu.Lock()
	res := r.find(path)
	r.mu.Unlock()

	switch {
	case res.mount != nil:
		return op(res.mount.driver, res.remainder)
	case res.dir != nil:
		return wasiabi.ErrnoPerm
	default:
		return wasiabi.ErrnoNoent
	}
}

// PathRename implements device.Driver. Per spec.md §4.2, a rename requires
// both paths to resolve to the same device; cross-device (including into
// a virtual directory) fails nosys rather than being attempted.
func (r *Root) PathRename(oldPath, newPath string) wasiabi.Errno {
	r.mu.Lock()
	oldRes := r.find(oldPath)
	newRes := r.find(newPath)
	r.mu.Unlock()

	if oldRes.mount == nil || newRes.mount == nil {
		return wasiabi.ErrnoNosys
	}
	if oldRes.mount != newRes.mount {
		return wasiabi.ErrnoNosys
	}
	return oldRes.mount.driver.PathRename(oldRes.remainder, newRes.remainder)
}

// Locate forward-maps an absolute virtual path to the mounted device
// backing it and the remainder path within that device, for the
// path-to-native-locator direction of the root filesystem façade.
func (r *Root) Locate(path string) (dev *device.Device, remainder string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.find(path)
	if res.mount == nil {
		return nil, "", false
	}
	return res.mount.driver.Mounted(), res.remainder, true
}

// MakeVirtualPath reverse-maps driver and a relative path to the absolute
// virtual path under which driver is mounted, per spec.md §4.4.
func (r *Root) MakeVirtualPath(driver device.Driver, rel string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix, ok := r.findMountPath(r.root, nil, driver)
	if !ok {
		return "", false
	}
	if rel == "" || rel == "." {
		return "/" + strings.Join(prefix, "/"), true
	}
	return "/" + strings.Join(append(prefix, tokenize(rel)...), "/"), true
}

func (r *Root) findMountPath(n *node, path []string, driver device.Driver) ([]string, bool) {
	if n.isMount() {
		if n.driver == driver {
			return path, true
		}
		return nil, false
	}
	for name, child := range n.children {
		if p, ok := r.findMountPath(child, append(append([]string{}, path...), name), driver); ok {
			return p, true
		}
	}
	return nil, false
}

// Readdir enumerates the virtual children of the directory at path (not
// the contents of any mount), per spec.md §4.4's fd_readdir(root) text.
func (r *Root) Readdir(path string) (device.Readdir, wasiabi.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.find(path)
	if res.dir == nil {
		if res.mount != nil {
			return nil, wasiabi.ErrnoNotdir
		}
		return nil, wasiabi.ErrnoNoent
	}
	var entries []*device.Dirent
	for name, child := range res.dir.children {
		ft := wasiabi.FiletypeDirectory
		entries = append(entries, &device.Dirent{Ino: child.ino, Name: name, Filetype: ft})
	}
	return &virtualDirCursor{entries: entries}, wasiabi.ErrnoSuccess
}
