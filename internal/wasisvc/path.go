package wasisvc

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/fdtable"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// resolveDir looks up dirfd and, if it names a directory descriptor with a
// known virtual path, returns the absolute path rel resolves to beneath it.
func (s *Service) resolveDir(dirfd int32, rel string) (*fdtable.Descriptor, string, wasiabi.Errno) {
	d, ok := s.fds.Lookup(dirfd)
	if !ok {
		return nil, "", wasiabi.ErrnoBadf
	}
	if d.Filetype != wasiabi.FiletypeDirectory || d.VirtualPath == "" {
		return nil, "", wasiabi.ErrnoNotdir
	}
	return d, joinVirtualPath(d.VirtualPath, rel), wasiabi.ErrnoSuccess
}

// PathOpen implements path_open per spec.md §4.2/§4.5: rights-check the
// caller, resolve the absolute virtual path, dispatch to the root driver,
// narrow requested rights to what the parent permits, and install the new
// descriptor.
func (s *Service) PathOpen(dirfd int32, path string, oflags wasiabi.Oflags, fdflags wasiabi.Fdflags, requestedBase, requestedInheriting wasiabi.Rights) (int32, wasiabi.Errno) {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return -1, errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathOpen) {
		return -1, wasiabi.ErrnoPerm
	}

	wantWrite := requestedBase.Has(wasiabi.RightFDWrite) || oflags&(wasiabi.OflagCreat|wasiabi.OflagTrunc) != 0
	file, errno := s.root.OpenAt(abs, oflags, fdflags, wantWrite)
	if errno != wasiabi.ErrnoSuccess {
		return -1, errno
	}

	isDir, errno := file.IsDir()
	if errno != wasiabi.ErrnoSuccess {
		file.Close()
		return -1, errno
	}
	base, inheriting := wasiabi.NarrowForChild(parent.InheritingRights, requestedBase, requestedInheriting, isDir)

	filetype := wasiabi.FiletypeRegularFile
	virtualPath := ""
	if isDir {
		filetype = wasiabi.FiletypeDirectory
		virtualPath = abs
	}

	fd := s.fds.Open(&fdtable.Descriptor{
		Device: parent.Device, File: file, Filetype: filetype, Flags: fdflags,
		BaseRights: base, InheritingRights: inheriting, VirtualPath: virtualPath,
	})
	s.trc(traceFS, "path_open", wasiabi.ErrnoSuccess, path)
	return fd, wasiabi.ErrnoSuccess
}

// PathFilestatGet implements path_filestat_get.
func (s *Service) PathFilestatGet(dirfd int32, path string) (wasiabi.Filestat, wasiabi.Errno) {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return wasiabi.Filestat{}, errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathFilestatGet) {
		return wasiabi.Filestat{}, wasiabi.ErrnoPerm
	}
	stat, errno := s.root.PathFilestatGet(abs)
	if errno != wasiabi.ErrnoSuccess {
		return wasiabi.Filestat{}, errno
	}
	return toFilestat(parent.Device.ID, stat), wasiabi.ErrnoSuccess
}

// PathFilestatSetTimes implements path_filestat_set_times. Drivers cache
// the requested times in memory rather than persisting them (editorfs has
// no utimes equivalent to call through to; memfs keeps them on the node),
// matching spec.md §3's "no persistence of atime/mtim beyond in-memory
// caching" note.
func (s *Service) PathFilestatSetTimes(dirfd int32, path string, atim, mtim time.Time) wasiabi.Errno {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathFilestatSetTimes) {
		return wasiabi.ErrnoPerm
	}
	return s.root.PathSetTimes(abs, atim, mtim)
}

func (s *Service) PathCreateDirectory(dirfd int32, path string) wasiabi.Errno {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathCreateDirectory) {
		return wasiabi.ErrnoPerm
	}
	return s.root.PathCreateDirectory(abs)
}

func (s *Service) PathRemoveDirectory(dirfd int32, path string) wasiabi.Errno {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathRemoveDirectory) {
		return wasiabi.ErrnoPerm
	}
	return s.root.PathRemoveDirectory(abs)
}

func (s *Service) PathUnlinkFile(dirfd int32, path string) wasiabi.Errno {
	parent, abs, errno := s.resolveDir(dirfd, path)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !parent.BaseRights.Has(wasiabi.RightPathUnlinkFile) {
		return wasiabi.ErrnoPerm
	}
	return s.root.PathUnlinkFile(abs)
}

// PathRename implements path_rename; both paths are resolved to absolute
// virtual paths before delegating to the root driver, which rejects
// cross-device renames with nosys per spec.md §4.2/§8 scenario 6.
func (s *Service) PathRename(oldDirfd int32, oldPath string, newDirfd int32, newPath string) wasiabi.Errno {
	oldParent, oldAbs, errno := s.resolveDir(oldDirfd, oldPath)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !oldParent.BaseRights.Has(wasiabi.RightPathRenameSource) {
		return wasiabi.ErrnoPerm
	}
	newParent, newAbs, errno := s.resolveDir(newDirfd, newPath)
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	if !newParent.BaseRights.Has(wasiabi.RightPathRenameTarget) {
		return wasiabi.ErrnoPerm
	}
	return s.root.PathRename(oldAbs, newAbs)
}

// PathLink, PathSymlink, PathReadlink: Non-goals per spec.md §1 (no
// symlink creation, no cross-device hard link); stat-only observation of
// symlinks is supported structurally by wasiabi.FiletypeSymbolicLink but no
// driver in this runtime ever produces one, so readlink has nothing to
// report either.
func (s *Service) PathLink(oldDirfd int32, oldPath string, newDirfd int32, newPath string) wasiabi.Errno {
	return wasiabi.ErrnoNosys
}

func (s *Service) PathSymlink(oldPath string, dirfd int32, newPath string) wasiabi.Errno {
	return wasiabi.ErrnoNosys
}

func (s *Service) PathReadlink(dirfd int32, path string) (string, wasiabi.Errno) {
	return "", wasiabi.ErrnoNosys
}
