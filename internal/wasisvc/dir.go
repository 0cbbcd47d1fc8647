package wasisvc

import (
	"github.com/tetratelabs/wasi-editor-runtime/internal/fdtable"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// dirSnapshot caches one fd_readdir(cookie==0) listing until it has been
// fully paged out, per spec.md §4.5's readdir pagination text.
type dirSnapshot struct {
	entries []dirEntry
}

type dirEntry struct {
	ino      uint64
	name     string
	filetype wasiabi.Filetype
}

// FdReaddir returns as many whole dirent records (header + name bytes) as
// fit within maxBytes, starting after the entry numbered cookie (cookie==0
// restarts the listing with a fresh snapshot). When the returned records
// exhaust the snapshot, the snapshot is discarded; a later call with a
// stale, non-zero cookie re-snapshots the directory and skips ahead,
// matching the boundary scenario in spec.md §8 ("cookie=3 returns
// buf_used=0" once there is nothing left to skip to).
func (s *Service) FdReaddir(fd int32, cookie uint64, maxBytes int) ([]byte, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return nil, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDReaddir) {
		return nil, wasiabi.ErrnoPerm
	}

	s.mu.Lock()
	snap, have := s.dirSnapshots[fd]
	s.mu.Unlock()

	if cookie == 0 || !have {
		rd, errno := d.File.Readdir()
		if errno != wasiabi.ErrnoSuccess {
			return nil, errno
		}
		var entries []dirEntry
		for {
			e, errno := rd.Next()
			if errno != wasiabi.ErrnoSuccess {
				rd.Close()
				return nil, errno
			}
			if e == nil {
				break
			}
			entries = append(entries, dirEntry{ino: e.Ino, name: e.Name, filetype: e.Filetype})
		}
		rd.Close()
		snap = &dirSnapshot{entries: entries}
		s.mu.Lock()
		s.dirSnapshots[fd] = snap
		s.mu.Unlock()
	}

	start := int(cookie)
	if start > len(snap.entries) {
		start = len(snap.entries)
	}

	var buf []byte
	consumed := start
	for i := start; i < len(snap.entries); i++ {
		e := snap.entries[i]
		rec := make([]byte, wasiabi.SizeDirent+len(e.name))
		wasiabi.PutDirent(rec[:wasiabi.SizeDirent], wasiabi.Dirent{
			Next: uint64(i + 1), Ino: e.ino, Namelen: uint32(len(e.name)), Filetype: e.filetype,
		})
		copy(rec[wasiabi.SizeDirent:], e.name)
		if len(buf)+len(rec) > maxBytes {
			break
		}
		buf = append(buf, rec...)
		consumed = i + 1
	}

	if consumed >= len(snap.entries) {
		s.mu.Lock()
		delete(s.dirSnapshots, fd)
		s.mu.Unlock()
	}
	return buf, wasiabi.ErrnoSuccess
}

// FdPrestatGet serves the init-phase prestat loop: the next call installs
// the next mount (in insertion order) as a preopen and returns its path
// length; once mounts are exhausted, the fd table switches to running and
// every subsequent call reports badf, per spec.md §4.5 and the "prestat
// loop" scenario in spec.md §8.
func (s *Service) FdPrestatGet(fd int32) (pathLen uint32, errno wasiabi.Errno) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prestatIdx >= len(s.mounts) {
		s.fds.EndInit()
		return 0, wasiabi.ErrnoBadf
	}
	m := s.mounts[s.prestatIdx]
	s.prestatIdx++

	s.fds.Preopen(&fdtable.Descriptor{
		Device: m.Driver.Mounted(), Filetype: wasiabi.FiletypeDirectory,
		BaseRights: dirRights, InheritingRights: dirInheriting,
		PreopenPath: m.Path, VirtualPath: m.Path,
	})
	// The assigned fd is sequential (0,1,2 for stdio preopened earlier,
	// then one per mount), which matches the guest's own incrementing fd
	// argument; the argument itself is not consulted.
	return uint32(len(m.Path)), wasiabi.ErrnoSuccess
}

// FdPrestatDirName returns the recorded mount path for a preopen fd. Per
// spec.md §4.5, the caller's buffer length must match exactly, else badmsg.
func (s *Service) FdPrestatDirName(fd int32, bufLen int) (string, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok || !d.IsPreopen {
		return "", wasiabi.ErrnoBadf
	}
	if bufLen != len(d.PreopenPath) {
		return "", wasiabi.ErrnoBadmsg
	}
	return d.PreopenPath, wasiabi.ErrnoSuccess
}
