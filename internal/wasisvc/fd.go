package wasisvc

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// FdClose closes fd, rights-free (closing needs no right of its own, only
// the descriptor to exist), matching fd_close's ABI (no rights argument).
func (s *Service) FdClose(fd int32) wasiabi.Errno {
	errno := s.fds.Close(fd)
	s.trc(traceFS, "fd_close", errno, "")
	return errno
}

// FdRenumber makes fd `to` alias whatever `from` currently names.
func (s *Service) FdRenumber(from, to int32) wasiabi.Errno {
	errno := s.fds.Renumber(from, to)
	s.trc(traceFS, "fd_renumber", errno, "")
	return errno
}

// FdFdstatGet reports a descriptor's filetype, fdflags and rights.
func (s *Service) FdFdstatGet(fd int32) (wasiabi.Fdstat, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.Fdstat{}, wasiabi.ErrnoBadf
	}
	return wasiabi.Fdstat{
		Filetype: d.Filetype, Flags: d.Flags,
		RightsBase: d.BaseRights, RightsInheriting: d.InheritingRights,
	}, wasiabi.ErrnoSuccess
}

// FdFdstatSetFlags supports the {append, nonblock} bits only per
// SPEC_FULL.md §5.1; any other requested bit is rejected as inval.
func (s *Service) FdFdstatSetFlags(fd int32, flags wasiabi.Fdflags) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDFdstatSetFlags) {
		return wasiabi.ErrnoPerm
	}
	const supported = wasiabi.FdflagAppend | wasiabi.FdflagNonblock
	if flags&^supported != 0 {
		return wasiabi.ErrnoInval
	}
	d.Flags = flags
	return wasiabi.ErrnoSuccess
}

// FdFilestatGet reports a descriptor's stat. Per spec.md §7, failures here
// default to perm rather than inval at the wire-adapter layer; the typed
// method itself simply forwards the driver's errno.
func (s *Service) FdFilestatGet(fd int32) (wasiabi.Filestat, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.Filestat{}, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDFilestatGet) {
		return wasiabi.Filestat{}, wasiabi.ErrnoPerm
	}
	stat, errno := d.File.Stat()
	if errno != wasiabi.ErrnoSuccess {
		return wasiabi.Filestat{}, errno
	}
	return toFilestat(d.Device.ID, stat), wasiabi.ErrnoSuccess
}

// FdFilestatSetTimes updates a descriptor's atim/mtim.
func (s *Service) FdFilestatSetTimes(fd int32, atim, mtim time.Time) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDFilestatSetTimes) {
		return wasiabi.ErrnoPerm
	}
	return d.File.SetTimes(atim, mtim)
}

// FdSync and FdDatasync flush a descriptor's pending writes.
func (s *Service) FdSync(fd int32) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDSync) {
		return wasiabi.ErrnoPerm
	}
	return d.File.Sync()
}

func (s *Service) FdDatasync(fd int32) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDDatasync) {
		return wasiabi.ErrnoPerm
	}
	return d.File.Datasync()
}

// FdAdvise and FdAllocate are routed per SPEC_FULL.md §5.1. FdAdvise checks
// the right and then succeeds without calling the driver. FdAllocate grows
// the file through the driver's Truncate when offset+length exceeds its
// current size (memfs and editorfs both grow the content).
func (s *Service) FdAdvise(fd int32) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDAdvise) {
		return wasiabi.ErrnoPerm
	}
	return wasiabi.ErrnoSuccess
}

func (s *Service) FdAllocate(fd int32, offset, length int64) wasiabi.Errno {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDAllocate) {
		return wasiabi.ErrnoPerm
	}
	stat, errno := d.File.Stat()
	if errno != wasiabi.ErrnoSuccess {
		return errno
	}
	want := offset + length
	if want <= int64(stat.Size) {
		return wasiabi.ErrnoSuccess
	}
	return d.File.Truncate(want)
}
