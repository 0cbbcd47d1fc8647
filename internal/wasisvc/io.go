package wasisvc

import "github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"

// FdRead reads into successive iovecs from the descriptor's current cursor,
// advancing it by the total bytes read, per spec.md §4.2's fd_read text
// (invariant 3 of spec.md §8: cursor advance equals the return value).
func (s *Service) FdRead(fd int32, iovs [][]byte) (int, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return 0, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDRead) {
		return 0, wasiabi.ErrnoPerm
	}
	total := 0
	for _, iov := range iovs {
		if len(iov) == 0 {
			continue
		}
		n, errno := d.File.Read(iov)
		total += n
		if errno != wasiabi.ErrnoSuccess {
			return total, errno
		}
		if n < len(iov) {
			break
		}
	}
	if s.trace != nil {
		s.trace.RecordIO(s.worker, total, 0)
	}
	s.trc(traceFS, "fd_read", wasiabi.ErrnoSuccess, "")
	return total, wasiabi.ErrnoSuccess
}

// FdPread is fd_read at an explicit offset, leaving the cursor untouched.
func (s *Service) FdPread(fd int32, iovs [][]byte, offset int64) (int, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return 0, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDRead) {
		return 0, wasiabi.ErrnoPerm
	}
	total := 0
	off := offset
	for _, iov := range iovs {
		if len(iov) == 0 {
			continue
		}
		n, errno := d.File.Pread(iov, off)
		total += n
		off += int64(n)
		if errno != wasiabi.ErrnoSuccess {
			return total, errno
		}
		if n < len(iov) {
			break
		}
	}
	return total, wasiabi.ErrnoSuccess
}

// FdWrite writes successive iovecs at the descriptor's current cursor
// (resetting it to end-of-content first if the descriptor is append-mode,
// per spec.md §4.2's fd_write text), advancing it by the total written.
func (s *Service) FdWrite(fd int32, iovs [][]byte) (int, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return 0, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDWrite) {
		return 0, wasiabi.ErrnoPerm
	}
	total := 0
	for _, iov := range iovs {
		if len(iov) == 0 {
			continue
		}
		n, errno := d.File.Write(iov)
		total += n
		if errno != wasiabi.ErrnoSuccess {
			return total, errno
		}
	}
	if s.trace != nil {
		s.trace.RecordIO(s.worker, 0, total)
	}
	s.trc(traceFS, "fd_write", wasiabi.ErrnoSuccess, "")
	return total, wasiabi.ErrnoSuccess
}

// FdPwrite is fd_write at an explicit offset, leaving the cursor untouched.
func (s *Service) FdPwrite(fd int32, iovs [][]byte, offset int64) (int, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return 0, wasiabi.ErrnoBadf
	}
	if !d.BaseRights.Has(wasiabi.RightFDWrite) {
		return 0, wasiabi.ErrnoPerm
	}
	total := 0
	off := offset
	for _, iov := range iovs {
		if len(iov) == 0 {
			continue
		}
		n, errno := d.File.Pwrite(iov, off)
		total += n
		off += int64(n)
		if errno != wasiabi.ErrnoSuccess {
			return total, errno
		}
	}
	return total, wasiabi.ErrnoSuccess
}

// FdSeek implements fd_seek, including the whence=cur,offset=0 "tell"
// pattern: that shape succeeds with either fd_seek or fd_tell rights,
// per spec.md §4.5 and the boundary behaviour in spec.md §8.
func (s *Service) FdSeek(fd int32, offset int64, whence wasiabi.Whence) (int64, wasiabi.Errno) {
	d, ok := s.fds.Lookup(fd)
	if !ok {
		return 0, wasiabi.ErrnoBadf
	}
	isTell := whence == wasiabi.WhenceCur && offset == 0
	if isTell {
		if !d.BaseRights.Has(wasiabi.RightFDSeek) && !d.BaseRights.Has(wasiabi.RightFDTell) {
			return 0, wasiabi.ErrnoPerm
		}
	} else if !d.BaseRights.Has(wasiabi.RightFDSeek) {
		return 0, wasiabi.ErrnoPerm
	}
	return d.File.Seek(offset, whence)
}
