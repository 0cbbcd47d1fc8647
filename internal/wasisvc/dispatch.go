package wasisvc

import (
	"encoding/binary"

	"github.com/tetratelabs/wasi-editor-runtime/internal/bridge"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// Method indices for the calls wired through the call bridge. spec.md §4.6
// describes the bridge's parameter area as a DataView-equivalent over
// shared bytes; here that area doubles as the call's input encoding (the
// guest stub fills it before SubmitCall) and its output encoding (this
// dispatcher overwrites it before Resolve), the same buffer serving both
// directions since the protocol is strictly synchronous.
const (
	MethodArgsSizesGet = iota
	MethodArgsGet
	MethodEnvironSizesGet
	MethodEnvironGet
	MethodFdPrestatGet
	MethodFdPrestatDirName
	MethodFdSeek
	MethodFdReaddir
	MethodFdRead
	MethodFdWrite
	MethodPathOpen
	MethodPollOneoff
	MethodFdFilestatGet
	MethodPathFilestatGet
	methodCount
)

// NewDispatcher builds the bridge.Dispatcher servicing s, one MethodFunc
// per wired call. Every handler is wrapped by safeCall so a Go panic
// mid-call degrades to an errno instead of taking down the host
// dispatcher goroutine, per spec.md §7's "converts anything unexpected to
// inval (or perm for stat)" propagation policy.
func (s *Service) NewDispatcher() *bridge.Dispatcher {
	d := bridge.NewDispatcher(methodCount)
	d.Register(MethodArgsSizesGet, s.wireArgsSizesGet)
	d.Register(MethodArgsGet, s.wireArgsGet)
	d.Register(MethodEnvironSizesGet, s.wireEnvironSizesGet)
	d.Register(MethodEnvironGet, s.wireEnvironGet)
	d.Register(MethodFdPrestatGet, s.wireFdPrestatGet)
	d.Register(MethodFdPrestatDirName, s.wireFdPrestatDirName)
	d.Register(MethodFdSeek, s.wireFdSeek)
	d.Register(MethodFdReaddir, s.wireFdReaddir)
	d.Register(MethodFdRead, s.wireFdRead)
	d.Register(MethodFdWrite, s.wireFdWrite)
	d.Register(MethodPathOpen, s.wirePathOpen)
	d.Register(MethodPollOneoff, s.wirePollOneoff)
	d.Register(MethodFdFilestatGet, s.wireFdFilestatGet)
	d.Register(MethodPathFilestatGet, s.wirePathFilestatGet)
	return d
}

// safeCall recovers a panic inside fn, reporting def instead. def is inval
// for every call except the two stat calls, which default to perm per
// spec.md §7.
func safeCall(def wasiabi.Errno, fn func() wasiabi.Errno) (errno wasiabi.Errno) {
	defer func() {
		if recover() != nil {
			errno = def
		}
	}()
	return fn()
}

func putStrings(buf []byte, strs []string) wasiabi.Errno {
	off := 0
	for _, str := range strs {
		if off+4+len(str) > len(buf) {
			return wasiabi.ErrnoInval
		}
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(str)))
		off += 4
		copy(buf[off:], str)
		off += len(str)
	}
	return wasiabi.ErrnoSuccess
}

func getString(buf []byte, off int) (string, int, wasiabi.Errno) {
	if off+4 > len(buf) {
		return "", 0, wasiabi.ErrnoInval
	}
	n := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if off+n > len(buf) {
		return "", 0, wasiabi.ErrnoInval
	}
	return string(buf[off : off+n]), off + n, wasiabi.ErrnoSuccess
}

func (s *Service) wireArgsSizesGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		count, size := s.ArgsSizesGet()
		binary.LittleEndian.PutUint32(buf[0:], count)
		binary.LittleEndian.PutUint32(buf[4:], size)
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wireArgsGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		return putStrings(buf, s.ArgsGet())
	})
}

func (s *Service) wireEnvironSizesGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		count, size := s.EnvironSizesGet()
		binary.LittleEndian.PutUint32(buf[0:], count)
		binary.LittleEndian.PutUint32(buf[4:], size)
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wireEnvironGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		return putStrings(buf, s.EnvironGet())
	})
}

// wireFdPrestatGet ignores the guest-supplied fd (see FdPrestatGet's doc in
// dir.go on the init-phase loop not consulting it) and writes the
// prestat_dir result at offset 0.
func (s *Service) wireFdPrestatGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		pathLen, errno := s.FdPrestatGet(0)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		wasiabi.PutPrestatDir(buf, pathLen)
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wireFdPrestatDirName(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		bufLen := int(binary.LittleEndian.Uint32(buf[4:]))
		path, errno := s.FdPrestatDirName(fd, bufLen)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		copy(buf, path)
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wireFdSeek(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		offset := int64(binary.LittleEndian.Uint64(buf[8:]))
		whence := wasiabi.Whence(buf[16])
		newOffset, errno := s.FdSeek(fd, offset, whence)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint64(buf[0:], uint64(newOffset))
		return wasiabi.ErrnoSuccess
	})
}

// wireFdReaddir lays out its result as a uint32 byte count at offset 0
// followed by the raw dirent records FdReaddir produced.
func (s *Service) wireFdReaddir(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		cookie := binary.LittleEndian.Uint64(buf[8:])
		maxBytes := int(binary.LittleEndian.Uint32(buf[16:]))
		if maxBytes > len(buf)-4 {
			maxBytes = len(buf) - 4
		}
		data, errno := s.FdReaddir(fd, cookie, maxBytes)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(len(data)))
		copy(buf[4:], data)
		return wasiabi.ErrnoSuccess
	})
}

// wireFdRead and wireFdWrite treat each iovec's Offset/Length as a region
// within this same params buffer, since the bridge's shared buffer stands
// in for the guest's linear memory at this boundary (spec.md §4.6).
func (s *Service) wireFdRead(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		iovCount := int(binary.LittleEndian.Uint32(buf[4:]))
		iovs, errno := decodeIOVecs(buf, 8, iovCount)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		n, errno := s.FdRead(fd, iovs)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(n))
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wireFdWrite(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		iovCount := int(binary.LittleEndian.Uint32(buf[4:]))
		iovs, errno := decodeIOVecs(buf, 8, iovCount)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		n, errno := s.FdWrite(fd, iovs)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(n))
		return wasiabi.ErrnoSuccess
	})
}

func decodeIOVecs(buf []byte, off, count int) ([][]byte, wasiabi.Errno) {
	iovs := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		recOff := off + i*wasiabi.SizeIOVec
		if recOff+wasiabi.SizeIOVec > len(buf) {
			return nil, wasiabi.ErrnoInval
		}
		iov := wasiabi.ReadIOVec(buf[recOff:])
		end := int(iov.Offset) + int(iov.Length)
		if end > len(buf) {
			return nil, wasiabi.ErrnoInval
		}
		iovs = append(iovs, buf[iov.Offset:end])
	}
	return iovs, wasiabi.ErrnoSuccess
}

func (s *Service) wirePathOpen(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		dirfd := int32(binary.LittleEndian.Uint32(buf[0:]))
		oflags := wasiabi.Oflags(binary.LittleEndian.Uint16(buf[4:]))
		fdflags := wasiabi.Fdflags(binary.LittleEndian.Uint16(buf[6:]))
		base := wasiabi.Rights(binary.LittleEndian.Uint64(buf[8:]))
		inheriting := wasiabi.Rights(binary.LittleEndian.Uint64(buf[16:]))
		path, _, errno := getString(buf, 24)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		fd, errno := s.PathOpen(dirfd, path, oflags, fdflags, base, inheriting)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(fd))
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wirePollOneoff(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoInval, func() wasiabi.Errno {
		subCount := int(binary.LittleEndian.Uint32(buf[0:]))
		subs := make([]wasiabi.Subscription, subCount)
		for i := 0; i < subCount; i++ {
			recOff := 4 + i*wasiabi.SizeSubscription
			if recOff+wasiabi.SizeSubscription > len(buf) {
				return wasiabi.ErrnoInval
			}
			subs[i] = wasiabi.ReadSubscription(buf[recOff:])
		}
		events, errno := s.PollOneoff(subs)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		binary.LittleEndian.PutUint32(buf[0:], uint32(len(events)))
		for i, e := range events {
			recOff := 4 + i*wasiabi.SizeEvent
			if recOff+wasiabi.SizeEvent > len(buf) {
				return wasiabi.ErrnoInval
			}
			wasiabi.PutEvent(buf[recOff:], e)
		}
		return wasiabi.ErrnoSuccess
	})
}

// wireFdFilestatGet and wirePathFilestatGet default to perm on panic
// rather than inval, per spec.md §7's stat-specific exception.
func (s *Service) wireFdFilestatGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoPerm, func() wasiabi.Errno {
		fd := int32(binary.LittleEndian.Uint32(buf[0:]))
		stat, errno := s.FdFilestatGet(fd)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		wasiabi.PutFilestat(buf, stat)
		return wasiabi.ErrnoSuccess
	})
}

func (s *Service) wirePathFilestatGet(buf []byte) wasiabi.Errno {
	return safeCall(wasiabi.ErrnoPerm, func() wasiabi.Errno {
		dirfd := int32(binary.LittleEndian.Uint32(buf[0:]))
		path, _, errno := getString(buf, 4)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		stat, errno := s.PathFilestatGet(dirfd, path)
		if errno != wasiabi.ErrnoSuccess {
			return errno
		}
		wasiabi.PutFilestat(buf, stat)
		return wasiabi.ErrnoSuccess
	})
}
