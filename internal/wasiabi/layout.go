package wasiabi

import "encoding/binary"

// Byte layouts for WASI preview-1 structs. Multi-byte fields are
// little-endian. Sizes and field offsets are grounded on the worked examples
// in tetratelabs/wazero's imports/wasi_snapshot_preview1/fs.go doc comments
// (fdstat, filestat, prestat, dirent) and poll.go (subscription, event).

const (
	SizePrestat      = 8
	SizeFdstat       = 24
	SizeFilestat     = 64
	SizeDirent       = 24
	SizeIOVec        = 8
	SizeSubscription = 48
	SizeEvent        = 32
)

// Fdstat is fd_fdstat_get's result: filetype, fdflags, and (ignored, per
// preview-1 being rights-free on the wire even though this implementation
// enforces rights host-side) rights base/inheriting.
type Fdstat struct {
	Filetype         Filetype
	Flags            Fdflags
	RightsBase       Rights
	RightsInheriting Rights
}

func PutFdstat(buf []byte, s Fdstat) {
	_ = buf[:SizeFdstat]
	buf[0] = byte(s.Filetype)
	binary.LittleEndian.PutUint16(buf[2:], uint16(s.Flags))
	binary.LittleEndian.PutUint64(buf[8:], uint64(s.RightsBase))
	binary.LittleEndian.PutUint64(buf[16:], uint64(s.RightsInheriting))
}

// Filestat is the result of fd_filestat_get / path_filestat_get.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

func PutFilestat(buf []byte, s Filestat) {
	_ = buf[:SizeFilestat]
	binary.LittleEndian.PutUint64(buf[0:], s.Dev)
	binary.LittleEndian.PutUint64(buf[8:], s.Ino)
	buf[16] = byte(s.Filetype)
	binary.LittleEndian.PutUint64(buf[24:], s.Nlink)
	binary.LittleEndian.PutUint64(buf[32:], s.Size)
	binary.LittleEndian.PutUint64(buf[40:], s.Atim)
	binary.LittleEndian.PutUint64(buf[48:], s.Mtim)
	binary.LittleEndian.PutUint64(buf[56:], s.Ctim)
}

// PutPrestatDir writes the 8-byte prestat_dir variant: a zero tag followed
// by a uint32le path length.
func PutPrestatDir(buf []byte, pathLen uint32) {
	_ = buf[:SizePrestat]
	binary.LittleEndian.PutUint32(buf[0:], 0) // tag + 3 pad bytes
	binary.LittleEndian.PutUint32(buf[4:], pathLen)
}

// Dirent is one entry written by fd_readdir, preceding its variable-length
// name.
type Dirent struct {
	Next     uint64
	Ino      uint64
	Namelen  uint32
	Filetype Filetype
}

func PutDirent(buf []byte, d Dirent) {
	_ = buf[:SizeDirent]
	binary.LittleEndian.PutUint64(buf[0:], d.Next)
	binary.LittleEndian.PutUint64(buf[8:], d.Ino)
	binary.LittleEndian.PutUint32(buf[16:], d.Namelen)
	binary.LittleEndian.PutUint32(buf[20:], uint32(d.Filetype))
}

// IOVec is an offset/length pair used by fd_read/fd_write.
type IOVec struct {
	Offset uint32
	Length uint32
}

func ReadIOVec(buf []byte) IOVec {
	_ = buf[:SizeIOVec]
	return IOVec{
		Offset: binary.LittleEndian.Uint32(buf[0:]),
		Length: binary.LittleEndian.Uint32(buf[4:]),
	}
}

// Subscription is one poll_oneoff input record (48 bytes): 8-byte userdata,
// 1-byte tag (+7 pad), then a 32-byte union.
type Subscription struct {
	Userdata [8]byte
	Type     Eventtype
	// For EventtypeClock:
	ClockID   ClockID
	Timeout   uint64
	Precision uint64
	Flags     Subclockflags
	// For EventtypeFDRead / EventtypeFDWrite:
	FD uint32
}

func ReadSubscription(buf []byte) Subscription {
	_ = buf[:SizeSubscription]
	var s Subscription
	copy(s.Userdata[:], buf[0:8])
	s.Type = Eventtype(buf[8])
	arg := buf[16:]
	switch s.Type {
	case EventtypeClock:
		s.ClockID = ClockID(binary.LittleEndian.Uint32(arg[0:]))
		s.Timeout = binary.LittleEndian.Uint64(arg[8:])
		s.Precision = binary.LittleEndian.Uint64(arg[16:])
		s.Flags = Subclockflags(binary.LittleEndian.Uint16(arg[24:]))
	case EventtypeFDRead, EventtypeFDWrite:
		s.FD = binary.LittleEndian.Uint32(arg[0:])
	}
	return s
}

// Event is one poll_oneoff output record (32 bytes).
type Event struct {
	Userdata [8]byte
	Errno    Errno
	Type     Eventtype
}

func PutEvent(buf []byte, e Event) {
	_ = buf[:SizeEvent]
	// Clear the whole record first so the fd_readwrite sub-union (nbytes,
	// flags) is zero: this runtime never reports more than "ready",
	// matching spec.md §4.5.
	for i := range buf[:SizeEvent] {
		buf[i] = 0
	}
	copy(buf[0:8], e.Userdata[:])
	binary.LittleEndian.PutUint16(buf[8:], uint16(e.Errno))
	binary.LittleEndian.PutUint32(buf[12:], uint32(e.Type))
}
