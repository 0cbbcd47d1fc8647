package wasisvc

import "github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"

// Socket calls are out of scope per spec.md §1's Non-goals ("no socket I/O
// beyond returning not supported"). Every preview-1 sock_* call is still
// exported as a Service method that reports notsup; none of them is
// registered in the call-bridge dispatcher (see NewDispatcher).

func (s *Service) SockAccept(fd int32, flags uint16) (int32, wasiabi.Errno) {
	return -1, wasiabi.ErrnoNotsup
}

func (s *Service) SockRecv(fd int32, iovs [][]byte, flags uint16) (n int, roflags uint16, errno wasiabi.Errno) {
	return 0, 0, wasiabi.ErrnoNotsup
}

func (s *Service) SockSend(fd int32, iovs [][]byte, flags uint16) (int, wasiabi.Errno) {
	return 0, wasiabi.ErrnoNotsup
}

func (s *Service) SockShutdown(fd int32, how uint8) wasiabi.Errno {
	return wasiabi.ErrnoNotsup
}
