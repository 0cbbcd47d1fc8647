//go:build linux

package bridge

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex(2) operation codes (FUTEX_WAIT / FUTEX_WAKE), defined locally
// since golang.org/x/sys/unix exposes the syscall number but not these op
// codes as named constants.
const (
	futexOpWait = 0
	futexOpWake = 1
)

// futexWaitWord blocks while *addr == expected, using the real Linux futex
// syscall so a guest worker goroutine parks without spinning. A return
// with the word unchanged (EAGAIN/EINTR/spurious wake) is handled by the
// caller's surrounding loop.
func futexWaitWord(addr *uint32, expected uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), uintptr(futexOpWait), uintptr(expected), 0, 0, 0)
}

// futexWakeWord wakes any goroutine blocked in futexWaitWord on addr.
func futexWakeWord(addr *uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), uintptr(futexOpWake), uintptr(1<<30), 0, 0, 0)
}
