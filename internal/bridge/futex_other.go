//go:build !linux

package bridge

import (
	"sync"
	"sync/atomic"
)

// Portable wait/notify fallback for platforms without a raw futex
// syscall: one condvar per process, since Wait only ever spins briefly
// before rechecking the word under it.
var (
	fallbackMu   sync.Mutex
	fallbackCond = sync.NewCond(&fallbackMu)
)

func futexWaitWord(addr *uint32, expected uint32) {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	if atomic.LoadUint32(addr) == expected {
		fallbackCond.Wait()
	}
}

func futexWakeWord(addr *uint32) {
	fallbackMu.Lock()
	fallbackCond.Broadcast()
	fallbackMu.Unlock()
}
