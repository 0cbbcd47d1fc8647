package wasisvc

import (
	"crypto/rand"
	"sync/atomic"

	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// ProcExit implements proc_exit: from the syscall's own point of view it
// always returns success, since the process tears down asynchronously and
// there is no return to the guest afterward (spec.md §4.5/§5's
// Cancellation text: "pending syscalls return success without further
// side effects").
func (s *Service) ProcExit(code uint32) wasiabi.Errno {
	s.mu.Lock()
	already := s.exited
	s.exited = true
	s.mu.Unlock()
	if !already && s.onExit != nil {
		s.onExit(code)
	}
	s.trc(traceProc, "proc_exit", wasiabi.ErrnoSuccess, "")
	return wasiabi.ErrnoSuccess
}

// ProcRaise implements proc_raise. Signal delivery has no meaning inside
// this sandbox (there is no process group to interrupt), so the call is
// accepted but has no effect beyond acknowledging it.
func (s *Service) ProcRaise(signal uint8) wasiabi.Errno {
	return wasiabi.ErrnoSuccess
}

// SchedYield implements sched_yield: a no-op, since the host's single
// dispatcher already interleaves workers cooperatively at the call-bridge
// boundary (spec.md §4.6).
func (s *Service) SchedYield() wasiabi.Errno {
	return wasiabi.ErrnoSuccess
}

// ThreadSpawn implements thread_spawn per spec.md §4.5: build a fresh
// Service sharing this process's fd table, assign it the next monotonic
// thread id (≥2), and ask the host to start a worker for it. A host that
// declines (SpawnFunc returning false, e.g. a worker pool ceiling) reports
// failure as -1, matching the ABI's "no space" contract rather than a
// WASI errno.
func (s *Service) ThreadSpawn(startArg uint32) int32 {
	if s.spawn == nil {
		return -1
	}
	id := atomic.AddUint32(s.nextThreadID, 1)
	child := New(id, Config{
		FDs: s.fds, Root: s.root, Trace: s.trace, Args: s.args, Env: s.env,
		Mounts: s.mounts, StartedAt: s.startedAt,
		NextThreadID: s.nextThreadID, Spawn: s.spawn, OnExit: s.onExit,
	})
	// The shared fd table already left its init phase when the first
	// thread started running, so a spawned thread's own prestat loop has
	// nothing left to hand out.
	child.prestatIdx = len(child.mounts)
	if !s.spawn(child) {
		return -1
	}
	s.trc(traceProc, "thread_spawn", wasiabi.ErrnoSuccess, "")
	return int32(id)
}

// RandomGet implements random_get, backed by the OS CSPRNG.
func (s *Service) RandomGet(buf []byte) wasiabi.Errno {
	if _, err := rand.Read(buf); err != nil {
		return wasiabi.ErrnoIo
	}
	s.trc(traceRand, "random_get", wasiabi.ErrnoSuccess, "")
	return wasiabi.ErrnoSuccess
}
