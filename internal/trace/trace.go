// Package trace is the host's call-tracing collaborator: one line per
// syscall when enabled, plus a batched per-worker summary (spec.md §7).
//
// Grounded on tetratelabs/wazero's internal/logging.LogScopes bitset (shape
// only: its logger is tied to api.Module and isn't reusable here), wired to
// github.com/sirupsen/logrus the way moby/moby's daemon logs throughout,
// with sizes rendered through github.com/docker/go-units the way moby
// reports layer/image sizes.
package trace

import (
	"sync"
	"sync/atomic"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// Scopes is a bitset of syscall categories that may be traced independently,
// mirroring wazero's LogScopes groups.
type Scopes uint64

const (
	ScopeNone   Scopes = 0
	ScopeClock  Scopes = 1 << iota
	ScopeProc
	ScopeFS
	ScopePoll
	ScopeRandom
	ScopeSock
	ScopeAll = Scopes(0xffffffffffffffff)
)

func (s Scopes) enabled(scope Scopes) bool { return s&scope != 0 }

func (s Scopes) String() string {
	if s == ScopeAll {
		return "all"
	}
	names := map[Scopes]string{
		ScopeClock: "clock", ScopeProc: "proc", ScopeFS: "fs",
		ScopePoll: "poll", ScopeRandom: "random", ScopeSock: "sock",
	}
	out := ""
	for scope, name := range names {
		if s.enabled(scope) {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// Sink receives call-tracing and worker-summary events. The zero value
// discards everything (Scopes == ScopeNone); use New to wire a real logger.
type Sink struct {
	scopes Scopes
	log    *logrus.Logger

	mu      sync.Mutex
	workers map[uint32]*workerStats
}

type workerStats struct {
	calls     uint64
	errors    uint64
	bytesRead uint64
	bytesWrit uint64
}

// New returns a Sink that logs scopes through logger, filtering to the
// given Scopes bitset.
func New(logger *logrus.Logger, scopes Scopes) *Sink {
	return &Sink{scopes: scopes, log: logger, workers: map[uint32]*workerStats{}}
}

// Call logs one syscall invocation, if scope is enabled in the sink's
// scopes. argSummary is a short, already-formatted description of the
// call's arguments (the syscall service knows how to render its own
// arguments; this package only decides whether and where to put them).
func (s *Sink) Call(scope Scopes, workerID uint32, method string, errno uint32, argSummary string) {
	s.record(workerID, errno, 0, 0)
	if s.log == nil || !s.scopes.enabled(scope) {
		return
	}
	s.log.WithFields(logrus.Fields{
		"worker": workerID,
		"call":   method,
		"errno":  errno,
	}).Trace(argSummary)
}

// RecordIO tallies bytes transferred by one worker, surfaced in the
// eventual summary via units.HumanSize.
func (s *Sink) RecordIO(workerID uint32, read, written int) {
	s.record(workerID, 0, uint64(read), uint64(written))
}

func (s *Sink) record(workerID uint32, errno uint32, read, written uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		s.workers = map[uint32]*workerStats{}
	}
	w, ok := s.workers[workerID]
	if !ok {
		w = &workerStats{}
		s.workers[workerID] = w
	}
	atomic.AddUint64(&w.calls, 1)
	if errno != 0 {
		atomic.AddUint64(&w.errors, 1)
	}
	atomic.AddUint64(&w.bytesRead, read)
	atomic.AddUint64(&w.bytesWrit, written)
}

// Summarize logs one batched line per worker with its call/error counts and
// human-readable I/O totals, then resets the counters.
func (s *Sink) Summarize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return
	}
	for id, w := range s.workers {
		s.log.WithFields(logrus.Fields{
			"worker": id,
			"calls":  w.calls,
			"errors": w.errors,
			"read":   units.HumanSize(float64(w.bytesRead)),
			"write":  units.HumanSize(float64(w.bytesWrit)),
		}).Info("syscall summary")
	}
	s.workers = map[uint32]*workerStats{}
}
