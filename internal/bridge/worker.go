package bridge

import (
	"fmt"
	"sync"
)

// WorkerState is a guest worker's lifecycle stage, per spec.md §4.6:
// created -> ready -> initializing -> running -> exited.
type WorkerState int

const (
	WorkerCreated WorkerState = iota
	WorkerReady
	WorkerInitializing
	WorkerRunning
	WorkerExited
)

func (s WorkerState) String() string {
	switch s {
	case WorkerCreated:
		return "created"
	case WorkerReady:
		return "ready"
	case WorkerInitializing:
		return "initializing"
	case WorkerRunning:
		return "running"
	case WorkerExited:
		return "exited"
	default:
		return "unknown"
	}
}

var validTransitions = map[WorkerState][]WorkerState{
	WorkerCreated:      {WorkerReady},
	WorkerReady:        {WorkerInitializing},
	WorkerInitializing: {WorkerRunning, WorkerExited},
	WorkerRunning:      {WorkerExited},
	WorkerExited:       {},
}

// Worker tracks one guest worker's lifecycle state and the Buffer it
// communicates through.
type Worker struct {
	ID    uint32
	Buf   *Buffer
	mu    sync.Mutex
	state WorkerState
}

// NewWorker builds a Worker in the created state.
func NewWorker(id uint32, buf *Buffer) *Worker {
	return &Worker{ID: id, Buf: buf, state: WorkerCreated}
}

func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// transition moves the worker to next, panicking if the move isn't a
// legal step in created->ready->initializing->running->exited (or straight
// from initializing to exited) — an
// illegal transition is a host programming error, not a guest-triggerable
// condition.
func (w *Worker) transition(next WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, allowed := range validTransitions[w.state] {
		if allowed == next {
			w.state = next
			return
		}
	}
	panic(fmt.Sprintf("bridge: illegal worker transition %s -> %s", w.state, next))
}

// SignalReady marks the worker's linkage as up.
func (w *Worker) SignalReady() { w.transition(WorkerReady) }

// BeginInitializing marks the one-time memory/prestat handshake as started.
func (w *Worker) BeginInitializing() { w.transition(WorkerInitializing) }

// BeginRunning marks the handshake complete and the worker servicing
// guest calls.
func (w *Worker) BeginRunning() { w.transition(WorkerRunning) }

// Exit marks the worker terminated, via proc_exit or abnormal exit.
func (w *Worker) Exit() { w.transition(WorkerExited) }
