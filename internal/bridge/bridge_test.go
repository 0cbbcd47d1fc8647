package bridge

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

func TestSubmitCallThenServeOneRoundTrips(t *testing.T) {
	buf := NewBuffer(8)
	d := NewDispatcher(1)
	d.Register(0, func(params []byte) wasiabi.Errno {
		n := binary.LittleEndian.Uint32(params)
		binary.LittleEndian.PutUint32(params, n*2)
		return wasiabi.ErrnoSuccess
	})

	binary.LittleEndian.PutUint32(buf.Params(), 21)

	done := make(chan wasiabi.Errno, 1)
	go func() {
		buf.SubmitCall(0)
		done <- buf.AwaitResult()
	}()

	d.ServeOne(buf)

	errno := <-done
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, uint32(42), binary.LittleEndian.Uint32(buf.Params()))
}

func TestServeOneUnknownMethodReturnsInval(t *testing.T) {
	buf := NewBuffer(0)
	d := NewDispatcher(1)

	done := make(chan wasiabi.Errno, 1)
	go func() {
		buf.SubmitCall(5)
		done <- buf.AwaitResult()
	}()

	d.ServeOne(buf)
	require.Equal(t, wasiabi.ErrnoInval, <-done)
}

func TestServeOneNilMethodReturnsInval(t *testing.T) {
	buf := NewBuffer(0)
	d := NewDispatcher(1)

	done := make(chan wasiabi.Errno, 1)
	go func() {
		buf.SubmitCall(0)
		done <- buf.AwaitResult()
	}()

	d.ServeOne(buf)
	require.Equal(t, wasiabi.ErrnoInval, <-done)
}

func TestAwaitResultBlocksUntilResolved(t *testing.T) {
	buf := NewBuffer(0)
	buf.SubmitCall(0)

	resolved := make(chan wasiabi.Errno, 1)
	go func() { resolved <- buf.AwaitResult() }()

	select {
	case <-resolved:
		t.Fatal("resolved before Resolve was called")
	case <-time.After(30 * time.Millisecond):
	}

	buf.Resolve(wasiabi.ErrnoSuccess)
	require.Equal(t, wasiabi.ErrnoSuccess, <-resolved)
}

func TestWorkerLifecycleHappyPath(t *testing.T) {
	w := NewWorker(1, NewBuffer(0))
	require.Equal(t, WorkerCreated, w.State())

	w.SignalReady()
	require.Equal(t, WorkerReady, w.State())

	w.BeginInitializing()
	require.Equal(t, WorkerInitializing, w.State())

	w.BeginRunning()
	require.Equal(t, WorkerRunning, w.State())

	w.Exit()
	require.Equal(t, WorkerExited, w.State())
}

func TestWorkerInitializingCanExitDirectly(t *testing.T) {
	w := NewWorker(1, NewBuffer(0))
	w.SignalReady()
	w.BeginInitializing()
	w.Exit()
	require.Equal(t, WorkerExited, w.State())
}

func TestWorkerIllegalTransitionPanics(t *testing.T) {
	w := NewWorker(1, NewBuffer(0))
	require.Panics(t, func() { w.BeginRunning() })
}
