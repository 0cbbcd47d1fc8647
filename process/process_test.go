package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/bridge"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasisvc"
)

func TestRunReturnsModuleExitCode(t *testing.T) {
	p := ConstructProcess("guest", ModuleFunc(func(*wasisvc.Service, *bridge.Dispatcher) uint32 {
		return 7
	}), nil, Options{})

	code := p.Run(context.Background())
	require.Equal(t, uint32(7), code)
}

func TestRunHonoursProcExitCalledFromModule(t *testing.T) {
	p := ConstructProcess("guest", ModuleFunc(func(svc *wasisvc.Service, _ *bridge.Dispatcher) uint32 {
		svc.ProcExit(3)
		return 99 // proc_exit already resolved the run-promise with 3
	}), nil, Options{})

	code := p.Run(context.Background())
	require.Equal(t, uint32(3), code)
}

func TestTerminateResolvesRunWithoutModuleCooperation(t *testing.T) {
	block := make(chan struct{})
	p := ConstructProcess("guest", ModuleFunc(func(svc *wasisvc.Service, _ *bridge.Dispatcher) uint32 {
		<-block
		return 0
	}), nil, Options{})

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Terminate()
	}()

	code := p.Run(context.Background())
	require.Equal(t, uint32(143), code)
	require.True(t, p.Terminated())
	close(block)
}

func TestConstructProcessPrestatsEveryRootFilesystemMount(t *testing.T) {
	mem := ConstructMemoryFilesystem()
	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountMemoryFS, Path: "/tmp", MemoryFS: mem},
	})
	require.NoError(t, err)

	var pathLen uint32
	var prestatErrno wasiabi.Errno
	p := ConstructProcess("guest", ModuleFunc(func(svc *wasisvc.Service, _ *bridge.Dispatcher) uint32 {
		pathLen, prestatErrno = svc.FdPrestatGet(3)
		return 0
	}), nil, Options{Root: rfs})

	p.Run(context.Background())
	require.Equal(t, wasiabi.ErrnoSuccess, prestatErrno)
	require.Equal(t, uint32(len("/tmp")), pathLen)
}

func TestStdioDefaultsAreIndependentPipes(t *testing.T) {
	p := ConstructProcess("guest", ModuleFunc(func(*wasisvc.Service, *bridge.Dispatcher) uint32 { return 0 }), nil, Options{})
	require.NotNil(t, p.Stdin())
	require.NotNil(t, p.Stdout())
	require.NotNil(t, p.Stderr())
	require.NotSame(t, p.Stdin(), p.Stdout())
}
