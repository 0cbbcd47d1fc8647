// Package process implements the host-facing control surface spec.md §6
// names: construct-process, construct-pseudoterminal,
// construct-memory-filesystem and construct-root-filesystem. It wires
// together the fd table, virtual root, syscall service and call bridge
// built by the sibling internal packages into the handful of objects the
// public façade exposes.
//
// Grounded on spec.md §6 directly for the four constructors' shapes, and
// on tetratelabs-wazero's api.Module/ModuleConfig split (module.go,
// config.go) for separating "what runs" (Module) from "how it's wired"
// (Options) — the wasm engine and compiled module themselves are the
// out-of-scope external collaborator spec.md §1 names, so Module is
// modeled as the minimal contract a real engine integration would satisfy
// rather than an actual interpreter.
package process

import (
	"context"
	"sync"
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/bridge"
	"github.com/tetratelabs/wasi-editor-runtime/internal/chardev"
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/fdtable"
	"github.com/tetratelabs/wasi-editor-runtime/internal/trace"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasisvc"
)

// Module is the out-of-scope engine collaborator's contract: given the
// syscall service and call dispatcher constructed for it, run the guest's
// entry point to completion, returning its exit code. A real integration
// compiles and instantiates a wasm binary and pumps the call bridge; this
// package only needs to know when it finishes and with what code.
type Module interface {
	Start(svc *wasisvc.Service, dispatcher *bridge.Dispatcher) uint32
}

// ModuleFunc adapts a plain function to Module, the way http.HandlerFunc
// adapts a function to http.Handler.
type ModuleFunc func(svc *wasisvc.Service, dispatcher *bridge.Dispatcher) uint32

func (f ModuleFunc) Start(svc *wasisvc.Service, dispatcher *bridge.Dispatcher) uint32 {
	return f(svc, dispatcher)
}

// Options configures a process's wiring beyond name and module.
type Options struct {
	Args []string
	Env  []string

	// Root is the composed namespace from ConstructRootFilesystem; its
	// Mounts drive the prestat loop, the same way its driver backs every
	// path_* dispatch, so the two can never disagree. Nil gets an empty
	// namespace with no mounts.
	Root *RootFilesystem

	// Stdin/Stdout/Stderr override the default stdio back-ends (plain
	// pipes) — e.g. a PseudoTerminal's Stdin()/Stdout() pair.
	Stdin  device.File
	Stdout device.File
	Stderr device.File

	Trace *trace.Sink
}

// Process is one construct-process result: the fd table, virtual root,
// main-thread syscall service and stdio endpoints bound together, plus
// the run/terminate lifecycle spec.md §6 names.
type Process struct {
	Name string

	fds  *fdtable.Table
	root device.Driver
	svc  *wasisvc.Service
	mod  Module

	stdin  device.File
	stdout device.File
	stderr device.File

	memory *bridge.Buffer

	mu          sync.Mutex
	done        chan struct{}
	exitCode    uint32
	terminated  bool
	resolveOnce sync.Once
}

var processStdioIno uint64

func nextStdioIno() uint64 {
	processStdioIno++
	return processStdioIno
}

// defaultStdio builds a plain pipe pair standing in for a stream that
// Options didn't override.
func defaultStdio() *chardev.Pipe {
	return chardev.NewPipe(nextStdioIno(), chardev.DefaultPipeCapacity)
}

// ConstructProcess builds a process bound to module, ready to Run. memory
// is the shared call-bridge buffer a real engine integration would back
// with wasm linear memory; nil lets the process allocate its own.
func ConstructProcess(name string, module Module, memory *bridge.Buffer, options Options) *Process {
	fds := fdtable.New()

	rfs := options.Root
	if rfs == nil {
		rfs, _ = ConstructRootFilesystem(nil)
	}
	root := rfs.Driver()

	stdin, stdout, stderr := options.Stdin, options.Stdout, options.Stderr
	if stdin == nil {
		stdin = defaultStdio()
	}
	if stdout == nil {
		stdout = defaultStdio()
	}
	if stderr == nil {
		stderr = defaultStdio()
	}

	fds.Preopen(&fdtable.Descriptor{
		File: stdin, Filetype: wasiabi.FiletypeCharacterDevice,
		BaseRights: wasiabi.RightFDRead | wasiabi.RightPollFDReadwrite,
	})
	fds.Preopen(&fdtable.Descriptor{
		File: stdout, Filetype: wasiabi.FiletypeCharacterDevice,
		BaseRights: wasiabi.RightFDWrite | wasiabi.RightPollFDReadwrite,
	})
	fds.Preopen(&fdtable.Descriptor{
		File: stderr, Filetype: wasiabi.FiletypeCharacterDevice,
		BaseRights: wasiabi.RightFDWrite | wasiabi.RightPollFDReadwrite,
	})
	p := &Process{
		Name: name, fds: fds, root: root, mod: module,
		stdin: stdin, stdout: stdout, stderr: stderr,
		memory: memory,
		done:   make(chan struct{}),
	}

	p.svc = wasisvc.New(1, wasisvc.Config{
		FDs: fds, Root: root, Trace: options.Trace,
		Args: options.Args, Env: options.Env, Mounts: rfs.Mounts,
		StartedAt: time.Now(),
		OnExit:    p.resolve,
	})

	return p
}

// Stdin, Stdout and Stderr expose the process's stdio endpoints for the
// host side to read or write directly, per spec.md §6's "possibly exposed
// as streams".
func (p *Process) Stdin() device.File  { return p.stdin }
func (p *Process) Stdout() device.File { return p.stdout }
func (p *Process) Stderr() device.File { return p.stderr }

// resolve records the exit code the first time it is called, from
// whichever of proc_exit or Terminate reaches it first.
func (p *Process) resolve(code uint32) {
	p.resolveOnce.Do(func() {
		p.mu.Lock()
		p.exitCode = code
		p.mu.Unlock()
		close(p.done)
	})
}

// Run starts the module's entry point and blocks until it calls
// proc_exit, traps, or ctx is cancelled, returning the exit code. Per
// spec.md §5's cancellation note, there is no first-class cancellation:
// a cancelled ctx only stops Run from waiting, it does not stop the
// module, which is left to finish (or be stopped by Terminate).
func (p *Process) Run(ctx context.Context) uint32 {
	go func() {
		code := p.mod.Start(p.svc, p.svc.NewDispatcher())
		p.resolve(code)
	}()

	select {
	case <-p.done:
	case <-ctx.Done():
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Terminate forces the process's run-promise to resolve without waiting
// for the module to cooperate, per spec.md §5's "proc_exit tears down the
// worker" note generalised to a host-initiated stop. The conventional
// 128+SIGTERM(15) exit code is reported.
func (p *Process) Terminate() {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.resolve(143)
}

// Terminated reports whether Terminate has been called.
func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}
