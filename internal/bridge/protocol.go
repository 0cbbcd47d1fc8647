package bridge

import "github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"

// MethodFunc services one decoded call, reading arguments from params and
// writing results into params in place, per the per-call schema fixed by
// the WASI signature being serviced.
type MethodFunc func(params []byte) wasiabi.Errno

// Dispatcher routes a decoded method index to the MethodFunc servicing it.
// Every index, 0 included, is available; method indices are assigned by
// whatever wires up the syscall service's method table.
type Dispatcher struct {
	methods []MethodFunc
}

// NewDispatcher builds a Dispatcher with room for n method indices.
func NewDispatcher(n int) *Dispatcher {
	return &Dispatcher{methods: make([]MethodFunc, n)}
}

// Register installs fn at methodIndex.
func (d *Dispatcher) Register(methodIndex uint32, fn MethodFunc) {
	d.methods[methodIndex] = fn
}

// ServeOne implements the host handler half of spec.md §4.6's protocol:
// read the method index, decode params, invoke, write errno, signal done.
// An unknown method index or a method that itself reports a decode
// failure resolves as inval.
func (d *Dispatcher) ServeOne(buf *Buffer) {
	methodIndex := buf.AwaitCall()
	fn := d.lookup(methodIndex)
	if fn == nil {
		buf.Resolve(wasiabi.ErrnoInval)
		return
	}
	buf.Resolve(fn(buf.Params()))
}

func (d *Dispatcher) lookup(methodIndex uint32) MethodFunc {
	if int(methodIndex) >= len(d.methods) {
		return nil
	}
	return d.methods[methodIndex]
}

// SubmitCall is the guest stub half of spec.md §4.6's protocol step 1:
// write params (done by the caller before this), store the method index,
// flip the sync word to pending, and wake the host.
func (b *Buffer) SubmitCall(methodIndex uint32) {
	b.storeMethodIndex(methodIndex)
	b.storeSyncWord(syncPending)
	futexWakeWord(b.wordPtr(offsetSyncWord))
}

// AwaitResult blocks the calling goroutine until the host resolves the
// pending call, then returns the errno it wrote.
func (b *Buffer) AwaitResult() wasiabi.Errno {
	for b.loadSyncWord() != syncDone {
		futexWaitWord(b.wordPtr(offsetSyncWord), syncPending)
	}
	return wasiabi.Errno(b.loadErrno())
}

// AwaitCall blocks until a guest has submitted a call, then returns its
// method index. Called from the single-threaded host dispatcher.
func (b *Buffer) AwaitCall() uint32 {
	for b.loadSyncWord() != syncPending {
		futexWaitWord(b.wordPtr(offsetSyncWord), syncDone)
	}
	return b.loadMethodIndex()
}

// Resolve writes errno and wakes the guest waiting in AwaitResult.
func (b *Buffer) Resolve(errno wasiabi.Errno) {
	b.storeErrno(uint32(errno))
	b.storeSyncWord(syncDone)
	futexWakeWord(b.wordPtr(offsetSyncWord))
}
