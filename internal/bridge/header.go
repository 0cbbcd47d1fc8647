// Package bridge turns an asynchronous host call into a synchronous wait
// from the guest's calling goroutine, per spec.md §4.6: a shared buffer
// holds a sync word, an errno word, a method index, and a parameter area
// whose layout is fixed per WASI call signature.
//
// Grounded on spec.md §4.6's protocol text directly; the atomic-word-over-
// a-byte-buffer technique follows tetratelabs-wazero's use of
// unsafe.Pointer arithmetic over raw memory (internal/platform,
// api/wasm.go) adapted from wasm linear memory to this runtime's
// host-allocated shared buffer.
package bridge

import (
	"sync/atomic"
	"unsafe"
)

const (
	offsetSyncWord    = 0
	offsetErrno       = 4
	offsetMethodIndex = 8
	// HeaderSize is the fixed prefix before a call's parameter area begins.
	HeaderSize = 12
)

const (
	syncPending uint32 = 0
	syncDone    uint32 = 1
)

// Buffer is one call site's shared memory: a 12-byte header followed by a
// parameter area whose schema is fixed by the WASI signature being
// serviced (ptr -> 4 bytes, u32 -> 4 bytes, u64 -> 8 bytes).
type Buffer struct {
	bytes []byte
}

// NewBuffer allocates a Buffer with paramSize bytes available after the
// header. The sync word starts at "done" so the host side's AwaitCall
// does not mistake start-up state for an already-submitted call.
func NewBuffer(paramSize int) *Buffer {
	b := &Buffer{bytes: make([]byte, HeaderSize+paramSize)}
	b.storeSyncWord(syncDone)
	return b
}

func (b *Buffer) wordPtr(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&b.bytes[offset]))
}

// Params returns the parameter area, for the guest stub and host handler
// to encode/decode call arguments into, per the fixed per-call schema.
func (b *Buffer) Params() []byte { return b.bytes[HeaderSize:] }

func (b *Buffer) loadSyncWord() uint32 { return atomic.LoadUint32(b.wordPtr(offsetSyncWord)) }
func (b *Buffer) storeSyncWord(v uint32) { atomic.StoreUint32(b.wordPtr(offsetSyncWord), v) }

func (b *Buffer) storeErrno(v uint32) { atomic.StoreUint32(b.wordPtr(offsetErrno), v) }
func (b *Buffer) loadErrno() uint32   { return atomic.LoadUint32(b.wordPtr(offsetErrno)) }

func (b *Buffer) storeMethodIndex(v uint32) { atomic.StoreUint32(b.wordPtr(offsetMethodIndex), v) }
func (b *Buffer) loadMethodIndex() uint32   { return atomic.LoadUint32(b.wordPtr(offsetMethodIndex)) }
