// Package fdtable implements the per-process file descriptor table: a
// two-phase (init, then running) mapping from small integer fds to open
// descriptors, each carrying the rights/fdflags/filetype a WASI preview-1
// guest expects fd_fdstat_get and friends to report.
//
// Grounded on tetratelabs/wazero's internal/sys.FSContext/FileEntry/FileTable
// (read from the grafana-k6 vendor copy in the retrieval pack, since the
// teacher's own internal/sys carried only test files), generalized from
// fs.FS-backed entries to rights-aware Descriptor values per spec.md §3.
package fdtable

import (
	"sync"

	"github.com/tetratelabs/wasi-editor-runtime/internal/descriptor"
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// FirstRealFD is the lowest fd number assigned once the table leaves its
// init phase. Stdio preopens occupy 0..FirstRealFD-1; mounted roots are
// preopened at the next free fds after them.
const FirstRealFD = 3

// Descriptor is one open file descriptor's host-side bookkeeping.
type Descriptor struct {
	Device   *device.Device
	File     device.File
	Filetype wasiabi.Filetype
	Flags    wasiabi.Fdflags

	BaseRights       wasiabi.Rights
	InheritingRights wasiabi.Rights

	// IsPreopen marks descriptors installed during the init phase (stdio,
	// mounted filesystem roots). Preopens cannot be closed or renumbered
	// over, mirroring FSContext.CloseFile's ENOTSUP-on-preopen rule.
	IsPreopen bool

	// PreopenPath is the guest-visible path this descriptor was preopened
	// at, only meaningful when IsPreopen is true.
	PreopenPath string

	// VirtualPath is the absolute path this descriptor resolves to in the
	// virtual root namespace, set for every directory descriptor (preopen
	// or opened via path_open with O_DIRECTORY) so a later path_open using
	// this fd as its base can recompute the absolute path to resolve.
	VirtualPath string
}

// Table is the fd table for one process. The zero value is not usable; use
// New.
type Table struct {
	mu    sync.Mutex
	inner descriptor.Table[int32, *Descriptor]
	phase phase
}

type phase int

const (
	phaseInit phase = iota
	phaseRunning
)

// New returns an empty Table in its init phase.
func New() *Table {
	return &Table{phase: phaseInit}
}

// Preopen installs d at the next sequential fd during the init phase. It
// panics if called after EndInit; callers only preopen stdio and mount
// roots before a guest starts running.
func (t *Table) Preopen(d *Descriptor) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != phaseInit {
		panic("fdtable: Preopen called after EndInit")
	}
	d.IsPreopen = true
	key := t.firstFreeFrom(0)
	t.inner.InsertAt(d, key)
	return key
}

// EndInit transitions the table to its running phase. After this call,
// newly opened descriptors are allocated starting at FirstRealFD, even if
// fewer than FirstRealFD preopens were installed.
func (t *Table) EndInit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phaseRunning
}

// Open installs d and returns its newly assigned fd. During the running
// phase, fds below FirstRealFD are never handed out, matching spec.md §8's
// "fd >= first_real_fd" invariant for non-preopened descriptors.
func (t *Table) Open(d *Descriptor) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	floor := int32(0)
	if t.phase == phaseRunning {
		floor = FirstRealFD
	}
	key := t.firstFreeFrom(floor)
	t.inner.InsertAt(d, key)
	return key
}

// firstFreeFrom scans for the lowest unoccupied key at or above floor.
func (t *Table) firstFreeFrom(floor int32) int32 {
	for key := floor; ; key++ {
		if _, ok := t.inner.Lookup(key); !ok {
			return key
		}
	}
}

// Lookup returns the descriptor at fd, or (nil, false) if fd is unused.
func (t *Table) Lookup(fd int32) (*Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.inner.Lookup(fd)
	if !ok || d == nil {
		return nil, false
	}
	return d, true
}

// Close removes fd from the table. Preopened descriptors cannot be closed,
// returning ErrnoNotsup, matching FSContext.CloseFile's preopen guard.
func (t *Table) Close(fd int32) wasiabi.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.inner.Lookup(fd)
	if !ok || d == nil {
		return wasiabi.ErrnoBadf
	}
	if d.IsPreopen {
		return wasiabi.ErrnoNotsup
	}
	if d.File != nil {
		d.File.Close()
	}
	t.inner.Delete(fd)
	return wasiabi.ErrnoSuccess
}

// Renumber makes fd `to` an alias for the descriptor currently at `from`,
// closing `from`'s old slot and whatever previously lived at `to`.
//
// from must name an existing, non-preopened descriptor (ErrnoBadf /
// ErrnoNotsup otherwise, mirroring FSContext.Renumber). If `to` already
// holds a preopen, the renumber is rejected with ErrnoNotsup rather than
// silently evicting a mount root.
func (t *Table) Renumber(from, to int32) wasiabi.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()

	fromDesc, ok := t.inner.Lookup(from)
	if !ok || fromDesc == nil {
		return wasiabi.ErrnoBadf
	}
	if fromDesc.IsPreopen {
		return wasiabi.ErrnoNotsup
	}
	if from == to {
		return wasiabi.ErrnoSuccess
	}

	if toDesc, ok := t.inner.Lookup(to); ok && toDesc != nil {
		if toDesc.IsPreopen {
			return wasiabi.ErrnoNotsup
		}
		if toDesc.File != nil {
			toDesc.File.Close()
		}
	}

	t.inner.Delete(from)
	t.inner.InsertAt(fromDesc, to)
	return wasiabi.ErrnoSuccess
}

// Range visits every occupied fd in ascending order.
func (t *Table) Range(f func(fd int32, d *Descriptor) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inner.Range(func(fd int32, d *Descriptor) bool {
		if d == nil {
			return true
		}
		return f(fd, d)
	})
}

// Preopens returns every descriptor installed during the init phase, in fd
// order, for fd_prestat_get/fd_prestat_dir_name enumeration.
func (t *Table) Preopens() []int32 {
	var out []int32
	t.Range(func(fd int32, d *Descriptor) bool {
		if d.IsPreopen {
			out = append(out, fd)
		}
		return true
	})
	return out
}
