package process

import (
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/memfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// MemoryFilesystem is the façade object construct-memory-filesystem
// returns, per spec.md §6: a host-side handle for seeding an in-memory
// tree before a process starts, wrapping internal/memfs directly since it
// already implements every operation the façade names.
type MemoryFilesystem struct {
	fs *memfs.FS
}

var memoryFSSeq uint64

// ConstructMemoryFilesystem builds a fresh, writable in-memory filesystem
// instance, suitable for passing as a memory-fs mount descriptor to
// ConstructRootFilesystem.
func ConstructMemoryFilesystem() *MemoryFilesystem {
	memoryFSSeq++
	dev := device.NewDevice(memoryFSSeq, device.KindMemFS)
	return &MemoryFilesystem{fs: memfs.New(dev, false)}
}

// CreateDirectory creates path and any missing intermediate directories.
func (m *MemoryFilesystem) CreateDirectory(path string) wasiabi.Errno {
	return m.fs.PathCreateDirectory(path)
}

// CreateFile installs a regular file at path with the given content.
func (m *MemoryFilesystem) CreateFile(path string, content []byte) wasiabi.Errno {
	return m.fs.WriteFile(path, content)
}

// CreateReadable installs a character-device node whose reads are serviced
// by read, e.g. a synthetic data source with no guest-visible write side.
func (m *MemoryFilesystem) CreateReadable(path string, read func([]byte) (int, wasiabi.Errno)) wasiabi.Errno {
	return m.fs.WriteCharDevice(path, read, nil)
}

// CreateWritable installs a character-device node whose writes are
// serviced by write, e.g. a sink the guest can fd_write into.
func (m *MemoryFilesystem) CreateWritable(path string, write func([]byte) (int, wasiabi.Errno)) wasiabi.Errno {
	return m.fs.WriteCharDevice(path, nil, write)
}

// Driver exposes the underlying device.Driver for mounting.
func (m *MemoryFilesystem) Driver() device.Driver { return m.fs }
