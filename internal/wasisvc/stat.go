package wasisvc

import (
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// toFilestat converts a driver's device.Stat into the on-wire Filestat
// shape, stamping the owning device's id as dev (spec.md §3's "Device"
// identity feeding fd_filestat_get/path_filestat_get's dev field).
func toFilestat(devID uint64, st device.Stat) wasiabi.Filestat {
	return wasiabi.Filestat{
		Dev: devID, Ino: st.Ino, Filetype: st.Filetype, Nlink: st.Nlink,
		Size: st.Size,
		Atim: uint64(st.Atim.UnixNano()), Mtim: uint64(st.Mtim.UnixNano()),
		Ctim: uint64(st.Ctim.UnixNano()),
	}
}
