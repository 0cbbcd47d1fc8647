package process

import (
	"fmt"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/editorfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/extensionfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/vroot"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasisvc"
)

// MountKind distinguishes the four mount descriptor shapes spec.md §6
// accepts.
type MountKind int

const (
	MountWorkspaceFolder MountKind = iota
	MountExtensionLocation
	MountEditorFS
	MountMemoryFS
)

// MountDescriptor is one entry of construct-root-filesystem's mounts
// argument. Which fields apply depends on Kind:
//   - workspace-folder: Capability, Name (used only when more than one
//     workspace-folder descriptor is given, to build /workspaces/<name>).
//   - extension-location: BundleDir (native directory; its sidecar
//     manifest is read from alongside it) and Path.
//   - editor-fs: Capability, ReadOnly and Path.
//   - memory-fs: MemoryFS and Path.
type MountDescriptor struct {
	Kind MountKind
	Path string
	Name string

	Capability editorfs.Capability
	ReadOnly   bool

	BundleDir string

	MemoryFS *MemoryFilesystem
}

// NativeLocator identifies the device and in-device path a virtual path
// resolves to, the way to_native's result is described in spec.md §6.
type NativeLocator struct {
	Device *device.Device
	Path   string
}

// RootFilesystem is construct-root-filesystem's result: the composed
// virtual namespace plus the to_native/to_wasi/stat façade spec.md §6
// names. Mounts records the same (path, driver) pairs in mount order, for
// ConstructProcess to announce through the prestat loop — the single
// source of truth a process's fd table and its dispatch target are built
// from, rather than two lists a caller would otherwise have to keep in
// sync by hand.
type RootFilesystem struct {
	root    *vroot.Root
	drivers map[uint64]device.Driver
	Mounts  []wasisvc.Mount
}

// ConstructRootFilesystem composes mounts into one virtual namespace,
// rejecting a second mount at "/" once any mount already exists, per
// spec.md §6.
func ConstructRootFilesystem(mounts []MountDescriptor) (*RootFilesystem, error) {
	root := vroot.New(device.NewDevice(0, device.KindMemFS))
	drivers := map[uint64]device.Driver{}
	var svcMounts []wasisvc.Mount

	workspaceFolders := 0
	for _, m := range mounts {
		if m.Kind == MountWorkspaceFolder {
			workspaceFolders++
		}
	}

	for _, m := range mounts {
		path, driver, err := buildMount(m, workspaceFolders > 1)
		if err != nil {
			return nil, err
		}
		if path == "/" && len(svcMounts) > 0 {
			return nil, fmt.Errorf("process: cannot mount %q at / alongside %d other mount(s)", m.BundleDir, len(svcMounts))
		}
		if errno := root.AddMount(path, driver); errno != wasiabi.ErrnoSuccess {
			return nil, fmt.Errorf("process: mounting %q at %q: errno %d", mountKindName(m.Kind), path, errno)
		}
		drivers[driver.Mounted().ID] = driver
		svcMounts = append(svcMounts, wasisvc.Mount{Path: path, Driver: driver})
	}

	return &RootFilesystem{root: root, drivers: drivers, Mounts: svcMounts}, nil
}

func mountKindName(k MountKind) string {
	switch k {
	case MountWorkspaceFolder:
		return "workspace-folder"
	case MountExtensionLocation:
		return "extension-location"
	case MountEditorFS:
		return "editor-fs"
	case MountMemoryFS:
		return "memory-fs"
	default:
		return "unknown"
	}
}

var extensionDeviceSeq uint64

func buildMount(m MountDescriptor, multipleWorkspaces bool) (string, device.Driver, error) {
	switch m.Kind {
	case MountWorkspaceFolder:
		path := "/workspace"
		if multipleWorkspaces {
			path = "/workspaces/" + m.Name
		}
		extensionDeviceSeq++
		fs := editorfs.New(device.NewDevice(extensionDeviceSeq, device.KindEditorFS), m.Capability, false)
		return path, fs, nil

	case MountEditorFS:
		extensionDeviceSeq++
		fs := editorfs.New(device.NewDevice(extensionDeviceSeq, device.KindEditorFS), m.Capability, m.ReadOnly)
		return m.Path, fs, nil

	case MountExtensionLocation:
		extensionDeviceSeq++
		fs, err := extensionfs.Load(device.NewDevice(extensionDeviceSeq, device.KindEditorFS), m.BundleDir)
		if err != nil {
			return "", nil, fmt.Errorf("process: loading extension bundle %q: %w", m.BundleDir, err)
		}
		return m.Path, fs, nil

	case MountMemoryFS:
		return m.Path, m.MemoryFS.Driver(), nil

	default:
		return "", nil, fmt.Errorf("process: unknown mount kind %d", m.Kind)
	}
}

// ToNative resolves a virtual path to the device and in-device path
// backing it.
func (r *RootFilesystem) ToNative(path string) (NativeLocator, bool) {
	dev, remainder, ok := r.root.Locate(path)
	if !ok {
		return NativeLocator{}, false
	}
	return NativeLocator{Device: dev, Path: remainder}, true
}

// ToWasi reverse-maps a locator's device and in-device path back to a
// virtual path, when that device is still mounted.
func (r *RootFilesystem) ToWasi(locator NativeLocator) (string, bool) {
	if locator.Device == nil {
		return "", false
	}
	driver, ok := r.drivers[locator.Device.ID]
	if !ok {
		return "", false
	}
	return r.root.MakeVirtualPath(driver, locator.Path)
}

// Stat reports the filetype at path, the way spec.md §6's stat(path)
// entry point does.
func (r *RootFilesystem) Stat(path string) (wasiabi.Filetype, wasiabi.Errno) {
	stat, errno := r.root.PathFilestatGet(path)
	if errno != wasiabi.ErrnoSuccess {
		return 0, errno
	}
	return stat.Filetype, wasiabi.ErrnoSuccess
}

// Driver exposes the composed namespace for process construction.
func (r *RootFilesystem) Driver() device.Driver { return r.root }
