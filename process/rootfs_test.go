package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/editorfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// stubCapability is a minimal editorfs.Capability with a single root
// directory, just enough to exercise a workspace-folder mount's naming.
type stubCapability struct{}

func (stubCapability) Stat(path string) (editorfs.Stat, error) {
	return editorfs.Stat{Kind: editorfs.EntryDirectory}, nil
}
func (stubCapability) Read(path string) ([]byte, error)                 { return nil, nil }
func (stubCapability) Write(path string, content []byte) error          { return nil }
func (stubCapability) Readdir(path string) ([]editorfs.DirEntry, error) { return nil, nil }
func (stubCapability) Create(path string, dir bool) error               { return nil }
func (stubCapability) Delete(path string) error                         { return nil }
func (stubCapability) Rename(oldPath, newPath string) error             { return nil }

func TestConstructRootFilesystemMemoryFSMountRoundTrips(t *testing.T) {
	mem := ConstructMemoryFilesystem()
	require.Equal(t, wasiabi.ErrnoSuccess, mem.CreateFile("a.txt", []byte("x")))

	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountMemoryFS, Path: "/tmp", MemoryFS: mem},
	})
	require.NoError(t, err)

	filetype, errno := rfs.Stat("/tmp/a.txt")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, wasiabi.FiletypeRegularFile, filetype)
}

func TestConstructRootFilesystemToNativeThenToWasiRoundTrips(t *testing.T) {
	mem := ConstructMemoryFilesystem()
	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountMemoryFS, Path: "/workspace", MemoryFS: mem},
	})
	require.NoError(t, err)

	locator, ok := rfs.ToNative("/workspace/a/b")
	require.True(t, ok)
	require.Equal(t, "a/b", locator.Path)

	path, ok := rfs.ToWasi(locator)
	require.True(t, ok)
	require.Equal(t, "/workspace/a/b", path)
}

func TestConstructRootFilesystemRejectsSecondRootMount(t *testing.T) {
	a := ConstructMemoryFilesystem()
	b := ConstructMemoryFilesystem()

	_, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountMemoryFS, Path: "/tmp", MemoryFS: a},
		{Kind: MountMemoryFS, Path: "/", MemoryFS: b},
	})
	require.Error(t, err)
}

func TestConstructRootFilesystemMultipleWorkspaceFoldersNamespace(t *testing.T) {
	mem := ConstructMemoryFilesystem()
	require.Equal(t, wasiabi.ErrnoSuccess, mem.CreateFile("x", []byte("1")))

	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountMemoryFS, Path: "/workspaces/one", MemoryFS: mem},
		{Kind: MountMemoryFS, Path: "/workspaces/two", MemoryFS: ConstructMemoryFilesystem()},
	})
	require.NoError(t, err)

	_, errno := rfs.Stat("/workspaces/one/x")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
}

func TestSingleWorkspaceFolderMountsAtWorkspace(t *testing.T) {
	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountWorkspaceFolder, Capability: stubCapability{}},
	})
	require.NoError(t, err)

	filetype, errno := rfs.Stat("/workspace")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, wasiabi.FiletypeDirectory, filetype)
}

func TestMultipleWorkspaceFoldersMountUnderWorkspacesName(t *testing.T) {
	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountWorkspaceFolder, Name: "one", Capability: stubCapability{}},
		{Kind: MountWorkspaceFolder, Name: "two", Capability: stubCapability{}},
	})
	require.NoError(t, err)

	for _, name := range []string{"one", "two"} {
		filetype, errno := rfs.Stat("/workspaces/" + name)
		require.Equal(t, wasiabi.ErrnoSuccess, errno)
		require.Equal(t, wasiabi.FiletypeDirectory, filetype)
	}
}

func TestExtensionLocationMountReadsManifestAndFiles(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "bundle")
	require.NoError(t, os.Mkdir(bundle, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "a.txt"), []byte("contents"), 0o644))
	require.NoError(t, os.WriteFile(bundle+".dir.json", []byte(`["a.txt"]`), 0o644))

	rfs, err := ConstructRootFilesystem([]MountDescriptor{
		{Kind: MountExtensionLocation, Path: "/ext", BundleDir: bundle},
	})
	require.NoError(t, err)

	filetype, errno := rfs.Stat("/ext/a.txt")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, wasiabi.FiletypeRegularFile, filetype)
}
