package editorfs

import (
	"sync"
	"time"

	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// fakeCapability is an in-memory stand-in for the editor's real filesystem
// API, used only to exercise editorfs without a real editor integration.
type fakeCapability struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	statErr map[string]*Error
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{
		files:   map[string][]byte{},
		dirs:    map[string]bool{"": true},
		statErr: map[string]*Error{},
	}
}

func (c *fakeCapability) Stat(path string) (Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirs[path] {
		return Stat{Kind: EntryDirectory}, nil
	}
	if content, ok := c.files[path]; ok {
		return Stat{Kind: EntryFile, Size: uint64(len(content)), Mtim: time.Unix(0, 0)}, nil
	}
	return Stat{}, &Error{Code: ErrFileNotFound}
}

func (c *fakeCapability) Read(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.files[path]
	if !ok {
		return nil, &Error{Code: ErrFileNotFound}
	}
	return append([]byte(nil), content...), nil
}

func (c *fakeCapability) Write(path string, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = append([]byte(nil), content...)
	return nil
}

func (c *fakeCapability) Readdir(path string) ([]DirEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirs[path] {
		return nil, &Error{Code: ErrFileNotADirectory}
	}
	prefix := path
	if prefix != "" {
		prefix += "/"
	}
	var out []DirEntry
	for p := range c.files {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix && indexByte(p[len(prefix):], '/') == -1 {
			out = append(out, DirEntry{Name: p[len(prefix):], Kind: EntryFile})
		}
	}
	for d := range c.dirs {
		if d != path && len(d) > len(prefix) && d[:len(prefix)] == prefix && indexByte(d[len(prefix):], '/') == -1 {
			out = append(out, DirEntry{Name: d[len(prefix):], Kind: EntryDirectory})
		}
	}
	return out, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (c *fakeCapability) Create(path string, dir bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dir {
		c.dirs[path] = true
	} else {
		c.files[path] = nil
	}
	return nil
}

func (c *fakeCapability) Delete(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
	delete(c.dirs, path)
	return nil
}

func (c *fakeCapability) Rename(oldPath, newPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if content, ok := c.files[oldPath]; ok {
		delete(c.files, oldPath)
		c.files[newPath] = content
		return nil
	}
	if c.dirs[oldPath] {
		delete(c.dirs, oldPath)
		c.dirs[newPath] = true
		return nil
	}
	return &Error{Code: ErrFileNotFound}
}

func newEditorFS(readOnly bool) (*FS, *fakeCapability) {
	cap := newFakeCapability()
	return New(device.NewDevice(1, device.KindEditorFS), cap, readOnly), cap
}

func TestOpenMissingWithoutCreatReturnsNoent(t *testing.T) {
	fs, _ := newEditorFS(false)
	_, errno := fs.OpenAt("missing.txt", 0, 0, false)
	require.Equal(t, wasiabi.ErrnoNoent, errno)
}

func TestOpenCreatMakesFileAndWriteRoundTrips(t *testing.T) {
	fs, cap := newEditorFS(false)
	f, errno := fs.OpenAt("new.txt", wasiabi.OflagCreat, 0, true)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	n, errno := f.Write([]byte("hello"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("hello"), cap.files["new.txt"])

	buf := make([]byte, 16)
	f2, errno := fs.OpenAt("new.txt", 0, 0, false)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	n, errno = f2.Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestOpenExclOnExistingReturnsExist(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.files["a.txt"] = []byte("x")
	_, errno := fs.OpenAt("a.txt", wasiabi.OflagCreat|wasiabi.OflagExcl, 0, false)
	require.Equal(t, wasiabi.ErrnoExist, errno)
}

func TestOpenDirectoryFlagOnFileReturnsNotdir(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.files["a.txt"] = []byte("x")
	_, errno := fs.OpenAt("a.txt", wasiabi.OflagDirectory, 0, false)
	require.Equal(t, wasiabi.ErrnoNotdir, errno)
}

func TestReadOnlyMountRejectsWrites(t *testing.T) {
	fs, cap := newEditorFS(true)
	cap.files["a.txt"] = []byte("seed")

	require.Equal(t, wasiabi.ErrnoPerm, fs.PathCreateDirectory("dir"))
	require.Equal(t, wasiabi.ErrnoPerm, fs.PathUnlinkFile("a.txt"))

	_, errno := fs.OpenAt("a.txt", 0, 0, true)
	require.Equal(t, wasiabi.ErrnoPerm, errno)

	f, errno := fs.OpenAt("a.txt", 0, 0, false)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	_, errno = f.Write([]byte("x"))
	require.Equal(t, wasiabi.ErrnoPerm, errno)
}

func TestReaddirListsBackendEntries(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.dirs["dir"] = true
	cap.files["dir/a"] = nil
	cap.files["dir/b"] = nil

	f, errno := fs.OpenAt("dir", wasiabi.OflagDirectory, 0, false)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	rd, errno := f.Readdir()
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	var names []string
	for {
		ent, errno := rd.Next()
		require.Equal(t, wasiabi.ErrnoSuccess, errno)
		if ent == nil {
			break
		}
		names = append(names, ent.Name)
	}
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestPathRenamePreservesInode(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.files["old.txt"] = []byte("x")

	before, errno := fs.PathFilestatGet("old.txt")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	require.Equal(t, wasiabi.ErrnoSuccess, fs.PathRename("old.txt", "new.txt"))

	after, errno := fs.PathFilestatGet("new.txt")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, before.Ino, after.Ino)

	_, errno = fs.PathFilestatGet("old.txt")
	require.Equal(t, wasiabi.ErrnoNoent, errno)
}

func TestUnlinkTombstonesWhenDescriptorOutstanding(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.files["a.txt"] = []byte("keep me")

	f, errno := fs.OpenAt("a.txt", 0, 0, false)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	// Load content into the cache node before the backing file disappears.
	buf := make([]byte, 32)
	_, errno = f.Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	require.Equal(t, wasiabi.ErrnoSuccess, fs.PathUnlinkFile("a.txt"))

	n := f.(*file).n
	tomb, ok := fs.tombstones[n.ino]
	require.True(t, ok, "expected a tombstone for the outstanding descriptor's inode")
	require.Equal(t, []byte("keep me"), tomb.content)
}

func TestEditorErrorMappingTable(t *testing.T) {
	cases := []struct {
		code  EditorErrorCode
		errno wasiabi.Errno
	}{
		{ErrFileNotFound, wasiabi.ErrnoNoent},
		{ErrFileExists, wasiabi.ErrnoExist},
		{ErrFileNotADirectory, wasiabi.ErrnoNotdir},
		{ErrFileIsADirectory, wasiabi.ErrnoIsdir},
		{ErrNoPermissions, wasiabi.ErrnoPerm},
		{ErrUnavailable, wasiabi.ErrnoBusy},
		{ErrUnknown, wasiabi.ErrnoInval},
	}
	for _, c := range cases {
		require.Equal(t, c.errno, toErrno(&Error{Code: c.code}))
	}
	require.Equal(t, wasiabi.ErrnoSuccess, toErrno(nil))
}

func TestCloseDecrementsRefcount(t *testing.T) {
	fs, cap := newEditorFS(false)
	cap.files["a.txt"] = []byte("x")

	f, errno := fs.OpenAt("a.txt", 0, 0, false)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	n := fs.getOrCreateNode("a.txt", false)
	require.EqualValues(t, 1, n.refcount)

	require.Equal(t, wasiabi.ErrnoSuccess, f.Close())
	require.EqualValues(t, 0, n.refcount)
}
