package wasisvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/fdtable"
	"github.com/tetratelabs/wasi-editor-runtime/internal/memfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/vroot"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// newTestService builds a Service with one memfs mount at "/work", already
// past the init-phase prestat loop (mirroring what a real worker's
// handshake does before running any guest code).
func newTestService(t *testing.T) (*Service, *memfs.FS) {
	t.Helper()
	fs := memfs.New(device.NewDevice(2, device.KindMemFS), false)
	root := vroot.New(device.NewDevice(1, device.KindMemFS))
	require.Equal(t, wasiabi.ErrnoSuccess, root.AddMount("/work", fs))

	fds := fdtable.New()
	// Stdio takes fds 0-2, as ConstructProcess installs it, so the mount's
	// preopen lands at fd 3.
	for i := 0; i < 3; i++ {
		fds.Preopen(&fdtable.Descriptor{Filetype: wasiabi.FiletypeCharacterDevice})
	}
	svc := New(1, Config{
		FDs: fds, Root: root, Args: []string{"guest"}, Env: []string{"X=1"},
		Mounts:    []Mount{{Path: "/work", Driver: fs}},
		StartedAt: time.Now(),
	})

	pathLen, errno := svc.FdPrestatGet(0)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, uint32(len("/work")), pathLen)
	_, errno = svc.FdPrestatGet(0)
	require.Equal(t, wasiabi.ErrnoBadf, errno)

	return svc, fs
}

func TestPrestatLoopExhaustsThenBadf(t *testing.T) {
	newTestService(t)
}

func TestFdPrestatDirNameExactLengthOnly(t *testing.T) {
	svc, _ := newTestService(t)
	path, errno := svc.FdPrestatDirName(3, len("/work"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, "/work", path)

	_, errno = svc.FdPrestatDirName(3, len("/work")+1)
	require.Equal(t, wasiabi.ErrnoBadmsg, errno)
}

func TestPathOpenCreatesFileUnderMount(t *testing.T) {
	svc, fs := newTestService(t)
	fd, errno := svc.PathOpen(3, "hello.txt", wasiabi.OflagCreat, 0, dirRights|fileRights, dirInheriting)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.True(t, fd >= fdtable.FirstRealFD)

	n, errno := svc.FdWrite(fd, [][]byte{[]byte("hi")})
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 2, n)

	stat, errno := fs.PathFilestatGet("hello.txt")
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, uint64(2), stat.Size)
}

func TestPathOpenMissingWithoutCreatIsNoent(t *testing.T) {
	svc, _ := newTestService(t)
	_, errno := svc.PathOpen(3, "missing.txt", 0, 0, fileRights, 0)
	require.Equal(t, wasiabi.ErrnoNoent, errno)
}

func TestFdReaddirPaginatesByCookie(t *testing.T) {
	svc, fs := newTestService(t)
	require.Equal(t, wasiabi.ErrnoSuccess, fs.WriteFile("a", []byte("1")))
	require.Equal(t, wasiabi.ErrnoSuccess, fs.WriteFile("b", []byte("2")))
	require.Equal(t, wasiabi.ErrnoSuccess, fs.WriteFile("c", []byte("3")))

	fd, errno := svc.PathOpen(3, "", wasiabi.OflagDirectory, 0, dirRights, dirInheriting)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	first, errno := svc.FdReaddir(fd, 0, int(wasiabi.SizeDirent)+1)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Len(t, first, int(wasiabi.SizeDirent)+1)

	rest, errno := svc.FdReaddir(fd, 1, 4096)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.NotEmpty(t, rest)

	tail, errno := svc.FdReaddir(fd, 3, 4096)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Empty(t, tail)
}

func TestFdSeekTellSucceedsWithEitherRight(t *testing.T) {
	svc, fs := newTestService(t)
	require.Equal(t, wasiabi.ErrnoSuccess, fs.WriteFile("f", []byte("hello")))
	fd, errno := svc.PathOpen(3, "f", 0, 0, wasiabi.RightFDTell, 0)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	off, errno := svc.FdSeek(fd, 0, wasiabi.WhenceCur)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, int64(0), off)

	_, errno = svc.FdSeek(fd, 1, wasiabi.WhenceCur)
	require.Equal(t, wasiabi.ErrnoPerm, errno)
}

func TestPollOneoffClockReturnsAfterTimeout(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Now()
	events, errno := svc.PollOneoff([]wasiabi.Subscription{
		{Type: wasiabi.EventtypeClock, ClockID: wasiabi.ClockMonotonic, Timeout: uint64(20 * time.Millisecond)},
	})
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Len(t, events, 1)
	require.Equal(t, wasiabi.EventtypeClock, events[0].Type)
}

func TestThreadSpawnAssignsMonotonicIDs(t *testing.T) {
	svc, _ := newTestService(t)
	var spawned []*Service
	svc.spawn = func(child *Service) bool {
		spawned = append(spawned, child)
		return true
	}
	id1 := svc.ThreadSpawn(0)
	id2 := svc.ThreadSpawn(0)
	require.Equal(t, int32(2), id1)
	require.Equal(t, int32(3), id2)
	require.Len(t, spawned, 2)
}

func TestThreadSpawnFailureReturnsMinusOne(t *testing.T) {
	svc, _ := newTestService(t)
	svc.spawn = func(*Service) bool { return false }
	require.Equal(t, int32(-1), svc.ThreadSpawn(0))
}

func TestSockCallsAreNotsup(t *testing.T) {
	svc, _ := newTestService(t)
	_, errno := svc.SockAccept(3, 0)
	require.Equal(t, wasiabi.ErrnoNotsup, errno)
	require.Equal(t, wasiabi.ErrnoNotsup, svc.SockShutdown(3, 0))
}

func TestPathLinkSymlinkReadlinkAreNosys(t *testing.T) {
	svc, _ := newTestService(t)
	require.Equal(t, wasiabi.ErrnoNosys, svc.PathLink(3, "a", 3, "b"))
	require.Equal(t, wasiabi.ErrnoNosys, svc.PathSymlink("a", 3, "b"))
	_, errno := svc.PathReadlink(3, "a")
	require.Equal(t, wasiabi.ErrnoNosys, errno)
}

func TestArgsAndEnvironSizing(t *testing.T) {
	svc, _ := newTestService(t)
	count, size := svc.ArgsSizesGet()
	require.Equal(t, uint32(1), count)
	require.Equal(t, uint32(len("guest")+1), size)

	ecount, esize := svc.EnvironSizesGet()
	require.Equal(t, uint32(1), ecount)
	require.Equal(t, uint32(len("X=1")+1), esize)
}

func TestProcExitIsIdempotentAndReportsSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	var code uint32
	calls := 0
	svc.onExit = func(c uint32) { code = c; calls++ }
	require.Equal(t, wasiabi.ErrnoSuccess, svc.ProcExit(7))
	require.Equal(t, wasiabi.ErrnoSuccess, svc.ProcExit(9))
	require.Equal(t, uint32(7), code)
	require.Equal(t, 1, calls)
}
