package chardev

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

func TestConsolePassesThroughReaderAndWriter(t *testing.T) {
	var written []byte
	c := NewConsole(5,
		func(buf []byte) (int, wasiabi.Errno) { return copy(buf, "hi"), wasiabi.ErrnoSuccess },
		func(buf []byte) (int, wasiabi.Errno) { written = append(written, buf...); return len(buf), wasiabi.ErrnoSuccess },
		nil,
	)

	buf := make([]byte, 8)
	n, errno := c.Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, "hi", string(buf[:n]))

	n, errno = c.Write([]byte("out"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 3, n)
	require.Equal(t, "out", string(written))
}

func TestConsoleWithoutReaderReturnsNosys(t *testing.T) {
	c := NewConsole(5, nil, nil, nil)
	_, errno := c.Read(make([]byte, 1))
	require.Equal(t, wasiabi.ErrnoNosys, errno)
}

func TestConsoleStatIsSyntheticCharacterDevice(t *testing.T) {
	c := NewConsole(9, nil, nil, nil)
	stat, errno := c.Stat()
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, wasiabi.FiletypeCharacterDevice, stat.Filetype)
	require.Equal(t, uint64(101), stat.Size)
}

func TestPipeWriteThenReadRoundTrips(t *testing.T) {
	p := NewPipe(1, 0)
	n, errno := p.Write([]byte("hello"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, errno = p.Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestPipeDefaultCapacityIs16KiB(t *testing.T) {
	p := NewPipe(1, 0)
	require.Equal(t, DefaultPipeCapacity, p.capacity)
	require.Equal(t, 16*1024, p.capacity)
}

func TestPipeWriteBlocksUntilReaderDrains(t *testing.T) {
	p := NewPipe(1, 4)
	n, errno := p.Write([]byte("abcd"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 4, n)

	var wg sync.WaitGroup
	wg.Add(1)
	writeDone := make(chan struct{})
	go func() {
		defer wg.Done()
		n, errno := p.Write([]byte("e"))
		require.Equal(t, wasiabi.ErrnoSuccess, errno)
		require.Equal(t, 1, n)
		close(writeDone)
	}()

	select {
	case <-writeDone:
		t.Fatal("write must block while the pipe is at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 4)
	_, errno = p.Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)

	select {
	case <-writeDone:
	case <-time.After(time.Second):
		t.Fatal("write must unblock once the reader drains the pipe")
	}
	wg.Wait()
}

func TestPipeReadAfterCloseReturnsEOFLikeZero(t *testing.T) {
	p := NewPipe(1, 0)
	require.Equal(t, wasiabi.ErrnoSuccess, p.Close())

	n, errno := p.Read(make([]byte, 4))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 0, n)
}

func TestPipeWriteAfterCloseReturnsPipeError(t *testing.T) {
	p := NewPipe(1, 0)
	require.Equal(t, wasiabi.ErrnoSuccess, p.Close())

	_, errno := p.Write([]byte("x"))
	require.Equal(t, wasiabi.ErrnoPipe, errno)
}

func TestPipePollReadReflectsBufferedData(t *testing.T) {
	p := NewPipe(1, 0)
	ready, errno := p.PollRead(nil)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.False(t, ready)

	p.Write([]byte("x"))
	ready, _ = p.PollRead(nil)
	require.True(t, ready)
}
