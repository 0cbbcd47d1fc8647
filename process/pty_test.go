package process

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wasi-editor-runtime/internal/ptyline"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

func TestConstructPseudoTerminalSeedsHistory(t *testing.T) {
	pt := ConstructPseudoTerminal(PseudoTerminalOptions{History: []string{"ls", "pwd"}})
	require.Equal(t, []string{"ls", "pwd"}, pt.History())
}

func TestPseudoTerminalStdinResolvesReadlineThenNewline(t *testing.T) {
	pt := ConstructPseudoTerminal(PseudoTerminalOptions{})
	pt.Attach()
	pt.Feed([]byte("hi\r"))

	buf := make([]byte, 16)
	n, errno := pt.Stdin().Read(buf)
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, "hi\n", string(buf[:n]))
}

func TestPseudoTerminalStdinSplitsAcrossShortReads(t *testing.T) {
	pt := ConstructPseudoTerminal(PseudoTerminalOptions{})
	pt.Feed([]byte("ab\r"))

	first := make([]byte, 2)
	n, _ := pt.Stdin().Read(first)
	require.Equal(t, "ab", string(first[:n]))

	second := make([]byte, 2)
	n, _ = pt.Stdin().Read(second)
	require.Equal(t, "\n", string(second[:n]))
}

func TestPseudoTerminalStdoutWritesToTerminalBuffer(t *testing.T) {
	pt := ConstructPseudoTerminal(PseudoTerminalOptions{})
	n, errno := pt.Stdout().Write([]byte("hello"))
	require.Equal(t, wasiabi.ErrnoSuccess, errno)
	require.Equal(t, 5, n)

	buffered := pt.Attach()
	require.Equal(t, "hello", string(buffered))
}

func TestPseudoTerminalStartsIdle(t *testing.T) {
	pt := ConstructPseudoTerminal(PseudoTerminalOptions{})
	require.Equal(t, ptyline.StateIdle, pt.State())
}
