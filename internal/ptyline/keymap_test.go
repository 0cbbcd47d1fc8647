package ptyline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePlainByteIsInsert(t *testing.T) {
	action, n, text := Decode([]byte("a"))
	require.Equal(t, ActionInsert, action)
	require.Equal(t, 1, n)
	require.Equal(t, []rune("a"), text)
}

func TestDecodeControlBytes(t *testing.T) {
	cases := []struct {
		in     byte
		action Action
	}{
		{0x03, ActionInterrupt},
		{0x06, ActionCursorRight},
		{0x02, ActionCursorLeft},
		{0x01, ActionLineStart},
		{0x05, ActionLineEnd},
		{0x08, ActionBackspace},
		{0x7f, ActionBackspace},
		{'\r', ActionCommit},
	}
	for _, c := range cases {
		action, n, _ := Decode([]byte{c.in})
		require.Equal(t, c.action, action)
		require.Equal(t, 1, n)
	}
}

func TestDecodeCSISequences(t *testing.T) {
	cases := []struct {
		in     string
		action Action
	}{
		{"\x1b[C", ActionCursorRight},
		{"\x1b[D", ActionCursorLeft},
		{"\x1b[H", ActionLineStart},
		{"\x1b[F", ActionLineEnd},
		{"\x1b[A", ActionHistoryPrev},
		{"\x1b[B", ActionHistoryNext},
		{"\x1b[3~", ActionDeleteForward},
		{"\x1b[1;5C", ActionWordRight},
		{"\x1b[1;5D", ActionWordLeft},
		{"\x1bf", ActionWordRight},
		{"\x1bb", ActionWordLeft},
	}
	for _, c := range cases {
		action, n, _ := Decode([]byte(c.in))
		require.Equal(t, c.action, action, c.in)
		require.Equal(t, len(c.in), n, c.in)
	}
}

func TestDecodePrefersLongerSequenceOverShorterPrefix(t *testing.T) {
	action, n, _ := Decode([]byte("\x1b[1;5C"))
	require.Equal(t, ActionWordRight, action)
	require.Equal(t, 6, n)

	action, n, _ = Decode([]byte("\x1b[3~"))
	require.Equal(t, ActionDeleteForward, action)
	require.Equal(t, 4, n)
}

func TestDecodeMultibyteRune(t *testing.T) {
	action, n, text := Decode([]byte("é"))
	require.Equal(t, ActionInsert, action)
	require.Equal(t, 2, n)
	require.Equal(t, []rune("é"), text)
}
