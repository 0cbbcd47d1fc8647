package ptyline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAdvancesCursor(t *testing.T) {
	b := NewLineBuffer()
	require.True(t, b.Insert([]rune("ab")))
	require.Equal(t, "ab", b.String())
	require.Equal(t, 2, b.Cursor())
}

func TestInsertAtCursorMidLine(t *testing.T) {
	b := NewLineBuffer()
	b.Insert([]rune("ac"))
	b.CursorLeft()
	b.Insert([]rune("b"))
	require.Equal(t, "abc", b.String())
}

func TestBackspaceAtStartIsNoop(t *testing.T) {
	b := NewLineBuffer()
	require.False(t, b.Backspace())
}

func TestDeleteForwardAtEndIsNoop(t *testing.T) {
	b := NewLineBuffer()
	b.Insert([]rune("a"))
	require.False(t, b.DeleteForward())
}

func TestWordLeftSkipsSpacesThenWord(t *testing.T) {
	b := NewLineBuffer()
	b.Insert([]rune("foo bar"))
	require.True(t, b.WordLeft())
	require.Equal(t, 4, b.Cursor())
	require.True(t, b.WordLeft())
	require.Equal(t, 0, b.Cursor())
}

func TestWordRightSkipsSpacesThenWord(t *testing.T) {
	b := NewLineBuffer()
	b.Insert([]rune("foo bar"))
	b.LineStart()
	require.True(t, b.WordRight())
	require.Equal(t, 3, b.Cursor())
	require.True(t, b.WordRight())
	require.Equal(t, 7, b.Cursor())
}

func TestClearEmptiesLine(t *testing.T) {
	b := NewLineBuffer()
	b.Insert([]rune("abc"))
	require.True(t, b.Clear())
	require.Equal(t, "", b.String())
	require.Equal(t, 0, b.Cursor())
}

func TestLineStartAndEndAreNoopsAtBoundary(t *testing.T) {
	b := NewLineBuffer()
	require.False(t, b.LineStart())
	require.False(t, b.LineEnd())
}
