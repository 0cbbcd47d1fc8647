// Package ptyline implements a cooked-mode terminal with line editing,
// history, and signals, per spec.md §4.7.
package ptyline

// LineBuffer holds one in-progress input line and a cursor position, both
// measured in runes so multi-byte UTF-8 input edits correctly.
type LineBuffer struct {
	runes  []rune
	cursor int
}

// NewLineBuffer returns an empty line buffer.
func NewLineBuffer() *LineBuffer { return &LineBuffer{} }

// String returns the current line content.
func (b *LineBuffer) String() string { return string(b.runes) }

// Cursor returns the current cursor position, in runes from line start.
func (b *LineBuffer) Cursor() int { return b.cursor }

// Insert inserts rs at the cursor and advances the cursor past them.
func (b *LineBuffer) Insert(rs []rune) bool {
	if len(rs) == 0 {
		return false
	}
	b.runes = append(b.runes[:b.cursor], append(append([]rune{}, rs...), b.runes[b.cursor:]...)...)
	b.cursor += len(rs)
	return true
}

// DeleteForward removes the rune under the cursor, if any.
func (b *LineBuffer) DeleteForward() bool {
	if b.cursor >= len(b.runes) {
		return false
	}
	b.runes = append(b.runes[:b.cursor], b.runes[b.cursor+1:]...)
	return true
}

// Backspace removes the rune before the cursor, if any.
func (b *LineBuffer) Backspace() bool {
	if b.cursor == 0 {
		return false
	}
	b.runes = append(b.runes[:b.cursor-1], b.runes[b.cursor:]...)
	b.cursor--
	return true
}

// CursorLeft moves the cursor one rune left.
func (b *LineBuffer) CursorLeft() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	return true
}

// CursorRight moves the cursor one rune right.
func (b *LineBuffer) CursorRight() bool {
	if b.cursor >= len(b.runes) {
		return false
	}
	b.cursor++
	return true
}

// LineStart moves the cursor to column 0.
func (b *LineBuffer) LineStart() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor = 0
	return true
}

// LineEnd moves the cursor past the last rune.
func (b *LineBuffer) LineEnd() bool {
	if b.cursor == len(b.runes) {
		return false
	}
	b.cursor = len(b.runes)
	return true
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' }

// WordLeft skips spaces, then non-spaces, moving left (spec.md §4.7).
func (b *LineBuffer) WordLeft() bool {
	start := b.cursor
	i := b.cursor
	for i > 0 && isSpace(b.runes[i-1]) {
		i--
	}
	for i > 0 && !isSpace(b.runes[i-1]) {
		i--
	}
	b.cursor = i
	return b.cursor != start
}

// WordRight skips spaces, then non-spaces, moving right (spec.md §4.7).
func (b *LineBuffer) WordRight() bool {
	start := b.cursor
	i := b.cursor
	n := len(b.runes)
	for i < n && isSpace(b.runes[i]) {
		i++
	}
	for i < n && !isSpace(b.runes[i]) {
		i++
	}
	b.cursor = i
	return b.cursor != start
}

// Clear empties the line and resets the cursor.
func (b *LineBuffer) Clear() bool {
	if len(b.runes) == 0 {
		return false
	}
	b.runes = nil
	b.cursor = 0
	return true
}
