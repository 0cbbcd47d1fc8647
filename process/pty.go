package process

import (
	"time"

	"github.com/tetratelabs/wasi-editor-runtime/internal/chardev"
	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/ptyline"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// PseudoTerminalOptions mirrors construct-pseudoterminal's options bag.
type PseudoTerminalOptions struct {
	// History seeds the terminal's line history, oldest first.
	History []string
}

// PseudoTerminal adapts an internal/ptyline.Terminal to the two device.File
// endpoints a process needs for its stdin/stdout: guest fd_read resolves
// against Terminal.ReadLine, guest fd_write feeds Terminal.Write. The
// host-facing passthroughs (Attach, Feed, History, SetState) are exposed
// directly on the embedded Terminal for UI code to drive.
type PseudoTerminal struct {
	*ptyline.Terminal

	stdin  *chardev.Console
	stdout *chardev.Console
}

// ConstructPseudoTerminal builds a cooked-mode terminal ready to be passed
// as a process's Stdin/Stdout in Options.
func ConstructPseudoTerminal(options PseudoTerminalOptions) *PseudoTerminal {
	term := ptyline.NewTerminal(nil, nil)
	term.SeedHistory(options.History)
	term.SetState(ptyline.StateIdle)

	pt := &PseudoTerminal{Terminal: term}

	reader := newLineReader(term)
	pt.stdin = chardev.NewConsole(nextStdioIno(), reader.Read, nil, reader.poll)
	pt.stdout = chardev.NewConsole(nextStdioIno(), nil, func(p []byte) (int, wasiabi.Errno) {
		term.Write(p)
		return len(p), wasiabi.ErrnoSuccess
	}, nil)

	return pt
}

// Stdin and Stdout give the process constructor the device.File endpoints
// this terminal backs.
func (pt *PseudoTerminal) Stdin() device.File  { return pt.stdin }
func (pt *PseudoTerminal) Stdout() device.File { return pt.stdout }

// lineReader turns Terminal.ReadLine's one-line-at-a-time contract into
// fd_read's "fill as much of buf as is available" contract, holding back
// whatever of the last committed line didn't fit.
type lineReader struct {
	term     *ptyline.Terminal
	leftover []byte
}

func newLineReader(term *ptyline.Terminal) *lineReader {
	return &lineReader{term: term}
}

func (r *lineReader) Read(buf []byte) (int, wasiabi.Errno) {
	if len(r.leftover) == 0 {
		r.leftover = []byte(r.term.ReadLine())
	}
	n := copy(buf, r.leftover)
	r.leftover = r.leftover[n:]
	return n, wasiabi.ErrnoSuccess
}

// poll reports readiness only while part of an already-read line is held
// back in leftover; a committed line still waiting inside the Terminal is
// not reported as ready. It never blocks itself, since ReadLine's blocking
// wait is what fd_read relies on and poll_oneoff must be able to return
// promptly with "not yet".
func (r *lineReader) poll(timeout *time.Duration) (bool, wasiabi.Errno) {
	return len(r.leftover) > 0, wasiabi.ErrnoSuccess
}
