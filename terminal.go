package serverline

import (
	"bufio"
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-tty"
	"golang.org/x/term"
)

// Fallback dimensions used whenever the real size cannot be determined.
const (
	defaultColumns = 80
	defaultRows    = 24
)

// terminalInterface abstracts the input side of the terminal.
//
// The session only needs to switch raw mode on and off, know the width for its
// row arithmetic and pull runes one at a time:
//   - realTerminal: go-tty backed, used when stdin is an interactive terminal
//   - streamTerminal: any io.Reader, used for pipes and forced terminal context
//   - mockTerminal (tests): pre-loaded runes and a fixed size
type terminalInterface interface {
	SetRaw() error                        // Enter raw mode for immediate key processing
	Restore() error                       // Restore original terminal settings
	Size() (width, height int, err error) // Terminal dimensions with safe fallbacks
	ReadRune() (rune, int, error)         // Read a single Unicode character from input
	Close() error                         // Release the underlying handle
}

// realTerminal implements terminalInterface on top of go-tty and golang.org/x/term.
//
// Raw mode is managed through x/term on the stdin descriptor so the original
// state can always be restored, even after an interrupt. Close is guarded
// against double calls, which panic on Windows.
type realTerminal struct {
	tty           *tty.TTY    // TTY handle from go-tty for cross-platform terminal operations
	closed        bool        // Track if terminal is already closed to prevent double-close panic on Windows
	stdinFd       int         // File descriptor for stdin for raw mode management
	originalState *term.State // Original terminal state to restore on exit
}

func newRealTerminal() (*realTerminal, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	return &realTerminal{
		tty:     t,
		stdinFd: int(os.Stdin.Fd()),
	}, nil
}

func (t *realTerminal) SetRaw() error {
	// Capture the state every time so repeated pause/resume cycles restore correctly.
	if !term.IsTerminal(t.stdinFd) {
		return nil
	}
	state, err := term.GetState(t.stdinFd)
	if err != nil {
		return err
	}
	t.originalState = state
	_, err = term.MakeRaw(t.stdinFd)
	return err
}

func (t *realTerminal) Restore() error {
	if t.originalState == nil || !term.IsTerminal(t.stdinFd) {
		return nil
	}
	err := term.Restore(t.stdinFd, t.originalState)
	t.originalState = nil
	return err
}

func (t *realTerminal) Size() (width, height int, err error) {
	w, h, err := t.tty.Size()
	if err != nil || w <= 0 || h <= 0 {
		// Never hand out a zero width: it ends up as a divisor.
		return defaultColumns, defaultRows, err
	}
	return w, h, nil
}

func (t *realTerminal) ReadRune() (rune, int, error) {
	r, err := t.tty.ReadRune()
	if err != nil {
		return 0, 0, err
	}
	return r, 1, nil
}

func (t *realTerminal) Close() error {
	if t.closed || t.tty == nil {
		return nil
	}
	t.closed = true
	return t.tty.Close()
}

// streamTerminal reads keystrokes from an arbitrary reader.
//
// It is what the session uses when stdin is redirected, when the caller injects
// its own input, and when terminal behaviour is forced on a non-terminal.
// The width comes from the output descriptor when that is a terminal.
type streamTerminal struct {
	reader *bufio.Reader
	closer io.Closer
	output io.Writer
}

func newStreamTerminal(input io.Reader, output io.Writer) *streamTerminal {
	st := &streamTerminal{
		reader: bufio.NewReader(input),
		output: output,
	}
	if c, ok := input.(io.Closer); ok && input != os.Stdin {
		st.closer = c
	}
	return st
}

func (t *streamTerminal) SetRaw() error  { return nil }
func (t *streamTerminal) Restore() error { return nil }

func (t *streamTerminal) Size() (width, height int, err error) {
	if fd, ok := fileDescriptor(t.output); ok && term.IsTerminal(int(fd)) {
		w, h, err := term.GetSize(int(fd))
		if err == nil && w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return defaultColumns, defaultRows, nil
}

func (t *streamTerminal) ReadRune() (rune, int, error) {
	return t.reader.ReadRune()
}

func (t *streamTerminal) Close() error {
	if t.closer == nil {
		return nil
	}
	c := t.closer
	t.closer = nil
	return c.Close()
}

// fileDescriptor returns the descriptor behind w when w is backed by a file.
func fileDescriptor(v any) (uintptr, bool) {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}
	return f.Fd(), true
}

// isTerminal reports whether v (a reader or writer) is an interactive terminal.
func isTerminal(v any) bool {
	fd, ok := fileDescriptor(v)
	if !ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stdoutWriter returns the process stdout, wrapped for ANSI support on Windows.
func stdoutWriter() io.Writer {
	if runtime.GOOS == "windows" {
		return colorable.NewColorableStdout()
	}
	return os.Stdout
}

// stderrWriter is the stderr counterpart of stdoutWriter.
func stderrWriter() io.Writer {
	if runtime.GOOS == "windows" {
		return colorable.NewColorableStderr()
	}
	return os.Stderr
}
