package serverline

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockTerminal implements terminalInterface for tests.
//
// It hands out a pre-loaded rune sequence, reports a fixed size and records
// the raw mode state so tests can verify pause, resume and close.
type mockTerminal struct {
	input        []rune // Pre-configured input sequence
	inputPos     int    // Current position in the input sequence
	rawMode      bool   // Raw mode state for verification
	closed       bool   // Close was called
	terminalSize [2]int // Fixed terminal dimensions [width, height]
}

func newMockTerminal(input string) *mockTerminal {
	return &mockTerminal{
		input:        []rune(input),
		terminalSize: [2]int{80, 24},
	}
}

func (m *mockTerminal) SetRaw() error {
	m.rawMode = true
	return nil
}

func (m *mockTerminal) Restore() error {
	m.rawMode = false
	return nil
}

func (m *mockTerminal) Size() (width, height int, err error) {
	return m.terminalSize[0], m.terminalSize[1], nil
}

func (m *mockTerminal) ReadRune() (rune, int, error) {
	if m.inputPos >= len(m.input) {
		return 0, 0, io.EOF
	}
	r := m.input[m.inputPos]
	m.inputPos++
	return r, 1, nil
}

func (m *mockTerminal) Close() error {
	m.closed = true
	return nil
}

// lockedBuffer is a bytes.Buffer that can be written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write(_ []byte) (int, error) {
	return 0, errors.New("write failed")
}

// newTestSession returns a started terminal session drawing on an 80 column
// mock terminal. Keystrokes are fed with typeKeys, without an input goroutine.
func newTestSession(t *testing.T, prompt string, opts ...Option) (*Session, *lockedBuffer) {
	t.Helper()

	out := &lockedBuffer{}
	base := []Option{
		WithInput(strings.NewReader("")),
		WithOutput(out),
		WithErrorOutput(out),
		WithForceTerminal(true),
		WithExitFunc(func(code int) { t.Errorf("unexpected exit(%d)", code) }),
	}
	s, err := New(prompt, append(base, opts...)...)
	require.NoError(t, err)
	s.term = newMockTerminal("")
	require.NoError(t, s.begin())
	t.Cleanup(func() { s.Close() })
	return s, out
}

// typeKeys feeds every rune of keys to the session.
func typeKeys(t *testing.T, s *Session, keys string) {
	t.Helper()
	for _, r := range keys {
		require.NoError(t, s.handleRune(r))
	}
}

// currentLine returns the line being edited and the cursor.
func currentLine(s *Session) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.reader.state()
	return st.Line, st.Cursor
}

// screenLines replays output on a terminal of the given width and returns
// the visible rows, trailing blanks trimmed. It understands the cursor
// movement and erase sequences the session emits, wraps like xterm (the
// cursor waits on the last column until the next printable rune) and treats
// "\n" as a bare line feed, as in raw mode.
func screenLines(cols int, output string) []string {
	var (
		rows     [][]rune
		row, col int
		pending  bool
	)
	ensure := func() {
		for len(rows) <= row {
			rows = append(rows, []rune(strings.Repeat(" ", cols)))
		}
	}
	blank := func(r int, from int) {
		for i := from; i < cols; i++ {
			rows[r][i] = ' '
		}
	}

	in := []rune(output)
	for i := 0; i < len(in); i++ {
		ensure()
		switch r := in[i]; {
		case r == '\x1b' && i+1 < len(in) && in[i+1] == '[':
			j := i + 2
			for j < len(in) && (in[j] >= '0' && in[j] <= '9' || in[j] == ';') {
				j++
			}
			if j >= len(in) {
				i = j
				continue
			}
			param := string(in[i+2 : j])
			n := 1
			if p, err := strconv.Atoi(param); err == nil {
				n = p
			}
			switch in[j] {
			case 'A':
				row = max(0, row-n)
			case 'B':
				row += n
			case 'C':
				col = min(cols-1, col+n)
			case 'D':
				col = max(0, col-n)
			case 'J':
				blank(row, col)
				rows = rows[:row+1]
			case 'K':
				if param == "2" {
					blank(row, 0)
				} else {
					blank(row, col)
				}
			}
			pending = false
			i = j
		case r == '\r':
			col, pending = 0, false
		case r == '\n':
			row++
			pending = false
		case r < ' ':
		default:
			if pending {
				row, col, pending = row+1, 0, false
				ensure()
			}
			rows[row][col] = r
			if col == cols-1 {
				pending = true
			} else {
				col++
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, strings.TrimRight(string(r), " "))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// setColumns changes the width of the mock terminal behind s.
func setColumns(s *Session, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.(*mockTerminal).terminalSize[0] = cols
}
