package serverline

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// LineState is a snapshot of the line being edited.
type LineState struct {
	Prompt string // Prompt shown in front of the line
	Line   string // Current buffer
	Cursor int    // Cursor position in runes
}

// Renderer draws a line source's state on the terminal.
//
// The session composes renderers as decorators: the terminal renderer does the
// actual drawing and wrappers such as the masking renderer alter what reaches it.
type Renderer interface {
	// Render redraws the prompt and the line, leaving the cursor in place.
	Render(st LineState) error
	// WriteRaw writes s verbatim, st being the state after the change s echoes.
	WriteRaw(st LineState, s string) error
	// Rows reports how many rows st occupies on screen and the row of the cursor.
	Rows(st LineState) (total, cursor int)
}

// termRenderer is the base renderer writing ANSI sequences to the output.
//
// It remembers on which row of the rendered block the cursor sits so the next
// redraw can climb back to the prompt's first row before clearing.
type termRenderer struct {
	output      io.Writer    // Target output writer
	colorScheme *ColorScheme // nil renders without colours
	columns     func() int   // Current terminal width
	terminal    bool         // False for pipes: no cursor control at all
	cursorRow   int          // Row of the cursor within the rendered block
}

func newTermRenderer(output io.Writer, colorScheme *ColorScheme, columns func() int, terminal bool) *termRenderer {
	return &termRenderer{
		output:      output,
		colorScheme: colorScheme,
		columns:     columns,
		terminal:    terminal,
	}
}

func (r *termRenderer) Render(st LineState) error {
	if !r.terminal {
		_, err := io.WriteString(r.output, st.Prompt)
		return err
	}

	cols := r.cols()
	promptWidth := displayWidth(st.Prompt)
	runes := []rune(st.Line)
	cursor := clampCursor(st.Cursor, len(runes))
	total, cursorRow := r.Rows(st)

	var b strings.Builder
	if r.cursorRow > 0 {
		fmt.Fprintf(&b, "\x1b[%dA", r.cursorRow)
	}
	b.WriteString("\r\x1b[0J")
	r.writePrompt(&b, st.Prompt)
	r.writeInput(&b, st.Line)

	if r.atWrapPoint(LineState{Prompt: st.Prompt, Line: st.Line, Cursor: len(runes)}) {
		// Leave the pending-wrap state so the cursor really is on the next row.
		b.WriteString("\n\r")
	}
	if cursor < len(runes) {
		if up := total - 1 - cursorRow; up > 0 {
			fmt.Fprintf(&b, "\x1b[%dA", up)
		}
		b.WriteString("\r")
		if col := (promptWidth + runewidth.StringWidth(string(runes[:cursor]))) % cols; col > 0 {
			fmt.Fprintf(&b, "\x1b[%dC", col)
		}
	}

	if _, err := io.WriteString(r.output, b.String()); err != nil {
		return err
	}
	r.cursorRow = cursorRow
	return nil
}

func (r *termRenderer) WriteRaw(st LineState, s string) error {
	if s == "" {
		return nil
	}
	if r.terminal && !strings.HasSuffix(s, "\n") && r.atWrapPoint(st) {
		s += "\n\r"
	}
	if _, err := io.WriteString(r.output, s); err != nil {
		return err
	}
	if r.terminal {
		_, r.cursorRow = r.Rows(st)
	}
	return nil
}

func (r *termRenderer) Rows(st LineState) (total, cursor int) {
	cols := r.cols()
	promptWidth := displayWidth(st.Prompt)
	runes := []rune(st.Line)
	pos := clampCursor(st.Cursor, len(runes))
	total = (promptWidth+runewidth.StringWidth(st.Line))/cols + 1
	cursor = (promptWidth + runewidth.StringWidth(string(runes[:pos]))) / cols
	return total, cursor
}

// atWrapPoint reports whether the cursor of st sits at the end of the line
// and the line exactly fills its last row.
func (r *termRenderer) atWrapPoint(st LineState) bool {
	runes := []rune(st.Line)
	if clampCursor(st.Cursor, len(runes)) != len(runes) {
		return false
	}
	end := displayWidth(st.Prompt) + runewidth.StringWidth(st.Line)
	return end > 0 && end%r.cols() == 0
}

func (r *termRenderer) cols() int {
	if r.columns == nil {
		return defaultColumns
	}
	if c := r.columns(); c > 0 {
		return c
	}
	return defaultColumns
}

func (r *termRenderer) writePrompt(b *strings.Builder, prompt string) {
	if r.colorScheme == nil {
		b.WriteString(prompt)
		return
	}
	b.WriteString(r.colorScheme.Prompt.ToANSI())
	b.WriteString(prompt)
	b.WriteString(Reset())
}

func (r *termRenderer) writeInput(b *strings.Builder, input string) {
	if r.colorScheme == nil || input == "" {
		b.WriteString(input)
		return
	}
	b.WriteString(r.colorScheme.Input.ToANSI())
	b.WriteString(input)
	b.WriteString(Reset())
}

// displayWidth is the number of terminal cells s occupies once escape
// sequences are stripped.
func displayWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

func clampCursor(cursor, length int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > length {
		return length
	}
	return cursor
}
