package serverline

import "unicode/utf8"

// DefaultMaskMessage is the prompt shown while input is muted.
const DefaultMaskMessage = "> [hidden]"

// maskRenderer hides what is typed while the session is muted.
//
// Redraws show the prompt over an empty line, and character echoes are
// replaced by a bracketed two-glyph indicator that flips with the parity of the
// line length, which tells the user that keystrokes are being received. The
// indicator is a typing cue only. The buffer itself is never touched.
type maskRenderer struct {
	next     Renderer
	muted    func() bool
	terminal bool
}

func newMaskRenderer(next Renderer, muted func() bool, terminal bool) *maskRenderer {
	return &maskRenderer{next: next, muted: muted, terminal: terminal}
}

func (m *maskRenderer) Render(st LineState) error {
	if m.muted() && st.Line != "" {
		return m.next.Render(LineState{Prompt: st.Prompt})
	}
	return m.next.Render(st)
}

func (m *maskRenderer) WriteRaw(st LineState, s string) error {
	if !m.muted() {
		return m.next.WriteRaw(st, s)
	}
	if !m.terminal {
		return nil
	}
	visible := maskIndicator(st.Line)
	return m.next.WriteRaw(
		LineState{Prompt: st.Prompt, Line: visible, Cursor: utf8.RuneCountInString(visible)},
		"\x1b[2K\x1b[200D"+st.Prompt+visible,
	)
}

func (m *maskRenderer) Rows(st LineState) (total, cursor int) {
	if !m.muted() {
		return m.next.Rows(st)
	}
	if st.Line == "" {
		return m.next.Rows(LineState{Prompt: st.Prompt})
	}
	visible := maskIndicator(st.Line)
	return m.next.Rows(LineState{Prompt: st.Prompt, Line: visible, Cursor: utf8.RuneCountInString(visible)})
}

// maskIndicator returns the glyph pair shown for a masked line.
func maskIndicator(line string) string {
	if utf8.RuneCountInString(line)%2 == 1 {
		return "[=-]"
	}
	return "[-=]"
}
