package serverline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRenderer remembers what the line source asked to draw.
type recordingRenderer struct {
	renders []LineState
	raw     []string
}

func (r *recordingRenderer) Render(st LineState) error {
	r.renders = append(r.renders, st)
	return nil
}

func (r *recordingRenderer) WriteRaw(_ LineState, s string) error {
	r.raw = append(r.raw, s)
	return nil
}

func (r *recordingRenderer) Rows(_ LineState) (int, int) {
	return 1, 0
}

func feedAll(t *testing.T, lr *lineReader, keys string) []event {
	t.Helper()
	var events []event
	for _, r := range keys {
		ev, err := lr.feed(r)
		require.NoError(t, err)
		if ev.kind != eventNone {
			events = append(events, ev)
		}
	}
	return events
}

func TestLineReaderEditing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		keys       string
		wantLine   string
		wantCursor int
	}{
		{name: "typing", keys: "hello", wantLine: "hello", wantCursor: 5},
		{name: "backspace", keys: "hello\x7f\x7fo", wantLine: "helo", wantCursor: 4},
		{name: "backspace at start", keys: "\x7fab", wantLine: "ab", wantCursor: 2},
		{name: "insert in the middle", keys: "hllo\x1b[D\x1b[D\x1b[De", wantLine: "hello", wantCursor: 2},
		{name: "home and end", keys: "bc\x01a\x05d", wantLine: "abcd", wantCursor: 4},
		{name: "ss3 home", keys: "bc\x1bOHa", wantLine: "abc", wantCursor: 1},
		{name: "delete forward", keys: "abc\x01\x1b[3~", wantLine: "bc", wantCursor: 0},
		{name: "ctrl+d deletes forward on a non-empty line", keys: "abc\x01\x04", wantLine: "bc", wantCursor: 0},
		{name: "delete to end", keys: "hello world\x1b[1;5D\x0b", wantLine: "hello ", wantCursor: 6},
		{name: "delete line", keys: "hello\x15", wantLine: "", wantCursor: 0},
		{name: "delete word back", keys: "hello big world\x17", wantLine: "hello big ", wantCursor: 10},
		{name: "word right", keys: "one two\x01\x1b[1;5C", wantLine: "one two", wantCursor: 3},
		{name: "key after a lone esc is kept", keys: "a\x1bxb", wantLine: "axb", wantCursor: 3},
		{name: "esc before a sequence", keys: "ab\x1b\x1b[Dx", wantLine: "axb", wantCursor: 2},
		{name: "control characters are ignored", keys: "a\x07b", wantLine: "ab", wantCursor: 2},
		{name: "wide runes", keys: "日本", wantLine: "日本", wantCursor: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lr := newLineReader(true, "> ", nil, &recordingRenderer{}, nil)
			events := feedAll(t, lr, tt.keys)

			assert.Empty(t, events)
			assert.Equal(t, tt.wantLine, lr.state().Line)
			assert.Equal(t, tt.wantCursor, lr.state().Cursor)
		})
	}
}

func TestLineReaderEcho(t *testing.T) {
	t.Parallel()

	rec := &recordingRenderer{}
	lr := newLineReader(true, "> ", nil, rec, nil)

	feedAll(t, lr, "ab")
	assert.Equal(t, []string{"a", "b"}, rec.raw, "characters at the end are echoed")
	assert.Empty(t, rec.renders)

	feedAll(t, lr, "\x1b[Dx")
	assert.Len(t, rec.renders, 2, "moving and inserting in the middle redraw")
	assert.Equal(t, LineState{Prompt: "> ", Line: "axb", Cursor: 2}, rec.renders[1])
}

func TestLineReaderEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		keys string
		want []event
	}{
		{
			name: "submit",
			keys: "ls\r",
			want: []event{{kind: eventSubmit, line: "ls"}},
		},
		{
			name: "crlf submits once",
			keys: "a\r\nb\n",
			want: []event{
				{kind: eventSubmit, line: "a"},
				{kind: eventSubmit, line: "b"},
			},
		},
		{
			name: "blank line",
			keys: "  \r",
			want: []event{{kind: eventSubmit, line: "  "}},
		},
		{
			name: "interrupt",
			keys: "ab\x03",
			want: []event{{kind: eventInterrupt}},
		},
		{
			name: "completion sees the text before the cursor",
			keys: "help me\x1b[D\x1b[D\x1b[D\t",
			want: []event{{kind: eventComplete, line: "help"}},
		},
		{
			name: "ctrl+d on an empty line",
			keys: "\x04",
			want: []event{{kind: eventEOF}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lr := newLineReader(true, "> ", nil, &recordingRenderer{}, NewHistoryManager(nil))
			assert.Equal(t, tt.want, feedAll(t, lr, tt.keys))
		})
	}
}

func TestLineReaderSubmit(t *testing.T) {
	t.Parallel()

	rec := &recordingRenderer{}
	lr := newLineReader(true, "> ", nil, rec, nil)
	feedAll(t, lr, "abc\x1b[D\r")

	assert.Equal(t, LineState{Prompt: "> ", Line: "abc", Cursor: 3}, rec.renders[len(rec.renders)-1],
		"the cursor moves past the line before the new row")
	assert.Equal(t, "\r\n", rec.raw[len(rec.raw)-1])
	assert.Equal(t, LineState{Prompt: "> "}, lr.state())
}

func TestLineReaderHistoryNavigation(t *testing.T) {
	t.Parallel()

	history := NewHistoryManager(nil)
	lr := newLineReader(true, "> ", nil, &recordingRenderer{}, history)
	feedAll(t, lr, "first\rsecond\rdraft")

	steps := []struct {
		keys string
		want string
	}{
		{keys: "\x1b[A", want: "second"},
		{keys: "\x1b[A", want: "first"},
		{keys: "\x1b[A", want: "first"},
		{keys: "\x1b[B", want: "second"},
		{keys: "\x1b[B", want: "draft"},
		{keys: "\x1b[B", want: "draft"},
		{keys: "\x10", want: "second"},
		{keys: "\x0e", want: "draft"},
	}
	for _, step := range steps {
		feedAll(t, lr, step.keys)
		assert.Equal(t, step.want, lr.state().Line)
		assert.Equal(t, len([]rune(step.want)), lr.state().Cursor)
	}
}

func TestLineReaderStream(t *testing.T) {
	t.Parallel()

	rec := &recordingRenderer{}
	lr := newLineReader(false, "> ", nil, rec, nil)
	events := feedAll(t, lr, "one\rtwo\r\nthree\n\n\t\x03x")

	assert.Equal(t, []event{
		{kind: eventSubmit, line: "one"},
		{kind: eventSubmit, line: "two"},
		{kind: eventSubmit, line: "three"},
		{kind: eventSubmit, line: ""},
	}, events)
	assert.Equal(t, "\t\x03x", lr.state().Line, "no key is interpreted in stream mode")
	assert.Empty(t, rec.raw, "nothing is echoed")
	assert.Empty(t, rec.renders)
}

func TestLineReaderReplaceBeforeCursor(t *testing.T) {
	t.Parallel()

	rec := &recordingRenderer{}
	lr := newLineReader(true, "> ", nil, rec, nil)
	feedAll(t, lr, "gi st\x1b[D\x1b[D\x1b[D")

	require.NoError(t, lr.replaceBeforeCursor("git"))
	assert.Equal(t, LineState{Prompt: "> ", Line: "git st", Cursor: 3}, lr.state())
	assert.Equal(t, lr.state(), rec.renders[len(rec.renders)-1])
}

func TestIsWordChar(t *testing.T) {
	t.Parallel()

	for _, r := range "aZ9_é" {
		assert.True(t, isWordChar(r), string(r))
	}
	for _, r := range " -./" {
		assert.False(t, isWordChar(r), string(r))
	}
}

func TestEscapeComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seq  string
		want bool
	}{
		{seq: "[", want: false},
		{seq: "[A", want: true},
		{seq: "[1", want: false},
		{seq: "[1;", want: false},
		{seq: "[1;5", want: false},
		{seq: "[1;5C", want: true},
		{seq: "[3~", want: true},
		{seq: "OH", want: true},
	}
	for _, tt := range tests {
		tt := tt
		assert.Equal(t, tt.want, escapeComplete([]rune(tt.seq)), tt.seq)
	}
}

func TestLineReaderMaskedLinesSkipHistory(t *testing.T) {
	t.Parallel()

	masked := false
	history := NewHistoryManager(&HistoryConfig{Enabled: true, MaxEntries: 1})
	lr := newLineReader(true, "> ", nil, &recordingRenderer{}, history)
	lr.masked = func() bool { return masked }

	feedAll(t, lr, "kept\r")
	masked = true
	events := feedAll(t, lr, "secret\r")

	assert.Equal(t, []event{{kind: eventSubmit, line: "secret"}}, events)
	assert.Equal(t, []string{"kept"}, history.GetHistory())
}
