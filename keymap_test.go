package serverline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultKeyMap(t *testing.T) {
	t.Parallel()

	km := NewDefaultKeyMap()

	keys := []struct {
		name string
		key  rune
		want KeyAction
	}{
		{name: "enter", key: '\r', want: ActionSubmit},
		{name: "line feed", key: '\n', want: ActionSubmit},
		{name: "ctrl+c", key: '\x03', want: ActionInterrupt},
		{name: "ctrl+d", key: '\x04', want: ActionEOF},
		{name: "ctrl+a", key: '\x01', want: ActionMoveHome},
		{name: "ctrl+e", key: '\x05', want: ActionMoveEnd},
		{name: "ctrl+k", key: '\x0B', want: ActionDeleteToEnd},
		{name: "ctrl+u", key: '\x15', want: ActionDeleteLine},
		{name: "ctrl+w", key: '\x17', want: ActionDeleteWordBack},
		{name: "tab", key: '\t', want: ActionComplete},
		{name: "backspace", key: '\x7f', want: ActionDeleteBackward},
		{name: "printable", key: 'a', want: ActionNone},
	}
	for _, tt := range keys {
		tt := tt
		assert.Equal(t, tt.want, km.GetAction(tt.key), tt.name)
	}

	sequences := []struct {
		seq  string
		want KeyAction
	}{
		{seq: "[A", want: ActionHistoryPrev},
		{seq: "[B", want: ActionHistoryNext},
		{seq: "[C", want: ActionMoveRight},
		{seq: "[D", want: ActionMoveLeft},
		{seq: "OH", want: ActionMoveHome},
		{seq: "[4~", want: ActionMoveEnd},
		{seq: "[1;5C", want: ActionMoveWordRight},
		{seq: "[3~", want: ActionDeleteForward},
		{seq: "[Z", want: ActionNone},
	}
	for _, tt := range sequences {
		tt := tt
		assert.Equal(t, tt.want, km.GetSequenceAction(tt.seq), tt.seq)
	}
}

func TestKeyMapBind(t *testing.T) {
	t.Parallel()

	km := NewDefaultKeyMap()
	km.Bind('\x0C', ActionDeleteLine)
	km.Bind('\t', ActionNone)
	km.BindSequence("[Z", ActionComplete)

	assert.Equal(t, ActionDeleteLine, km.GetAction('\x0C'))
	assert.Equal(t, ActionNone, km.GetAction('\t'), "a binding can be switched off")
	assert.Equal(t, ActionComplete, km.GetSequenceAction("[Z"))
}

func TestKeyMapNil(t *testing.T) {
	t.Parallel()

	var km *KeyMap
	assert.Equal(t, ActionNone, km.GetAction('\r'))
	assert.Equal(t, ActionNone, km.GetSequenceAction("[A"))
	assert.Equal(t, ActionNone, (&KeyMap{}).GetAction('\r'))
}

func TestSessionCustomKeyMap(t *testing.T) {
	t.Parallel()

	km := NewDefaultKeyMap()
	km.Bind('\x0C', ActionDeleteLine) // Ctrl+L
	s, _ := newTestSession(t, "> ", WithKeyMap(km))

	typeKeys(t, s, "hello\x0C")
	line, cursor := currentLine(s)
	assert.Empty(t, line)
	assert.Zero(t, cursor)
}
