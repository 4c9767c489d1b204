package serverline

// KeyAction is what the line source does in response to a key.
type KeyAction int

// Key actions understood by the line source.
const (
	ActionNone KeyAction = iota
	ActionSubmit
	ActionInterrupt
	ActionEOF
	ActionMoveLeft
	ActionMoveRight
	ActionMoveHome
	ActionMoveEnd
	ActionMoveWordLeft
	ActionMoveWordRight
	ActionDeleteBackward
	ActionDeleteForward
	ActionDeleteLine
	ActionDeleteToEnd
	ActionDeleteWordBack
	ActionComplete
	ActionHistoryPrev
	ActionHistoryNext
)

// keyInterrupt is the raw rune delivered for Ctrl+C in raw mode.
const keyInterrupt = '\x03'

// KeyMap holds the key binding configuration.
type KeyMap struct {
	bindings  map[rune]KeyAction
	sequences map[string]KeyAction
}

// NewDefaultKeyMap creates the default emacs-style bindings.
//
// Default key bindings:
//   - Enter: submit the line
//   - Ctrl+C: interrupt
//   - Ctrl+D: end of input on an empty line, delete forward otherwise
//   - Ctrl+A / Home, Ctrl+E / End: line start / end
//   - Ctrl+B / Left, Ctrl+F / Right: move by character
//   - Ctrl+Left / Ctrl+Right: move by word
//   - Ctrl+K: delete to end of line, Ctrl+U: delete line, Ctrl+W: delete word
//   - Ctrl+P / Up, Ctrl+N / Down: history
//   - Tab: completion
//
// Bindings can be changed with Bind and BindSequence:
//
//	keyMap := serverline.NewDefaultKeyMap()
//	keyMap.Bind('\x0C', serverline.ActionDeleteLine) // Ctrl+L
//	s, err := serverline.New("> ", serverline.WithKeyMap(keyMap))
func NewDefaultKeyMap() *KeyMap {
	km := &KeyMap{
		bindings:  make(map[rune]KeyAction),
		sequences: make(map[string]KeyAction),
	}

	km.bindings['\r'] = ActionSubmit
	km.bindings['\n'] = ActionSubmit
	km.bindings[keyInterrupt] = ActionInterrupt
	km.bindings['\x04'] = ActionEOF            // Ctrl+D
	km.bindings['\x01'] = ActionMoveHome       // Ctrl+A
	km.bindings['\x05'] = ActionMoveEnd        // Ctrl+E
	km.bindings['\x02'] = ActionMoveLeft       // Ctrl+B
	km.bindings['\x06'] = ActionMoveRight      // Ctrl+F
	km.bindings['\x0B'] = ActionDeleteToEnd    // Ctrl+K
	km.bindings['\x15'] = ActionDeleteLine     // Ctrl+U
	km.bindings['\x17'] = ActionDeleteWordBack // Ctrl+W
	km.bindings['\x10'] = ActionHistoryPrev    // Ctrl+P
	km.bindings['\x0E'] = ActionHistoryNext    // Ctrl+N
	km.bindings['\t'] = ActionComplete
	km.bindings['\x7f'] = ActionDeleteBackward
	km.bindings['\b'] = ActionDeleteBackward

	km.sequences["[A"] = ActionHistoryPrev
	km.sequences["[B"] = ActionHistoryNext
	km.sequences["[C"] = ActionMoveRight
	km.sequences["[D"] = ActionMoveLeft
	km.sequences["[H"] = ActionMoveHome
	km.sequences["[F"] = ActionMoveEnd
	km.sequences["OH"] = ActionMoveHome
	km.sequences["OF"] = ActionMoveEnd
	km.sequences["[1~"] = ActionMoveHome
	km.sequences["[4~"] = ActionMoveEnd
	km.sequences["[1;5C"] = ActionMoveWordRight
	km.sequences["[1;5D"] = ActionMoveWordLeft
	km.sequences["[3~"] = ActionDeleteForward

	return km
}

// Bind adds or updates a single-rune binding.
func (km *KeyMap) Bind(key rune, action KeyAction) {
	km.bindings[key] = action
}

// BindSequence adds or updates an escape sequence binding.
// The sequence must not include the leading ESC.
func (km *KeyMap) BindSequence(seq string, action KeyAction) {
	km.sequences[seq] = action
}

// GetAction returns the action for a key, or ActionNone if not bound.
func (km *KeyMap) GetAction(key rune) KeyAction {
	if km == nil || km.bindings == nil {
		return ActionNone
	}
	return km.bindings[key]
}

// GetSequenceAction returns the action for an escape sequence, or ActionNone if not bound.
func (km *KeyMap) GetSequenceAction(seq string) KeyAction {
	if km == nil || km.sequences == nil {
		return ActionNone
	}
	return km.sequences[seq]
}
