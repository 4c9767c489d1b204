package serverline

import (
	"strings"
	"unicode"
)

// eventKind classifies what a keystroke produced.
type eventKind int

const (
	eventNone eventKind = iota
	eventSubmit
	eventInterrupt
	eventComplete
	eventEOF
)

// event is the outcome of feeding one rune to the line source.
type event struct {
	kind eventKind
	line string // submitted line, or the text before the cursor for completion
}

// lineReader is the built-in line source.
//
// It owns the buffer, the cursor and the history cursor, turns keystrokes into
// edits and events, and draws exclusively through its Renderer. In terminal
// mode typed characters at the end of the line are echoed with WriteRaw and
// every other change goes through Render. In stream mode (pipes) nothing is
// echoed and only line endings matter.
type lineReader struct {
	terminal     bool
	prompt       string
	buffer       []rune
	cursor       int
	keyMap       *KeyMap
	renderer     Renderer
	history      *HistoryManager // nil when no history is kept
	masked       func() bool     // masked lines never enter the history; nil means never masked
	historyIndex int             // -1 while editing a fresh line
	scratch      string          // fresh line saved while browsing history
	escape       []rune          // escape sequence being collected, nil otherwise
	lastCR       bool            // previous rune was '\r'
}

func newLineReader(terminal bool, prompt string, keyMap *KeyMap, renderer Renderer, history *HistoryManager) *lineReader {
	if keyMap == nil {
		keyMap = NewDefaultKeyMap()
	}
	return &lineReader{
		terminal:     terminal,
		prompt:       prompt,
		keyMap:       keyMap,
		renderer:     renderer,
		history:      history,
		historyIndex: -1,
	}
}

// state returns a snapshot of the current line.
func (lr *lineReader) state() LineState {
	return LineState{Prompt: lr.prompt, Line: string(lr.buffer), Cursor: lr.cursor}
}

func (lr *lineReader) setPrompt(prompt string) {
	lr.prompt = prompt
}

// render redraws the prompt and the current line.
func (lr *lineReader) render() error {
	return lr.renderer.Render(lr.state())
}

// clearLine drops the buffer without redrawing.
func (lr *lineReader) clearLine() {
	lr.buffer = nil
	lr.cursor = 0
	lr.historyIndex = -1
	lr.scratch = ""
}

// replaceBeforeCursor swaps the text before the cursor for text and redraws.
func (lr *lineReader) replaceBeforeCursor(text string) error {
	after := append([]rune{}, lr.buffer[lr.cursor:]...)
	lr.buffer = append([]rune(text), after...)
	lr.cursor = len([]rune(text))
	return lr.render()
}

// feed processes one rune.
func (lr *lineReader) feed(r rune) (event, error) {
	if !lr.terminal {
		return lr.feedStream(r), nil
	}
	if lr.escape != nil {
		return lr.feedEscape(r)
	}
	if r == '\x1b' {
		lr.escape = make([]rune, 0, 8)
		return event{}, nil
	}
	if r == '\n' && lr.lastCR {
		lr.lastCR = false
		return event{}, nil
	}
	lr.lastCR = r == '\r'
	return lr.apply(lr.keyMap.GetAction(r), r)
}

// feedStream handles input that does not come from a terminal: no editing,
// no echo, "\r", "\n" and "\r\n" all end a line.
func (lr *lineReader) feedStream(r rune) event {
	switch r {
	case '\r':
		lr.lastCR = true
		return lr.takeLine()
	case '\n':
		if lr.lastCR {
			lr.lastCR = false
			return event{}
		}
		return lr.takeLine()
	default:
		lr.lastCR = false
		lr.buffer = append(lr.buffer, r)
		lr.cursor = len(lr.buffer)
		return event{}
	}
}

func (lr *lineReader) takeLine() event {
	line := string(lr.buffer)
	lr.clearLine()
	return event{kind: eventSubmit, line: line}
}

func (lr *lineReader) feedEscape(r rune) (event, error) {
	lr.escape = append(lr.escape, r)
	if len(lr.escape) == 1 && r != '[' && r != 'O' {
		// A lone Esc; the key after it is handled on its own.
		lr.escape = nil
		return lr.feed(r)
	}
	if !escapeComplete(lr.escape) {
		if len(lr.escape) >= 10 {
			lr.escape = nil
		}
		return event{}, nil
	}
	seq := string(lr.escape)
	lr.escape = nil
	return lr.apply(lr.keyMap.GetSequenceAction(seq), 0)
}

// escapeComplete reports whether seq (without ESC) is a full SS3 or CSI sequence.
func escapeComplete(seq []rune) bool {
	if len(seq) < 2 {
		return false
	}
	if seq[0] == 'O' {
		return true
	}
	last := seq[len(seq)-1]
	return (last < '0' || last > '9') && last != ';'
}

func (lr *lineReader) apply(action KeyAction, r rune) (event, error) {
	switch action {
	case ActionSubmit:
		return lr.submit()

	case ActionInterrupt:
		return event{kind: eventInterrupt}, nil

	case ActionEOF:
		if len(lr.buffer) == 0 {
			return event{kind: eventEOF}, nil
		}
		return event{}, lr.deleteForward()

	case ActionComplete:
		return event{kind: eventComplete, line: string(lr.buffer[:lr.cursor])}, nil

	case ActionMoveLeft:
		if lr.cursor > 0 {
			lr.cursor--
		}
	case ActionMoveRight:
		if lr.cursor < len(lr.buffer) {
			lr.cursor++
		}
	case ActionMoveHome:
		lr.cursor = 0
	case ActionMoveEnd:
		lr.cursor = len(lr.buffer)
	case ActionMoveWordLeft:
		lr.cursor = lr.findWordBoundary(-1)
	case ActionMoveWordRight:
		lr.cursor = lr.findWordBoundary(1)

	case ActionDeleteBackward:
		if lr.cursor == 0 {
			return event{}, nil
		}
		lr.buffer = append(lr.buffer[:lr.cursor-1], lr.buffer[lr.cursor:]...)
		lr.cursor--
	case ActionDeleteForward:
		return event{}, lr.deleteForward()
	case ActionDeleteLine:
		lr.buffer = nil
		lr.cursor = 0
	case ActionDeleteToEnd:
		lr.buffer = lr.buffer[:lr.cursor]
	case ActionDeleteWordBack:
		if lr.cursor == 0 {
			return event{}, nil
		}
		start := lr.findWordBoundary(-1)
		lr.buffer = append(lr.buffer[:start], lr.buffer[lr.cursor:]...)
		lr.cursor = start

	case ActionHistoryPrev:
		if !lr.historyPrev() {
			return event{}, nil
		}
	case ActionHistoryNext:
		if !lr.historyNext() {
			return event{}, nil
		}

	default:
		if !unicode.IsPrint(r) {
			return event{}, nil
		}
		return event{}, lr.insert(r)
	}
	return event{}, lr.render()
}

func (lr *lineReader) insert(r rune) error {
	atEnd := lr.cursor == len(lr.buffer)
	lr.buffer = append(lr.buffer[:lr.cursor], append([]rune{r}, lr.buffer[lr.cursor:]...)...)
	lr.cursor++
	if atEnd {
		return lr.renderer.WriteRaw(lr.state(), string(r))
	}
	return lr.render()
}

func (lr *lineReader) deleteForward() error {
	if lr.cursor >= len(lr.buffer) {
		return nil
	}
	lr.buffer = append(lr.buffer[:lr.cursor], lr.buffer[lr.cursor+1:]...)
	return lr.render()
}

// submit ends the line: the cursor goes past the line, the line enters the
// history and a new row is started.
func (lr *lineReader) submit() (event, error) {
	line := string(lr.buffer)
	if lr.cursor < len(lr.buffer) {
		lr.cursor = len(lr.buffer)
		if err := lr.render(); err != nil {
			return event{}, err
		}
	}
	if lr.history != nil && !lr.isMasked() && strings.TrimSpace(line) != "" {
		lr.history.AddEntry(line)
	}
	lr.clearLine()
	return event{kind: eventSubmit, line: line}, lr.renderer.WriteRaw(lr.state(), "\r\n")
}

func (lr *lineReader) isMasked() bool {
	return lr.masked != nil && lr.masked()
}

func (lr *lineReader) setBuffer(text string) {
	lr.buffer = []rune(text)
	lr.cursor = len(lr.buffer)
}

func (lr *lineReader) historyPrev() bool {
	if lr.history == nil {
		return false
	}
	entries := lr.history.GetHistory()
	if len(entries) == 0 {
		return false
	}
	if lr.historyIndex < 0 {
		lr.scratch = string(lr.buffer)
		lr.historyIndex = len(entries)
	}
	if lr.historyIndex == 0 {
		return false
	}
	lr.historyIndex--
	lr.setBuffer(entries[lr.historyIndex])
	return true
}

func (lr *lineReader) historyNext() bool {
	if lr.history == nil || lr.historyIndex < 0 {
		return false
	}
	entries := lr.history.GetHistory()
	lr.historyIndex++
	if lr.historyIndex >= len(entries) {
		lr.historyIndex = -1
		lr.setBuffer(lr.scratch)
		lr.scratch = ""
		return true
	}
	lr.setBuffer(entries[lr.historyIndex])
	return true
}

// findWordBoundary returns the cursor position of the next word start
// (direction > 0) or the previous word start (direction < 0).
func (lr *lineReader) findWordBoundary(direction int) int {
	if direction > 0 {
		pos := lr.cursor
		for pos < len(lr.buffer) && !isWordChar(lr.buffer[pos]) {
			pos++
		}
		for pos < len(lr.buffer) && isWordChar(lr.buffer[pos]) {
			pos++
		}
		return pos
	}
	pos := lr.cursor
	if pos > 0 {
		pos--
	}
	for pos > 0 && !isWordChar(lr.buffer[pos]) {
		pos--
	}
	for pos > 0 && isWordChar(lr.buffer[pos-1]) {
		pos--
	}
	return pos
}

// isWordChar reports whether r belongs to a word for word motions.
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
