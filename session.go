package serverline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Common errors
var (
	// ErrAlreadyStarted is returned when Start is called on a session that was already started.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrAlreadyAttached is returned when a second session tries to take over the process streams.
	ErrAlreadyAttached = errors.New("another session is attached to the process streams")
	// ErrIncompatibleRuntime is returned when the Go runtime is older than MinimumGoVersion.
	ErrIncompatibleRuntime = errors.New("incompatible runtime")
	// ErrStreamClosed is reported by Wait when the input reached its end.
	ErrStreamClosed = errors.New("input stream closed")
	// ErrNotStarted is returned by Wait on a session that was never started.
	ErrNotStarted = errors.New("session not started")
)

// errEndOfInput is produced by Ctrl+D on an empty line.
var errEndOfInput = errors.New("end of input")

// processAttached is set while a session owns the real stdin/stdout.
var processAttached atomic.Bool

// EventName names the lifecycle events that can be subscribed to with On.
type EventName string

// Lifecycle events.
const (
	EventClose  EventName = "close"
	EventPause  EventName = "pause"
	EventResume EventName = "resume"
)

// question is an answer being waited for by Secret or Question.
type question struct {
	query       string
	callback    func(answer string)
	restoreMute bool // muting was switched on for this question only
}

// Session reads lines from the terminal while the program keeps printing.
//
// Output written through Stdout, Stderr, Logger or the Print helpers is placed
// above the line being edited, which is redrawn afterwards. A session owns one
// input goroutine; every state change and every terminal write happens under
// its mutex, and subscribers are called without it.
type Session struct {
	id     uuid.UUID
	config Config

	mu                  sync.Mutex
	terminal            bool
	attachesProcess     bool
	started             bool
	paused              bool
	closed              bool
	prompt              string
	promptHidden        bool
	muted               bool
	maskMessage         string
	completions         []string
	pendingInterruptFix bool
	question            *question
	resumed             chan struct{}

	term     terminalInterface
	output   io.Writer
	reader   *lineReader
	renderer Renderer
	history  *HistoryManager // nil in non-terminal mode
	stdout   *streamWriter
	stderr   *streamWriter
	logger   *log.Logger
	diag     *log.Logger

	lineHandlers       []func(line string)
	interruptHandlers  []func() bool
	completionHandlers []func(req *CompletionRequest)
	events             map[EventName][]func()

	done       chan struct{}
	finishOnce sync.Once
	err        error
}

// New creates a session with the given prompt.
//
// An empty prompt means DefaultPrompt. Without WithInput and WithOutput the
// session uses the process streams, and only one such session may be
// started at a time.
//
// Example:
//
//	s, err := serverline.New("> ", serverline.WithCompletions([]string{"help", "exit"}))
//	if err != nil {
//		log.Fatal(err)
//	}
//	s.OnLine(func(line string) {
//		s.Printf("you typed %q\n", line)
//	})
//	if err := s.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//	s.Wait()
func New(prompt string, options ...Option) (*Session, error) {
	config := Config{
		Prompt:   prompt,
		Warnings: true,
	}

	// Apply options
	for _, option := range options {
		option(&config)
	}

	return newFromConfig(config)
}

func newFromConfig(config Config) (*Session, error) {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.MaskMessage == "" {
		config.MaskMessage = DefaultMaskMessage
	}
	if config.KeyMap == nil {
		config.KeyMap = NewDefaultKeyMap()
	}
	if config.Exit == nil {
		config.Exit = os.Exit
	}

	var input io.Reader = os.Stdin
	if config.Input != nil {
		input = config.Input
	}
	var rawOutput io.Writer = os.Stdout
	output := stdoutWriter()
	if config.Output != nil {
		rawOutput = config.Output
		output = config.Output
	}
	errOutput := stderrWriter()
	if config.ErrOutput != nil {
		errOutput = config.ErrOutput
	}

	s := &Session{
		id:              uuid.New(),
		config:          config,
		terminal:        config.ForceTerminal || (isTerminal(input) && isTerminal(rawOutput)),
		attachesProcess: input == io.Reader(os.Stdin) || rawOutput == io.Writer(os.Stdout),
		prompt:          config.Prompt,
		maskMessage:     config.MaskMessage,
		completions:     append([]string{}, config.Completions...),
		output:          output,
		events:          make(map[EventName][]func()),
		done:            make(chan struct{}),
	}

	if input == io.Reader(os.Stdin) && isTerminal(os.Stdin) {
		t, err := newRealTerminal()
		if err != nil {
			return nil, fmt.Errorf("failed to create terminal: %w", err)
		}
		s.term = t
	} else {
		s.term = newStreamTerminal(input, rawOutput)
	}

	if s.terminal {
		history := NewHistoryManager(config.HistoryConfig)
		if err := history.LoadHistory(); err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		if history.IsEnabled() {
			s.history = history
		}
	}

	s.renderer = newMaskRenderer(
		newTermRenderer(output, config.ColorScheme, s.columns, s.terminal),
		func() bool { return s.muted },
		s.terminal,
	)
	s.reader = newLineReader(s.terminal, s.prompt, config.KeyMap, s.renderer, s.history)
	s.reader.masked = func() bool { return s.muted }

	s.stdout = &streamWriter{session: s, target: output}
	s.stderr = &streamWriter{session: s, target: errOutput}
	s.logger = newConsoleLogger(s.stderr, errOutput, config.Console, config.Logger)
	s.diag = newConsoleLogger(s.stderr, errOutput, config.Console, nil).With("session_id", s.id.String())

	return s, nil
}

// Start activates the session: raw mode is entered, the first prompt is drawn
// and the input goroutine starts reading. Cancelling ctx closes the session.
func (s *Session) Start(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	go s.loop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return nil
}

// begin performs everything Start does except spawning the input goroutine.
func (s *Session) begin() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.config.CheckRuntime {
		if err := CheckCompatibility(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if s.attachesProcess && !processAttached.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrAlreadyAttached
	}
	if s.terminal {
		if err := s.term.SetRaw(); err != nil {
			if s.attachesProcess {
				processAttached.Store(false)
			}
			s.mu.Unlock()
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
	}
	s.started = true
	err := s.reader.render()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}
	if !s.terminal && s.config.Warnings {
		s.diag.Warn("compatibility mode, the current context is not a terminal",
			"hint", "output may be redirected to a file, try WithForceTerminal(true)")
	}
	return nil
}

func (s *Session) loop() {
	for {
		r, _, err := s.term.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.flushStream()
			}
			s.stop(err)
			return
		}
		if !s.waitResumed() {
			return
		}
		if err := s.handleRune(r); err != nil {
			s.stop(err)
			return
		}
	}
}

// handleRune feeds one keystroke to the line source and dispatches what it produced.
func (s *Session) handleRune(r rune) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ev, err := s.reader.feed(r)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to process key: %w", err)
	}

	switch ev.kind {
	case eventSubmit:
		s.submitted(ev)
	case eventInterrupt:
		s.interrupted()
	case eventComplete:
		if err := s.complete(ev.line); err != nil {
			return fmt.Errorf("failed to complete: %w", err)
		}
	case eventEOF:
		return errEndOfInput
	}

	s.afterKeystroke(r)
	return nil
}

// afterKeystroke runs once the line source is done with a keystroke. A raw
// Ctrl+C arriving while an interrupted question is pending answers it with
// an empty string, which leaves the reader able to take the next line.
func (s *Session) afterKeystroke(r rune) {
	s.mu.Lock()
	fix := r == keyInterrupt && s.pendingInterruptFix && s.question != nil
	s.pendingInterruptFix = false
	if fix {
		s.reader.clearLine()
	}
	s.mu.Unlock()

	if fix {
		s.submitted(event{kind: eventSubmit})
	}
}

// submitted delivers a submitted line to the pending question or to the line subscribers.
func (s *Session) submitted(ev event) {
	s.mu.Lock()
	if q := s.question; q != nil {
		s.question = nil
		if q.restoreMute {
			s.muted = false
		}
		s.reader.setPrompt(s.visiblePrompt())
		s.mu.Unlock()

		q.callback(ev.line)
		s.redraw()
		return
	}

	if s.promptHidden && s.terminal {
		_, _ = io.WriteString(s.output, "\x1b[A\x1b[K")
	}
	handlers := append([]func(string){}, s.lineHandlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev.line)
	}
	s.redraw()
}

func (s *Session) interrupted() {
	s.mu.Lock()
	s.pendingInterruptFix = s.question != nil
	if s.terminal {
		s.reader.clearLine()
		s.redrawLocked()
	}
	handlers := append([]func() bool{}, s.interruptHandlers...)
	exit := s.config.Exit
	s.mu.Unlock()

	handled := false
	for _, h := range handlers {
		if h() {
			handled = true
		}
	}
	if !handled {
		exit(0)
	}
}

// flushStream submits what a piped input left without a final line ending.
func (s *Session) flushStream() {
	s.mu.Lock()
	if s.terminal || s.closed || len(s.reader.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	ev := s.reader.takeLine()
	s.mu.Unlock()
	s.submitted(ev)
}

func (s *Session) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redrawLocked()
}

// waitResumed blocks while the session is paused. It returns false once the
// session is finished.
func (s *Session) waitResumed() bool {
	s.mu.Lock()
	paused, resumed := s.paused, s.resumed
	s.mu.Unlock()
	if !paused {
		return true
	}
	select {
	case <-resumed:
		return true
	case <-s.done:
		return false
	}
}

// stop ends the session after the input loop stopped with cause.
func (s *Session) stop(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.finish(nil)
		return
	}
	s.closed = true
	result := cause
	if errors.Is(cause, io.EOF) || errors.Is(cause, errEndOfInput) {
		result = ErrStreamClosed
	} else if !errors.Is(cause, ErrStreamClosed) {
		result = fmt.Errorf("failed to read input: %w", cause)
	}
	if err := s.cleanup(); err != nil {
		result = multierror.Append(result, err)
	}
	handlers := append([]func(){}, s.events[EventClose]...)
	s.mu.Unlock()

	s.finish(result)
	for _, h := range handlers {
		h()
	}
}

// cleanup leaves the terminal usable and persists history. The caller holds s.mu.
func (s *Session) cleanup() error {
	var result *multierror.Error
	if s.terminal {
		if _, err := io.WriteString(s.output, "\r\n"); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to write final newline: %w", err))
		}
		if err := s.term.Restore(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to restore terminal: %w", err))
		}
	}
	if s.history != nil {
		if err := s.history.SaveHistory(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to save history: %w", err))
		}
	}
	if err := s.term.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close terminal: %w", err))
	}
	if s.attachesProcess {
		processAttached.Store(false)
	}
	return result.ErrorOrNil()
}

func (s *Session) finish(err error) {
	s.finishOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// active reports whether the line is on screen. The caller holds s.mu.
func (s *Session) active() bool {
	return s.started && !s.closed
}

// visiblePrompt is the prompt shown outside questions. The caller holds s.mu.
func (s *Session) visiblePrompt() string {
	if s.muted {
		return s.maskMessage
	}
	return s.prompt
}

func (s *Session) columns() int {
	w, _, err := s.term.Size()
	if err != nil || w <= 0 {
		return defaultColumns
	}
	return w
}

// Close stops reading, restores the terminal, saves the history and closes
// the input. It returns false when the session is not running.
func (s *Session) Close() bool {
	s.mu.Lock()
	if !s.active() {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	err := s.cleanup()
	handlers := append([]func(){}, s.events[EventClose]...)
	s.mu.Unlock()

	s.finish(err)
	if err != nil {
		s.diag.Error("failed to close session", "err", err)
	}
	for _, h := range handlers {
		h()
	}
	return true
}

// Pause leaves raw mode and stops processing keystrokes until Resume.
// It returns false when the session is not running.
func (s *Session) Pause() bool {
	s.mu.Lock()
	if !s.active() {
		s.mu.Unlock()
		return false
	}
	if s.paused {
		s.mu.Unlock()
		return true
	}
	s.paused = true
	s.resumed = make(chan struct{})
	var err error
	if s.terminal {
		err = s.term.Restore()
	}
	handlers := append([]func(){}, s.events[EventPause]...)
	s.mu.Unlock()

	if err != nil {
		s.diag.Warn("failed to restore terminal", "err", err)
	}
	for _, h := range handlers {
		h()
	}
	return true
}

// Resume re-enters raw mode and continues processing keystrokes.
// It returns false when the session is not running.
func (s *Session) Resume() bool {
	s.mu.Lock()
	if !s.active() {
		s.mu.Unlock()
		return false
	}
	if !s.paused {
		s.mu.Unlock()
		return true
	}
	s.paused = false
	close(s.resumed)
	var err error
	if s.terminal {
		err = s.term.SetRaw()
	}
	handlers := append([]func(){}, s.events[EventResume]...)
	s.mu.Unlock()

	if err != nil {
		s.diag.Warn("failed to enter raw mode", "err", err)
	}
	for _, h := range handlers {
		h()
	}
	return true
}

// Wait blocks until the session is finished. It returns ErrStreamClosed when
// the input ended, along with any error met while cleaning up.
func (s *Session) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-s.done
	return s.err
}

// SetPrompt replaces the prompt. With hideOnSubmit the submitted line is
// erased from the screen once entered. It returns the new prompt.
func (s *Session) SetPrompt(prompt string, hideOnSubmit bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.promptHidden = hideOnSubmit
	if s.question == nil {
		s.reader.setPrompt(s.visiblePrompt())
		s.redrawLocked()
	}
	return s.prompt
}

// SetMuted turns masking on or off. While muted the prompt becomes
// maskMessage (DefaultMaskMessage, or the configured one, when empty) and
// typed characters are not echoed. It returns the resulting state.
func (s *Session) SetMuted(enabled bool, maskMessage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maskMessage == "" {
		maskMessage = s.config.MaskMessage
	}
	s.muted = enabled
	s.maskMessage = maskMessage
	if s.question == nil {
		s.reader.setPrompt(s.visiblePrompt())
	}
	s.redrawLocked()
	return s.muted
}

// SetCompletions replaces the completion candidates and returns them.
// A nil list is ignored.
func (s *Session) SetCompletions(candidates []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if candidates != nil {
		s.completions = append([]string{}, candidates...)
	}
	return append([]string{}, s.completions...)
}

// History returns the submitted lines, oldest first. It is always empty
// when the session is not on a terminal.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return []string{}
	}
	return s.history.GetHistory()
}

// SetHistory replaces the history. It returns false when no history is kept.
func (s *Session) SetHistory(history []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return false
	}
	if history != nil {
		s.history.SetHistory(history)
	}
	return true
}

// Secret asks query with masked input. The answer is passed to callback and
// never kept in the history. The previous muted state is restored afterwards.
// It returns false when another question is already waiting for an answer.
func (s *Session) Secret(query string, callback func(answer string)) bool {
	return s.ask(query, callback, true)
}

// Question asks query and passes the next submitted line to callback instead
// of the line subscribers. It returns false when another question is already
// waiting for an answer.
func (s *Session) Question(query string, callback func(answer string)) bool {
	return s.ask(query, callback, false)
}

func (s *Session) ask(query string, callback func(string), secret bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.question != nil {
		return false
	}
	q := &question{query: query, callback: callback}
	if secret {
		q.restoreMute = !s.muted
		s.muted = true
	}
	s.question = q
	s.reader.setPrompt(query)
	if s.active() {
		_ = s.reader.render()
	}
	return true
}

// redrawLocked draws the line again on a terminal. The caller holds s.mu.
func (s *Session) redrawLocked() {
	if s.terminal && s.active() {
		_ = s.reader.render()
	}
}

// OnLine subscribes to submitted lines.
func (s *Session) OnLine(handler func(line string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineHandlers = append(s.lineHandlers, handler)
}

// OnInterrupt subscribes to Ctrl+C. When no subscriber returns true the
// exit function runs with status 0.
func (s *Session) OnInterrupt(handler func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptHandlers = append(s.interruptHandlers, handler)
}

// OnCompletion subscribes to Tab presses. Subscribers run before suggestions
// are shown and may change the request.
func (s *Session) OnCompletion(handler func(req *CompletionRequest)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completionHandlers = append(s.completionHandlers, handler)
}

// On subscribes to a lifecycle event.
func (s *Session) On(name EventName, handler func()) error {
	switch name {
	case EventClose, EventPause, EventResume:
	default:
		return fmt.Errorf("unknown event %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[name] = append(s.events[name], handler)
	return nil
}

// Prompt returns the prompt set with New or SetPrompt.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// IsMuted reports whether input is masked.
func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Completions returns a copy of the completion candidates.
func (s *Session) Completions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.completions...)
}

// IsTerminal reports whether the session drives a terminal.
func (s *Session) IsTerminal() bool {
	return s.terminal
}

// ID returns the session identifier attached to diagnostic logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Stdout returns the writer that prints above the line on the output stream.
func (s *Session) Stdout() io.Writer {
	return s.stdout
}

// Stderr returns the writer that prints above the line on the error stream.
func (s *Session) Stderr() io.Writer {
	return s.stderr
}

// Logger returns the logger writing to Stderr.
func (s *Session) Logger() *log.Logger {
	return s.logger
}

// Println prints above the line, like fmt.Println.
func (s *Session) Println(a ...any) {
	_, _ = fmt.Fprintln(s.stdout, a...)
}

// Printf prints above the line, like fmt.Printf.
func (s *Session) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.stdout, format, a...)
}
