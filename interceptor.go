package serverline

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// streamWriter is one of the session's two intercepted output streams.
//
// Every write on a terminal is placed above the line being edited and is
// followed by a redraw of that line, both under the session lock, so output
// from any goroutine can never split the prompt or land inside it.
type streamWriter struct {
	session *Session
	target  io.Writer
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.session.mu.Lock()
	defer w.session.mu.Unlock()
	return w.session.writeAbove(w.target, p)
}

// writeAbove writes p to target above the active line. The caller holds s.mu.
//
// The cursor climbs from its own row to the first row of the prompt,
// everything below is cleared, p is written, and enough newlines follow for
// the redraw to climb back to the row right under p. The redraw only happens
// once the write has returned successfully.
func (s *Session) writeAbove(target io.Writer, p []byte) (int, error) {
	if !s.terminal || !s.active() {
		return target.Write(p)
	}

	_, cursorRow := s.renderer.Rows(s.reader.state())

	var b bytes.Buffer
	fmt.Fprintf(&b, "\n\r\x1b[%dA\x1b[0J", cursorRow+1)
	b.Write(crlf(p))
	if !bytes.HasSuffix(p, []byte("\n")) {
		// The redraw would clear a partial row.
		b.WriteString("\r\n")
	}
	b.WriteString(strings.Repeat("\n", cursorRow))

	if _, err := target.Write(b.Bytes()); err != nil {
		return 0, err
	}
	if err := s.reader.render(); err != nil {
		return len(p), fmt.Errorf("failed to redraw line: %w", err)
	}
	return len(p), nil
}

// crlf turns bare line feeds into CRLF. Raw mode disables output
// post-processing, so a lone "\n" would not return the carriage.
func crlf(p []byte) []byte {
	if !bytes.Contains(p, []byte("\n")) {
		return p
	}
	p = bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
}

// ignoreErrors swallows write errors, for loggers configured with IgnoreErrors.
type ignoreErrors struct {
	w io.Writer
}

func (i ignoreErrors) Write(p []byte) (int, error) {
	_, _ = i.w.Write(p)
	return len(p), nil
}

// newConsoleLogger builds the logger bound to w, which writes to target. A
// host logger keeps its own formatting and only has its output redirected.
func newConsoleLogger(w, target io.Writer, opts ConsoleOptions, host *log.Logger) *log.Logger {
	if opts.IgnoreErrors {
		w = ignoreErrors{w: w}
	}
	if host != nil {
		host.SetOutput(w)
		return host
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		ReportTimestamp: opts.ReportTimestamp,
		TimeFormat:      opts.TimeFormat,
		Prefix:          opts.Prefix,
	})

	switch strings.ToLower(opts.Formatter) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}

	if profile, ok := colorProfile(opts.ColorMode, target); ok {
		logger.SetColorProfile(profile)
	}
	return logger
}

// colorProfile picks the logger's colour profile for mode. In auto mode the
// profile is detected on target, the stream behind the intercepted writer,
// and ok is false when target is not a terminal.
func colorProfile(mode string, target io.Writer) (profile termenv.Profile, ok bool) {
	switch strings.ToLower(mode) {
	case "always":
		return termenv.TrueColor, true
	case "never":
		return termenv.Ascii, true
	}
	if !isTerminal(target) {
		return termenv.Ascii, false
	}
	return termenv.NewOutput(target).EnvColorProfile(), true
}
