package serverline

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// CompletionRequest is handed to completion subscribers. Subscribers may
// change Hits to alter the suggestions and Line to replace the text before
// the cursor.
type CompletionRequest struct {
	Line string   // Text before the cursor when Tab was pressed
	Hits []string // Candidates starting with Line
}

// filterCompletions returns the candidates starting with line, in order.
// Matching is case-sensitive.
func filterCompletions(candidates []string, line string) []string {
	hits := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.HasPrefix(c, line) {
			hits = append(hits, c)
		}
	}
	return hits
}

// WrapList lays items out as a comma separated listing no wider than width
// cells. Trailing whitespace is trimmed from every item and each line but the
// last ends with a comma. An item wider than the available space gets a line
// of its own. A width of zero or less disables wrapping.
func WrapList(items []string, width int) []string {
	var (
		lines     []string
		cur       strings.Builder
		curWidth  int
		available = width - 1 // room for the trailing comma
	)
	for _, item := range items {
		item = strings.TrimRightFunc(item, unicode.IsSpace)
		w := runewidth.StringWidth(item)
		switch {
		case cur.Len() == 0:
		case width <= 0 || curWidth+2+w <= available:
			cur.WriteString(", ")
			curWidth += 2
		default:
			lines = append(lines, cur.String()+",")
			cur.Reset()
			curWidth = 0
		}
		cur.WriteString(item)
		curWidth += w
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// complete runs the completion negotiation for the text before the cursor.
// It is called on the input goroutine without s.mu held.
func (s *Session) complete(line string) error {
	s.mu.Lock()
	candidates := append([]string{}, s.completions...)
	handlers := append([]func(*CompletionRequest){}, s.completionHandlers...)
	s.mu.Unlock()

	req := &CompletionRequest{Line: line, Hits: filterCompletions(candidates, line)}
	for _, h := range handlers {
		h(req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.Hits) == 1 {
		return s.reader.replaceBeforeCursor(req.Hits[0])
	}

	listing := req.Hits
	if len(listing) == 0 {
		listing = candidates
	}
	if err := s.printSuggestions(listing); err != nil {
		return err
	}
	if req.Line != line {
		return s.reader.replaceBeforeCursor(req.Line)
	}
	return nil
}

// printSuggestions prints the listing above the line. The caller holds s.mu.
func (s *Session) printSuggestions(listing []string) error {
	if len(listing) == 0 {
		return nil
	}
	header, body := suggestionColors(s.config.ColorScheme)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("Suggest:")
	b.WriteString(Reset())
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString(strings.Join(WrapList(listing, s.columns()), "\n"))
	b.WriteString(Reset())
	b.WriteString("\n")

	_, err := s.writeAbove(s.output, []byte(b.String()))
	return err
}
