package serverline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchCompletions loads the completion candidates from path and reloads them
// whenever the file is written or recreated, until ctx is cancelled or the
// session is finished. The file holds one candidate per line; blank lines and
// lines starting with # are skipped.
//
// The first load happens before WatchCompletions returns and its error is
// returned. Later failures are logged and keep the previous candidates.
func (s *Session) WatchCompletions(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve completions file %q: %w", path, err)
	}
	candidates, err := loadCompletionsFile(abs)
	if err != nil {
		return err
	}
	s.SetCompletions(candidates)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// The directory is watched so that editors replacing the file are noticed.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				candidates, err := loadCompletionsFile(abs)
				if err != nil {
					s.diag.Warn("failed to reload completions", "file", abs, "err", err)
					continue
				}
				s.SetCompletions(candidates)
				s.diag.Debug("completions reloaded", "file", abs, "count", len(candidates))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.diag.Warn("completions watcher error", "err", err)
			}
		}
	}()
	return nil
}

func loadCompletionsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open completions file: %w", err)
	}
	defer file.Close()

	candidates := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		candidates = append(candidates, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read completions file: %w", err)
	}
	return candidates, nil
}
