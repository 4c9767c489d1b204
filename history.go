package serverline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults for HistoryConfig fields left at zero.
const (
	defaultHistoryEntries  = 1000
	defaultHistoryFileSize = 1024 * 1024 // 1MB
	defaultHistoryBackups  = 3
)

// HistoryConfig holds all history-related configuration.
//
// File supports several forms:
//   - empty string: memory-only history
//   - absolute path: "/home/user/.app_history"
//   - home directory: "~/.app_history"
//   - relative path: "./app_history" (made absolute)
type HistoryConfig struct {
	Enabled     bool   // Enable/disable history
	MaxEntries  int    // Maximum number of entries kept in memory (default: 1000)
	File        string // File path for persistence (empty = memory only)
	MaxFileSize int64  // File size in bytes that triggers rotation (default: 1MB)
	MaxBackups  int    // Number of rotated files to keep (default: 3)
}

// DefaultHistoryConfig returns an enabled, memory-only history configuration.
func DefaultHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Enabled:     true,
		MaxEntries:  defaultHistoryEntries,
		MaxFileSize: defaultHistoryFileSize,
		MaxBackups:  defaultHistoryBackups,
	}
}

// GetDefaultHistoryFile returns $XDG_CONFIG_HOME/serverline/history, falling
// back to ~/.config/serverline/history.
func GetDefaultHistoryFile() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "serverline", "history")
}

// HistoryManager keeps submitted lines, newest last, with optional persistence.
type HistoryManager struct {
	config  *HistoryConfig
	entries []string
}

// NewHistoryManager creates a history manager. A nil config means DefaultHistoryConfig.
func NewHistoryManager(config *HistoryConfig) *HistoryManager {
	if config == nil {
		config = DefaultHistoryConfig()
	}
	cfg := *config
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultHistoryEntries
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultHistoryFileSize
	}
	if cfg.MaxBackups < 0 {
		cfg.MaxBackups = defaultHistoryBackups
	}
	if cfg.File != "" {
		if absPath, err := expandHistoryPath(cfg.File); err == nil {
			cfg.File = absPath
		}
	}
	return &HistoryManager{config: &cfg}
}

// IsEnabled reports whether history is kept at all.
func (hm *HistoryManager) IsEnabled() bool {
	return hm.config.Enabled
}

// File returns the resolved persistence path, empty for memory-only history.
func (hm *HistoryManager) File() string {
	return hm.config.File
}

// AddEntry appends entry and reports whether it was appended. Empty entries
// and repeats of the newest entry are skipped.
func (hm *HistoryManager) AddEntry(entry string) bool {
	if !hm.config.Enabled || entry == "" {
		return false
	}
	if n := len(hm.entries); n > 0 && hm.entries[n-1] == entry {
		return false
	}
	hm.entries = append(hm.entries, entry)
	if over := len(hm.entries) - hm.config.MaxEntries; over > 0 {
		hm.entries = append([]string{}, hm.entries[over:]...)
	}
	return true
}

// GetHistory returns a copy of the entries, oldest first.
func (hm *HistoryManager) GetHistory() []string {
	if !hm.config.Enabled {
		return []string{}
	}
	return append([]string{}, hm.entries...)
}

// SetHistory replaces the entries, keeping at most MaxEntries of the newest.
func (hm *HistoryManager) SetHistory(history []string) {
	if !hm.config.Enabled {
		return
	}
	if over := len(history) - hm.config.MaxEntries; over > 0 {
		history = history[over:]
	}
	hm.entries = append([]string{}, history...)
}

// ClearHistory drops every entry.
func (hm *HistoryManager) ClearHistory() {
	hm.entries = nil
}

// LoadHistory reads the configured file. A missing file is not an error.
func (hm *HistoryManager) LoadHistory() error {
	if !hm.config.Enabled || hm.config.File == "" {
		return nil
	}

	file, err := os.Open(hm.config.File)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var loaded []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			loaded = append(loaded, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	hm.SetHistory(loaded)
	return nil
}

// SaveHistory writes the entries to the configured file, rotating it first
// when it has grown past MaxFileSize.
func (hm *HistoryManager) SaveHistory() error {
	if !hm.config.Enabled || hm.config.File == "" {
		return nil
	}
	if err := hm.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate history file: %w", err)
	}
	if dir := filepath.Dir(hm.config.File); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := writeLines(hm.config.File, hm.entries); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

func (hm *HistoryManager) rotateIfNeeded() error {
	info, err := os.Stat(hm.config.File)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < hm.config.MaxFileSize {
		return nil
	}

	if hm.config.MaxBackups == 0 {
		return os.Truncate(hm.config.File, 0)
	}

	backup := func(i int) string { return hm.config.File + "." + strconv.Itoa(i) }

	if err := os.Remove(backup(hm.config.MaxBackups)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove oldest backup: %w", err)
	}
	for i := hm.config.MaxBackups - 1; i >= 1; i-- {
		if _, err := os.Stat(backup(i)); err != nil {
			continue
		}
		if err := os.Rename(backup(i), backup(i+1)); err != nil {
			return fmt.Errorf("failed to rotate backup %d: %w", i, err)
		}
	}
	if err := os.Rename(hm.config.File, backup(1)); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// Keep the newer half so the fresh file does not rotate again right away.
	if keep := len(hm.entries) / 2; keep >= 100 {
		hm.entries = append([]string{}, hm.entries[len(hm.entries)-keep:]...)
	}
	return nil
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// expandHistoryPath expands "~" and makes path absolute.
func expandHistoryPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to convert to absolute path: %w", err)
	}
	return absPath, nil
}
