package serverline

import (
	"io"

	"github.com/charmbracelet/log"
)

// DefaultPrompt is used when New receives an empty prompt.
const DefaultPrompt = "> "

// Config holds the configuration for a session.
type Config struct {
	Prompt        string         // Prompt shown in front of the line (default "> ")
	ForceTerminal bool           // Treat non-terminal streams as a terminal
	Input         io.Reader      // Keystroke source (nil = process stdin)
	Output        io.Writer      // Line and stdout destination (nil = process stdout)
	ErrOutput     io.Writer      // Stderr destination (nil = process stderr)
	Console       ConsoleOptions // Formatting of the diagnostic logger
	Logger        *log.Logger    // Host logger routed through the intercepted stderr
	HistoryConfig *HistoryConfig // History configuration (nil for default)
	ColorScheme   *ColorScheme   // Colours (nil for plain output)
	KeyMap        *KeyMap        // Key bindings (nil for default)
	Completions   []string       // Initial completion candidates
	MaskMessage   string         // Prompt while muted (default "> [hidden]")
	CheckRuntime  bool           // Fail Start when the Go runtime is too old
	Warnings      bool           // Log a warning when running in compatibility mode
	Exit          func(code int) // Called on an unhandled interrupt (default os.Exit)
}

// ConsoleOptions configure the diagnostic logger attached to the intercepted
// stderr. They are handed to charmbracelet/log unchanged.
type ConsoleOptions struct {
	Level           log.Level // Minimum level (default info)
	ColorMode       string    // "auto" (default), "always" or "never"
	Formatter       string    // "text" (default), "json" or "logfmt"
	ReportTimestamp bool      // Prefix records with a timestamp
	TimeFormat      string    // Timestamp layout (default time.Kitchen)
	IgnoreErrors    bool      // Swallow write errors from the logger
	Prefix          string    // Prefix printed before every record
}

// Option represents a configuration option for a session.
type Option func(*Config)

// WithForceTerminal makes the session behave as on a terminal even when the
// streams are pipes or files. Mostly useful for tests.
func WithForceTerminal(force bool) Option {
	return func(c *Config) {
		c.ForceTerminal = force
	}
}

// WithInput sets the keystroke source.
func WithInput(r io.Reader) Option {
	return func(c *Config) {
		c.Input = r
	}
}

// WithOutput sets the stream the line is drawn on and stdout output goes to.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithErrorOutput sets the stream stderr output goes to.
func WithErrorOutput(w io.Writer) Option {
	return func(c *Config) {
		c.ErrOutput = w
	}
}

// WithConsole sets the diagnostic logger formatting.
func WithConsole(opts ConsoleOptions) Option {
	return func(c *Config) {
		c.Console = opts
	}
}

// WithLogger routes an existing logger through the intercepted stderr. New
// replaces the logger's output.
func WithLogger(logger *log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithHistory configures history settings.
//
//	serverline.New("> ", serverline.WithHistory(&serverline.HistoryConfig{
//		Enabled:    true,
//		MaxEntries: 100,
//		File:       "~/.myapp_history",
//	}))
func WithHistory(historyConfig *HistoryConfig) Option {
	return func(c *Config) {
		c.HistoryConfig = historyConfig
	}
}

// WithMemoryHistory keeps up to maxEntries lines in memory.
func WithMemoryHistory(maxEntries int) Option {
	return func(c *Config) {
		if maxEntries <= 0 {
			maxEntries = defaultHistoryEntries
		}
		c.HistoryConfig = &HistoryConfig{
			Enabled:    true,
			MaxEntries: maxEntries,
		}
	}
}

// WithFileHistory keeps up to maxEntries lines and persists them to file on Close.
func WithFileHistory(file string, maxEntries int) Option {
	return func(c *Config) {
		if maxEntries <= 0 {
			maxEntries = defaultHistoryEntries
		}
		c.HistoryConfig = &HistoryConfig{
			Enabled:     true,
			MaxEntries:  maxEntries,
			File:        file,
			MaxFileSize: defaultHistoryFileSize,
			MaxBackups:  defaultHistoryBackups,
		}
	}
}

// WithColorScheme sets the colours.
func WithColorScheme(colorScheme *ColorScheme) Option {
	return func(c *Config) {
		c.ColorScheme = colorScheme
	}
}

// WithKeyMap sets the key bindings.
func WithKeyMap(keyMap *KeyMap) Option {
	return func(c *Config) {
		c.KeyMap = keyMap
	}
}

// WithCompletions sets the initial completion candidates.
func WithCompletions(candidates []string) Option {
	return func(c *Config) {
		c.Completions = append([]string{}, candidates...)
	}
}

// WithMaskMessage sets the prompt shown while input is muted.
func WithMaskMessage(msg string) Option {
	return func(c *Config) {
		c.MaskMessage = msg
	}
}

// WithCompatibilityCheck makes Start fail with ErrIncompatibleRuntime when the
// Go runtime is older than MinimumGoVersion.
func WithCompatibilityCheck(enabled bool) Option {
	return func(c *Config) {
		c.CheckRuntime = enabled
	}
}

// WithWarnings enables or disables the compatibility-mode warning.
func WithWarnings(enabled bool) Option {
	return func(c *Config) {
		c.Warnings = enabled
	}
}

// WithExitFunc replaces the function called when an interrupt is not handled.
func WithExitFunc(exit func(code int)) Option {
	return func(c *Config) {
		c.Exit = exit
	}
}
