package serverline

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

type fileConfig struct {
	Prompt        *string        `toml:"prompt"`
	ForceTerminal *bool          `toml:"force_terminal"`
	MaskMessage   *string        `toml:"mask_message"`
	Completions   []string       `toml:"completions"`
	Theme         *string        `toml:"theme"`
	History       *historyConfig `toml:"history"`
	Console       *consoleConfig `toml:"console"`
}

type historyConfig struct {
	File       *string `toml:"file"`
	MaxEntries *int    `toml:"max_entries"`
}

type consoleConfig struct {
	Level           *string `toml:"level"`
	ColorMode       *string `toml:"color_mode"`
	Formatter       *string `toml:"formatter"`
	ReportTimestamp *bool   `toml:"report_timestamp"`
	TimeFormat      *string `toml:"time_format"`
	IgnoreErrors    *bool   `toml:"ignore_errors"`
}

// LoadOptions reads a TOML file and returns the options it describes. Keys
// left out of the file produce no option, so the result can be followed by
// options overriding it.
//
//	prompt = "app> "
//	completions = ["help", "exit"]
//	theme = "dracula"
//
//	[history]
//	file = "~/.app_history"
//	max_entries = 500
//
//	[console]
//	level = "debug"
//	formatter = "logfmt"
func LoadOptions(path string) ([]Option, error) {
	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return nil, fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown keys in config file %q: %s", path, strings.Join(keys, ", "))
	}

	var opts []Option
	if decoded.Prompt != nil {
		prompt := *decoded.Prompt
		opts = append(opts, func(c *Config) { c.Prompt = prompt })
	}
	if decoded.ForceTerminal != nil {
		opts = append(opts, WithForceTerminal(*decoded.ForceTerminal))
	}
	if decoded.MaskMessage != nil {
		opts = append(opts, WithMaskMessage(*decoded.MaskMessage))
	}
	if decoded.Completions != nil {
		opts = append(opts, WithCompletions(decoded.Completions))
	}
	if decoded.Theme != nil {
		theme, err := ThemeByName(*decoded.Theme)
		if err != nil {
			return nil, fmt.Errorf("parse theme in %q: %w", path, err)
		}
		opts = append(opts, WithColorScheme(theme))
	}
	if h := decoded.History; h != nil {
		maxEntries := 0
		if h.MaxEntries != nil {
			maxEntries = *h.MaxEntries
		}
		if h.File != nil && *h.File != "" {
			opts = append(opts, WithFileHistory(*h.File, maxEntries))
		} else {
			opts = append(opts, WithMemoryHistory(maxEntries))
		}
	}
	if decoded.Console != nil {
		console, err := decoded.Console.options(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithConsole(console))
	}
	return opts, nil
}

func (cc *consoleConfig) options(path string) (ConsoleOptions, error) {
	var opts ConsoleOptions
	if cc.Level != nil {
		level, err := log.ParseLevel(*cc.Level)
		if err != nil {
			return opts, fmt.Errorf("parse console.level in %q: %w", path, err)
		}
		opts.Level = level
	}
	if cc.ColorMode != nil {
		switch mode := strings.ToLower(*cc.ColorMode); mode {
		case "auto", "always", "never":
			opts.ColorMode = mode
		default:
			return opts, fmt.Errorf("parse console.color_mode in %q: unknown mode %q", path, *cc.ColorMode)
		}
	}
	if cc.Formatter != nil {
		switch formatter := strings.ToLower(*cc.Formatter); formatter {
		case "text", "json", "logfmt":
			opts.Formatter = formatter
		default:
			return opts, fmt.Errorf("parse console.formatter in %q: unknown formatter %q", path, *cc.Formatter)
		}
	}
	if cc.ReportTimestamp != nil {
		opts.ReportTimestamp = *cc.ReportTimestamp
	}
	if cc.TimeFormat != nil {
		opts.TimeFormat = *cc.TimeFormat
	}
	if cc.IgnoreErrors != nil {
		opts.IgnoreErrors = *cc.IgnoreErrors
	}
	return opts, nil
}
