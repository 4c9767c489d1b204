package serverline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serverline.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func applyOptions(opts []Option) *Config {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

func TestLoadOptions(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
prompt = "app> "
force_terminal = true
mask_message = "password: "
completions = ["help", "exit"]
theme = "Dracula"

[history]
file = "~/.app_history"
max_entries = 500

[console]
level = "debug"
color_mode = "never"
formatter = "logfmt"
report_timestamp = true
time_format = "15:04:05"
ignore_errors = true
`)

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	config := applyOptions(opts)

	assert.Equal(t, "app> ", config.Prompt)
	assert.True(t, config.ForceTerminal)
	assert.Equal(t, "password: ", config.MaskMessage)
	assert.Equal(t, []string{"help", "exit"}, config.Completions)
	assert.Same(t, ThemeDracula, config.ColorScheme)

	require.NotNil(t, config.HistoryConfig)
	assert.True(t, config.HistoryConfig.Enabled)
	assert.Equal(t, "~/.app_history", config.HistoryConfig.File)
	assert.Equal(t, 500, config.HistoryConfig.MaxEntries)

	assert.Equal(t, ConsoleOptions{
		Level:           log.DebugLevel,
		ColorMode:       "never",
		Formatter:       "logfmt",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		IgnoreErrors:    true,
	}, config.Console)
}

func TestLoadOptionsPartial(t *testing.T) {
	t.Parallel()

	opts, err := LoadOptions(writeConfigFile(t, "completions = []\n\n[history]\nmax_entries = 10\n"))
	require.NoError(t, err)
	config := applyOptions(opts)

	assert.Empty(t, config.Prompt, "missing keys produce no option")
	assert.Nil(t, config.ColorScheme)
	assert.Empty(t, config.Completions)
	require.NotNil(t, config.HistoryConfig)
	assert.Empty(t, config.HistoryConfig.File, "no file means memory history")
	assert.Equal(t, 10, config.HistoryConfig.MaxEntries)
}

func TestLoadOptionsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "unknown key", content: "promt = \"> \"\n", wantMsg: "unknown keys"},
		{name: "unknown nested key", content: "[console]\nlevl = \"info\"\n", wantMsg: "console.levl"},
		{name: "invalid toml", content: "prompt = \n", wantMsg: "decode config file"},
		{name: "unknown theme", content: "theme = \"neon\"\n", wantMsg: "parse theme"},
		{name: "bad level", content: "[console]\nlevel = \"loud\"\n", wantMsg: "console.level"},
		{name: "bad color mode", content: "[console]\ncolor_mode = \"sometimes\"\n", wantMsg: "console.color_mode"},
		{name: "bad formatter", content: "[console]\nformatter = \"xml\"\n", wantMsg: "console.formatter"},
		{name: "wrong type", content: "force_terminal = \"yes\"\n", wantMsg: "decode config file"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfigFile(t, tt.content)
			opts, err := LoadOptions(path)
			require.Error(t, err)
			assert.Nil(t, opts)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadOptionsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOptionsOverride(t *testing.T) {
	t.Parallel()

	opts, err := LoadOptions(writeConfigFile(t, "prompt = \"file> \"\nmask_message = \"pw: \"\n"))
	require.NoError(t, err)

	opts = append(opts, WithMaskMessage("secret: "))
	config := applyOptions(opts)
	assert.Equal(t, "file> ", config.Prompt)
	assert.Equal(t, "secret: ", config.MaskMessage, "later options win")
}
