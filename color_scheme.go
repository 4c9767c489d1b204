package serverline

import (
	"fmt"
	"strings"
)

// ColorScheme colours the prompt, the typed text and completion listings.
// A nil scheme renders the line without escape codes and listings in bright cyan.
type ColorScheme struct {
	Name       string
	Prompt     Color
	Input      Color
	Suggestion Color // Completion listing
	Header     Color // "Suggest:" line above the listing
}

// Color represents an RGB color with optional bold formatting.
type Color struct {
	R    uint8
	G    uint8
	B    uint8
	Bold bool
}

// ThemeDark uses a light blue prompt and off-white text.
var ThemeDark = &ColorScheme{
	Name:       "dark",
	Prompt:     Color{R: 102, G: 217, B: 239, Bold: true},
	Input:      Color{R: 248, G: 248, B: 242},
	Suggestion: Color{R: 189, G: 147, B: 249},
	Header:     Color{R: 98, G: 114, B: 164, Bold: true},
}

// ThemeLight uses a blue prompt and dark gray text.
var ThemeLight = &ColorScheme{
	Name:       "light",
	Prompt:     Color{R: 0, G: 119, B: 187, Bold: true},
	Input:      Color{R: 36, G: 41, B: 46},
	Suggestion: Color{R: 88, G: 96, B: 105},
	Header:     Color{R: 40, G: 167, B: 69, Bold: true},
}

// ThemeSolarizedDark is the Solarized Dark palette.
var ThemeSolarizedDark = &ColorScheme{
	Name:       "solarized-dark",
	Prompt:     Color{R: 133, G: 153, B: 0, Bold: true},
	Input:      Color{R: 147, G: 161, B: 161},
	Suggestion: Color{R: 42, G: 161, B: 152},
	Header:     Color{R: 38, G: 139, B: 210, Bold: true},
}

// ThemeDracula is the Dracula palette.
var ThemeDracula = &ColorScheme{
	Name:       "dracula",
	Prompt:     Color{R: 255, G: 121, B: 198, Bold: true},
	Input:      Color{R: 248, G: 248, B: 242},
	Suggestion: Color{R: 139, G: 233, B: 253},
	Header:     Color{R: 80, G: 250, B: 123, Bold: true},
}

var themes = []*ColorScheme{ThemeDark, ThemeLight, ThemeSolarizedDark, ThemeDracula}

// ThemeByName looks a built-in theme up by name, case-insensitively.
// "plain" and "" return nil, the uncoloured rendering.
func ThemeByName(name string) (*ColorScheme, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "plain" {
		return nil, nil
	}
	for _, theme := range themes {
		if theme.Name == name {
			return theme, nil
		}
	}
	return nil, fmt.Errorf("unknown theme %q", name)
}

// ToANSI converts a Color to a true colour ANSI escape sequence.
func (c Color) ToANSI() string {
	var codes []string
	if c.Bold {
		codes = append(codes, "1")
	}
	codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", c.R, c.G, c.B))
	return fmt.Sprintf("\x1b[%sm", strings.Join(codes, ";"))
}

// Reset returns the ANSI reset sequence.
func Reset() string {
	return "\x1b[0m"
}

// suggestionColors returns the escape codes for the listing header and body.
func suggestionColors(cs *ColorScheme) (header, body string) {
	if cs == nil {
		return "\x1b[96m", "\x1b[96m"
	}
	return cs.Header.ToANSI(), cs.Suggestion.ToANSI()
}
