package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Bar        lipgloss.Color
	IsDark     bool
}

var (
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
)

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#101F38"),
		Primary:    lipgloss.Color("#3949AB"),
		Accent:     lipgloss.Color("#00897B"),
		Muted:      lipgloss.Color("#8a94a6"),
		Border:     lipgloss.Color("#dce0e5"),
		Bar:        lipgloss.Color("#F06292"),
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#f2f2f2"),
		Primary:    lipgloss.Color("#9FA8DA"),
		Accent:     lipgloss.Color("#80CBC4"),
		Muted:      lipgloss.Color("#5c6b85"),
		Border:     lipgloss.Color("#2a3850"),
		Bar:        lipgloss.Color("#F48FB1"),
		IsDark:     true,
	}
}

// DetectTheme picks the dark theme when MOODCHAT_DARK_MODE=1 or COLORFGBG
// reports a dark background.
func DetectTheme() Theme {
	if os.Getenv("MOODCHAT_DARK_MODE") == "1" {
		return DarkTheme()
	}
	// COLORFGBG is "foreground;background"; 0-6 and 8 are dark backgrounds.
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header lipgloss.Style
	Footer lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
	Notice lipgloss.Style

	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	UserText  lipgloss.Style
	BotText   lipgloss.Style
	Pending   lipgloss.Style
	Selected  lipgloss.Style

	Indicator lipgloss.Style
	BarFull   lipgloss.Style
	BarEmpty  lipgloss.Style
	Readout   lipgloss.Style

	Panel      lipgloss.Style
	FieldLabel lipgloss.Style
	FieldFocus lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Error: lipgloss.NewStyle().
			Foreground(destructive).
			Bold(true),
		Notice: lipgloss.NewStyle().
			Foreground(warning),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		BotLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
		UserText: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2),
		BotText: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2),
		Pending: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true).
			PaddingLeft(2),
		Selected: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.Accent),

		Indicator: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		BarFull: lipgloss.NewStyle().
			Foreground(theme.Bar),
		BarEmpty: lipgloss.NewStyle().
			Foreground(theme.Border),
		Readout: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),
		FieldLabel: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Width(14),
		FieldFocus: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Width(14),
	}
}
