package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

var (
	cPurple     = lipgloss.Color("99")
	cCyan       = lipgloss.Color("39")
	cNeonGreen  = lipgloss.Color("118")
	cRed        = lipgloss.Color("203")
	cGold       = lipgloss.Color("220")
	cGray       = lipgloss.Color("240")
	cBrightGray = lipgloss.Color("246")
	cLightGray  = lipgloss.Color("250")
	cWhite      = lipgloss.Color("255")
	cField      = lipgloss.Color("63")

	styleAppHeader = lipgloss.NewStyle().
			Foreground(cWhite).
			Background(cPurple).
			Bold(true).
			Padding(0, 1)

	stylePane = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(cGray)

	styleField = lipgloss.NewStyle().
			Foreground(cField).
			Bold(true).
			Width(14)

	styleVal = lipgloss.NewStyle().Foreground(cWhite)
	styleDim = lipgloss.NewStyle().Foreground(cBrightGray)

	styleAvailable = lipgloss.NewStyle().Foreground(cNeonGreen).Bold(true)
	styleBusy      = lipgloss.NewStyle().Foreground(cCyan).Bold(true)
	styleFailed    = lipgloss.NewStyle().Foreground(cRed)
	styleVersion   = lipgloss.NewStyle().Foreground(cGold).Bold(true)

	styleSectionHeader = lipgloss.NewStyle().
				Foreground(cGold).
				Bold(true)

	styleErrorToast = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cRed).
			Foreground(cWhite).
			Padding(0, 1)

	styleSuccessToast = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00FF00")). // Green
				Foreground(cWhite).
				Padding(0, 1)

	// Help overlay styles
	styleHelpOverlay = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(cPurple).
				Padding(1, 2)

	styleHelpTitle = lipgloss.NewStyle().
			Foreground(cGold).
			Bold(true)

	styleHelpDivider = lipgloss.NewStyle().
				Foreground(cPurple)

	styleHelpSectionHeader = lipgloss.NewStyle().
				Foreground(cField).
				Bold(true)

	styleHelpUnderline = lipgloss.NewStyle().
				Foreground(cField)

	styleHelpKey = lipgloss.NewStyle().
			Foreground(cCyan).
			Bold(true)

	styleHelpDesc = lipgloss.NewStyle().
			Foreground(cLightGray)

	styleHelpFooter = lipgloss.NewStyle().
			Foreground(cBrightGray).
			Italic(true)

	// Relaunch prompt
	styleModal = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cGold).
			Padding(1, 2)

	// Footer bar styles
	styleKeyPill = lipgloss.NewStyle().
			Background(cPurple).
			Foreground(cWhite).
			Bold(true)

	styleKeyDesc = lipgloss.NewStyle().
			Foreground(cBrightGray)

	styleFooterMuted = lipgloss.NewStyle().
				Foreground(cBrightGray)
)

// hasDarkBackground is swapped out in tests so rendering never queries the
// terminal.
var hasDarkBackground = termenv.HasDarkBackground

func buildMarkdownRenderer(format string, width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}

	style := strings.ToLower(strings.TrimSpace(format))
	switch style {
	case "plain":
		return fallback
	case "", "rich":
		style = "light"
		if hasDarkBackground() {
			style = "dark"
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
