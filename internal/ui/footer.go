package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// footerHint defines a key hint for the footer bar.
// These are intentionally shorter than the KeyMap help text.
type footerHint struct {
	key  string
	desc string
}

var footerHints = []footerHint{
	{"u", "Check"},
	{"f", "Refresh"},
	{"a", "Auto"},
	{"↑↓", "Notes"},
	{"?", "Help"},
	{"q", "Quit"},
}

// renderFooter renders the footer bar with pill-style key hints and the
// installed version on the right.
func (m *App) renderFooter() string {
	right := styleFooterMuted.Render("Installed: " + m.state.Installed.String())
	rightWidth := lipgloss.Width(right)

	hints := trimHintsToFit(footerHints, m.width-rightWidth-4)
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyPill(h.key, h.desc))
	}
	left := strings.Join(parts, "  ")

	spacing := max(m.width-lipgloss.Width(left)-rightWidth, 2)
	return left + strings.Repeat(" ", spacing) + right
}

// keyPill renders a single key hint as a pill with description.
func keyPill(key, desc string) string {
	return styleKeyPill.Render(" "+key+" ") + " " + styleKeyDesc.Render(desc)
}

// trimHintsToFit drops hints from the middle until the rest fit, keeping the
// first hint and the trailing help and quit hints.
func trimHintsToFit(hints []footerHint, availableWidth int) []footerHint {
	hints = append([]footerHint(nil), hints...)
	for len(hints) > 0 && renderHintsWidth(hints) > availableWidth {
		if len(hints) > 3 {
			hints = append(hints[:len(hints)-3], hints[len(hints)-2:]...)
			continue
		}
		hints = hints[:len(hints)-1]
	}
	return hints
}

// renderHintsWidth calculates the visual width of rendered hints.
func renderHintsWidth(hints []footerHint) int {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, keyPill(h.key, h.desc))
	}
	return lipgloss.Width(strings.Join(parts, "  "))
}
