package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// helpSection represents a group of keybindings for display.
type helpSection struct {
	title string
	rows  [][]string // Each row: [keys, description]
}

// getHelpSections returns the help content organized into sections.
// Text is derived from binding.Help() to maintain single source of truth.
func getHelpSections(keys KeyMap) []helpSection {
	return []helpSection{
		{
			title: "UPDATES",
			rows: [][]string{
				{keys.Check.Help().Key, keys.Check.Help().Desc},
				{keys.Background.Help().Key, keys.Background.Help().Desc},
				{keys.Feed.Help().Key, keys.Feed.Help().Desc},
				{keys.Reset.Help().Key, keys.Reset.Help().Desc},
				{keys.ResetDelayed.Help().Key, keys.ResetDelayed.Help().Desc},
			},
		},
		{
			title: "PREFERENCES",
			rows: [][]string{
				{keys.AutoCheck.Help().Key, keys.AutoCheck.Help().Desc},
				{keys.AutoDownload.Help().Key, keys.AutoDownload.Help().Desc},
				{keys.Copy.Help().Key, keys.Copy.Help().Desc},
			},
		},
		{
			title: "RELEASE NOTES",
			rows: [][]string{
				{keys.Up.Help().Key, keys.Up.Help().Desc},
				{keys.PageUp.Help().Key, keys.PageUp.Help().Desc},
				{keys.PageDown.Help().Key, keys.PageDown.Help().Desc},
				{keys.Quit.Help().Key, keys.Quit.Help().Desc},
			},
		},
	}
}

// renderHelpOverlay builds the help modal. The caller positions it.
func renderHelpOverlay(keys KeyMap) string {
	sections := getHelpSections(keys)

	leftCol := lipgloss.JoinVertical(lipgloss.Left,
		renderHelpSectionTable(sections[0]),
		"",
		renderHelpSectionTable(sections[1]),
	)
	rightCol := renderHelpSectionTable(sections[2])

	columns := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, "    ", rightCol)

	title := styleHelpTitle.Render("✦ UPDATEKIT HELP ✦")
	dividerWidth := lipgloss.Width(columns)
	if dividerWidth < 40 {
		dividerWidth = 40
	}
	divider := styleHelpDivider.Render(strings.Repeat("─", dividerWidth))
	footer := styleHelpFooter.Render("Press ? or Esc to close")

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		divider,
		"",
		columns,
		"",
		footer,
	)
	return styleHelpOverlay.Render(content)
}

// renderHelpSectionTable renders a single help section using lipgloss/table.
func renderHelpSectionTable(section helpSection) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return styleHelpKey.Width(14)
			}
			return styleHelpDesc
		}).
		Rows(section.rows...)

	header := styleHelpSectionHeader.Render(section.title)
	underline := styleHelpUnderline.Render(strings.Repeat("─", len(section.title)))

	// Hidden borders add an empty top row.
	tableStr := strings.TrimPrefix(t.String(), "\n")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		underline,
		tableStr,
	)
}
