package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"updatekit/internal/history"
	"updatekit/internal/update"
	"updatekit/internal/version"
)

// statusRows is the number of rows in the status pane.
const statusRows = 8

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	base := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderStatus(),
		"",
		m.renderHistory(),
		"",
		m.renderNotes(),
	)

	canvas := NewCanvas(m.width, m.height)
	canvas.DrawStringAt(0, 0, base)
	canvas.DrawStringAt(0, m.height-1, m.renderFooter())

	switch {
	case m.relaunch != nil:
		canvas.centerOverlay(renderRelaunchPrompt(m.state.Latest), 1, 1)
	case m.showHelp:
		canvas.centerOverlay(renderHelpOverlay(m.keys), 1, 1)
	}
	if t := m.renderToast(); t != "" {
		canvas.bottomRightOverlay(t, 1)
	}
	return canvas.Render()
}

func (m *App) renderHeader() string {
	title := "✦ UPDATEKIT"
	if feed := m.cfg.Service.FeedURL(); feed != "" {
		title += "  ·  " + feed
	} else {
		title += "  ·  no feed configured"
	}
	return styleAppHeader.Width(m.width).Render(truncateLine(title, m.width-2))
}

func (m *App) renderStatus() string {
	s := m.state
	rows := []string{
		statusRow("Installed", styleVal.Render(s.Installed.String())),
		statusRow("Latest", m.renderLatest()),
		statusRow("Update", renderAvailability(s)),
		statusRow("Last check", styleVal.Render(FormatRelativeTime(s.LastCheck))),
		statusRow("Interval", styleVal.Render(formatInterval(s.CheckInterval))),
		statusRow("Automatic", styleVal.Render(
			fmt.Sprintf("checks %s · downloads %s", onOff(s.AutoCheck), onOff(s.AutoDownload)))),
		statusRow("Activity", m.renderActivity()),
		statusRow("Observers", styleVal.Render(fmt.Sprintf("%d", s.Observers))),
	}
	width := max(m.width-2, 10)
	return stylePane.Width(width).Render(strings.Join(rows, "\n"))
}

func statusRow(label, value string) string {
	return styleField.Render(label) + value
}

func (m *App) renderLatest() string {
	if !m.state.HasLatest() {
		return styleDim.Render("unknown")
	}
	return styleVersion.Render(m.state.Latest.String())
}

func renderAvailability(s update.State) string {
	switch {
	case !s.HasLatest():
		return styleDim.Render("unknown")
	case s.UpdateAvailable:
		return styleAvailable.Render("available")
	default:
		return styleVal.Render("up to date")
	}
}

func (m *App) renderActivity() string {
	var label string
	switch m.state.Phase {
	case update.CheckInFlight:
		label = "checking for updates"
	case update.FeedFetchInFlight:
		label = "fetching update information"
	default:
		return styleDim.Render("idle")
	}
	return m.spinner.View() + " " + styleBusy.Render(label)
}

func (m *App) renderHistory() string {
	lines := []string{styleSectionHeader.Render("RECENT CHECKS")}
	switch {
	case m.historyErr != "":
		lines = append(lines, styleFailed.Render("history unavailable: "+m.historyErr))
	case m.cfg.History == nil:
		lines = append(lines, styleDim.Render("history is disabled"))
	case len(m.history) == 0:
		lines = append(lines, styleDim.Render("no checks recorded yet"))
	}
	for i, e := range m.history {
		if i == historyRows {
			break
		}
		lines = append(lines, renderHistoryEntry(e))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderHistoryEntry(e history.Entry) string {
	outcome := string(e.Outcome)
	style := styleVal
	switch e.Outcome {
	case history.OutcomeUpdateFound:
		style = styleAvailable
	case history.OutcomeFailed:
		style = styleFailed
	}
	detail := version.New(e.Display, e.Build).String()
	if e.Error != "" {
		detail = e.Error
	}
	return fmt.Sprintf("  %-8s %-10s %s  %s",
		FormatRelativeTime(e.StartedAt),
		e.Kind,
		style.Render(fmt.Sprintf("%-12s", outcome)),
		styleDim.Render(detail),
	)
}

func (m *App) renderNotes() string {
	header := styleSectionHeader.Render("RELEASE NOTES")
	switch {
	case m.notesErr != "":
		return header + "\n" + styleFailed.Render("could not load release notes: "+m.notesErr)
	case m.notesItem == nil:
		return header + "\n" + styleDim.Render("no release loaded")
	}
	return header + "\n" + m.notes.View()
}

func renderRelaunchPrompt(latest version.Identifier) string {
	title := styleHelpTitle.Render("Relaunch to finish updating?")
	body := "The update has been installed."
	if latest.Complete() {
		body = fmt.Sprintf("Version %s has been installed.", styleVersion.Render(latest.String()))
	}
	choices := keyPill("y", "Relaunch now") + "   " + keyPill("n", "Not now")
	return styleModal.Render(lipgloss.JoinVertical(lipgloss.Center, title, "", body, "", choices))
}

func (m *App) renderToast() string {
	if m.toast == nil {
		return ""
	}
	style := styleSuccessToast
	if m.toast.kind == toastError {
		style = styleErrorToast
	}
	countdown := fmt.Sprintf("[%ds]", m.toastRemaining())
	width := max(lipgloss.Width(m.toast.message), 30)
	padding := max(width-len(countdown), 0)
	return style.Render(m.toast.message + "\n" + strings.Repeat(" ", padding) + countdown)
}
