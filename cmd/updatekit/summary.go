package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"updatekit/internal/update"
)

var (
	primaryColor = lipgloss.Color("99")
	dimColor     = lipgloss.Color("246")
	textColor    = lipgloss.Color("255")
	goodColor    = lipgloss.Color("#50FA7B")
)

// ExitSummary holds data for the summary shown when the screen exits.
type ExitSummary struct {
	Version   string
	StartTime time.Time
	Final     update.State
}

// printExitSummary prints a short session recap after the alt screen is gone.
func printExitSummary(w io.Writer, summary ExitSummary) {
	appStyle := lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	dimStyle := lipgloss.NewStyle().Foreground(dimColor)
	textStyle := lipgloss.NewStyle().Foreground(textColor)
	availableStyle := lipgloss.NewStyle().Foreground(goodColor).Bold(true)

	versionStr := ""
	if summary.Version != "" {
		versionStr = dimStyle.Render(fmt.Sprintf(" v%s", summary.Version))
	}
	sessionStr := dimStyle.Render(fmt.Sprintf(" • %s session", formatDuration(time.Since(summary.StartTime))))

	s := summary.Final
	status := textStyle.Render(fmt.Sprintf("Installed %s", s.Installed))
	switch {
	case !s.HasLatest():
		status += dimStyle.Render(" • latest unknown")
	case s.UpdateAvailable:
		status += " • " + availableStyle.Render(fmt.Sprintf("update available: %s", s.Latest))
	default:
		status += dimStyle.Render(" • up to date")
	}

	_, _ = fmt.Fprintln(w, appStyle.Render("updatekit")+versionStr+sessionStr)
	_, _ = fmt.Fprintln(w, status)
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
