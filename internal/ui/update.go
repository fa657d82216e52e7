package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"updatekit/internal/appcast"
	"updatekit/internal/version"
)

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.notes.Width, m.notes.Height = m.notesSize()
		m.setNotesContent()
		return m, nil

	case snapshotTickMsg:
		prev := m.state
		m.state = m.cfg.Service.Snapshot()
		cmds := []tea.Cmd{scheduleSnapshotTick(m.cfg.RefreshInterval)}
		if !m.state.LastCheck.Equal(prev.LastCheck) || (prev.Phase != m.state.Phase) {
			cmds = append(cmds, loadHistoryCmd(m.cfg.History))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastTickMsg:
		if m.toast == nil {
			return m, nil
		}
		if m.toastRemaining() <= 0 {
			m.toast = nil
			return m, nil
		}
		return m, scheduleToastTick()

	case availabilityMsg:
		m.state = m.cfg.Service.Snapshot()
		latest := version.New(msg.display, msg.build)
		m.log.Debug().
			Bool("available", msg.available).
			Str("latest", latest.Full()).
			Msg("availability changed")
		var toastCmd tea.Cmd
		if msg.available {
			toastCmd = m.showToast(toastSuccess, fmt.Sprintf("Update available: %s", latest))
		}
		return m, tea.Batch(toastCmd, loadNotesCmd(m.cfg.Notes), loadHistoryCmd(m.cfg.History))

	case relaunchRequestMsg:
		if m.relaunch != nil {
			// A newer request supersedes the open prompt.
			m.relaunch(false)
		}
		m.relaunch = msg.respond
		m.showHelp = false
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.historyErr = msg.err.Error()
			m.log.Warn().Err(msg.err).Msg("failed to load history")
			return m, nil
		}
		m.historyErr = ""
		m.history = msg.entries
		return m, nil

	case notesLoadedMsg:
		if msg.err != nil {
			m.notesErr = msg.err.Error()
			m.log.Warn().Err(msg.err).Msg("failed to load release notes")
			return m, nil
		}
		m.notesErr = ""
		item := msg.item
		m.notesItem = &item
		m.setNotesContent()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.relaunch != nil {
		return m.handleRelaunchKey(msg)
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape) {
			m.showHelp = false
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	svc := m.cfg.Service
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Check):
		return m, m.requireFeed("Checking for updates…", svc.CheckForUpdates)
	case key.Matches(msg, m.keys.Background):
		return m, m.requireFeed("Checking in the background…", svc.CheckForUpdatesInBackground)
	case key.Matches(msg, m.keys.Feed):
		return m, m.requireFeed("Refreshing update information…", svc.CheckForFeedForUpdate)
	case key.Matches(msg, m.keys.Reset):
		svc.ResetUpdateCycle()
		return m, m.showToast(toastSuccess, "Update cycle reset.")
	case key.Matches(msg, m.keys.ResetDelayed):
		svc.ResetUpdateCycleAfterShortDelay()
		return m, m.showToast(toastSuccess, "Update cycle resets shortly.")
	case key.Matches(msg, m.keys.AutoCheck):
		m.state.AutoCheck = !m.state.AutoCheck
		svc.SetAutomaticallyChecksForUpdates(m.state.AutoCheck)
		return m, m.showToast(toastSuccess, "Automatic checks "+onOff(m.state.AutoCheck)+".")
	case key.Matches(msg, m.keys.AutoDownload):
		m.state.AutoDownload = !m.state.AutoDownload
		svc.SetAutomaticallyDownloadsUpdates(m.state.AutoDownload)
		return m, m.showToast(toastSuccess, "Automatic downloads "+onOff(m.state.AutoDownload)+".")
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLatest()
	}

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Up, m.keys.Down):
		m.notes, cmd = m.notes.Update(msg)
	case key.Matches(msg, m.keys.PageUp):
		_ = m.notes.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		_ = m.notes.PageDown()
	}
	return m, cmd
}

func (m *App) handleRelaunchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	respond := m.relaunch
	switch {
	case key.Matches(msg, m.keys.Allow):
		m.relaunch = nil
		respond(true)
		return m, m.showToast(toastSuccess, "Relaunching…")
	case key.Matches(msg, m.keys.Deny):
		m.relaunch = nil
		respond(false)
		return m, m.showToast(toastSuccess, "Relaunch postponed.")
	case key.Matches(msg, m.keys.Quit):
		m.relaunch = nil
		respond(false)
		return m, tea.Quit
	}
	return m, nil
}

// requireFeed runs action unless no feed URL is configured. The coordinator
// would only log the failure, so the screen says so instead.
func (m *App) requireFeed(message string, action func()) tea.Cmd {
	if m.cfg.Service.FeedURL() == "" {
		return m.showToast(toastError, "No feed URL configured.")
	}
	action()
	return m.showToast(toastSuccess, message)
}

func (m *App) copyLatest() tea.Cmd {
	if !m.state.HasLatest() {
		return m.showToast(toastError, "No latest version known yet.")
	}
	latest := m.state.Latest.String()
	if err := writeClipboard(latest); err != nil {
		m.log.Warn().Err(err).Msg("clipboard write failed")
		return m.showToast(toastError, "Clipboard unavailable.")
	}
	return m.showToast(toastSuccess, fmt.Sprintf("Copied '%s' to clipboard.", latest))
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// releaseNotesMarkdown assembles the notes panel from a feed item.
func releaseNotesMarkdown(item appcast.Item) string {
	title := item.Title
	if title == "" {
		title = "Version " + item.Identifier().String()
	}
	out := "# " + title + "\n\n"
	if item.Critical {
		out += "**Critical update.**\n\n"
	}
	if item.Description != "" {
		out += item.Description + "\n\n"
	}
	if item.ReleaseNotesLink != "" {
		out += "Release notes: " + item.ReleaseNotesLink + "\n"
	}
	if item.Description == "" && item.ReleaseNotesLink == "" {
		out += "_No release notes in the feed._\n"
	}
	return out
}
