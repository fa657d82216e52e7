package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"updatekit/internal/appcast"
	"updatekit/internal/history"
)

// snapshotInterval is how often the screen re-reads coordinator state.
const snapshotInterval = 500 * time.Millisecond

// toastDuration is how long a toast stays on screen.
const toastDuration = 5 * time.Second

type snapshotTickMsg struct{}

func scheduleSnapshotTick(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = snapshotInterval
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return snapshotTickMsg{} })
}

type toastTickMsg struct{}

func scheduleToastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return toastTickMsg{}
	})
}

// availabilityMsg carries an observer notification into the program.
type availabilityMsg struct {
	available bool
	display   string
	build     string
}

// relaunchRequestMsg opens the relaunch prompt.
type relaunchRequestMsg struct {
	respond func(allow bool)
}

type historyLoadedMsg struct {
	entries []history.Entry
	err     error
}

type notesLoadedMsg struct {
	item appcast.Item
	err  error
}

func loadHistoryCmd(reader HistoryReader) tea.Cmd {
	if reader == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := reader.Recent(ctx, historyRows)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func loadNotesCmd(load NotesLoader) tea.Cmd {
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		item, err := load(ctx)
		return notesLoadedMsg{item: item, err: err}
	}
}
