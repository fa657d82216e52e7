// Package ui is the interactive update screen started by `updatekit` with no
// subcommand.
package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"updatekit/internal/appcast"
	"updatekit/internal/history"
	"updatekit/internal/update"
)

// historyRows is how many history entries the screen shows.
const historyRows = 5

var writeClipboard = clipboard.WriteAll

// Service is the coordinator surface the screen drives.
// *update.Coordinator satisfies it.
type Service interface {
	Snapshot() update.State
	FeedURL() string
	CheckForUpdates()
	CheckForUpdatesInBackground()
	CheckForFeedForUpdate()
	ResetUpdateCycle()
	ResetUpdateCycleAfterShortDelay()
	SetAutomaticallyChecksForUpdates(enabled bool)
	SetAutomaticallyDownloadsUpdates(enabled bool)
}

// HistoryReader lists recent checks. *history.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// NotesLoader fetches the newest feed item so its release notes can be shown.
type NotesLoader func(ctx context.Context) (appcast.Item, error)

// Config wires the screen. History and Notes are optional.
type Config struct {
	Service         Service
	History         HistoryReader
	Notes           NotesLoader
	OutputFormat    string
	RefreshInterval time.Duration
	Log             zerolog.Logger
}

type toastKind int

const (
	toastSuccess toastKind = iota
	toastError
)

type toast struct {
	kind    toastKind
	message string
	started time.Time
}

// App is the Bubble Tea model for the update screen.
type App struct {
	cfg     Config
	keys    KeyMap
	log     zerolog.Logger
	spinner spinner.Model
	notes   viewport.Model

	width  int
	height int

	state      update.State
	history    []history.Entry
	historyErr string
	notesItem  *appcast.Item
	notesErr   string

	showHelp bool
	// relaunch is set while the relaunch prompt is open.
	relaunch func(allow bool)
	toast    *toast
}

// NewApp returns the model. The first snapshot is taken immediately so the
// screen never renders empty state.
func NewApp(cfg Config) *App {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styleBusy

	return &App{
		cfg:     cfg,
		keys:    DefaultKeyMap(),
		log:     cfg.Log,
		spinner: s,
		notes:   viewport.New(0, 0),
		state:   cfg.Service.Snapshot(),
	}
}

func (m *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		scheduleSnapshotTick(m.cfg.RefreshInterval),
		loadHistoryCmd(m.cfg.History),
	}
	if m.state.HasLatest() {
		cmds = append(cmds, loadNotesCmd(m.cfg.Notes))
	}
	return tea.Batch(cmds...)
}

// showToast replaces any visible toast.
func (m *App) showToast(kind toastKind, message string) tea.Cmd {
	wasVisible := m.toast != nil
	m.toast = &toast{kind: kind, message: message, started: timeNow()}
	if wasVisible {
		return nil
	}
	return scheduleToastTick()
}

func (m *App) toastRemaining() int {
	if m.toast == nil {
		return 0
	}
	left := toastDuration - timeNow().Sub(m.toast.started)
	return max(int(left.Seconds()), 0)
}

// notesSize returns the release notes viewport dimensions for the current
// window.
func (m *App) notesSize() (int, int) {
	width := max(m.width-4, 10)
	height := max(m.height-statusRows-historyRows-9, 3)
	return width, height
}

func (m *App) setNotesContent() {
	if m.notesItem == nil {
		m.notes.SetContent("")
		return
	}
	width, _ := m.notesSize()
	render := buildMarkdownRenderer(m.cfg.OutputFormat, width)
	m.notes.SetContent(render(releaseNotesMarkdown(*m.notesItem)))
	m.notes.GotoTop()
}
