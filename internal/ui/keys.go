package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts for the update screen.
// Each binding includes the actual keys and help text for display.
// Note: Up/Down share identical help text since they appear as a single row
// in the help overlay.
type KeyMap struct {
	// Release notes scrolling
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Update actions
	Check        key.Binding
	Background   key.Binding
	Feed         key.Binding
	Reset        key.Binding
	ResetDelayed key.Binding
	AutoCheck    key.Binding
	AutoDownload key.Binding
	Copy         key.Binding

	// Relaunch prompt
	Allow key.Binding
	Deny  key.Binding

	Help   key.Binding
	Escape key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/↓  j/k", "Scroll notes"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↑/↓  j/k", "Scroll notes"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+b"),
			key.WithHelp("PgUp  Ctrl+B", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+f"),
			key.WithHelp("PgDn  Ctrl+F", "Page down"),
		),

		Check: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Check for updates"),
		),
		Background: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Check in background"),
		),
		Feed: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Refresh update info"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reset update cycle"),
		),
		ResetDelayed: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Reset after short delay"),
		),
		AutoCheck: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Toggle automatic checks"),
		),
		AutoDownload: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Toggle automatic downloads"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Copy latest version"),
		),

		Allow: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "Relaunch now"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "Not now"),
		),

		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "Close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
	}
}
