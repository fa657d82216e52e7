package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"updatekit/internal/observer"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards coordinator callbacks into the Bubble Tea program. Send
// blocks until the program reads the message, or returns at once after the
// program has exited.
type Observer struct {
	send Sender
}

var _ observer.Observer = (*Observer)(nil)

func NewObserver(send Sender) *Observer {
	return &Observer{send: send}
}

func (o *Observer) UpdateAvailabilityChanged(available bool, latestVersion, latestBuild string) {
	o.send.Send(availabilityMsg{available: available, display: latestVersion, build: latestBuild})
}

func (o *Observer) RelaunchRequested(respond func(allow bool)) {
	o.send.Send(relaunchRequestMsg{respond: respond})
}
