package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const defaultSpinnerInterval = 120 * time.Millisecond

// progressSpinner draws a one-line spinner on a terminal while a one-shot
// command waits on the network. Nothing is drawn if the work finishes within
// delay.
type progressSpinner struct {
	writer        io.Writer
	delay         time.Duration
	frameInterval time.Duration
	frames        []rune

	stages chan string
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu       sync.Mutex
	frameIdx int
}

func newProgressSpinner(w io.Writer, delay time.Duration) *progressSpinner {
	return newCustomProgressSpinner(w, delay, defaultSpinnerInterval)
}

func newCustomProgressSpinner(w io.Writer, delay, frameInterval time.Duration) *progressSpinner {
	if w == nil {
		w = io.Discard
	}
	sp := &progressSpinner{
		writer:        w,
		delay:         delay,
		frameInterval: frameInterval,
		frames:        []rune{'|', '/', '-', '\\'},
		stages:        make(chan string, 8),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go sp.loop()
	return sp
}

// Stage replaces the message next to the spinner. Stages sent after Stop are
// dropped.
func (s *progressSpinner) Stage(message string) {
	if s == nil {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.stages <- strings.TrimSpace(message):
	default:
	}
}

// Stop clears the spinner line and waits for the drawing goroutine to exit.
func (s *progressSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *progressSpinner) loop() {
	defer close(s.doneCh)

	var delayCh <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		delayCh = timer.C
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	current := ""
	visible := s.delay == 0

	for {
		select {
		case <-s.stopCh:
			if visible && current != "" {
				s.clearLine()
			}
			return
		case msg := <-s.stages:
			current = msg
			if visible {
				s.render(current)
			}
		case <-ticker.C:
			if visible && current != "" {
				s.render(current)
			}
		case <-delayCh:
			delayCh = nil
			visible = true
			if current != "" {
				s.render(current)
			}
		}
	}
}

func (s *progressSpinner) render(message string) {
	_, _ = fmt.Fprintf(s.writer, "\r\033[2K%c %s", s.nextFrame(), message)
}

func (s *progressSpinner) clearLine() {
	_, _ = fmt.Fprint(s.writer, "\r\033[2K")
}

func (s *progressSpinner) nextFrame() rune {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frames[s.frameIdx%len(s.frames)]
	s.frameIdx++
	return frame
}
