package main

import (
	"strings"
	"testing"
	"time"
)

func TestProgressSpinnerRendersStages(t *testing.T) {
	var buf syncBuffer
	sp := newCustomProgressSpinner(&buf, 0, 5*time.Millisecond)

	sp.Stage("Fetching feed")
	eventually(t, "first stage", func() bool {
		return strings.Contains(buf.String(), "Fetching feed")
	})
	sp.Stage("  Reading appcast  ")
	eventually(t, "second stage", func() bool {
		return strings.Contains(buf.String(), "Reading appcast")
	})
	sp.Stop()

	out := buf.String()
	if !strings.HasSuffix(out, "\r\033[2K") {
		t.Errorf("expected the line to be cleared on stop, got %q", out)
	}
}

func TestProgressSpinnerStaysQuietWithinDelay(t *testing.T) {
	var buf syncBuffer
	sp := newCustomProgressSpinner(&buf, time.Hour, time.Millisecond)
	sp.Stage("Fetching feed")
	time.Sleep(20 * time.Millisecond)
	sp.Stop()

	if got := buf.String(); got != "" {
		t.Errorf("expected nothing drawn before the delay, got %q", got)
	}
}

func TestProgressSpinnerNilAndRepeatedStop(t *testing.T) {
	var nilSpinner *progressSpinner
	nilSpinner.Stage("ignored")
	nilSpinner.Stop()

	sp := newProgressSpinner(nil, 0)
	sp.Stop()
	sp.Stop()
	sp.Stage("after stop")
}
