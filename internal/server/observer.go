package server

import (
	"github.com/rs/zerolog"

	"updatekit/internal/observer"
)

// LogObserver stands in for an interactive observer while serving: it logs
// availability changes and denies every relaunch request, since nobody is
// there to answer.
type LogObserver struct {
	log zerolog.Logger
}

var _ observer.Observer = (*LogObserver)(nil)

func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) UpdateAvailabilityChanged(available bool, latestVersion, latestBuild string) {
	o.log.Info().
		Bool("available", available).
		Str("version", latestVersion).
		Str("build", latestBuild).
		Msg("update availability changed")
}

func (o *LogObserver) RelaunchRequested(respond func(allow bool)) {
	o.log.Warn().Msg("relaunch requested while serving; denying")
	respond(false)
}
