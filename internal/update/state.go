package update

import (
	"time"

	"updatekit/internal/version"
)

// Phase is the coordinator's activity.
type Phase int

const (
	Idle Phase = iota
	CheckInFlight
	FeedFetchInFlight
)

// String returns the phase name used in logs and status output.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case CheckInFlight:
		return "check_in_flight"
	case FeedFetchInFlight:
		return "feed_fetch_in_flight"
	default:
		return "unknown"
	}
}

// MarshalText lets Phase render as its name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is an immutable snapshot of the coordinator's update state.
type State struct {
	Installed version.Identifier `json:"installed" yaml:"installed"`
	// Latest is zero until a feed has yielded both a display version and
	// a build.
	Latest          version.Identifier `json:"latest" yaml:"latest"`
	UpdateAvailable bool               `json:"update_available" yaml:"update_available"`
	// LastCheck is zero when no check has ever run.
	LastCheck     time.Time     `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	AutoCheck     bool          `json:"auto_check" yaml:"auto_check"`
	AutoDownload  bool          `json:"auto_download" yaml:"auto_download"`

	Phase           Phase `json:"phase" yaml:"phase"`
	ChecksInFlight  int   `json:"checks_in_flight" yaml:"checks_in_flight"`
	FetchesInFlight int   `json:"fetches_in_flight" yaml:"fetches_in_flight"`
	Observers       int   `json:"observers" yaml:"observers"`
}

// HasLatest reports whether a latest version is known.
func (s State) HasLatest() bool {
	return s.Latest.Complete()
}

// phaseFor derives the phase from in-flight counters. Overlapping work is
// allowed; a feed fetch reports ahead of a check.
func phaseFor(checks, fetches int) Phase {
	switch {
	case fetches > 0:
		return FeedFetchInFlight
	case checks > 0:
		return CheckInFlight
	default:
		return Idle
	}
}
