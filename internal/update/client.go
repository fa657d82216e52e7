package update

import (
	"context"
	"fmt"
	"math"
	"time"

	"updatekit/internal/appcast"
)

// ErrFeedURLMissing means no feed URL is configured, which disables the
// scheduler and every fetch.
var ErrFeedURLMissing = fmt.Errorf("update feed URL is not configured")

// IntervalFromSeconds converts a stored check interval to a Duration. Values
// beyond the Duration range saturate instead of wrapping; NaN becomes zero.
func IntervalFromSeconds(seconds float64) time.Duration {
	nanos := seconds * float64(time.Second)
	switch {
	case math.IsNaN(nanos):
		return 0
	case nanos >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	case nanos <= math.MinInt64:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(nanos)
}

// CheckKind says who asked for a check.
type CheckKind int

const (
	// CheckUser is a check the user asked for explicitly.
	CheckUser CheckKind = iota
	// CheckBackground is an explicit check that runs without user-facing UI.
	CheckBackground
	// CheckScheduled is started by the client's scheduler.
	CheckScheduled
	// CheckFeed is the coordinator's information-only feed refresh.
	CheckFeed
)

// String returns the label used in logs, metrics and history.
func (k CheckKind) String() string {
	switch k {
	case CheckUser:
		return "user"
	case CheckBackground:
		return "background"
	case CheckScheduled:
		return "scheduled"
	case CheckFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// CycleResult describes a finished update cycle.
type CycleResult struct {
	Kind        CheckKind
	StartedAt   time.Time
	FinishedAt  time.Time
	UpdateFound bool
	// Item is the newest complete feed item, when the feed had one.
	Item *appcast.Item
	Err  error
}

// Client is the platform update client the coordinator drives. Check methods
// block until their update cycle finishes; everything else returns promptly.
// Implementations must be safe for concurrent use.
type Client interface {
	// Start begins scheduled checking and reports lifecycle events to d.
	// It fails with a configuration_missing error when no feed URL is set.
	Start(ctx context.Context, d Delegate) error
	FeedURL() string

	CheckForUpdates(ctx context.Context) error
	CheckForUpdatesInBackground(ctx context.Context) error
	ResetUpdateCycle()
	ResetUpdateCycleAfterShortDelay()

	AutomaticallyChecksForUpdates() bool
	SetAutomaticallyChecksForUpdates(enabled bool)
	AutomaticallyDownloadsUpdates() bool
	SetAutomaticallyDownloadsUpdates(enabled bool)
	UpdateCheckInterval() time.Duration
	SetUpdateCheckInterval(interval time.Duration)
	LastUpdateCheck() (time.Time, bool)
}

// Delegate receives lifecycle callbacks from a Client. Callbacks arrive on
// the client's goroutines.
type Delegate interface {
	WillScheduleUpdateCheck(after time.Duration)
	WillCheckForUpdates(kind CheckKind)
	DidFinishLoadingAppcast(feed *appcast.Feed)
	DidFindValidUpdate(item appcast.Item)
	DidNotFindUpdate(kind CheckKind)
	DidDownloadUpdate(item appcast.Item)
	FailedToDownloadUpdate(item appcast.Item, err error)
	WillInstallUpdate(item appcast.Item)
	// RelaunchRequested asks whether the application may restart into the
	// installed update. respond may be called more than once.
	RelaunchRequested(item appcast.Item, respond func(allow bool))
	WillRelaunchApplication()
	DidAbort(err error)
	DidFinishUpdateCycle(result CycleResult)
}

// NopDelegate ignores every callback. Embed it to implement a subset.
type NopDelegate struct{}

func (NopDelegate) WillScheduleUpdateCheck(time.Duration)                {}
func (NopDelegate) WillCheckForUpdates(CheckKind)                        {}
func (NopDelegate) DidFinishLoadingAppcast(*appcast.Feed)                {}
func (NopDelegate) DidFindValidUpdate(appcast.Item)                      {}
func (NopDelegate) DidNotFindUpdate(CheckKind)                           {}
func (NopDelegate) DidDownloadUpdate(appcast.Item)                       {}
func (NopDelegate) FailedToDownloadUpdate(appcast.Item, error)           {}
func (NopDelegate) WillInstallUpdate(appcast.Item)                       {}
func (NopDelegate) RelaunchRequested(_ appcast.Item, respond func(bool)) { respond(false) }
func (NopDelegate) WillRelaunchApplication()                             {}
func (NopDelegate) DidAbort(error)                                       {}
func (NopDelegate) DidFinishUpdateCycle(CycleResult)                     {}
