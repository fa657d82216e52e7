package update

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"updatekit/internal/appcast"
	"updatekit/internal/dispatch"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/history"
	"updatekit/internal/observer"
	"updatekit/internal/version"
)

// historyTimeout bounds a single history write.
const historyTimeout = 5 * time.Second

// HistoryRecorder stores finished checks. *history.Store satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Installed version.Identifier
	Client    Client
	// Fetcher serves CheckForFeedForUpdate. Defaults to an HTTPFetcher.
	Fetcher FeedFetcher
	// History is optional.
	History HistoryRecorder
	Log     zerolog.Logger
}

// Coordinator owns the process's update state. Every state write and every
// observer callback runs on the dispatch loop; other goroutines read the
// snapshot published after each write.
//
// Public methods never return errors. Failures are logged and the last known
// state stays in place until a later fetch succeeds.
type Coordinator struct {
	loop     *dispatch.Loop
	client   Client
	fetcher  FeedFetcher
	history  HistoryRecorder
	log      zerolog.Logger
	registry *observer.Registry

	installed version.Identifier

	// Confined to the loop.
	latest    version.Identifier
	available bool
	checks    int
	fetches   int
	// pending counts checks and fetches started through the coordinator;
	// idle holds Wait callers until it drops to zero.
	pending int
	idle    []chan struct{}

	snapshot atomic.Pointer[State]
}

// NewCoordinator builds a coordinator whose state lives on loop.
func NewCoordinator(loop *dispatch.Loop, cfg CoordinatorConfig) *Coordinator {
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher()
	}
	c := &Coordinator{
		loop:      loop,
		client:    cfg.Client,
		fetcher:   cfg.Fetcher,
		history:   cfg.History,
		log:       cfg.Log,
		registry:  observer.NewRegistry(cfg.Log),
		installed: cfg.Installed,
	}
	// Nothing else can touch the coordinator yet, so the first snapshot is
	// built off the loop.
	c.publish()
	return c
}

// Start starts the client's scheduler. A missing feed URL is logged and
// leaves the coordinator usable for manual calls.
func (c *Coordinator) Start(ctx context.Context) {
	lastCheck := "n/a"
	if t, ok := c.client.LastUpdateCheck(); ok {
		lastCheck = t.Format(time.RFC3339)
	}

	if err := c.client.Start(ctx, &coordinatorDelegate{c: c}); err != nil {
		c.log.Error().Err(err).
			Str("code", string(apperrors.CodeOf(err))).
			Msg("failed to start updater")
		return
	}

	c.log.Info().Msg("starting updater")
	c.log.Debug().Str("feed_url", c.client.FeedURL()).Msg("updater feed")
	c.log.Info().
		Str("installed", c.installed.Full()).
		Bool("auto_checks", c.client.AutomaticallyChecksForUpdates()).
		Bool("auto_downloads", c.client.AutomaticallyDownloadsUpdates()).
		Str("last_check", lastCheck).
		Float64("check_interval_seconds", c.client.UpdateCheckInterval().Seconds()).
		Msg("updater started")
	c.refresh()
}

// Snapshot returns the most recently published state.
func (c *Coordinator) Snapshot() State {
	return *c.snapshot.Load()
}

// Installed returns the installed version.
func (c *Coordinator) Installed() version.Identifier {
	return c.installed
}

// FeedURL returns the client's feed URL.
func (c *Coordinator) FeedURL() string {
	return c.client.FeedURL()
}

// AddObserver registers o. Duplicate registrations are ignored.
func (c *Coordinator) AddObserver(o observer.Observer) {
	c.loop.Post(func() {
		c.registry.Add(o)
		c.observersChanged()
	})
}

// RemoveObserver unregisters o. Removing an unknown observer is a no-op.
func (c *Coordinator) RemoveObserver(o observer.Observer) {
	c.loop.Post(func() {
		c.registry.Remove(o)
		c.observersChanged()
	})
}

// CheckForUpdates starts a user-initiated check.
func (c *Coordinator) CheckForUpdates() {
	c.log.Info().Msg("manually checking for updates")
	c.startCheck(CheckUser, c.client.CheckForUpdates)
}

// CheckForUpdatesInBackground starts a check without user-facing UI.
func (c *Coordinator) CheckForUpdatesInBackground() {
	c.log.Info().Msg("manually checking for updates in background")
	c.startCheck(CheckBackground, c.client.CheckForUpdatesInBackground)
}

// CheckForFeedForUpdate fetches the feed and refreshes the latest known
// version. It never installs anything.
func (c *Coordinator) CheckForFeedForUpdate() {
	c.log.Info().Msg("checking for update information")
	url := c.client.FeedURL()
	if url == "" {
		c.log.Error().
			Str("code", string(apperrors.CodeConfigurationMissing)).
			Msg("cannot refresh update information without a feed URL")
		return
	}

	c.loop.Post(func() {
		c.fetches++
		c.pending++
		c.publish()
		go c.fetchFeed(url)
	})
}

func (c *Coordinator) ResetUpdateCycle() {
	c.client.ResetUpdateCycle()
}

func (c *Coordinator) ResetUpdateCycleAfterShortDelay() {
	c.client.ResetUpdateCycleAfterShortDelay()
}

func (c *Coordinator) UpdateCheckInterval() time.Duration {
	return c.client.UpdateCheckInterval()
}

// SetUpdateCheckInterval stores interval as given; zero and negative values
// are passed through.
func (c *Coordinator) SetUpdateCheckInterval(interval time.Duration) {
	c.client.SetUpdateCheckInterval(interval)
	c.refresh()
}

func (c *Coordinator) AutomaticallyChecksForUpdates() bool {
	return c.client.AutomaticallyChecksForUpdates()
}

func (c *Coordinator) SetAutomaticallyChecksForUpdates(enabled bool) {
	c.client.SetAutomaticallyChecksForUpdates(enabled)
	c.refresh()
}

func (c *Coordinator) AutomaticallyDownloadsUpdates() bool {
	return c.client.AutomaticallyDownloadsUpdates()
}

func (c *Coordinator) SetAutomaticallyDownloadsUpdates(enabled bool) {
	c.client.SetAutomaticallyDownloadsUpdates(enabled)
	c.refresh()
}

func (c *Coordinator) LastUpdateCheck() (time.Time, bool) {
	return c.client.LastUpdateCheck()
}

// Wait blocks until checks and fetches started through this coordinator have
// been applied, ctx is done, or the loop stops. Requests made before Wait are
// always covered: the loop runs their tasks before the one Wait queues.
func (c *Coordinator) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	err := c.loop.Call(ctx, func() {
		if c.pending == 0 {
			close(idle)
			return
		}
		c.idle = append(c.idle, idle)
	})
	if err != nil {
		return err
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loop.Done():
		return dispatch.ErrStopped
	}
}

func (c *Coordinator) startCheck(kind CheckKind, run func(context.Context) error) {
	c.loop.Post(func() {
		c.checks++
		c.pending++
		c.publish()
		go func() {
			if err := run(context.Background()); err != nil {
				c.log.Debug().Err(err).Str("kind", kind.String()).Msg("check returned an error")
			}
			c.loop.Post(func() {
				c.checks--
				c.publish()
				c.settle()
			})
		}()
	})
}

// settle marks one started request as applied and releases Wait callers once
// none remain. It must run on the loop.
func (c *Coordinator) settle() {
	c.pending--
	if c.pending > 0 {
		return
	}
	for _, ch := range c.idle {
		close(ch)
	}
	c.idle = nil
}

// fetchFeed runs off the loop and posts its result back.
func (c *Coordinator) fetchFeed(url string) {
	started := time.Now()
	data, err := c.fetcher.Fetch(context.Background(), url)
	observeFetch(time.Since(started))

	var latest version.Identifier
	if err == nil {
		latest, err = appcast.ParseVersion(data)
	}

	found := err == nil && version.IsUpdateAvailable(c.installed, latest)
	observeCheck(CheckFeed, string(outcomeOf(found, err)))
	c.record(CheckFeed, started, latest, found, err)

	c.loop.Post(func() {
		c.fetches--
		if err != nil {
			c.log.Error().Err(err).
				Str("code", string(apperrors.CodeOf(err))).
				Msg("failed to refresh update information")
		} else {
			c.applyLatest(latest)
		}
		c.publish()
		c.settle()
	})
}

// applyLatest must run on the loop.
func (c *Coordinator) applyLatest(latest version.Identifier) {
	if !latest.Complete() {
		return
	}
	if latest == c.latest {
		c.log.Debug().Str("latest", latest.Full()).Msg("latest version unchanged")
		return
	}

	c.latest = latest
	c.available = version.IsUpdateAvailable(c.installed, latest)
	c.publish()

	c.log.Info().
		Str("latest", latest.Full()).
		Bool("available", c.available).
		Int("observers", c.registry.Len()).
		Msg("latest version changed")
	c.registry.NotifyAll(c.available, latest)
	notificationsTotal.Inc()
}

func (c *Coordinator) observersChanged() {
	observersGauge.Set(float64(c.registry.Len()))
	c.publish()
}

// refresh republishes the snapshot so configuration changes show up.
func (c *Coordinator) refresh() {
	c.loop.Post(c.publish)
}

// publish must run on the loop, or before the loop starts.
func (c *Coordinator) publish() {
	s := &State{
		Installed:       c.installed,
		Latest:          c.latest,
		UpdateAvailable: c.available,
		CheckInterval:   c.client.UpdateCheckInterval(),
		AutoCheck:       c.client.AutomaticallyChecksForUpdates(),
		AutoDownload:    c.client.AutomaticallyDownloadsUpdates(),
		Phase:           phaseFor(c.checks, c.fetches),
		ChecksInFlight:  c.checks,
		FetchesInFlight: c.fetches,
		Observers:       c.registry.Len(),
	}
	if t, ok := c.client.LastUpdateCheck(); ok {
		s.LastCheck = t
	}
	c.snapshot.Store(s)
}

// record writes a history entry. It runs on the goroutine that finished the
// work, never on the loop.
func (c *Coordinator) record(kind CheckKind, started time.Time, latest version.Identifier, found bool, err error) {
	if c.history == nil {
		return
	}
	entry := history.Entry{
		Kind:       kind.String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    outcomeOf(found, err),
		Display:    latest.Display,
		Build:      latest.Build,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if _, rerr := c.history.Record(ctx, entry); rerr != nil {
		c.log.Error().Err(rerr).Msg("failed to record check history")
	}
}

func outcomeOf(found bool, err error) history.Outcome {
	switch {
	case err != nil:
		return history.OutcomeFailed
	case found:
		return history.OutcomeUpdateFound
	default:
		return history.OutcomeNoUpdate
	}
}
