package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"updatekit/internal/appcast"
	"updatekit/internal/config"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/version"
)

const (
	// DefaultShortDelay is how long ResetUpdateCycleAfterShortDelay waits.
	DefaultShortDelay = time.Second
	// minScheduleInterval keeps a zero or negative stored interval from
	// turning the scheduler into a busy loop. The stored value is untouched.
	minScheduleInterval = time.Minute
)

// DriverConfig wires a Driver.
type DriverConfig struct {
	FeedURL   string
	Installed version.Identifier
	// Prefs persists interval, auto-check, auto-download and last-check.
	// Defaults to an in-memory store.
	Prefs   config.Store
	Fetcher FeedFetcher
	// Installer receives found updates when automatic downloads are on.
	// Nil disables automatic installation.
	Installer Installer
	// Relaunch runs once when a relaunch request is answered affirmatively.
	Relaunch   func()
	Log        zerolog.Logger
	ShortDelay time.Duration
	Now        func() time.Time
}

// Driver is the portable Client: it schedules checks, fetches and compares
// the feed itself, and hands found updates to an external installer.
type Driver struct {
	cfg DriverConfig

	mu       sync.Mutex
	delegate Delegate
	started  bool

	reset        chan struct{}
	relaunchOnce sync.Once
}

var _ Client = (*Driver)(nil)

// NewDriver fills in defaults for unset config fields.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Prefs == nil {
		cfg.Prefs = config.NewMemoryStore(nil)
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher()
	}
	if cfg.ShortDelay <= 0 {
		cfg.ShortDelay = DefaultShortDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Driver{
		cfg:   cfg,
		reset: make(chan struct{}, 1),
	}
}

// Start launches the scheduler goroutine, which runs until ctx is done.
func (d *Driver) Start(ctx context.Context, delegate Delegate) error {
	if d.cfg.FeedURL == "" {
		return apperrors.New(apperrors.CodeConfigurationMissing, "start updater", ErrFeedURLMissing)
	}
	if delegate == nil {
		delegate = NopDelegate{}
	}

	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("updater already started")
	}
	d.started = true
	d.delegate = delegate
	d.mu.Unlock()

	go d.schedule(ctx)
	return nil
}

// FeedURL returns the configured appcast URL.
func (d *Driver) FeedURL() string {
	return d.cfg.FeedURL
}

// CheckForUpdates runs a user-initiated check and blocks until it finishes.
func (d *Driver) CheckForUpdates(ctx context.Context) error {
	return d.runCheck(ctx, CheckUser)
}

// CheckForUpdatesInBackground runs a check without user-facing UI.
func (d *Driver) CheckForUpdatesInBackground(ctx context.Context) error {
	return d.runCheck(ctx, CheckBackground)
}

// ResetUpdateCycle recomputes the next scheduled check now.
func (d *Driver) ResetUpdateCycle() {
	select {
	case d.reset <- struct{}{}:
	default:
	}
}

// ResetUpdateCycleAfterShortDelay recomputes the next scheduled check after
// the configured short delay.
func (d *Driver) ResetUpdateCycleAfterShortDelay() {
	time.AfterFunc(d.cfg.ShortDelay, d.ResetUpdateCycle)
}

func (d *Driver) AutomaticallyChecksForUpdates() bool {
	return d.cfg.Prefs.GetBool(config.KeyAutoCheck)
}

func (d *Driver) SetAutomaticallyChecksForUpdates(enabled bool) {
	d.persist(config.KeyAutoCheck, enabled)
	d.ResetUpdateCycle()
}

func (d *Driver) AutomaticallyDownloadsUpdates() bool {
	return d.cfg.Prefs.GetBool(config.KeyAutoDownload)
}

func (d *Driver) SetAutomaticallyDownloadsUpdates(enabled bool) {
	d.persist(config.KeyAutoDownload, enabled)
}

func (d *Driver) UpdateCheckInterval() time.Duration {
	return IntervalFromSeconds(d.cfg.Prefs.GetFloat64(config.KeyCheckIntervalSeconds))
}

// SetUpdateCheckInterval stores the interval as float seconds, fractions
// included.
func (d *Driver) SetUpdateCheckInterval(interval time.Duration) {
	d.persist(config.KeyCheckIntervalSeconds, interval.Seconds())
	d.ResetUpdateCycle()
}

// LastUpdateCheck returns when the last check started, if one ever did.
func (d *Driver) LastUpdateCheck() (time.Time, bool) {
	raw := d.cfg.Prefs.GetString(config.KeyLastCheck)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (d *Driver) persist(key string, value any) {
	if err := d.cfg.Prefs.Set(key, value); err != nil {
		d.cfg.Log.Error().Err(err).Str("key", key).Msg("failed to set preference")
		return
	}
	if err := d.cfg.Prefs.Save(key); err != nil {
		d.cfg.Log.Error().Err(err).Str("key", key).Msg("failed to save preference")
	}
}

func (d *Driver) currentDelegate() Delegate {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.delegate == nil {
		return NopDelegate{}
	}
	return d.delegate
}

func (d *Driver) schedule(ctx context.Context) {
	for {
		delay, enabled := d.nextCheckDelay()

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if enabled {
			d.currentDelegate().WillScheduleUpdateCheck(delay)
			timer = time.NewTimer(delay)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-d.reset:
			stopTimer(timer)
		case <-timerC:
			_ = d.runCheck(ctx, CheckScheduled)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// nextCheckDelay returns the time until the next scheduled check and false
// when automatic checking is off.
func (d *Driver) nextCheckDelay() (time.Duration, bool) {
	if !d.AutomaticallyChecksForUpdates() {
		return 0, false
	}
	last, ok := d.LastUpdateCheck()
	if !ok {
		return 0, true
	}
	interval := d.UpdateCheckInterval()
	if interval < minScheduleInterval {
		interval = minScheduleInterval
	}
	delay := last.Add(interval).Sub(d.cfg.Now())
	if delay < 0 {
		delay = 0
	}
	return delay, true
}

func (d *Driver) runCheck(ctx context.Context, kind CheckKind) error {
	del := d.currentDelegate()
	result := CycleResult{Kind: kind, StartedAt: d.cfg.Now()}
	finish := func(err error) error {
		result.Err = err
		result.FinishedAt = d.cfg.Now()
		if err != nil {
			del.DidAbort(err)
		}
		del.DidFinishUpdateCycle(result)
		return err
	}

	del.WillCheckForUpdates(kind)
	d.persist(config.KeyLastCheck, result.StartedAt.UTC().Format(time.RFC3339))

	data, err := d.cfg.Fetcher.Fetch(ctx, d.cfg.FeedURL)
	if err != nil {
		return finish(err)
	}
	feed, err := appcast.Parse(data)
	if err != nil {
		return finish(err)
	}
	del.DidFinishLoadingAppcast(feed)

	item, ok := feed.Latest()
	if !ok {
		id, found := feed.Version()
		if !found {
			return finish(apperrors.New(apperrors.CodeFeedMissingFields, "check for updates", appcast.ErrMissingFields))
		}
		item = appcast.Item{Display: id.Display, Build: id.Build}
	}
	result.Item = &item

	if !version.IsUpdateAvailable(d.cfg.Installed, item.Identifier()) {
		del.DidNotFindUpdate(kind)
		return finish(nil)
	}
	result.UpdateFound = true
	del.DidFindValidUpdate(item)

	if kind != CheckUser && d.installsAutomatically() {
		if err := d.install(ctx, del, item); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

func (d *Driver) installsAutomatically() bool {
	return d.cfg.Installer != nil &&
		d.AutomaticallyDownloadsUpdates() &&
		d.cfg.Prefs.GetBool(config.KeyAllowAutomatic)
}

func (d *Driver) install(ctx context.Context, del Delegate, item appcast.Item) error {
	if err := d.cfg.Installer.Install(ctx, item); err != nil {
		del.FailedToDownloadUpdate(item, err)
		return err
	}
	del.DidDownloadUpdate(item)
	del.WillInstallUpdate(item)
	del.RelaunchRequested(item, func(allow bool) {
		d.cfg.Log.Info().Bool("allow", allow).Str("item", item.VersionFull()).Msg("relaunch answer received")
		if !allow {
			return
		}
		d.relaunchOnce.Do(func() {
			del.WillRelaunchApplication()
			if d.cfg.Relaunch != nil {
				d.cfg.Relaunch()
			}
		})
	})
	return nil
}
