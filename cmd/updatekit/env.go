package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"updatekit/internal/appcast"
	"updatekit/internal/config"
	"updatekit/internal/debug"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/history"
	"updatekit/internal/manifest"
	"updatekit/internal/update"
	"updatekit/internal/version"
)

// historyDisabled turns the check history off when set as history.path.
const historyDisabled = "off"

// appEnv holds what every command needs once flags, config and the manifest
// are resolved.
type appEnv struct {
	installed version.Identifier
	manifest  *manifest.Manifest
	log       zerolog.Logger
	out       io.Writer
	errOut    io.Writer
}

type rootOptions struct {
	debug        bool
	manifestPath string
	feedURL      string
	showVersion  bool
}

// setup resolves configuration with the precedence
// build info < manifest < config files < env < flags.
func (e *appEnv) setup(cmd *cobra.Command, opts *rootOptions) error {
	e.out, e.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()

	if err := debug.Init(opts.debug); err != nil {
		return fmt.Errorf("init debug log: %w", err)
	}
	e.log = debug.Logger()

	if err := config.Initialize(); err != nil {
		return apperrors.New(apperrors.CodeConfigurationError, "load config", err)
	}

	m, err := loadManifest(opts.manifestPath)
	if err != nil {
		return apperrors.New(apperrors.CodeConfigurationError, "load manifest", err)
	}
	e.manifest = m
	e.installed = resolveInstalled(m)
	if err := seedFromManifest(m); err != nil {
		return err
	}

	if feedURL := strings.TrimSpace(opts.feedURL); feedURL != "" {
		if err := config.ApplyOverrides(map[string]any{config.KeyFeedURL: feedURL}); err != nil {
			return fmt.Errorf("apply flags: %w", err)
		}
	}

	e.log.Debug().
		Str("installed", e.installed.Full()).
		Bool("manifest", m != nil).
		Msg("environment ready")
	return nil
}

// loadManifest reads the explicit path, or looks for updatekit.toml next to
// the working directory and the executable. A missing implicit manifest is
// not an error.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		var dirs []string
		if wd, err := os.Getwd(); err == nil {
			dirs = append(dirs, wd)
		}
		if exe, err := os.Executable(); err == nil {
			dirs = append(dirs, filepath.Dir(exe))
		}
		path = manifest.Find(dirs...)
		if path == "" {
			return nil, nil
		}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// resolveInstalled prefers the manifest's pair and falls back to build info.
func resolveInstalled(m *manifest.Manifest) version.Identifier {
	if m != nil {
		if id := m.Installed(); id.Complete() {
			return id
		}
	}
	return buildIdentifier()
}

// seedFromManifest turns manifest values into defaults so user preferences
// still win.
func seedFromManifest(m *manifest.Manifest) error {
	if m == nil {
		return nil
	}
	defaults := map[string]any{
		config.KeyAllowAutomatic: m.AllowsAutomaticUpdates(),
	}
	if m.FeedURL != "" {
		defaults[config.KeyFeedURL] = m.FeedURL
	}
	if interval, ok := m.CheckInterval(); ok {
		defaults[config.KeyCheckIntervalSeconds] = interval.Seconds()
	}
	for key, value := range defaults {
		if err := config.SetDefault(key, value); err != nil {
			return fmt.Errorf("seed %s from manifest: %w", key, err)
		}
	}
	return nil
}

func newFetcher() *update.HTTPFetcher {
	return update.NewHTTPFetcher(update.WithUserAgent("updatekit/" + Version))
}

// newDriver builds the portable client from the current preferences.
func (e *appEnv) newDriver(fetcher update.FeedFetcher, log zerolog.Logger, relaunch func()) *update.Driver {
	var installer update.Installer
	if command := strings.TrimSpace(config.GetString(config.KeyInstallerCommand)); command != "" {
		installer = update.NewCommandInstaller(command)
	}
	return update.NewDriver(update.DriverConfig{
		FeedURL:   config.GetString(config.KeyFeedURL),
		Installed: e.installed,
		Prefs:     config.Preferences(),
		Fetcher:   fetcher,
		Installer: installer,
		Relaunch:  relaunch,
		Log:       log,
	})
}

// historyPath resolves history.path. An empty value means the default file
// under ~/.updatekit; "off" disables history.
func historyPath() (string, error) {
	path := strings.TrimSpace(config.GetString(config.KeyHistoryPath))
	switch path {
	case historyDisabled:
		return "", nil
	case "":
		dir, err := config.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "history.db"), nil
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine user home: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	return path, nil
}

// openHistory opens the check history, or returns nil when it is disabled.
func openHistory(ctx context.Context) (*history.Store, error) {
	path, err := historyPath()
	if err != nil || path == "" {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "create history directory", err)
	}
	return history.Open(ctx, path)
}

// latestItemLoader fetches the feed and returns its newest item.
func latestItemLoader(fetcher update.FeedFetcher, feedURL string) func(context.Context) (appcast.Item, error) {
	return func(ctx context.Context) (appcast.Item, error) {
		if feedURL == "" {
			return appcast.Item{}, update.ErrFeedURLMissing
		}
		body, err := fetcher.Fetch(ctx, feedURL)
		if err != nil {
			return appcast.Item{}, err
		}
		feed, err := appcast.Parse(body)
		if err != nil {
			return appcast.Item{}, err
		}
		item, ok := feed.Latest()
		if !ok {
			return appcast.Item{}, apperrors.New(apperrors.CodeFeedMissingFields, "read appcast", appcast.ErrMissingFields)
		}
		return item, nil
	}
}

// exitCodeFor maps errors to process exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case apperrors.IsCode(err, apperrors.CodeSessionLocked):
		return 3
	case apperrors.IsCode(err, apperrors.CodeInvalidArgument):
		return 2
	default:
		return 1
	}
}
