package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"updatekit/internal/appcast"
	"updatekit/internal/config"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/update"
	"updatekit/internal/version"
)

const (
	defaultCheckTimeout = 30 * time.Second
	spinnerDelay        = 300 * time.Millisecond
)

type checkOptions struct {
	strict  bool
	timeout time.Duration
}

func newCheckCmd(env *appEnv) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the feed once and report whether an update is available",
		Long: `check fetches the appcast once and compares its newest build with the
installed one. A failed check is reported but exits 0 unless --strict is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), env, newFetcher(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when the check fails")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultCheckTimeout, "Give up on the feed after this long")
	return cmd
}

// checkResult is the outcome of a one-shot check.
type checkResult struct {
	Installed version.Identifier
	Latest    version.Identifier
	// Item is the newest complete feed item; it is nil when the version came
	// from loose fields outside any item.
	Item      *appcast.Item
	Available bool
}

// checkFeed fetches and parses the feed and compares it with installed.
// stage reports progress and may be nil.
func checkFeed(ctx context.Context, fetcher update.FeedFetcher, feedURL string, installed version.Identifier, stage func(string)) (checkResult, error) {
	if stage == nil {
		stage = func(string) {}
	}
	if feedURL == "" {
		return checkResult{}, apperrors.New(apperrors.CodeConfigurationMissing, "check for updates", update.ErrFeedURLMissing)
	}

	stage("Fetching " + feedURL)
	body, err := fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return checkResult{}, err
	}

	stage("Reading appcast")
	feed, err := appcast.Parse(body)
	if err != nil {
		return checkResult{}, err
	}
	latest, ok := feed.Version()
	if !ok {
		return checkResult{}, apperrors.New(apperrors.CodeFeedMissingFields, "read appcast", appcast.ErrMissingFields)
	}

	res := checkResult{
		Installed: installed,
		Latest:    latest,
		Available: version.IsUpdateAvailable(installed, latest),
	}
	if item, ok := feed.Latest(); ok {
		res.Item = &item
	}
	return res, nil
}

func runCheck(ctx context.Context, env *appEnv, fetcher update.FeedFetcher, opts checkOptions) error {
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var sp *progressSpinner
	if isTerminal(env.errOut) {
		sp = newProgressSpinner(env.errOut, spinnerDelay)
	}
	res, err := checkFeed(ctx, fetcher, config.GetString(config.KeyFeedURL), env.installed, sp.Stage)
	sp.Stop()

	if err != nil {
		env.log.Error().Err(err).
			Str("code", string(apperrors.CodeOf(err))).
			Msg("update check failed")
		if opts.strict {
			return fmt.Errorf("update check failed: %w", err)
		}
		_, _ = fmt.Fprintf(env.errOut, "Update check failed: %v\n", err)
		return nil
	}

	env.log.Info().
		Str("installed", res.Installed.Full()).
		Str("latest", res.Latest.Full()).
		Bool("available", res.Available).
		Msg("update check finished")
	printCheckResult(env.out, res)
	return nil
}

func printCheckResult(w io.Writer, res checkResult) {
	label := lipgloss.NewStyle().Bold(true).Width(11)
	good := lipgloss.NewStyle().Foreground(goodColor).Bold(true)

	_, _ = fmt.Fprintln(w, label.Render("Installed")+res.Installed.String())
	_, _ = fmt.Fprintln(w, label.Render("Latest")+res.Latest.String())
	if res.Item != nil {
		if res.Item.Title != "" {
			_, _ = fmt.Fprintln(w, label.Render("Release")+res.Item.Title)
		}
		if res.Item.Enclosure.URL != "" {
			_, _ = fmt.Fprintln(w, label.Render("Download")+res.Item.Enclosure.URL)
		}
		if res.Item.ReleaseNotesLink != "" {
			_, _ = fmt.Fprintln(w, label.Render("Notes")+res.Item.ReleaseNotesLink)
		}
	}
	if res.Available {
		_, _ = fmt.Fprintln(w, good.Render("Update available."))
		return
	}
	_, _ = fmt.Fprintln(w, "You're up to date.")
}

// isTerminal reports whether w is a character device, so progress output
// stays out of pipes and files.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
