package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"updatekit/internal/config"
	"updatekit/internal/dispatch"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/history"
	"updatekit/internal/update"
)

type statusOptions struct {
	output  string
	history int
}

func newStatusCmd(env *appEnv) *cobra.Command {
	opts := statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed version, update preferences and recent checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), env, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().IntVar(&opts.history, "history", 5, "Number of recent checks to include (0 to skip)")
	return cmd
}

// statusReport is what status prints. It never touches the network.
type statusReport struct {
	update.State `yaml:",inline"`
	FeedURL        string          `json:"feed_url" yaml:"feed_url"`
	AllowAutomatic bool            `json:"allow_automatic" yaml:"allow_automatic"`
	Manifest       string          `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	History        []history.Entry `json:"history,omitempty" yaml:"history,omitempty"`
}

func buildStatus(ctx context.Context, env *appEnv, historyLimit int) (statusReport, error) {
	// A coordinator that is never started publishes its snapshot straight
	// from preferences.
	driver := env.newDriver(nil, env.log, nil)
	coord := update.NewCoordinator(dispatch.New(env.log), update.CoordinatorConfig{
		Installed: env.installed,
		Client:    driver,
		Log:       env.log,
	})

	report := statusReport{
		State:          coord.Snapshot(),
		FeedURL:        driver.FeedURL(),
		AllowAutomatic: config.GetBool(config.KeyAllowAutomatic),
	}
	if env.manifest != nil {
		report.Manifest = env.manifest.Path
	}

	if historyLimit > 0 {
		store, err := openHistory(ctx)
		if err != nil {
			return report, err
		}
		if store != nil {
			defer func() { _ = store.Close() }()
			entries, err := store.Recent(ctx, historyLimit)
			if err != nil {
				return report, err
			}
			report.History = entries
		}
	}
	return report, nil
}

func runStatus(ctx context.Context, env *appEnv, opts statusOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.output))
	switch format {
	case "text", "json", "yaml":
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown output format %q (want text, json or yaml)", opts.output), nil)
	}

	report, err := buildStatus(ctx, env, opts.history)
	if err != nil {
		return err
	}
	return writeStatus(env.out, format, report)
}

func writeStatus(w io.Writer, format string, report statusReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		writeStatusText(w, report)
		return nil
	}
}

func writeStatusText(w io.Writer, r statusReport) {
	label := lipgloss.NewStyle().Bold(true).Width(16)
	row := func(name, value string) {
		_, _ = fmt.Fprintln(w, label.Render(name)+value)
	}

	feed := r.FeedURL
	if feed == "" {
		feed = "(not configured)"
	}
	lastCheck := "never"
	if !r.LastCheck.IsZero() {
		lastCheck = r.LastCheck.Local().Format(time.RFC3339)
	}

	row("Installed", r.Installed.String())
	row("Feed", feed)
	row("Last check", lastCheck)
	row("Check interval", r.CheckInterval.String())
	row("Auto-check", onOff(r.AutoCheck))
	row("Auto-download", onOff(r.AutoDownload))
	row("Allow automatic", onOff(r.AllowAutomatic))
	if r.Manifest != "" {
		row("Manifest", r.Manifest)
	}

	if len(r.History) == 0 {
		return
	}
	rows := make([][]string, 0, len(r.History))
	for _, e := range r.History {
		detail := e.Display
		if e.Build != "" {
			detail = fmt.Sprintf("%s (%s)", e.Display, e.Build)
		}
		if e.Error != "" {
			detail = e.Error
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format(time.RFC3339),
			e.Kind,
			string(e.Outcome),
			detail,
		})
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("STARTED", "KIND", "OUTCOME", "DETAIL").
		Rows(rows...)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, label.Render("Recent checks"))
	_, _ = fmt.Fprintln(w, strings.Trim(t.String(), "\n"))
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
