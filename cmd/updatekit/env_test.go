package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"updatekit/internal/config"
	apperrors "updatekit/internal/errors"
	"updatekit/internal/manifest"
	"updatekit/internal/update"
	"updatekit/internal/version"
)

func TestResolveInstalled(t *testing.T) {
	origVersion, origBuild := Version, Build
	Version, Build = "2.0", "200"
	t.Cleanup(func() { Version, Build = origVersion, origBuild })

	tests := []struct {
		name     string
		manifest *manifest.Manifest
		want     version.Identifier
	}{
		{"no manifest", nil, version.New("2.0", "200")},
		{"complete manifest", &manifest.Manifest{ShortVersion: "1.0", Version: "100"}, version.New("1.0", "100")},
		{"incomplete manifest", &manifest.Manifest{ShortVersion: "1.0"}, version.New("2.0", "200")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveInstalled(tt.manifest); got != tt.want {
				t.Errorf("resolveInstalled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildIdentifierDropsUnknownBuild(t *testing.T) {
	origVersion, origBuild := Version, Build
	Version, Build = "dev", "unknown"
	t.Cleanup(func() { Version, Build = origVersion, origBuild })

	got := buildIdentifier()
	if got.Display != "dev" || got.Build != "" {
		t.Errorf("buildIdentifier = %+v", got)
	}
	if got.Complete() {
		t.Error("a dev build should not be a complete identifier")
	}
}

func TestSeedFromManifestKeepsUserValues(t *testing.T) {
	t.Cleanup(config.ResetForTesting(t))

	if err := config.Set(config.KeyFeedURL, "https://user.example.com/appcast.xml"); err != nil {
		t.Fatal(err)
	}
	allow := false
	interval := int64(600)
	m := &manifest.Manifest{
		FeedURL:               "https://vendor.example.com/appcast.xml",
		AllowAutomaticUpdates: &allow,
		CheckIntervalSeconds:  &interval,
	}
	if err := seedFromManifest(m); err != nil {
		t.Fatalf("seedFromManifest: %v", err)
	}

	if got := config.GetString(config.KeyFeedURL); got != "https://user.example.com/appcast.xml" {
		t.Errorf("feed url = %q, want the user's value", got)
	}
	if config.GetBool(config.KeyAllowAutomatic) {
		t.Error("expected manifest to turn automatic updates off")
	}
	if got := config.GetInt(config.KeyCheckIntervalSeconds); got != 600 {
		t.Errorf("check interval = %d, want 600", got)
	}
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, "https://example.com/appcast.xml")

	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if m.Path != path || m.FeedURL != "https://example.com/appcast.xml" {
		t.Errorf("unexpected manifest %+v", m)
	}

	if _, err := loadManifest(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for an explicit missing manifest")
	}
}

func TestHistoryPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	custom := filepath.Join(t.TempDir(), "checks.db")

	tests := []struct {
		value string
		want  string
	}{
		{"off", ""},
		{" off ", ""},
		{custom, custom},
		{"~/updates/history.db", filepath.Join(home, "updates", "history.db")},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Cleanup(config.ResetForTesting(t))
			if err := config.Set(config.KeyHistoryPath, tt.value); err != nil {
				t.Fatal(err)
			}
			got, err := historyPath()
			if err != nil {
				t.Fatalf("historyPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("historyPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenHistoryDisabled(t *testing.T) {
	setupTestEnv(t)

	store, err := openHistory(context.Background())
	if err != nil || store != nil {
		t.Fatalf("expected no store and no error, got %v, %v", store, err)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), 130},
		{"locked", apperrors.New(apperrors.CodeSessionLocked, "held", nil), 3},
		{"invalid argument", apperrors.New(apperrors.CodeInvalidArgument, "bad", nil), 2},
		{"wrapped invalid argument", fmt.Errorf("prefs: %w", apperrors.New(apperrors.CodeInvalidArgument, "bad", nil)), 2},
		{"fetch failure", apperrors.New(apperrors.CodeFetchNetwork, "down", errors.New("dial")), 1},
		{"plain", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLatestItemLoader(t *testing.T) {
	srv := feedServer(t, feedXML("1.1", "101"))

	item, err := latestItemLoader(newFetcher(), srv.URL)(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if item.Title != "Demo 1.1" || item.Identifier() != version.New("1.1", "101") {
		t.Errorf("unexpected item %+v", item)
	}

	if _, err := latestItemLoader(newFetcher(), "")(context.Background()); !errors.Is(err, update.ErrFeedURLMissing) {
		t.Errorf("expected ErrFeedURLMissing, got %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{3 * time.Minute, "3m"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
