package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), DefaultFileName, `
short_version = "1.0"
version = "100"
feed_url = "https://example.com/appcast.xml"
allow_automatic_updates = false
check_interval_seconds = 600
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := m.Installed(); got.Display != "1.0" || got.Build != "100" {
		t.Errorf("Installed() = %+v", got)
	}
	if m.FeedURL != "https://example.com/appcast.xml" {
		t.Errorf("FeedURL = %q", m.FeedURL)
	}
	if m.AllowsAutomaticUpdates() {
		t.Error("AllowsAutomaticUpdates() should be false")
	}
	interval, ok := m.CheckInterval()
	if !ok || interval != 10*time.Minute {
		t.Errorf("CheckInterval() = %v, %v", interval, ok)
	}
	if m.Path != path {
		t.Errorf("Path = %q", m.Path)
	}
}

func TestLoad_YAMLDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "manifest.yaml", "short_version: \"2.0\"\nversion: \"200\"\n")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !m.AllowsAutomaticUpdates() {
		t.Error("absent allow_automatic_updates should default to true")
	}
	if _, ok := m.CheckInterval(); ok {
		t.Error("absent interval should report not declared")
	}
	if m.Installed().Build != "200" {
		t.Errorf("Installed().Build = %q", m.Installed().Build)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "missing file", path: filepath.Join(dir, "nope.toml")},
		{name: "bad extension", path: writeFile(t, dir, "manifest.ini", "x=1")},
		{name: "bad toml", path: writeFile(t, dir, "bad.toml", "version = ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFind(t *testing.T) {
	empty := t.TempDir()
	withManifest := t.TempDir()
	want := writeFile(t, withManifest, DefaultFileName, `version = "1"`)

	if got := Find("", empty, withManifest); got != want {
		t.Fatalf("Find() = %q, want %q", got, want)
	}
	if got := Find(empty); got != "" {
		t.Fatalf("Find() = %q, want empty", got)
	}
}
