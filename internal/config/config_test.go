package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitializeLoadsDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetInt(KeyCheckIntervalSeconds); got != DefaultCheckIntervalSeconds {
		t.Fatalf("expected default %s to be %d, got %d", KeyCheckIntervalSeconds, DefaultCheckIntervalSeconds, got)
	}
	if !GetBool(KeyAutoCheck) {
		t.Fatalf("expected default %s to be true", KeyAutoCheck)
	}
	if GetBool(KeyAutoDownload) {
		t.Fatalf("expected default %s to be false", KeyAutoDownload)
	}
	if !GetBool(KeyAllowAutomatic) {
		t.Fatalf("expected default %s to be true", KeyAllowAutomatic)
	}
	if got := GetString(KeyFeedURL); got != "" {
		t.Fatalf("expected default %s to be empty, got %q", KeyFeedURL, got)
	}
	if got := GetString(KeyOutputFormat); got != "rich" {
		t.Fatalf("expected default %s to be rich, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyServerAddr); got != DefaultServerAddr {
		t.Fatalf("expected default %s to be %s, got %q", KeyServerAddr, DefaultServerAddr, got)
	}
}

func TestProjectConfigOverridesUser(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "repo")
	mustMkdir(t, filepath.Join(projectDir, ".updatekit"))
	projectCfg := filepath.Join(projectDir, ".updatekit", "config.yaml")
	writeFile(t, projectCfg, `
output:
  format: project
update:
  feed-url: https://project.example.com/appcast.xml
  auto-download: true
`)

	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
output:
  format: user
update:
  feed-url: https://user.example.com/appcast.xml
  auto-download: false
  check-interval-seconds: 60
`)

	nested := filepath.Join(projectDir, "sub", "dir")
	mustMkdir(t, nested)

	if err := Initialize(
		WithWorkingDir(nested),
		WithUserConfig(userCfg),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyOutputFormat); got != "project" {
		t.Fatalf("expected project config to win for %s, got %q", KeyOutputFormat, got)
	}
	if got := GetString(KeyFeedURL); got != "https://project.example.com/appcast.xml" {
		t.Fatalf("expected project feed url, got %q", got)
	}
	if !GetBool(KeyAutoDownload) {
		t.Fatalf("expected %s to be true after merging project config", KeyAutoDownload)
	}
	if got := GetInt(KeyCheckIntervalSeconds); got != 60 {
		t.Fatalf("expected user interval to survive the merge, got %d", got)
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "repo")
	mustMkdir(t, filepath.Join(projectDir, ".updatekit"))
	projectCfg := filepath.Join(projectDir, ".updatekit", "config.yaml")
	writeFile(t, projectCfg, `
update:
  auto-check: true
  feed-url: https://project.example.com/appcast.xml
`)

	t.Setenv("UK_UPDATE_AUTO_CHECK", "false")
	t.Setenv("UK_UPDATE_FEED_URL", "https://env.example.com/appcast.xml")

	if err := Initialize(
		WithWorkingDir(projectDir),
		WithProjectConfig(projectCfg),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if GetBool(KeyAutoCheck) {
		t.Fatalf("expected environment variable to override %s", KeyAutoCheck)
	}
	if got := GetString(KeyFeedURL); got != "https://env.example.com/appcast.xml" {
		t.Fatalf("expected env override for %s, got %q", KeyFeedURL, got)
	}

	overrides := map[string]any{
		KeyAutoCheck: true,
		KeyFeedURL:   "https://flag.example.com/appcast.xml",
	}
	if err := ApplyOverrides(overrides); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}

	if !GetBool(KeyAutoCheck) {
		t.Fatalf("expected CLI override to set %s=true", KeyAutoCheck)
	}
	if got := GetString(KeyFeedURL); got != "https://flag.example.com/appcast.xml" {
		t.Fatalf("expected CLI override for %s, got %q", KeyFeedURL, got)
	}
}

func TestLegacyCheckIntervalIsMigrated(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
update:
  check-interval: 90m
`)

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if got := GetInt(KeyCheckIntervalSeconds); got != 5400 {
		t.Fatalf("expected legacy interval to map to 5400 seconds, got %d", got)
	}
}

func TestSetDefaultYieldsToConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
update:
  auto-download: true
`)
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := SetDefault(KeyFeedURL, "https://manifest.example.com/appcast.xml"); err != nil {
		t.Fatalf("SetDefault returned error: %v", err)
	}
	if err := SetDefault(KeyAutoDownload, false); err != nil {
		t.Fatalf("SetDefault returned error: %v", err)
	}

	if got := GetString(KeyFeedURL); got != "https://manifest.example.com/appcast.xml" {
		t.Fatalf("expected seeded default, got %q", got)
	}
	if !GetBool(KeyAutoDownload) {
		t.Fatal("config file value should win over a seeded default")
	}
}

func TestSaveKeysWritesUserConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "home", ".updatekit", "config.yaml")
	writeFile(t, userCfg, `
output:
  format: plain
`)

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := Set(KeyAutoCheck, false); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := Set(KeyCheckIntervalSeconds, 120); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := Preferences().Save(KeyAutoCheck, KeyCheckIntervalSeconds); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	data, err := os.ReadFile(userCfg)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	text := string(data)
	for _, want := range []string{"auto-check: false", "check-interval-seconds: 120", "format: plain"} {
		if !strings.Contains(text, want) {
			t.Fatalf("saved config missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "feed-url") {
		t.Fatalf("unsaved keys must not be written:\n%s", text)
	}

	// A fresh load sees the persisted values.
	reset()
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if GetBool(KeyAutoCheck) || GetInt(KeyCheckIntervalSeconds) != 120 {
		t.Fatal("persisted values were not reloaded")
	}
}

func TestSaveKeysPrefersProjectConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ".updatekit", "config.yaml")
	writeFile(t, projectCfg, "update:\n  auto-check: true\n")
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := Set(KeyAutoDownload, true); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := SaveKeys(KeyAutoDownload); err != nil {
		t.Fatalf("SaveKeys returned error: %v", err)
	}

	data, err := os.ReadFile(projectCfg)
	if err != nil {
		t.Fatalf("read project config: %v", err)
	}
	if !strings.Contains(string(data), "auto-download: true") {
		t.Fatalf("expected project config to be updated:\n%s", data)
	}
	if _, err := os.Stat(userCfg); !os.IsNotExist(err) {
		t.Fatalf("user config should not be created, stat err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(map[string]any{KeyFeedURL: "https://example.com/appcast.xml"})

	if got := s.GetInt(KeyCheckIntervalSeconds); got != DefaultCheckIntervalSeconds {
		t.Fatalf("GetInt = %d", got)
	}
	if !s.GetBool(KeyAutoCheck) {
		t.Fatal("expected auto-check default true")
	}
	if got := s.GetString(KeyFeedURL); got != "https://example.com/appcast.xml" {
		t.Fatalf("GetString = %q", got)
	}
	_ = s.Set(KeyAutoDownload, true)
	_ = s.Save(KeyAutoDownload)
	if !s.GetBool(KeyAutoDownload) {
		t.Fatal("Set did not take effect")
	}
	if saved := s.Saved(); len(saved) != 1 || saved[0] != KeyAutoDownload {
		t.Fatalf("Saved = %v", saved)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
