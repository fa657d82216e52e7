// Package manifest reads the application manifest: the file that declares
// the installed version and the update settings the application ships with.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"updatekit/internal/version"
)

// DefaultFileName is looked up next to the executable and in the working
// directory when no explicit path is given.
const DefaultFileName = "updatekit.toml"

// Manifest mirrors the bundle keys an application ships with. Pointer fields
// distinguish "not declared" from a zero value.
type Manifest struct {
	ShortVersion          string `toml:"short_version" yaml:"short_version"`
	Version               string `toml:"version" yaml:"version"`
	FeedURL               string `toml:"feed_url" yaml:"feed_url"`
	AllowAutomaticUpdates *bool  `toml:"allow_automatic_updates" yaml:"allow_automatic_updates"`
	CheckIntervalSeconds  *int64 `toml:"check_interval_seconds" yaml:"check_interval_seconds"`

	// Path is the file the manifest was read from.
	Path string `toml:"-" yaml:"-"`
}

// Installed returns the installed (display, build) pair.
func (m Manifest) Installed() version.Identifier {
	return version.New(m.ShortVersion, m.Version)
}

// CheckInterval returns the declared interval and whether one was declared.
func (m Manifest) CheckInterval() (time.Duration, bool) {
	if m.CheckIntervalSeconds == nil {
		return 0, false
	}
	return time.Duration(*m.CheckIntervalSeconds) * time.Second, true
}

// AllowsAutomaticUpdates defaults to true when the key is absent.
func (m Manifest) AllowsAutomaticUpdates() bool {
	if m.AllowAutomaticUpdates == nil {
		return true
	}
	return *m.AllowAutomaticUpdates
}

// Load reads a manifest based on its extension. Supports .toml and .yaml/.yml.
func Load(path string) (Manifest, error) {
	var m Manifest
	if path == "" {
		return m, fmt.Errorf("empty manifest path")
	}
	//nolint:gosec // G304: manifest path comes from the user's own flags
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(b, &m); err != nil {
			return m, fmt.Errorf("TOML parse error: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &m); err != nil {
			return m, fmt.Errorf("YAML parse error: %w", err)
		}
	default:
		return m, fmt.Errorf("unsupported manifest extension: %s", ext)
	}
	m.Path = path
	return m, nil
}

// Find returns the first existing manifest among the candidate directories.
// It returns "" when none exists.
func Find(dirs ...string) string {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, DefaultFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
