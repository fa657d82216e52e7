package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"updatekit/internal/config"
)

func feedXML(display, build string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle">
  <channel>
    <title>Demo</title>
    <item>
      <title>Demo %[1]s</title>
      <sparkle:version>%[2]s</sparkle:version>
      <sparkle:shortVersionString>%[1]s</sparkle:shortVersionString>
      <sparkle:releaseNotesLink>https://example.com/notes/%[1]s</sparkle:releaseNotesLink>
      <enclosure url="https://example.com/demo-%[1]s.zip" length="1024" type="application/octet-stream"/>
    </item>
  </channel>
</rss>`, display, build))
}

// setupTestEnv isolates config, history and the session lock in temp dirs.
func setupTestEnv(t *testing.T) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)

	t.Cleanup(config.ResetForTesting(t))
	if err := config.Set(config.KeyHistoryPath, historyDisabled); err != nil {
		t.Fatalf("disable history: %v", err)
	}

	lockPath := filepath.Join(t.TempDir(), "session.lock")
	orig := sessionLockPath
	sessionLockPath = func() (string, error) { return lockPath, nil }
	t.Cleanup(func() { sessionLockPath = orig })
}

// writeManifest writes an updatekit.toml declaring 1.0 (100).
func writeManifest(t *testing.T, feedURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updatekit.toml")
	body := fmt.Sprintf("short_version = \"1.0\"\nversion = \"100\"\nfeed_url = %q\n", feedURL)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func feedServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\n--- output ---\n%s", want, got)
		}
	}
}
