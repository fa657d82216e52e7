package update

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"updatekit/internal/appcast"
)

func feedXML(display, build string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle">
  <channel>
    <title>Demo</title>
    <item>
      <title>Version %[1]s</title>
      <sparkle:version>%[2]s</sparkle:version>
      <sparkle:shortVersionString>%[1]s</sparkle:shortVersionString>
      <enclosure url="https://example.com/demo-%[1]s.zip" length="1024" type="application/octet-stream"/>
    </item>
  </channel>
</rss>`, display, build))
}

// fakeFetcher serves a fixed body or error. When gate is set, Fetch blocks
// until it is closed.
type fakeFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, f.err
}

func (f *fakeFetcher) set(body []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

// hold makes subsequent fetches block until the returned channel is closed.
func (f *fakeFetcher) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// syncBuffer is a log sink that tolerates concurrent writers.
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

// recordingDelegate records callback names in order.
type recordingDelegate struct {
	NopDelegate

	mu       sync.Mutex
	events   []string
	results  []CycleResult
	finished chan CycleResult
	// answer is given to relaunch requests.
	answer bool
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{finished: make(chan CycleResult, 16)}
}

func (d *recordingDelegate) add(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDelegate) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	copy(out, d.events)
	return out
}

func (d *recordingDelegate) WillScheduleUpdateCheck(after time.Duration) {
	d.add("schedule " + after.String())
}

func (d *recordingDelegate) WillCheckForUpdates(kind CheckKind) {
	d.add("check " + kind.String())
}

func (d *recordingDelegate) DidFindValidUpdate(item appcast.Item) {
	d.add("found " + item.VersionFull())
}

func (d *recordingDelegate) DidFinishLoadingAppcast(*appcast.Feed) { d.add("loaded") }
func (d *recordingDelegate) DidNotFindUpdate(CheckKind)            { d.add("not found") }
func (d *recordingDelegate) DidDownloadUpdate(appcast.Item)        { d.add("downloaded") }
func (d *recordingDelegate) WillInstallUpdate(appcast.Item)        { d.add("will install") }
func (d *recordingDelegate) WillRelaunchApplication()              { d.add("will relaunch") }
func (d *recordingDelegate) DidAbort(error)                        { d.add("abort") }

func (d *recordingDelegate) FailedToDownloadUpdate(appcast.Item, error) {
	d.add("download failed")
}

func (d *recordingDelegate) RelaunchRequested(_ appcast.Item, respond func(bool)) {
	d.add("relaunch requested")
	respond(d.answer)
}

func (d *recordingDelegate) DidFinishUpdateCycle(result CycleResult) {
	d.add("finished " + result.Kind.String())
	d.mu.Lock()
	d.results = append(d.results, result)
	d.mu.Unlock()
	d.finished <- result
}

func waitCycle(t *testing.T, d *recordingDelegate) CycleResult {
	t.Helper()
	select {
	case r := <-d.finished:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no update cycle finished; events: %s", strings.Join(d.Events(), ", "))
		return CycleResult{}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeInstaller records installed items.
type fakeInstaller struct {
	mu    sync.Mutex
	items []appcast.Item
	err   error
}

func (f *fakeInstaller) Install(ctx context.Context, item appcast.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return f.err
}

func (f *fakeInstaller) Installed() []appcast.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]appcast.Item, len(f.items))
	copy(out, f.items)
	return out
}
