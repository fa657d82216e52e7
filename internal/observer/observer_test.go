package observer

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"updatekit/internal/version"
)

type recorder struct {
	name   string
	calls  *[]string
	onCall func()
}

func (r *recorder) UpdateAvailabilityChanged(available bool, latestVersion, latestBuild string) {
	*r.calls = append(*r.calls, r.name)
	if r.onCall != nil {
		r.onCall()
	}
}

func (r *recorder) RelaunchRequested(respond func(allow bool)) {
	*r.calls = append(*r.calls, r.name)
	respond(r.name != "deny")
}

type valueObserver struct{ id int }

func (valueObserver) UpdateAvailabilityChanged(bool, string, string) {}
func (valueObserver) RelaunchRequested(func(bool))                   {}

var v11 = version.Identifier{Display: "1.1", Build: "101"}

func TestNotifyAll_RegistrationOrder(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	reg.Add(&recorder{name: "a", calls: &calls})
	reg.Add(&recorder{name: "b", calls: &calls})
	reg.Add(&recorder{name: "c", calls: &calls})

	reg.NotifyAll(true, v11)

	if got := strings.Join(calls, ","); got != "a,b,c" {
		t.Fatalf("delivery order = %s, want a,b,c", got)
	}
}

func TestNotifyAll_PassesValues(t *testing.T) {
	var (
		gotAvailable bool
		gotVersion   string
		gotBuild     string
		count        int
	)
	reg := NewRegistry(zerolog.Nop())
	reg.Add(&Funcs{OnAvailabilityChanged: func(available bool, latestVersion, latestBuild string) {
		gotAvailable, gotVersion, gotBuild = available, latestVersion, latestBuild
		count++
	}})

	reg.NotifyAll(true, v11)

	if count != 1 {
		t.Fatalf("expected 1 call, got %d", count)
	}
	if !gotAvailable || gotVersion != "1.1" || gotBuild != "101" {
		t.Fatalf("got (%v, %q, %q)", gotAvailable, gotVersion, gotBuild)
	}
}

func TestAdd_DeduplicatesByIdentity(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	o := &recorder{name: "a", calls: &calls}
	reg.Add(o)
	reg.Add(o)

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	reg.NotifyAll(false, v11)
	if len(calls) != 1 {
		t.Fatalf("expected a single delivery, got %d", len(calls))
	}

	// Distinct pointers to equal values are distinct observers.
	reg.Add(&recorder{name: "a", calls: &calls})
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
}

func TestAdd_RejectsObserversWithoutIdentity(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Add(valueObserver{id: 1})
	reg.Add(valueObserver{id: 2})
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want value observers to be rejected", reg.Len())
	}

	// The same struct behind distinct pointers is two observers.
	first, second := &valueObserver{id: 1}, &valueObserver{id: 1}
	reg.Add(first)
	reg.Add(second)
	reg.Add(first)
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	reg.Remove(valueObserver{id: 1})
	if reg.Len() != 2 {
		t.Fatalf("removing by value changed Len() to %d", reg.Len())
	}
	reg.Remove(first)
	if reg.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", reg.Len())
	}
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	a := &recorder{name: "a", calls: &calls}
	reg.Add(a)

	reg.Remove(&recorder{name: "other", calls: &calls})
	reg.Remove(nil)
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}

	reg.Remove(a)
	reg.Remove(a)
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", reg.Len())
	}
}

func TestNotifyAll_RemovalDuringIteration(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	c := &recorder{name: "c", calls: &calls}
	b := &recorder{name: "b", calls: &calls}
	a := &recorder{name: "a", calls: &calls, onCall: func() {
		reg.Remove(b)
		reg.Add(&recorder{name: "d", calls: &calls})
	}}
	reg.Add(a)
	reg.Add(b)
	reg.Add(c)

	reg.NotifyAll(true, v11)
	if got := strings.Join(calls, ","); got != "a,b,c" {
		t.Fatalf("first delivery = %s, want a,b,c", got)
	}

	a.onCall = nil
	calls = nil
	reg.NotifyAll(true, v11)
	if got := strings.Join(calls, ","); got != "a,c,d" {
		t.Fatalf("second delivery = %s, want a,c,d", got)
	}
}

func TestNotifyAll_PanicIsIsolated(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	reg.Add(&recorder{name: "a", calls: &calls})
	reg.Add(&Funcs{OnAvailabilityChanged: func(bool, string, string) {
		panic("boom")
	}})
	reg.Add(&recorder{name: "c", calls: &calls})

	reg.NotifyAll(true, v11)

	if got := strings.Join(calls, ","); got != "a,c" {
		t.Fatalf("delivery = %s, want a,c", got)
	}
}

func TestRequestRelaunch_NoObserversDenies(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	answered := 0
	allowed := true
	reg.RequestRelaunch(func(allow bool) {
		answered++
		allowed = allow
	})
	if answered != 1 || allowed {
		t.Fatalf("answered=%d allowed=%v, want one denial", answered, allowed)
	}
}

func TestRequestRelaunch_LastResponseWins(t *testing.T) {
	var calls []string
	reg := NewRegistry(zerolog.Nop())
	reg.Add(&recorder{name: "allow", calls: &calls})
	reg.Add(&recorder{name: "deny", calls: &calls})

	var answers []bool
	reg.RequestRelaunch(func(allow bool) {
		answers = append(answers, allow)
	})

	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[len(answers)-1] {
		t.Fatal("last answer should be the denial")
	}
}
