// Package observer keeps the set of parties interested in update availability
// and relaunch requests.
//
// A Registry is not synchronized. It belongs to the coordination loop: every
// call, including the callbacks it makes, happens on that goroutine.
package observer

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"updatekit/internal/version"
)

// Observer receives update notifications. Implementations are tracked by
// identity: register a pointer (or another reference type). Plain values have
// no identity and are rejected by Add.
type Observer interface {
	// UpdateAvailabilityChanged reports a new latest known version and whether
	// it is newer than the installed build.
	UpdateAvailabilityChanged(available bool, latestVersion, latestBuild string)
	// RelaunchRequested asks permission to restart the application after an
	// update was installed. respond may be called later and from any
	// goroutine.
	RelaunchRequested(respond func(allow bool))
}

// Funcs adapts plain functions to Observer. Register a *Funcs; a Funcs value
// holds func fields and has no identity of its own.
type Funcs struct {
	OnAvailabilityChanged func(available bool, latestVersion, latestBuild string)
	OnRelaunchRequested   func(respond func(allow bool))
}

func (f *Funcs) UpdateAvailabilityChanged(available bool, latestVersion, latestBuild string) {
	if f.OnAvailabilityChanged != nil {
		f.OnAvailabilityChanged(available, latestVersion, latestBuild)
	}
}

func (f *Funcs) RelaunchRequested(respond func(allow bool)) {
	if f.OnRelaunchRequested != nil {
		f.OnRelaunchRequested(respond)
	}
}

// Registry is an ordered, identity-deduplicated list of observers.
type Registry struct {
	observers []Observer
	log       zerolog.Logger
}

// NewRegistry returns an empty registry that logs through log.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log}
}

// Add appends o unless an observer with the same identity is already present.
// Observers without identity are logged and ignored.
func (r *Registry) Add(o Observer) {
	if o == nil {
		return
	}
	if !hasIdentity(o) {
		r.log.Error().
			Str("observer", fmt.Sprintf("%T", o)).
			Msg("observer has no identity; register a pointer")
		return
	}
	for _, existing := range r.observers {
		if same(existing, o) {
			return
		}
	}
	r.observers = append(r.observers, o)
}

// Remove drops every entry with o's identity. Removing an absent observer is
// a no-op.
func (r *Registry) Remove(o Observer) {
	if o == nil {
		return
	}
	kept := make([]Observer, 0, len(r.observers))
	for _, existing := range r.observers {
		if !same(existing, o) {
			kept = append(kept, existing)
		}
	}
	r.observers = kept
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	return len(r.observers)
}

// NotifyAll calls UpdateAvailabilityChanged on each observer in registration
// order. The list is captured before the first call; observers added or
// removed from inside a callback take effect on the next notification.
func (r *Registry) NotifyAll(available bool, latest version.Identifier) {
	for _, o := range r.snapshot() {
		r.safely(o, "availability", func() {
			o.UpdateAvailabilityChanged(available, latest.Display, latest.Build)
		})
	}
}

// RequestRelaunch asks every observer for permission to relaunch. Each answer
// is forwarded to respond, so with several responders the last answer wins.
// Without observers the request is denied immediately.
func (r *Registry) RequestRelaunch(respond func(allow bool)) {
	observers := r.snapshot()
	if len(observers) == 0 {
		r.log.Info().Msg("relaunch requested with no observers; denying")
		respond(false)
		return
	}
	for _, o := range observers {
		r.safely(o, "relaunch", func() {
			o.RelaunchRequested(respond)
		})
	}
}

func (r *Registry) snapshot() []Observer {
	out := make([]Observer, len(r.observers))
	copy(out, r.observers)
	return out
}

func (r *Registry) safely(o Observer, callback string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("callback", callback).
				Str("observer", fmt.Sprintf("%T", o)).
				Interface("panic", rec).
				Msg("observer panicked; continuing delivery")
		}
	}()
	fn()
}

// hasIdentity reports whether o is a reference whose address identifies it.
func hasIdentity(o Observer) bool {
	switch reflect.ValueOf(o).Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// same reports whether a and b are the same observer by address. Observers
// without identity never match.
func same(a, b Observer) bool {
	if !hasIdentity(a) || !hasIdentity(b) {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	return va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}
