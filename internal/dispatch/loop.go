// Package dispatch provides the coordination goroutine: a single goroutine
// that runs posted tasks one at a time, in posting order.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrStopped is returned by Call when the loop is not accepting tasks.
var ErrStopped = errors.New("dispatch loop stopped")

// Loop runs posted tasks sequentially on the goroutine that called Run.
// Posting never blocks, so tasks may post further tasks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}

	running atomic.Bool
	busy    atomic.Bool
	log     zerolog.Logger
}

// New returns a loop that is not yet running. Tasks posted before Run are
// queued.
func New(log zerolog.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
}

// Run executes tasks until ctx is done. Tasks still queued at that point are
// dropped. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("dispatch loop already running")
	}
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		if dropped > 0 {
			l.log.Debug().Int("dropped", dropped).Msg("dispatch loop stopped with queued tasks")
		}
	}()

	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.execute(task)
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

// Post queues fn and reports whether it was accepted.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call posts fn and waits for it to finish. Calling it from a task on the
// same loop would deadlock; tasks should call fn directly instead.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The task may have been dropped on shutdown.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether a task is executing right now. Code running inside a
// task always observes true.
func (l *Loop) Busy() bool {
	return l.busy.Load()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) execute(task func()) {
	l.busy.Store(true)
	defer l.busy.Store(false)
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error().Interface("panic", rec).Msg("dispatch task panicked")
		}
	}()
	task()
}
