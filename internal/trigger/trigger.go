// Package trigger decides when sync passes run. It owns a single worker
// goroutine per owner, so at most one pass is ever in flight: explicit
// requests are debounced and coalesced, connectivity-restored events run
// immediately, and a periodic ticker acts as a backstop for missed signals.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the trigger's scheduling state.
type State int

const (
	// StateIdle means no pass is running or scheduled.
	StateIdle State = iota
	// StatePending means a pass is scheduled but not started yet.
	StatePending
	// StateRunning means a pass is in flight.
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

const (
	// DefaultDebounce collapses bursts of change signals into one pass.
	DefaultDebounce = 3 * time.Second
	// DefaultInterval is the periodic backstop between attempts.
	DefaultInterval = 5 * time.Minute
)

// PassFunc runs one sync pass for the owner the trigger is bound to.
// A non-nil error means the pass ended; the trigger returns to idle and
// waits for the next scheduled attempt rather than retrying in a loop.
type PassFunc func(ctx context.Context) error

// Config tunes trigger timing. Zero values take the defaults.
type Config struct {
	Debounce time.Duration
	Interval time.Duration
}

// Trigger schedules sync passes. Create with New, start with Start, and
// signal with RequestSync / OnConnectivityRestored from any goroutine.
type Trigger struct {
	run      PassFunc
	debounce time.Duration
	interval time.Duration

	mu    sync.Mutex
	state State
	rearm bool // a request arrived while a pass was running

	requests  chan struct{}
	immediate chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped trigger bound to one pass function.
func New(run PassFunc, cfg Config) *Trigger {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Trigger{
		run:       run,
		debounce:  cfg.Debounce,
		interval:  cfg.Interval,
		requests:  make(chan struct{}, 1),
		immediate: make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. The trigger stops when ctx is
// cancelled or Stop is called.
func (t *Trigger) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.loop(ctx)
}

// Stop cancels the worker and waits for any in-flight pass to finish its
// cooperative cancellation.
func (t *Trigger) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// State returns the current scheduling state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RequestSync schedules a pass soon. Non-blocking; requests within the
// debounce window, or while a pass is already pending, collapse into one.
// A request during a running pass re-arms the trigger for one more pass.
func (t *Trigger) RequestSync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateRunning:
		t.rearm = true
	case StatePending:
		// coalesced
	case StateIdle:
		t.state = StatePending
		select {
		case t.requests <- struct{}{}:
		default:
		}
	}
}

// OnConnectivityRestored forces an immediate pass if one is not already
// running.
func (t *Trigger) OnConnectivityRestored() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning {
		t.rearm = true
		return
	}
	t.state = StatePending
	select {
	case t.immediate <- struct{}{}:
	default:
	}
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(t.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.requests:
			debounce.Reset(t.debounce)

		case <-debounce.C:
			t.runPass(ctx, debounce)

		case <-t.immediate:
			stopTimer(debounce)
			t.runPass(ctx, debounce)

		case <-ticker.C:
			// Backstop: attempt a pass even without explicit requests.
			stopTimer(debounce)
			t.runPass(ctx, debounce)
		}
	}
}

// runPass executes one pass inline on the worker goroutine, which is what
// guarantees single-flight. If a request arrived mid-pass, the debounce
// timer is re-armed for one follow-up pass.
func (t *Trigger) runPass(ctx context.Context, debounce *time.Timer) {
	t.mu.Lock()
	t.state = StateRunning
	t.rearm = false
	t.mu.Unlock()

	// Drop any queued request token; this pass covers it.
	select {
	case <-t.requests:
	default:
	}

	if err := t.run(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("sync pass failed", "err", err)
	}

	t.mu.Lock()
	if t.rearm {
		t.rearm = false
		t.state = StatePending
		debounce.Reset(t.debounce)
	} else {
		t.state = StateIdle
	}
	t.mu.Unlock()
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
