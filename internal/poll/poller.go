// Generic cancellable repeating-refresh primitive.
//
// A Poller invokes a refresh operation, waits for it to settle, and only
// then schedules the next invocation one interval later. Intervals are
// measured from completion, not a fixed-rate clock, so a slow refresh
// self-throttles instead of overlapping itself. Refresh errors do not stop
// the poller; transient backend failures are the refresh's own problem to
// report.
package poll

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

const defaultInterval = 5 * time.Second

type options struct {
	interval  time.Duration
	immediate bool
	clock     Clock
}

type Option func(*options)

// WithInterval sets the completion-to-start delay between refreshes.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithImmediate controls whether the first refresh fires right away
// (default) or only after one interval.
func WithImmediate(v bool) Option {
	return func(o *options) { o.immediate = v }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

type Poller struct {
	mu       sync.Mutex
	state    State
	timer    Timer
	interval time.Duration
	clock    Clock
	refresh  func(ctx context.Context) error
	ctx      context.Context
	cancel   context.CancelFunc
}

// Start creates a poller and moves it to running synchronously; there is no
// paused state and no way back out of stopped.
func Start(refresh func(ctx context.Context) error, opts ...Option) *Poller {
	o := options{interval: defaultInterval, immediate: true, clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		state:    StateCreated,
		interval: o.interval,
		clock:    o.clock,
		refresh:  refresh,
		ctx:      ctx,
		cancel:   cancel,
	}

	p.mu.Lock()
	p.state = StateRunning
	if o.immediate {
		p.schedule(0)
	} else {
		p.schedule(p.interval)
	}
	p.mu.Unlock()
	return p
}

// schedule arms the next tick. Callers hold p.mu.
func (p *Poller) schedule(d time.Duration) {
	if p.state != StateRunning {
		return
	}
	p.timer = p.clock.AfterFunc(d, p.tick)
}

func (p *Poller) tick() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// The refresh runs outside the lock; Stop during the call lets it
	// finish, and the caller's own guard (Context) discards the result.
	_ = p.refresh(p.ctx)

	p.mu.Lock()
	p.schedule(p.interval)
	p.mu.Unlock()
}

// Stop cancels the poller. Idempotent. A refresh already in flight is not
// interrupted beyond its context being cancelled; no further tick will be
// scheduled once it returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	p.cancel()
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Context is cancelled by Stop. Callers use it to guard against publishing
// results that settle after they stopped caring.
func (p *Poller) Context() context.Context {
	return p.ctx
}
