package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/votewatch/internal/indexing/metrics"
)

// Limiter is a sliding-window rate limiter shared by every outbound RPC call.
//
// Each Acquire reserves an admission instant under the lock, in arrival order,
// and then sleeps until that instant. Reservations are never reordered, so
// callers are admitted FIFO.
type Limiter struct {
	cfg Config

	mu    sync.Mutex
	slots []time.Time // admission instants in ascending order

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source and sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// NewLimiter creates a limiter admitting cfg.Limit requests per cfg.Window.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	l := &Limiter{
		cfg:   cfg,
		slots: make([]time.Time, 0, cfg.Limit),
		now:   time.Now,
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until one more request fits in the window.
// A cancelled context returns ctx.Err(); the reserved slot is not reclaimed.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	at := l.reserve()
	wait := at.Sub(l.now())
	if wait <= 0 {
		return nil
	}

	metrics.RateLimitWaitSeconds.Observe(wait.Seconds())
	return l.sleep(ctx, wait)
}

func (l *Limiter) reserve() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	// Drop admissions that have left the trailing window.
	i := 0
	for i < len(l.slots) && !l.slots[i].After(cutoff) {
		i++
	}
	l.slots = l.slots[i:]

	at := now
	if len(l.slots) >= l.cfg.Limit {
		// The slot Limit places back must leave the window first.
		at = l.slots[len(l.slots)-l.cfg.Limit].Add(l.cfg.Window)
	}
	l.slots = append(l.slots, at)

	return at
}

// InFlight returns the number of admissions inside the current window,
// including reservations that have not been admitted yet.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.Window)
	n := 0
	for _, s := range l.slots {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
