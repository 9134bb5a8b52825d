// Package ratelimit enforces the provider's global API budget: 600 calls per
// rolling 900 second window, shared across every worker and call type.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants call slots. Acquire blocks until a slot is free within the
// budget; it never drops a caller. The only error it returns is the context's.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Budget is a rolling call allowance.
type Budget struct {
	Calls  int
	Window time.Duration
}

// StravaBudget is the provider's published limit.
var StravaBudget = Budget{Calls: 600, Window: 900 * time.Second}

// admit prunes stamps older than the trailing window and either records a new
// call at now (wait == 0) or reports how long until the oldest call ages out.
func admit(stamps []time.Time, now time.Time, b Budget) (kept []time.Time, wait time.Duration) {
	cutoff := now.Add(-b.Window)
	kept = stamps[:0]
	for _, s := range stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}

	if len(kept) < b.Calls {
		return append(kept, now), 0
	}
	return kept, kept[0].Add(b.Window).Sub(now)
}

// Window is an exact in-process sliding-window limiter. The Nth call within
// the trailing window is admitted immediately; call N+1 waits until the oldest
// admission leaves the window.
type Window struct {
	mu     sync.Mutex
	budget Budget
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWindow(b Budget) *Window {
	return &Window{
		budget: b,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		stamps, wait := admit(w.stamps, w.now(), w.budget)
		w.stamps = stamps
		w.mu.Unlock()

		if wait == 0 {
			return nil
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Smoothed spaces calls evenly across the window instead of admitting bursts.
// Backed by x/time/rate; used by operator tooling where burst headroom should
// be left to the worker fleet.
type Smoothed struct {
	l *rate.Limiter
}

func NewSmoothed(b Budget) *Smoothed {
	interval := b.Window / time.Duration(b.Calls)
	return &Smoothed{l: rate.NewLimiter(rate.Every(interval), 1)}
}

func (s *Smoothed) Acquire(ctx context.Context) error {
	return s.l.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
