// Package ratelimit throttles login attempts per identifier with a sliding
// window of attempt timestamps.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults for the login limiter.
const (
	DefaultMaxAttempts   = 5
	DefaultWindow        = 15 * time.Minute
	DefaultSweepInterval = time.Minute
)

// AttemptStore holds attempt timestamps per key. Implementations need not be
// durable; a restart may reset every counter.
type AttemptStore interface {
	// Get returns the recorded attempts for key, oldest first.
	Get(ctx context.Context, key string) ([]time.Time, error)
	// Put replaces the attempts for key. An empty slice deletes the key.
	Put(ctx context.Context, key string, attempts []time.Time) error
	// Sweep drops attempts at or before cutoff and evicts keys left empty.
	// It returns the number of evicted keys.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Config tunes a Limiter. Zero fields take the package defaults.
type Config struct {
	MaxAttempts   int
	Window        time.Duration
	SweepInterval time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts every attempt, successful or not. Once MaxAttempts are
// recorded inside the trailing Window, further attempts are denied and not
// recorded.
type Limiter struct {
	store         AttemptStore
	max           int
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	// mu serializes prune, check and append for this process.
	mu sync.Mutex
}

// New returns a Limiter over store.
func New(store AttemptStore, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Limiter{
		store:         store,
		max:           cfg.MaxAttempts,
		window:        cfg.Window,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		logger:        slog.Default(),
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// WithLogger sets the logger used by Run.
func (l *Limiter) WithLogger(logger *slog.Logger) *Limiter {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// MaxAttempts returns the per-window threshold.
func (l *Limiter) MaxAttempts() int { return l.max }

// Window returns the trailing window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records an attempt for key unless the key is already at its limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	attempts, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	live := l.prune(attempts, now)

	if len(live) >= l.max {
		if len(live) != len(attempts) {
			if err := l.store.Put(ctx, key, live); err != nil {
				return Decision{}, err
			}
		}
		return Decision{
			Allowed:    false,
			RetryAfter: live[0].Add(l.window).Sub(now),
		}, nil
	}

	live = append(live, now)
	if err := l.store.Put(ctx, key, live); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true, Remaining: l.max - len(live)}, nil
}

// Sweep prunes every key once and returns how many keys were evicted.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.now().Add(-l.window))
}

// Run sweeps on every interval tick until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := l.Sweep(ctx)
			if err != nil {
				l.logger.Warn("login limiter sweep failed", "error", err)
				continue
			}
			if evicted > 0 {
				l.logger.Debug("login limiter sweep", "evicted", evicted)
			}
		}
	}
}

// prune keeps attempts younger than the window. Input is oldest first.
func (l *Limiter) prune(attempts []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(attempts) && now.Sub(attempts[i]) >= l.window {
		i++
	}
	out := make([]time.Time, len(attempts)-i, len(attempts)-i+1)
	copy(out, attempts[i:])
	return out
}
