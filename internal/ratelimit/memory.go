package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/patrickwarner/trustsafety/internal/observability"
)

// MemoryLimiter keeps a sliding-window limiter per (actor, kind) in a bounded
// LRU. State is per process and lost on restart.
type MemoryLimiter struct {
	limits  Limits
	metrics observability.MetricsRegistry

	mu       sync.Mutex
	limiters *expirable.LRU[string, *windowLimiter]
	now      func() time.Time
}

type windowLimiter struct {
	lim *slidingwindow.Limiter
	win *trackedWindow
}

func newWindowLimiter(l Limit) *windowLimiter {
	local, _ := slidingwindow.NewLocalWindow()
	win := &trackedWindow{local: local, size: l.Window}
	lim, _ := slidingwindow.NewLimiter(l.Window, l.Max, func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return win, func() {}
	})
	return &windowLimiter{lim: lim, win: win}
}

// trackedWindow is the limiter's current window. It remembers the count the
// previous window inherited on rollover, which slidingwindow keeps private.
type trackedWindow struct {
	mu    sync.Mutex
	local *slidingwindow.LocalWindow
	size  time.Duration
	prev  int64
}

func (w *trackedWindow) Start() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.local.Start()
}

func (w *trackedWindow) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.local.Count()
}

func (w *trackedWindow) AddCount(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.local.AddCount(n)
}

func (w *trackedWindow) Reset(s time.Time, c int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// only an adjacent window carries its count forward
	if w.local.Start().Add(w.size).Equal(s) {
		w.prev = w.local.Count()
	} else {
		w.prev = 0
	}
	w.local.Reset(s, c)
}

func (w *trackedWindow) Sync(now time.Time) {}

// retryAfter returns how long until one more action fits, assuming no other
// actions happen meanwhile. The previous window's count decays linearly
// across the current one, so the wait can run past the window boundary.
func (w *trackedWindow) retryAfter(now time.Time, max int64) time.Duration {
	w.mu.Lock()
	start, curr, prev := w.local.Start(), w.local.Count(), w.prev
	w.mu.Unlock()

	size := w.size
	elapsed := now.Sub(start)
	if elapsed < 0 {
		// a caller with a later clock already advanced the window
		elapsed = 0
	}
	if max <= 0 {
		return size - elapsed
	}
	// the limiter allows once int(prev*weight)+curr+1 <= max, with weight
	// falling from 1 to 0 across the window; the bound is strict
	if curr < max {
		if prev == 0 {
			return 0
		}
		decayed := time.Duration(float64(size) * (1 - float64(max-curr)/float64(prev)))
		if decayed < elapsed {
			return 0
		}
		return decayed - elapsed + time.Nanosecond
	}
	next := time.Duration(float64(size) * (1 - float64(max)/float64(curr)))
	return size - elapsed + next + time.Nanosecond
}

// NewMemoryLimiter creates a limiter holding at most maxKeys actor/kind pairs.
// Idle pairs expire after twice the longest window, by which time the sliding
// window has fully drained.
func NewMemoryLimiter(limits Limits, maxKeys int, metrics observability.MetricsRegistry) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = 100000
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	ttl := 2 * limits.MaxWindow()
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryLimiter{
		limits:   limits,
		metrics:  metrics,
		limiters: expirable.NewLRU[string, *windowLimiter](maxKeys, nil, ttl),
		now:      time.Now,
	}
}

// Check consumes one action for actorID if the kind's limit allows it.
func (m *MemoryLimiter) Check(ctx context.Context, actorID string, kind ActionKind) Result {
	limit, ok := m.limits[kind]
	if !ok {
		return allowed
	}
	m.metrics.IncrementRateLimitRequests(string(kind))

	key := actorID + ":" + string(kind)
	m.mu.Lock()
	wl, exists := m.limiters.Get(key)
	if !exists {
		wl = newWindowLimiter(limit)
	}
	// re-adding refreshes the entry's expiry
	m.limiters.Add(key, wl)
	m.mu.Unlock()

	now := m.now()
	if wl.lim.AllowN(now, 1) {
		return allowed
	}
	m.metrics.IncrementRateLimitHits(string(kind))
	return Denied(wl.win.retryAfter(now, limit.Max))
}

// Len returns the number of tracked actor/kind pairs.
func (m *MemoryLimiter) Len() int {
	return m.limiters.Len()
}
