package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/observability"
)

// WindowCounter increments a counter that expires after window. It is
// satisfied by *db.RedisStore.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisLimiter is a fixed-window limiter whose counters live in Redis, so
// every server instance sees the same counts.
type RedisLimiter struct {
	counter WindowCounter
	limits  Limits
	metrics observability.MetricsRegistry
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(counter WindowCounter, limits Limits, metrics observability.MetricsRegistry, logger *zap.Logger) *RedisLimiter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{counter: counter, limits: limits, metrics: metrics, logger: logger, now: time.Now}
}

// windowKey is ratelimit:{actor}:{kind}:{windowStart}.
func windowKey(actorID string, kind ActionKind, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", actorID, kind, windowStart.Unix())
}

// Check consumes one action for actorID. Redis errors allow the action.
func (r *RedisLimiter) Check(ctx context.Context, actorID string, kind ActionKind) Result {
	limit, ok := r.limits[kind]
	if !ok {
		return allowed
	}
	r.metrics.IncrementRateLimitRequests(string(kind))

	now := r.now()
	start := now.Truncate(limit.Window)
	count, _, err := r.counter.IncrementWindow(ctx, windowKey(actorID, kind, start), limit.Window)
	if err != nil {
		// fail open when Redis is down or slow
		r.logger.Warn("rate limit counter unavailable",
			zap.Error(err),
			zap.String("actor_id", actorID),
			zap.String("action_kind", string(kind)))
		return allowed
	}
	if count <= limit.Max {
		return allowed
	}
	r.metrics.IncrementRateLimitHits(string(kind))
	return Denied(start.Add(limit.Window).Sub(now))
}
