package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/observability"
)

var fixedNow = time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

func setupTestRedis(t *testing.T) *db.RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return db.NewRedisStore(client)
}

func newBackends(t *testing.T, limits Limits) map[string]Limiter {
	mem := NewMemoryLimiter(limits, 100, nil)
	mem.now = func() time.Time { return fixedNow }
	rl := NewRedisLimiter(setupTestRedis(t), limits, nil, zap.NewNop())
	rl.now = func() time.Time { return fixedNow }
	return map[string]Limiter{"memory": mem, "redis": rl}
}

func TestSixthReportDenied(t *testing.T) {
	// the sliding window still counts the full hour at the boundary itself
	wantRetry := map[string]time.Duration{
		"memory": 3001 * time.Second,
		"redis":  3000 * time.Second,
	}
	for name, lim := range newBackends(t, DefaultLimits()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				res := lim.Check(ctx, "reporter", KindReport)
				assert.True(t, res.Allowed, "call %d", i)
			}
			res := lim.Check(ctx, "reporter", KindReport)
			assert.False(t, res.Allowed)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, wantRetry[name], res.RetryAfter)
			assert.Contains(t, res.Message, "Try again in")
		})
	}
}

func TestMemoryRetryHintFollowsSlidingWindow(t *testing.T) {
	mem := NewMemoryLimiter(Limits{KindComment: {Max: 4, Window: 10 * time.Minute}}, 10, nil)
	now := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.True(t, mem.Check(ctx, "u", KindComment).Allowed)
	}

	// at 12:12 the previous window still weighs 0.8: int(4*0.8)=3 plus one new
	now = time.Date(2026, 3, 1, 12, 12, 0, 0, time.UTC)
	require.True(t, mem.Check(ctx, "u", KindComment).Allowed)
	res := mem.Check(ctx, "u", KindComment)
	require.False(t, res.Allowed)
	assert.Equal(t, 31*time.Second, res.RetryAfter)

	denyAt := now.Add(29 * time.Second)
	allowAt := now.Add(res.RetryAfter)
	now = denyAt
	assert.False(t, mem.Check(ctx, "u", KindComment).Allowed)
	now = allowAt
	assert.True(t, mem.Check(ctx, "u", KindComment).Allowed)
}

func TestMemoryRetryHintAtWindowBoundary(t *testing.T) {
	mem := NewMemoryLimiter(Limits{KindPost: {Max: 2, Window: 10 * time.Minute}}, 10, nil)
	now := fixedNow
	mem.now = func() time.Time { return now }
	ctx := context.Background()

	require.True(t, mem.Check(ctx, "u", KindPost).Allowed)
	require.True(t, mem.Check(ctx, "u", KindPost).Allowed)
	res := mem.Check(ctx, "u", KindPost)
	require.False(t, res.Allowed)
	assert.Equal(t, 601*time.Second, res.RetryAfter)

	start := now
	now = start.Add(10 * time.Minute)
	assert.False(t, mem.Check(ctx, "u", KindPost).Allowed)
	now = start.Add(res.RetryAfter)
	assert.True(t, mem.Check(ctx, "u", KindPost).Allowed)
}

func TestKindsAndActorsAreIndependent(t *testing.T) {
	limits := Limits{
		KindReport:  {Max: 1, Window: time.Hour},
		KindComment: {Max: 1, Window: time.Minute},
	}
	for name, lim := range newBackends(t, limits) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.True(t, lim.Check(ctx, "a", KindReport).Allowed)
			assert.False(t, lim.Check(ctx, "a", KindReport).Allowed)
			assert.True(t, lim.Check(ctx, "a", KindComment).Allowed)
			assert.True(t, lim.Check(ctx, "b", KindReport).Allowed)
			// unknown kinds are never limited
			for i := 0; i < 10; i++ {
				assert.True(t, lim.Check(ctx, "a", ActionKind("wave")).Allowed)
			}
		})
	}
}

func TestMemoryLimiterResetsAfterWindow(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	mem := NewMemoryLimiter(Limits{KindPost: {Max: 2, Window: 10 * time.Minute}}, 10, metrics)
	now := fixedNow
	mem.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, mem.Check(ctx, "u", KindPost).Allowed)
	assert.True(t, mem.Check(ctx, "u", KindPost).Allowed)
	assert.False(t, mem.Check(ctx, "u", KindPost).Allowed)

	now = now.Add(25 * time.Minute)
	assert.True(t, mem.Check(ctx, "u", KindPost).Allowed)

	assert.Equal(t, 4, metrics.Count("ratelimit_requests", "post"))
	assert.Equal(t, 1, metrics.Count("ratelimit_hits", "post"))
	assert.Equal(t, 1, mem.Len())
}

func TestRedisLimiterNewWindow(t *testing.T) {
	rl := NewRedisLimiter(setupTestRedis(t), Limits{KindKudos: {Max: 1, Window: time.Minute}}, nil, nil)
	now := fixedNow
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "u", KindKudos).Allowed)
	assert.False(t, rl.Check(ctx, "u", KindKudos).Allowed)
	now = now.Add(time.Minute)
	assert.True(t, rl.Check(ctx, "u", KindKudos).Allowed)
}

type brokenCounter struct{}

func (brokenCounter) IncrementWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	rl := NewRedisLimiter(brokenCounter{}, Limits{KindReport: {Max: 1, Window: time.Hour}}, nil, zap.NewNop())
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Check(context.Background(), "u", KindReport).Allowed)
	}
}

func TestWindowKey(t *testing.T) {
	start := fixedNow.Truncate(time.Hour)
	assert.Equal(t, "ratelimit:u1:report:1772366400", windowKey("u1", KindReport, start))
}

func TestParseLimits(t *testing.T) {
	got, err := ParseLimits("report=3/30m, comment=20/1m,wave=1/1s", DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, Limit{Max: 3, Window: 30 * time.Minute}, got[KindReport])
	assert.Equal(t, Limit{Max: 20, Window: time.Minute}, got[KindComment])
	assert.Equal(t, Limit{Max: 5, Window: 10 * time.Minute}, got[KindPost])
	assert.Equal(t, Limit{Max: 1, Window: time.Second}, got[ActionKind("wave")])

	empty, err := ParseLimits("", DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), empty)

	for _, bad := range []string{"report", "report=5", "report=x/1h", "report=5/soon", "report=0/1h", "report=5/-1h"} {
		_, err := ParseLimits(bad, DefaultLimits())
		assert.Error(t, err, bad)
	}
}

func TestDenied(t *testing.T) {
	res := Denied(1500 * time.Millisecond)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)
	assert.Equal(t, "You're doing that too often. Try again in 2s.", res.Message)

	assert.Equal(t, time.Second, Denied(0).RetryAfter)
}

func TestAllowAll(t *testing.T) {
	var lim Limiter = AllowAll{}
	assert.True(t, lim.Check(context.Background(), "u", KindReport).Allowed)
}
