package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestIncrementWindow(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	n, ttl, err := rs.IncrementWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(20 * time.Second)
	n, ttl, err = rs.IncrementWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 40*time.Second, ttl)

	mr.FastForward(41 * time.Second)
	n, _, err = rs.IncrementWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// failExpire rejects every EXPIRE command.
type failExpire struct{}

func (failExpire) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "expire") {
			err := errors.New("expire refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIncrementWindowRepairsMissingExpiry(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	// left behind by a writer that died between INCR and EXPIRE
	require.NoError(t, rs.Client.Incr(ctx, "k").Err())
	n, ttl, err := rs.IncrementWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestIncrementWindowLogsFailedRepair(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rs.Client.Incr(ctx, "k").Err())

	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	rs.Client.AddHook(failExpire{})

	n, ttl, err := rs.IncrementWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Duration(0), mr.TTL("k"))

	entries := logs.FilterMessage("redis expire repair failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].ContextMap()["key"])
}

func TestClaimKey(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	ok, err := rs.ClaimKey(ctx, "idem:a", "pending", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rs.ClaimKey(ctx, "idem:a", "pending", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rs.SetKey(ctx, "idem:a", "action-1", time.Hour))
	v, err := rs.GetKey(ctx, "idem:a")
	require.NoError(t, err)
	assert.Equal(t, "action-1", v)

	require.NoError(t, rs.DeleteKey(ctx, "idem:a"))
	v, err = rs.GetKey(ctx, "idem:a")
	require.NoError(t, err)
	assert.Empty(t, v)
}
