package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
)

func TestRedisDispatcherPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "moderation-notifications")
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	d := NewRedisDispatcher(db.NewRedisStore(client), "moderation-notifications", zap.NewNop())
	require.NoError(t, d.Dispatch(ctx, models.NotificationIntent{
		UserID: "u1",
		Type:   models.NotificationSuspended,
		Data:   map[string]any{"days": 3},
	}))

	select {
	case msg := <-sub.Channel():
		var got models.NotificationIntent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, models.NotificationSuspended, got.Type)
		assert.EqualValues(t, 3, got.Data["days"])
		assert.False(t, got.CreatedAt.IsZero())
	case <-ctx.Done():
		t.Fatal("no notification received")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("redis down")
}

func TestRedisDispatcherError(t *testing.T) {
	d := NewRedisDispatcher(failingPublisher{}, "c", nil)
	err := d.Dispatch(context.Background(), models.NotificationIntent{UserID: "u1", Type: models.NotificationWarning})
	assert.Error(t, err)
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(nil)
	assert.NoError(t, d.Dispatch(context.Background(), models.NotificationIntent{UserID: "u1"}))
}
