// Package notify hands notification intents to the delivery pipeline.
// Delivery is at-least-once and best effort; callers never fail an action
// because a notification could not be sent.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// Dispatcher emits notification intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.NotificationIntent) error
}

// Publisher sends a payload on a pub/sub channel. *db.RedisStore implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisDispatcher publishes intents as JSON on a Redis channel consumed by
// the push delivery service.
type RedisDispatcher struct {
	pub     Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisDispatcher creates a dispatcher publishing on channel.
func NewRedisDispatcher(pub Publisher, channel string, logger *zap.Logger) *RedisDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisDispatcher{pub: pub, channel: channel, logger: logger}
}

// Dispatch publishes n.
func (d *RedisDispatcher) Dispatch(ctx context.Context, n models.NotificationIntent) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := d.pub.Publish(ctx, d.channel, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	d.logger.Debug("notification published",
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type))
	return nil
}

// LogDispatcher only logs intents. It is used when Redis is unavailable.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a logging dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n models.NotificationIntent) error {
	d.logger.Info("notification intent",
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
		zap.Any("data", n.Data))
	return nil
}
