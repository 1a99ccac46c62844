package repository

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/library-loans-api/internal/models"
)

type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// NotificationOutbox appends loan notifications to a Redis list consumed by
// the messaging service.
type NotificationOutbox struct {
	client listPusher
	key    string
	logger *zap.Logger
}

// NewNotificationOutbox constructs an outbox writing to the given list key.
func NewNotificationOutbox(client listPusher, key string, logger *zap.Logger) *NotificationOutbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationOutbox{client: client, key: key, logger: logger}
}

// Publish pushes the notification onto the outbox list.
func (o *NotificationOutbox) Publish(ctx context.Context, notification models.Notification) error {
	if o.client == nil {
		return nil
	}

	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", notification.ID, err)
	}

	depth, err := o.client.LPush(ctx, o.key, payload).Result()
	if err != nil {
		return fmt.Errorf("redis lpush %s: %w", o.key, err)
	}

	o.logger.Debug("notification queued",
		zap.String("type", string(notification.Type)),
		zap.String("loan_id", notification.LoanID),
		zap.Int64("depth", depth),
	)
	return nil
}
