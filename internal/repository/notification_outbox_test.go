package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/models"
)

type listPusherStub struct {
	key    string
	values []interface{}
	err    error
}

func (s *listPusherStub) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "lpush", key)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.key = key
	s.values = append(s.values, values...)
	cmd.SetVal(int64(len(s.values)))
	return cmd
}

func TestNotificationOutboxPublish(t *testing.T) {
	stub := &listPusherStub{}
	outbox := NewNotificationOutbox(stub, "biblioteca:notificaciones", nil)

	due := time.Date(2024, 11, 25, 0, 0, 0, 0, time.UTC)
	err := outbox.Publish(context.Background(), models.Notification{
		ID:        "n-1",
		Type:      models.NotificationLoanExpired,
		LoanID:    "loan-1",
		StudentID: "est-1",
		BookID:    "lib-1",
		DueDate:   &due,
	})
	require.NoError(t, err)
	require.Equal(t, "biblioteca:notificaciones", stub.key)
	require.Len(t, stub.values, 1)

	var decoded models.Notification
	require.NoError(t, jsoniter.Unmarshal(stub.values[0].([]byte), &decoded))
	require.Equal(t, models.NotificationLoanExpired, decoded.Type)
	require.Equal(t, "est-1", decoded.StudentID)
}

func TestNotificationOutboxPublishError(t *testing.T) {
	stub := &listPusherStub{err: errors.New("connection refused")}
	outbox := NewNotificationOutbox(stub, "q", nil)

	err := outbox.Publish(context.Background(), models.Notification{ID: "n-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}
