package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"session_auth/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	key    string
	msgs   []amqp.Publishing
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	client := &RabbitMQClient{channel: ch, queue: "auth_events"}

	event := models.Event{
		Type:       models.EventUserLoggedIn,
		UserID:     "id-1",
		Email:      "user@example.com",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, client.Publish(context.Background(), event))

	assert.Equal(t, "auth_events", ch.key)
	require.Len(t, ch.msgs, 1)

	msg := ch.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "user.logged_in", msg.Type)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var got models.Event
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, event, got)

	assert.NoError(t, client.Ping(context.Background()))

	client.Close()
	assert.True(t, ch.closed)
}

func TestPublish_Error(t *testing.T) {
	boom := errors.New("channel closed")
	client := &RabbitMQClient{channel: &fakeChannel{err: boom}, queue: "q"}

	err := client.Publish(context.Background(), models.Event{Type: models.EventUserRegistered})
	assert.ErrorIs(t, err, boom)
}
