package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	ps "cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	topic   string
	payload []byte
}

func (c *capture) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	c.topic = topic
	c.payload = payload
	return "1", nil
}

func TestNewPublisherInvalidProject(t *testing.T) {
	_, err := NewPublisher(context.Background(), "")
	assert.Error(t, err)
}

func TestNoopPublish(t *testing.T) {
	id, err := Noop{}.Publish(context.Background(), "events", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestPublishEventEnvelope(t *testing.T) {
	c := &capture{}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := PublishEvent(context.Background(), c, "events", Event{
		Type:       EventPDFUploaded,
		UserID:     7,
		OccurredAt: at,
		Data:       map[string]any{"pdf_id": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "events", c.topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(c.payload, &got))
	assert.Equal(t, "pdf.uploaded", got["type"])
	assert.EqualValues(t, 7, got["user_id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got["occurred_at"])
}

func TestPublishWithEmulator(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, "test-project")
	require.NoError(t, err)
	defer pub.Close()

	topic, err := pub.client.CreateTopic(ctx, "test-topic")
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "test-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	msgID, err := PublishEvent(ctx, pub, "test-topic", Event{Type: EventPaymentCompleted, UserID: 1})
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan []byte, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			c <- m.Data
			m.Ack()
			cancel()
		})
	}()

	select {
	case data := <-c:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, EventPaymentCompleted, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
