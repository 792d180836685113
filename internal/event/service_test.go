package event_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
)

type fakeConsumer struct {
	handlers map[string]mq.HandlerFunc
	ran      bool
}

func (c *fakeConsumer) RegisterHandler(topic string, handler mq.HandlerFunc) error {
	c.handlers[topic] = handler
	return nil
}

func (c *fakeConsumer) Run(context.Context) (mq.CleanupFunc, error) {
	c.ran = true
	return func() {}, nil
}

func TestEventService(t *testing.T) {
	var logs bytes.Buffer
	consumer := &fakeConsumer{handlers: map[string]mq.HandlerFunc{}}
	svc := event.New(slog.New(slog.NewJSONHandler(&logs, nil)), consumer)

	cleanup, err := svc.Run(context.Background())
	require.NoError(t, err)
	defer cleanup()

	t.Run("Should subscribe to every product topic", func(t *testing.T) {
		assert.True(t, consumer.ran)
		for _, topic := range event.Topics {
			assert.Contains(t, consumer.handlers, topic)
		}
	})

	t.Run("Should log a decoded product event", func(t *testing.T) {
		handler := consumer.handlers[event.TopicProductCreated]
		err := handler(context.Background(), event.TopicProductCreated, []byte(`{"product_id":"7","title":"Chair","price":49.99}`))
		require.NoError(t, err)

		out := logs.String()
		assert.Contains(t, out, `"product_id":"7"`)
		assert.Contains(t, out, `"price":"49.99"`)
	})

	t.Run("Should fail on a malformed payload", func(t *testing.T) {
		handler := consumer.handlers[event.TopicProductDeleted]
		assert.Error(t, handler(context.Background(), event.TopicProductDeleted, []byte(`not json`)))
	})
}
