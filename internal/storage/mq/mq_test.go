package mq

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tuanvumaihuynh/product-catalog/pkg/correlationid"
	"github.com/tuanvumaihuynh/product-catalog/pkg/ptr"
)

func TestBuildProduceRecord(t *testing.T) {
	t.Run("Should copy topic, payload, headers and key", func(t *testing.T) {
		rec := buildProduceRecord(ProduceMsg{
			Topic:        "product.created",
			Headers:      map[string]string{correlationid.Header: "abc"},
			Payload:      []byte(`{"product_id":"1"}`),
			PartitionKey: ptr.New("1"),
		})

		assert.Equal(t, "product.created", rec.Topic)
		assert.Equal(t, []byte(`{"product_id":"1"}`), rec.Value)
		assert.Equal(t, []byte("1"), rec.Key)
		assert.Equal(t, []kgo.RecordHeader{{Key: correlationid.Header, Value: []byte("abc")}}, rec.Headers)
	})

	t.Run("Should leave the key empty without a partition key", func(t *testing.T) {
		rec := buildProduceRecord(ProduceMsg{Topic: "product.deleted"})
		assert.Nil(t, rec.Key)
		assert.Empty(t, rec.Headers)
	})
}

func TestKafkaConsumerHandleRecord(t *testing.T) {
	var logs bytes.Buffer
	c := newKafkaConsumer(nil, slog.New(slog.NewTextHandler(&logs, nil)))

	var (
		gotTopic   string
		gotPayload []byte
		gotCorrID  string
	)
	require.NoError(t, c.RegisterHandler("product.created", func(ctx context.Context, topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		gotCorrID, _ = correlationid.FromContext(ctx)
		return nil
	}))
	require.NoError(t, c.RegisterHandler("product.updated", func(context.Context, string, []byte) error {
		return errors.New("boom")
	}))
	require.NoError(t, c.RegisterHandler("product.deleted", func(context.Context, string, []byte) error {
		panic("handler exploded")
	}))

	t.Run("Should refuse a second handler for the same topic", func(t *testing.T) {
		err := c.RegisterHandler("product.created", func(context.Context, string, []byte) error { return nil })
		assert.Error(t, err)
	})

	t.Run("Should dispatch with the correlation id from headers", func(t *testing.T) {
		c.handleRecord(context.Background(), &kgo.Record{
			Topic:   "product.created",
			Value:   []byte(`{}`),
			Headers: []kgo.RecordHeader{{Key: correlationid.Header, Value: []byte("corr-1")}},
		})

		assert.Equal(t, "product.created", gotTopic)
		assert.Equal(t, []byte(`{}`), gotPayload)
		assert.Equal(t, "corr-1", gotCorrID)
	})

	t.Run("Should log handler errors, panics and unknown topics", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			c.handleRecord(ctx, &kgo.Record{Topic: "product.updated"})
			c.handleRecord(ctx, &kgo.Record{Topic: "product.deleted"})
			c.handleRecord(ctx, &kgo.Record{Topic: "unknown"})
		})

		out := logs.String()
		assert.Contains(t, out, "error handling message")
		assert.Contains(t, out, "panic in message handler")
		assert.Contains(t, out, "no handler registered for topic")
	})
}
