package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
)

// Service is the event service.
type Service struct {
	logger     *slog.Logger
	mqConsumer mq.Consumer
}

// New creates a new event service.
func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
) *Service {
	return &Service{
		logger:     logger.With(slog.String("service", "event")),
		mqConsumer: mqConsumer,
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	for _, topic := range Topics {
		if err := s.mqConsumer.RegisterHandler(topic, s.handle); err != nil {
			return nil, fmt.Errorf("register %s event handler: %w", topic, err)
		}
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	cleanup := func() {
		mqCleanup()
	}

	return cleanup, nil
}

func (s *Service) handle(ctx context.Context, topic string, payload []byte) error {
	var ev ProductEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("unmarshal %s event: %w", topic, err)
	}

	if err := s.handleProductEvent(ctx, topic, ev); err != nil {
		return fmt.Errorf("handle %s event: %w", topic, err)
	}

	return nil
}
