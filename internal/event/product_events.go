package event

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	TopicProductCreated = "product.created"
	TopicProductUpdated = "product.updated"
	TopicProductDeleted = "product.deleted"
)

// Topics lists every topic the catalog publishes.
var Topics = []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}

// ProductEvent is the payload of every product topic. Deletions only carry ProductID.
type ProductEvent struct {
	ProductID string           `json:"product_id"`
	Title     string           `json:"title,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Image     string           `json:"image,omitempty"`
}

func (s *Service) handleProductEvent(ctx context.Context, topic string, ev ProductEvent) error {
	attrs := []any{
		slog.String("topic", topic),
		slog.String("product_id", ev.ProductID),
	}
	if ev.Title != "" {
		attrs = append(attrs, slog.String("title", ev.Title))
	}
	if ev.Price != nil {
		attrs = append(attrs, slog.String("price", ev.Price.String()))
	}

	s.logger.InfoContext(ctx, "handling product event", attrs...)
	return nil
}
