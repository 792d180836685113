package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
	"github.com/tuanvumaihuynh/product-catalog/pkg/ptr"
)

// Service moves outbox messages written alongside catalog mutations to the
// message broker.
type Service struct {
	cfg        config.Relay
	logger     *slog.Logger
	store      repository.Store
	mqProducer mq.Producer

	stopChan chan struct{}
}

func NewService(
	cfg config.Relay,
	logger *slog.Logger,
	store repository.Store,
	mqProducer mq.Producer,
) *Service {
	return &Service{
		cfg:        cfg,
		logger:     logger.With(slog.String("service", "relay")),
		store:      store,
		mqProducer: mqProducer,
		stopChan:   make(chan struct{}),
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		s.run(ctx)
	}()

	return func() {
		close(s.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(5 * time.Second):
			cancel()
			<-stoppedChan
		}
		cancel()
	}
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RelayBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error relaying outbox msgs", slog.Any("error", err))
			}
		}
	}
}

// RelayBatch produces one batch of unprocessed outbox messages and marks each
// of them processed, recording the produce error of those that failed. It
// returns the number of messages handled.
//
// Stores whose transactions lock out every other caller are not held while
// producing: the batch is listed and marked in two separate transactions.
func (s *Service) RelayBatch(ctx context.Context) (int, error) {
	if exclusive, ok := s.store.(repository.ExclusiveTx); ok && exclusive.ExclusiveTx() {
		return s.relay(ctx, s.store)
	}

	var count int
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		count, err = s.relay(ctx, tx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store with tx: %w", err)
	}

	return count, nil
}

func (s *Service) relay(ctx context.Context, store repository.Store) (int, error) {
	outboxMsgs, err := store.OutboxMsgs().ListUnprocessedOutboxMsgs(ctx, repository.ListUnprocessedOutboxMsgsParams{
		//nolint:gosec
		BatchSize: int32(s.cfg.BatchSize),
	})
	if err != nil {
		return 0, fmt.Errorf("list unprocessed outbox msgs: %w", err)
	}

	count := len(outboxMsgs)
	if count == 0 {
		return 0, nil
	}

	s.logger.InfoContext(ctx, "relaying outbox msgs", slog.Int("count", count))

	items := s.produceAll(ctx, outboxMsgs)

	if err := store.OutboxMsgs().BulkUpdateOutboxMsgs(ctx, repository.BulkUpdateOutboxMsgsParams{
		Items: items,
	}); err != nil {
		return 0, fmt.Errorf("bulk update outbox msgs: %w", err)
	}

	return count, nil
}

func (s *Service) produceAll(ctx context.Context, outboxMsgs []repository.ListUnprocessedOutboxMsgsResult) []repository.BulkUpdateOutboxMsgsItem {
	items := make([]repository.BulkUpdateOutboxMsgsItem, 0, len(outboxMsgs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, msg := range outboxMsgs {
		wg.Go(func() {
			item := repository.BulkUpdateOutboxMsgsItem{ID: msg.ID}

			if err := s.produce(ctx, mq.ProduceMsg{
				Topic:        msg.Topic,
				Headers:      msg.Headers,
				Payload:      msg.Payload,
				PartitionKey: msg.PartitionKey,
			}); err != nil {
				s.logger.ErrorContext(ctx,
					"error producing message",
					slog.String("outbox_msg_id", msg.ID.String()),
					slog.String("topic", msg.Topic),
					slog.Any("error", err),
				)
				item.Error = ptr.New(err.Error())
			}

			mu.Lock()
			items = append(items, item)
			mu.Unlock()
		})
	}

	wg.Wait()
	return items
}

func (s *Service) produce(ctx context.Context, msg mq.ProduceMsg) error {
	if s.cfg.ProduceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProduceTimeout)
		defer cancel()
	}
	return s.mqProducer.Produce(ctx, msg)
}
