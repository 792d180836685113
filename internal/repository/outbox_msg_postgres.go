package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
)

type outboxMsgRepository struct {
	db db.DB
}

func (r outboxMsgRepository) CreateOutboxMsg(ctx context.Context, params CreateOutboxMsgParams) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	headersBytes, err := json.Marshal(params.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	query, args, err := psql.
		Insert("outbox_messages").
		SetMap(map[string]any{
			"id":            id,
			"topic":         params.Topic,
			"headers":       json.RawMessage(headersBytes),
			"payload":       params.Payload,
			"partition_key": params.PartitionKey,
			"created_at":    time.Now(),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create outbox msg query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("outbox msg create: %w", err)
	}

	return nil
}

func (r outboxMsgRepository) ListUnprocessedOutboxMsgs(ctx context.Context, params ListUnprocessedOutboxMsgsParams) ([]ListUnprocessedOutboxMsgsResult, error) {
	query, args, err := psql.
		Select("id", "topic", "headers", "payload", "partition_key").
		From("outbox_messages").
		Where("processed_at IS NULL").
		OrderBy("created_at").
		Limit(uint64(max(params.BatchSize, 0))).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list unprocessed outbox msgs query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("outbox msg list unprocessed: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ListUnprocessedOutboxMsgsResult, error) {
		var (
			res     ListUnprocessedOutboxMsgsResult
			headers []byte
		)
		if err := row.Scan(&res.ID, &res.Topic, &headers, &res.Payload, &res.PartitionKey); err != nil {
			return ListUnprocessedOutboxMsgsResult{}, err
		}

		res.Headers = map[string]string{}
		if headers != nil {
			if err := json.Unmarshal(headers, &res.Headers); err != nil {
				return ListUnprocessedOutboxMsgsResult{}, fmt.Errorf("unmarshal headers: %w", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect outbox msgs: %w", err)
	}

	return results, nil
}

func (r outboxMsgRepository) BulkUpdateOutboxMsgs(ctx context.Context, params BulkUpdateOutboxMsgsParams) error {
	ids := make([]uuid.UUID, 0, len(params.Items))
	errs := make([]*string, 0, len(params.Items))
	for _, item := range params.Items {
		ids = append(ids, item.ID)
		errs = append(errs, item.Error)
	}

	_, err := r.db.Exec(ctx, `
		UPDATE outbox_messages AS o
		SET
			processed_at = NOW(),
			error        = e.error
		FROM (
			SELECT UNNEST(@ids::uuid[])  AS id,
				UNNEST(@errors::text[]) AS error
		) AS e
		WHERE o.id = e.id;
	`, pgx.NamedArgs{
		"ids":    ids,
		"errors": errs,
	})
	if err != nil {
		return fmt.Errorf("outbox msg bulk update: %w", err)
	}

	return nil
}
