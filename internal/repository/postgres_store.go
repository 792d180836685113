package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
)

var _ Store = (*postgresStore)(nil)

// psql builds statements with $n placeholders for pgx.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// postgresStore keeps one product per row; ids come from an identity column.
type postgresStore struct {
	db db.DB
}

// NewPostgresStore returns a Store backed by postgres.
func NewPostgresStore(db db.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Products() ProductRepository {
	return &productRepository{db: s.db}
}

func (s *postgresStore) OutboxMsgs() OutboxMsgRepository {
	return &outboxMsgRepository{db: s.db}
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithTx(ctx, func(tx db.DB) error {
		return fn(&postgresStore{db: tx})
	})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	p, ok := s.db.(db.Pinger)
	if !ok {
		return nil
	}

	if err := p.Ping(ctx); err != nil {
		return apperr.StorageUnavailableErr.WrapParent(err)
	}
	return nil
}

var errNotNumericID = errors.New("product id is not numeric")

func numericID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", errNotNumericID, id)
	}
	return n, nil
}
