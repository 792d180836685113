package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/document"
)

var (
	_ Store       = (*documentStore)(nil)
	_ ExclusiveTx = (*documentStore)(nil)
)

// documentStore keeps the catalog in a single JSON document. Outside WithTx
// every mutation is its own read-modify-write transaction.
type documentStore struct {
	db *document.DB
	tx *document.Document
}

// NewDocumentStore returns a Store backed by the given document file.
func NewDocumentStore(db *document.DB) Store {
	return &documentStore{db: db}
}

func (s *documentStore) Products() ProductRepository {
	return documentProductRepository{s: s}
}

func (s *documentStore) OutboxMsgs() OutboxMsgRepository {
	return documentOutboxMsgRepository{s: s}
}

func (s *documentStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.update(ctx, func(doc *document.Document) error {
		if s.tx != nil {
			return fn(s)
		}
		return fn(&documentStore{db: s.db, tx: doc})
	})
}

// ExclusiveTx reports whether WithTx would take the document write lock. A
// store already inside a transaction holds it.
func (s *documentStore) ExclusiveTx() bool {
	return s.tx == nil
}

func (s *documentStore) Ping(ctx context.Context) error {
	return storageError(s.db.Check(ctx), nil)
}

func (s *documentStore) view(ctx context.Context, fn func(document.Document) error) error {
	if s.tx != nil {
		return fn(*s.tx)
	}

	var fnErr error
	err := s.db.View(ctx, func(doc document.Document) error {
		fnErr = fn(doc)
		return fnErr
	})
	return storageError(err, fnErr)
}

func (s *documentStore) update(ctx context.Context, fn func(*document.Document) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	var fnErr error
	err := s.db.Update(ctx, func(doc *document.Document) error {
		fnErr = fn(doc)
		return fnErr
	})
	return storageError(err, fnErr)
}

// storageError passes errors produced by the caller's function through and
// reports everything else (unreadable, corrupt or unwritable document) as
// storage unavailability.
func storageError(err, fnErr error) error {
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.StorageUnavailableErr.WrapParent(err)
	}
}

type documentProductRepository struct {
	s *documentStore
}

func (r documentProductRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := r.s.view(ctx, func(doc document.Document) error {
		products = slices.Clone(doc.Products)
		return nil
	}); err != nil {
		return nil, err
	}

	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

func (r documentProductRepository) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var product model.Product
	if err := r.s.view(ctx, func(doc document.Document) error {
		idx := doc.IndexOf(id)
		if idx < 0 {
			return apperr.ProductNotFoundErr.WrapParent(fmt.Errorf("id %q", id))
		}
		product = doc.Products[idx]
		return nil
	}); err != nil {
		return model.Product{}, err
	}

	return product, nil
}

func (r documentProductRepository) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	var product model.Product
	if err := r.s.update(ctx, func(doc *document.Document) error {
		product = model.Product{
			ID:    doc.AllocateID(),
			Title: params.Title,
			Price: params.Price,
			Image: params.Image,
		}
		doc.Products = append(doc.Products, product)
		return nil
	}); err != nil {
		return model.Product{}, err
	}

	return product, nil
}

func (r documentProductRepository) UpdateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	if err := r.s.update(ctx, func(doc *document.Document) error {
		idx := doc.IndexOf(product.ID)
		if idx < 0 {
			return apperr.ProductNotFoundErr.WrapParent(fmt.Errorf("id %q", product.ID))
		}
		doc.Products[idx] = product
		return nil
	}); err != nil {
		return model.Product{}, err
	}

	return product, nil
}

func (r documentProductRepository) DeleteProduct(ctx context.Context, id string) error {
	return r.s.update(ctx, func(doc *document.Document) error {
		idx := doc.IndexOf(id)
		if idx < 0 {
			return apperr.ProductNotFoundErr.WrapParent(fmt.Errorf("id %q", id))
		}
		doc.Products = slices.Delete(doc.Products, idx, idx+1)
		return nil
	})
}

type documentOutboxMsgRepository struct {
	s *documentStore
}

func (r documentOutboxMsgRepository) CreateOutboxMsg(ctx context.Context, params CreateOutboxMsgParams) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	return r.s.update(ctx, func(doc *document.Document) error {
		doc.Outbox = append(doc.Outbox, document.OutboxMsg{
			ID:           id,
			Topic:        params.Topic,
			Headers:      params.Headers,
			Payload:      params.Payload,
			PartitionKey: params.PartitionKey,
			CreatedAt:    time.Now(),
		})
		return nil
	})
}

func (r documentOutboxMsgRepository) ListUnprocessedOutboxMsgs(ctx context.Context, params ListUnprocessedOutboxMsgsParams) ([]ListUnprocessedOutboxMsgsResult, error) {
	var results []ListUnprocessedOutboxMsgsResult
	if err := r.s.view(ctx, func(doc document.Document) error {
		for _, msg := range doc.Outbox {
			if len(results) >= int(params.BatchSize) {
				break
			}
			if msg.ProcessedAt != nil {
				continue
			}
			results = append(results, ListUnprocessedOutboxMsgsResult{
				ID:           msg.ID,
				Topic:        msg.Topic,
				Headers:      msg.Headers,
				Payload:      msg.Payload,
				PartitionKey: msg.PartitionKey,
			})
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("outbox msg list unprocessed: %w", err)
	}

	return results, nil
}

// BulkUpdateOutboxMsgs marks the given messages processed. Successfully relayed
// messages are dropped from the document; failed ones stay with their error.
func (r documentOutboxMsgRepository) BulkUpdateOutboxMsgs(ctx context.Context, params BulkUpdateOutboxMsgsParams) error {
	items := make(map[uuid.UUID]*string, len(params.Items))
	for _, item := range params.Items {
		items[item.ID] = item.Error
	}

	return r.s.update(ctx, func(doc *document.Document) error {
		now := time.Now()
		kept := doc.Outbox[:0]
		for _, msg := range doc.Outbox {
			msgErr, ok := items[msg.ID]
			if !ok {
				kept = append(kept, msg)
				continue
			}
			if msgErr == nil {
				continue
			}
			msg.ProcessedAt = &now
			msg.Error = msgErr
			kept = append(kept, msg)
		}
		doc.Outbox = kept
		return nil
	})
}
