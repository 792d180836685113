package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/document"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type testEnv struct {
	svc      service.ProductService
	store    repository.Store
	dbPath   string
	assetDir string
}

func newTestEnv(t *testing.T, publishEvents bool) testEnv {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "db.json")
	db, err := document.Open(dbPath)
	require.NoError(t, err)
	store := repository.NewDocumentStore(db)

	assetDir := filepath.Join(dir, "uploads")
	blobs, err := blob.NewStore(assetDir)
	require.NoError(t, err)
	assetSvc := service.NewAssetService(config.Assets{
		Dir:           assetDir,
		PublicBaseURL: "http://localhost:8000",
		MaxBytes:      1 << 20,
		SniffContent:  true,
	}, blobs)

	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	return testEnv{
		svc:      service.NewProductService(store, assetSvc, v, publishEvents),
		store:    store,
		dbPath:   dbPath,
		assetDir: assetDir,
	}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func uploadParams(title string, p *decimal.Decimal, filename string) service.UploadProductParams {
	return service.UploadProductParams{
		Title:       title,
		Price:       p,
		Filename:    filename,
		ContentType: "image/png",
		Content:     bytes.NewReader(pngBytes),
	}
}

func TestProductServiceUploadProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Should store the asset and append the product", func(t *testing.T) {
		env := newTestEnv(t, false)

		product, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price("49.99"), "chair.png"))
		require.NoError(t, err)

		assert.Equal(t, "1", product.ID)
		assert.Equal(t, "Chair", product.Title)
		assert.True(t, decimal.RequireFromString("49.99").Equal(product.Price))
		assert.True(t, strings.HasPrefix(product.Image, "http://localhost:8000/uploads/"))
		assert.True(t, strings.HasSuffix(product.Image, "-chair.png"))

		all, err := env.svc.ListAllProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should reject invalid fields before touching storage", func(t *testing.T) {
		env := newTestEnv(t, false)

		tests := []struct {
			name   string
			params service.UploadProductParams
		}{
			{name: "missing title", params: uploadParams("", price("1"), "a.png")},
			{name: "blank title", params: uploadParams("   ", price("1"), "a.png")},
			{name: "missing price", params: uploadParams("Chair", nil, "a.png")},
			{name: "negative price", params: uploadParams("Chair", price("-1"), "a.png")},
			{name: "missing file", params: uploadParams("Chair", price("1"), "")},
		}
		for _, tt := range tests {
			_, err := env.svc.UploadProduct(ctx, tt.params)
			assert.True(t, validator.IsValidationError(unwrapAll(err)), tt.name)
		}

		entries, err := os.ReadDir(env.assetDir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		all, err := env.svc.ListAllProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Should accept a zero price", func(t *testing.T) {
		env := newTestEnv(t, false)

		product, err := env.svc.UploadProduct(ctx, uploadParams("Freebie", price("0"), "free.png"))
		require.NoError(t, err)
		assert.True(t, product.Price.IsZero())
	})

	t.Run("Should not create a record when the media type is rejected", func(t *testing.T) {
		env := newTestEnv(t, false)

		params := uploadParams("Chair", price("1"), "chair.pdf")
		params.ContentType = "application/pdf"
		_, err := env.svc.UploadProduct(ctx, params)
		assert.ErrorIs(t, err, apperr.UnsupportedMediaTypeErr)

		entries, err := os.ReadDir(env.assetDir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		all, err := env.svc.ListAllProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Should record a created event when events are enabled", func(t *testing.T) {
		env := newTestEnv(t, true)

		product, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price("49.99"), "chair.png"))
		require.NoError(t, err)

		msgs, err := env.store.OutboxMsgs().ListUnprocessedOutboxMsgs(ctx, repository.ListUnprocessedOutboxMsgsParams{BatchSize: 10})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, event.TopicProductCreated, msgs[0].Topic)
		assert.Equal(t, product.ID, *msgs[0].PartitionKey)

		var ev event.ProductEvent
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &ev))
		assert.Equal(t, product.ID, ev.ProductID)
		assert.Equal(t, "Chair", ev.Title)
	})

	t.Run("Should leave the asset behind when the store is unavailable", func(t *testing.T) {
		env := newTestEnv(t, false)
		require.NoError(t, os.WriteFile(env.dbPath, []byte("{broken"), 0o644))

		_, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price("1"), "chair.png"))
		assert.ErrorIs(t, err, apperr.StorageUnavailableErr)

		entries, err := os.ReadDir(env.assetDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestProductServicePrice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)

	uploaded, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price("9999999999.99"), "chair.png"))
	require.NoError(t, err)
	assert.Equal(t, "9999999999.99", uploaded.Price.String())

	for _, p := range []string{"1.005", "0.001", "10000000000", "12345678901.5"} {
		t.Run("Should reject price "+p, func(t *testing.T) {
			_, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price(p), "other.png"))
			assert.ErrorIs(t, err, apperr.ValidationErr)
			assert.ErrorIs(t, err, apperr.PriceOutOfRangeErr)

			_, err = env.svc.CreateProduct(ctx, service.CreateProductParams{
				Title: "Stool",
				Price: price(p),
				Image: uploaded.Image,
			})
			assert.ErrorIs(t, err, apperr.ValidationErr)

			_, err = env.svc.UpdateProduct(ctx, service.UpdateProductParams{
				ID:    uploaded.ID,
				Title: "Stool",
				Price: price(p),
				Image: uploaded.Image,
			})
			assert.ErrorIs(t, err, apperr.ValidationErr)
		})
	}

	t.Run("Should accept trailing zeros beyond two decimal places", func(t *testing.T) {
		product, err := env.svc.CreateProduct(ctx, service.CreateProductParams{
			Title: "Stool",
			Price: price("12.5000"),
			Image: uploaded.Image,
		})
		require.NoError(t, err)
		assert.True(t, product.Price.Equal(decimal.RequireFromString("12.5")))
	})

	t.Run("Should not store the image of a rejected upload", func(t *testing.T) {
		entries, err := os.ReadDir(env.assetDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		all, err := env.svc.ListAllProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestProductServiceCRUD(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)

	uploaded, err := env.svc.UploadProduct(ctx, uploadParams("Chair", price("49.99"), "chair.png"))
	require.NoError(t, err)

	t.Run("Should create a product referencing an uploaded asset", func(t *testing.T) {
		created, err := env.svc.CreateProduct(ctx, service.CreateProductParams{
			Title: "Stool",
			Price: price("12.50"),
			Image: uploaded.Image,
		})
		require.NoError(t, err)
		assert.Equal(t, "2", created.ID)
		assert.Equal(t, uploaded.Image, created.Image)
	})

	t.Run("Should reject a create referencing an unknown asset", func(t *testing.T) {
		_, err := env.svc.CreateProduct(ctx, service.CreateProductParams{
			Title: "Stool",
			Price: price("12.50"),
			Image: "https://elsewhere.example.com/x.png",
		})
		assert.ErrorIs(t, err, apperr.ImageReferenceInvalidErr)
	})

	t.Run("Should get a product by id", func(t *testing.T) {
		got, err := env.svc.GetProduct(ctx, uploaded.ID)
		require.NoError(t, err)
		assert.Equal(t, uploaded, got)
	})

	t.Run("Should fully replace a product on update", func(t *testing.T) {
		name := strings.TrimPrefix(uploaded.Image, "http://localhost:8000/uploads/")

		updated, err := env.svc.UpdateProduct(ctx, service.UpdateProductParams{
			ID:    uploaded.ID,
			Title: "Armchair",
			Price: price("59"),
			Image: name,
		})
		require.NoError(t, err)
		assert.Equal(t, "Armchair", updated.Title)
		assert.Equal(t, uploaded.Image, updated.Image)

		got, err := env.svc.GetProduct(ctx, uploaded.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("Should return not found for unknown ids", func(t *testing.T) {
		_, err := env.svc.GetProduct(ctx, "999")
		assert.ErrorIs(t, err, apperr.ProductNotFoundErr)

		_, err = env.svc.UpdateProduct(ctx, service.UpdateProductParams{
			ID: "999", Title: "x", Price: price("1"), Image: uploaded.Image,
		})
		assert.ErrorIs(t, err, apperr.ProductNotFoundErr)

		assert.ErrorIs(t, env.svc.DeleteProduct(ctx, "999"), apperr.ProductNotFoundErr)
	})

	t.Run("Should delete a product but keep its asset", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteProduct(ctx, uploaded.ID))

		_, err := env.svc.GetProduct(ctx, uploaded.ID)
		assert.ErrorIs(t, err, apperr.ProductNotFoundErr)

		entries, err := os.ReadDir(env.assetDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Should record one event per successful mutation", func(t *testing.T) {
		msgs, err := env.store.OutboxMsgs().ListUnprocessedOutboxMsgs(ctx, repository.ListUnprocessedOutboxMsgsParams{BatchSize: 100})
		require.NoError(t, err)

		topics := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			topics = append(topics, msg.Topic)
		}
		assert.Equal(t, []string{
			event.TopicProductCreated,
			event.TopicProductCreated,
			event.TopicProductUpdated,
			event.TopicProductDeleted,
		}, topics)
	})
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			return err
		}
		err = u.Unwrap()
	}
}
