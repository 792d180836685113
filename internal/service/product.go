package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/pkg/outbox"
	"github.com/tuanvumaihuynh/product-catalog/pkg/ptr"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

type CreateProductParams struct {
	Title string           `json:"title" validate:"required,notblank,max=200"`
	Price *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Image string           `json:"image" validate:"required"`
}

type UpdateProductParams struct {
	ID    string           `json:"id" validate:"required"`
	Title string           `json:"title" validate:"required,notblank,max=200"`
	Price *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Image string           `json:"image" validate:"required"`
}

type UploadProductParams struct {
	Title       string           `json:"title" validate:"required,notblank,max=200"`
	Price       *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Filename    string           `json:"image" validate:"required"`
	ContentType string           `json:"-"`
	Content     io.Reader        `json:"-"`
}

// Prices are stored as NUMERIC(12, 2): at most priceScale decimal places and
// strictly below maxPrice.
const priceScale = 2

var maxPrice = decimal.New(1, 10)

func checkPrice(price decimal.Decimal) error {
	if !price.Equal(price.Round(priceScale)) {
		return apperr.PriceOutOfRangeErr.WrapParent(fmt.Errorf("price %s has more than %d decimal places", price, priceScale))
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return apperr.PriceOutOfRangeErr.WrapParent(fmt.Errorf("price %s is not below %s", price, maxPrice))
	}
	return nil
}

type ProductService interface {
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	// CreateProduct appends a product whose image was ingested earlier.
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	// UploadProduct ingests the image first and then appends the product.
	UploadProduct(ctx context.Context, params UploadProductParams) (model.Product, error)
	UpdateProduct(ctx context.Context, params UpdateProductParams) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type productService struct {
	store         repository.Store
	assetSvc      AssetService
	validator     validator.Validator
	publishEvents bool
}

// NewProductService creates the product service. When publishEvents is set,
// every mutation also records an outbox message in the same transaction.
func NewProductService(
	store repository.Store,
	assetSvc AssetService,
	validator validator.Validator,
	publishEvents bool,
) ProductService {
	return &productService{
		store:         store,
		assetSvc:      assetSvc,
		validator:     validator,
		publishEvents: publishEvents,
	}
}

func (s *productService) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.store.Products().ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", err)
	}

	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (model.Product, error) {
	product, err := s.store.Products().GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}

	return product, nil
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, fmt.Errorf("validate create product params: %w", err)
	}
	if err := checkPrice(*params.Price); err != nil {
		return model.Product{}, fmt.Errorf("check price: %w", err)
	}

	imageURL, err := s.assetSvc.ResolveAssetURL(ctx, params.Image)
	if err != nil {
		return model.Product{}, fmt.Errorf("asset service resolve asset url: %w", err)
	}

	return s.create(ctx, repository.CreateProductParams{
		Title: params.Title,
		Price: *params.Price,
		Image: imageURL,
	})
}

func (s *productService) UploadProduct(ctx context.Context, params UploadProductParams) (model.Product, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, fmt.Errorf("validate upload product params: %w", err)
	}
	if err := checkPrice(*params.Price); err != nil {
		return model.Product{}, fmt.Errorf("check price: %w", err)
	}

	// The asset is durable before the record referencing it is written.
	asset, err := s.assetSvc.IngestAsset(ctx, IngestAssetParams{
		Filename:    params.Filename,
		ContentType: params.ContentType,
		Content:     params.Content,
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("asset service ingest asset: %w", err)
	}

	return s.create(ctx, repository.CreateProductParams{
		Title: params.Title,
		Price: *params.Price,
		Image: asset.URL,
	})
}

func (s *productService) UpdateProduct(ctx context.Context, params UpdateProductParams) (model.Product, error) {
	if err := s.validator.Validate(params); err != nil {
		return model.Product{}, fmt.Errorf("validate update product params: %w", err)
	}
	if err := checkPrice(*params.Price); err != nil {
		return model.Product{}, fmt.Errorf("check price: %w", err)
	}

	imageURL, err := s.assetSvc.ResolveAssetURL(ctx, params.Image)
	if err != nil {
		return model.Product{}, fmt.Errorf("asset service resolve asset url: %w", err)
	}

	var product model.Product
	if err := s.store.WithTx(ctx, func(tx repository.Store) error {
		product, err = tx.Products().UpdateProduct(ctx, model.Product{
			ID:    params.ID,
			Title: params.Title,
			Price: *params.Price,
			Image: imageURL,
		})
		if err != nil {
			return fmt.Errorf("product repository update product: %w", err)
		}

		return s.recordEvent(ctx, tx, event.TopicProductUpdated, productEvent(product))
	}); err != nil {
		return model.Product{}, fmt.Errorf("store with tx: %w", err)
	}

	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Products().DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("product repository delete product: %w", err)
		}

		return s.recordEvent(ctx, tx, event.TopicProductDeleted, event.ProductEvent{ProductID: id})
	}); err != nil {
		return fmt.Errorf("store with tx: %w", err)
	}

	return nil
}

func (s *productService) create(ctx context.Context, params repository.CreateProductParams) (model.Product, error) {
	var product model.Product
	if err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		product, err = tx.Products().CreateProduct(ctx, params)
		if err != nil {
			return fmt.Errorf("product repository create product: %w", err)
		}

		return s.recordEvent(ctx, tx, event.TopicProductCreated, productEvent(product))
	}); err != nil {
		return model.Product{}, fmt.Errorf("store with tx: %w", err)
	}

	return product, nil
}

func (s *productService) recordEvent(ctx context.Context, tx repository.Store, topic string, ev event.ProductEvent) error {
	if !s.publishEvents {
		return nil
	}

	evBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := tx.OutboxMsgs().CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
		Topic:        topic,
		Headers:      outbox.BuildHeaders(ctx),
		Payload:      evBytes,
		PartitionKey: ptr.New(ev.ProductID),
	}); err != nil {
		return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
	}

	return nil
}

func productEvent(p model.Product) event.ProductEvent {
	return event.ProductEvent{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     ptr.New(p.Price),
		Image:     p.Image,
	}
}
