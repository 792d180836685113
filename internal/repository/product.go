package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

type CreateProductParams struct {
	Title string
	Price decimal.Decimal
	Image string
}

// ProductRepository stores product records.
// Lookups of unknown ids fail with apperr.ProductNotFoundErr.
type ProductRepository interface {
	// ListAllProducts returns every product in insertion order.
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	// CreateProduct assigns the next id and appends the product.
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	// UpdateProduct replaces every field of the product with product.ID.
	UpdateProduct(ctx context.Context, product model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}
