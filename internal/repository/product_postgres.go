package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
)

var productColumns = []string{"id::text", "title", "price::text", "image"}

type productRepository struct {
	db db.DB
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	query, args, err := psql.
		Select(productColumns...).
		From("products").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}

	return products, nil
}

func (r productRepository) GetProduct(ctx context.Context, id string) (model.Product, error) {
	n, err := numericID(id)
	if err != nil {
		return model.Product{}, apperr.ProductNotFoundErr.WrapParent(err)
	}

	query, args, err := psql.
		Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"id": n}).
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("build get product query: %w", err)
	}

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return model.Product{}, notFoundOr(err, id, "get product")
	}

	return product, nil
}

func (r productRepository) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	query, args, err := psql.
		Insert("products").
		SetMap(map[string]any{
			"title": params.Title,
			"price": squirrel.Expr("?::numeric", params.Price.String()),
			"image": params.Image,
		}).
		Suffix("RETURNING " + returning()).
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("build create product query: %w", err)
	}

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return model.Product{}, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func (r productRepository) UpdateProduct(ctx context.Context, product model.Product) (model.Product, error) {
	n, err := numericID(product.ID)
	if err != nil {
		return model.Product{}, apperr.ProductNotFoundErr.WrapParent(err)
	}

	query, args, err := psql.
		Update("products").
		SetMap(map[string]any{
			"title":      product.Title,
			"price":      squirrel.Expr("?::numeric", product.Price.String()),
			"image":      product.Image,
			"updated_at": squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": n}).
		Suffix("RETURNING " + returning()).
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("build update product query: %w", err)
	}

	updated, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return model.Product{}, notFoundOr(err, product.ID, "update product")
	}

	return updated, nil
}

func (r productRepository) DeleteProduct(ctx context.Context, id string) error {
	n, err := numericID(id)
	if err != nil {
		return apperr.ProductNotFoundErr.WrapParent(err)
	}

	query, args, err := psql.
		Delete("products").
		Where(squirrel.Eq{"id": n}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete product query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ProductNotFoundErr.WrapParent(fmt.Errorf("id %q", id))
	}

	return nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		product model.Product
		price   string
	)
	if err := row.Scan(&product.ID, &product.Title, &price, &product.Image); err != nil {
		return model.Product{}, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return model.Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	product.Price = d

	return product, nil
}

func returning() string {
	return strings.Join(productColumns, ", ")
}

func notFoundOr(err error, id, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ProductNotFoundErr.WrapParent(fmt.Errorf("id %q", id))
	}
	return fmt.Errorf("%s: %w", op, err)
}
