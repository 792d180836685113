// Package api holds the wire types of the catalog HTTP API described in
// api-contract/openapi.yml.
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *[]FieldError `json:"details,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// UploadProductResponse is returned by POST /upload.
type UploadProductResponse struct {
	Message string        `json:"message"`
	Product model.Product `json:"product"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProductRequest is the JSON body of POST /products and PUT /products/{id}.
// Price accepts both a JSON number and a quoted decimal.
type ProductRequest struct {
	Title string           `json:"title"`
	Price *decimal.Decimal `json:"price"`
	Image string           `json:"image"`
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

type InvalidBodyError struct {
	Err error
}

func (e *InvalidBodyError) Error() string {
	return fmt.Sprintf("Invalid request body: %s", e.Err.Error())
}

func (e *InvalidBodyError) Unwrap() error {
	return e.Err
}
