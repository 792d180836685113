package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/api"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
)

const (
	// UploadedMessage is the confirmation returned with a product created by upload.
	UploadedMessage = "product added successfully"

	maxJSONBodyBytes = 1 << 20
	multipartMemory  = 1 << 20
)

type productHandler struct {
	rs             responder
	productSvc     service.ProductService
	maxUploadBytes int64
}

func newProductHandler(rs responder, productSvc service.ProductService, maxUploadBytes int64) *productHandler {
	return &productHandler{
		rs:             rs,
		productSvc:     productSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *productHandler) ListProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.productSvc.ListAllProducts(r.Context())
	if err != nil {
		return fmt.Errorf("product service list all products: %w", err)
	}

	h.rs.JSON(w, r, http.StatusOK, products)
	return nil
}

func (h *productHandler) GetProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := productID(r)
	if err != nil {
		return err
	}

	product, err := h.productSvc.GetProduct(r.Context(), id)
	if err != nil {
		return fmt.Errorf("product service get product: %w", err)
	}

	h.rs.JSON(w, r, http.StatusOK, product)
	return nil
}

func (h *productHandler) CreateProduct(w http.ResponseWriter, r *http.Request) error {
	body, err := decodeProductRequest(w, r)
	if err != nil {
		return err
	}

	product, err := h.productSvc.CreateProduct(r.Context(), service.CreateProductParams{
		Title: strings.TrimSpace(body.Title),
		Price: body.Price,
		Image: body.Image,
	})
	if err != nil {
		return fmt.Errorf("product service create product: %w", err)
	}

	h.rs.JSON(w, r, http.StatusCreated, product)
	return nil
}

func (h *productHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := productID(r)
	if err != nil {
		return err
	}

	body, err := decodeProductRequest(w, r)
	if err != nil {
		return err
	}

	product, err := h.productSvc.UpdateProduct(r.Context(), service.UpdateProductParams{
		ID:    id,
		Title: strings.TrimSpace(body.Title),
		Price: body.Price,
		Image: body.Image,
	})
	if err != nil {
		return fmt.Errorf("product service update product: %w", err)
	}

	h.rs.JSON(w, r, http.StatusOK, product)
	return nil
}

func (h *productHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := productID(r)
	if err != nil {
		return err
	}

	if err := h.productSvc.DeleteProduct(r.Context(), id); err != nil {
		return fmt.Errorf("product service delete product: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// UploadProduct accepts a multipart form with title, price and an image file.
func (h *productHandler) UploadProduct(w http.ResponseWriter, r *http.Request) error {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fmt.Errorf("parse multipart form: %w", &api.InvalidBodyError{Err: err})
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		return err
	}

	params := service.UploadProductParams{
		Title: strings.TrimSpace(r.FormValue("title")),
		Price: price,
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return fmt.Errorf("read image part: %w", &api.InvalidBodyError{Err: err})
	default:
		defer file.Close()
		params.Filename = header.Filename
		params.ContentType = header.Header.Get("Content-Type")
		params.Content = file
	}

	product, err := h.productSvc.UploadProduct(r.Context(), params)
	if err != nil {
		return fmt.Errorf("product service upload product: %w", err)
	}

	h.rs.JSON(w, r, http.StatusCreated, api.UploadProductResponse{
		Message: UploadedMessage,
		Product: product,
	})
	return nil
}

func productID(r *http.Request) (string, error) {
	var id string
	if err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	}); err != nil {
		return "", &api.InvalidParamFormatError{ParamName: "id", Err: err}
	}

	return id, nil
}

func decodeProductRequest(w http.ResponseWriter, r *http.Request) (api.ProductRequest, error) {
	var body api.ProductRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return api.ProductRequest{}, &api.InvalidBodyError{Err: err}
	}

	return body, nil
}

// parsePrice accepts an empty value as missing so the validator reports it.
func parsePrice(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.ValidationErr.WrapParent(fmt.Errorf("price %q is not a number: %w", raw, err))
	}

	return &d, nil
}
