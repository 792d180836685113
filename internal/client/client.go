// Package client is a typed HTTP client for the catalog API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/api"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/pkg/correlationid"
)

// ErrUpstreamUnavailable means the catalog service could not be reached.
var ErrUpstreamUnavailable = errors.New("catalog service unavailable")

// APIError is a non-2xx response of the catalog service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []api.FieldError
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("catalog api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog api: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the catalog service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type ProductInput struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	// Image is the retrieval URL or name of an uploaded image.
	Image string `json:"image"`
}

type UploadInput struct {
	Title       string
	Price       decimal.Decimal
	Filename    string
	ContentType string
	Content     io.Reader
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(cfg config.Client, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, "", &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, "", &product); err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (model.Product, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return model.Product{}, fmt.Errorf("marshal product: %w", err)
	}

	var product model.Product
	if err := c.do(ctx, http.MethodPost, "/products", bytes.NewReader(body), "application/json", &product); err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, input ProductInput) (model.Product, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return model.Product{}, fmt.Errorf("marshal product: %w", err)
	}

	var product model.Product
	if err := c.do(ctx, http.MethodPut, productPath(id), bytes.NewReader(body), "application/json", &product); err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, "", nil)
}

// UploadProduct sends the image and product fields as one multipart request.
func (c *Client) UploadProduct(ctx context.Context, input UploadInput) (model.Product, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("title", input.Title); err != nil {
		return model.Product{}, fmt.Errorf("write title field: %w", err)
	}
	if err := mw.WriteField("price", input.Price.String()); err != nil {
		return model.Product{}, fmt.Errorf("write price field: %w", err)
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, input.Filename))
	h.Set("Content-Type", input.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return model.Product{}, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, input.Content); err != nil {
		return model.Product{}, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Product{}, fmt.Errorf("close multipart writer: %w", err)
	}

	var res api.UploadProductResponse
	if err := c.do(ctx, http.MethodPost, "/upload", &body, mw.FormDataContentType(), &res); err != nil {
		return model.Product{}, err
	}
	return res.Product, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id, ok := correlationid.FromContext(ctx); ok {
		req.Header.Set(correlationid.Header, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if body.Details != nil {
			apiErr.Details = *body.Details
		}
	}

	if resp.StatusCode == http.StatusServiceUnavailable && apiErr.Code == apperr.StorageUnavailableCode {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, apiErr)
	}
	return apiErr
}

func productPath(id string) string {
	return "/products/" + url.PathEscape(id)
}
