package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	httpapi "github.com/tuanvumaihuynh/product-catalog/internal/http"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/api"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/document"
	"github.com/tuanvumaihuynh/product-catalog/pkg/correlationid"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

const baseURL = "http://catalog.test"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type testServer struct {
	handler http.Handler
	dbPath  string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "db.json")
	db, err := document.Open(dbPath)
	require.NoError(t, err)
	store := repository.NewDocumentStore(db)

	blobs, err := blob.NewStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	assetSvc := service.NewAssetService(config.Assets{
		PublicBaseURL: baseURL,
		MaxBytes:      1 << 20,
		SniffContent:  true,
	}, blobs)

	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)
	productSvc := service.NewProductService(store, assetSvc, v, false)

	svc := httpapi.New(config.HTTP{
		Swagger:        true,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 2 << 20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), productSvc, assetSvc, store)

	handler, err := svc.Handler()
	require.NoError(t, err)

	return testServer{handler: handler, dbPath: dbPath}
}

func (s testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func uploadRequest(t *testing.T, fields map[string]string, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func TestUploadAndCRUD(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, uploadRequest(t, map[string]string{"title": "Chair", "price": "49.99"}, "chair.png", "image/png", pngBytes))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	uploaded := decode[api.UploadProductResponse](t, resp)
	assert.Equal(t, httpapi.UploadedMessage, uploaded.Message)
	assert.Equal(t, "1", uploaded.Product.ID)
	assert.True(t, strings.HasPrefix(uploaded.Product.Image, baseURL+"/uploads/"))
	assert.Contains(t, resp.Body.String(), `"price":49.99`)

	t.Run("Should serve the uploaded image", func(t *testing.T) {
		path := strings.TrimPrefix(uploaded.Product.Image, baseURL)
		resp := srv.do(t, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
		assert.Equal(t, pngBytes, resp.Body.Bytes())
	})

	t.Run("Should list and get products", func(t *testing.T) {
		resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/products", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []model.Product{uploaded.Product}, decode[[]model.Product](t, resp))

		resp = srv.do(t, httptest.NewRequest(http.MethodGet, "/products/1", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, uploaded.Product, decode[model.Product](t, resp))
	})

	t.Run("Should create through the legacy JSON route with a quoted price", func(t *testing.T) {
		body := `{"title":"Stool","price":"12.50","image":"` + uploaded.Product.Image + `"}`
		resp := srv.do(t, jsonRequest(http.MethodPost, "/products", body))
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		created := decode[model.Product](t, resp)
		assert.Equal(t, "2", created.ID)
		assert.Equal(t, "12.5", created.Price.String())
	})

	t.Run("Should replace a product", func(t *testing.T) {
		body := `{"title":"Armchair","price":59,"image":"` + uploaded.Product.Image + `"}`
		resp := srv.do(t, jsonRequest(http.MethodPut, "/products/1", body))
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		assert.Equal(t, "Armchair", decode[model.Product](t, resp).Title)
	})

	t.Run("Should delete a product", func(t *testing.T) {
		resp := srv.do(t, httptest.NewRequest(http.MethodDelete, "/products/1", nil))
		assert.Equal(t, http.StatusNoContent, resp.Code)

		resp = srv.do(t, httptest.NewRequest(http.MethodGet, "/products/1", nil))
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, apperr.ProductNotFoundCode, decode[api.ErrorResponse](t, resp).Code)

		resp = srv.do(t, httptest.NewRequest(http.MethodDelete, "/products/1", nil))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("Should serve images whose names need escaping", func(t *testing.T) {
		for _, filename := range []string{"a b.png", "a,b.png", "a;b.png"} {
			resp := srv.do(t, uploadRequest(t, map[string]string{"title": "Lamp", "price": "5"}, filename, "image/png", pngBytes))
			require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
			image := decode[api.UploadProductResponse](t, resp).Product.Image

			path := strings.TrimPrefix(image, baseURL)
			resp = srv.do(t, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, resp.Code, path)
			assert.Equal(t, pngBytes, resp.Body.Bytes(), path)

			// Clients may escape every reserved character.
			name := strings.TrimPrefix(path, "/uploads/")
			unescaped, err := url.PathUnescape(name)
			require.NoError(t, err)
			escaped := "/uploads/" + url.PathEscape(unescaped)
			resp = srv.do(t, httptest.NewRequest(http.MethodGet, escaped, nil))
			assert.Equal(t, http.StatusOK, resp.Code, escaped)
			assert.Equal(t, pngBytes, resp.Body.Bytes(), escaped)
		}
	})
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode string
	}{
		{
			name:     "missing title",
			req:      uploadRequest(t, map[string]string{"price": "1"}, "a.png", "image/png", pngBytes),
			wantCode: apperr.ValidationErrorCode,
		},
		{
			name:     "missing price",
			req:      uploadRequest(t, map[string]string{"title": "Chair"}, "a.png", "image/png", pngBytes),
			wantCode: apperr.ValidationErrorCode,
		},
		{
			name:     "non numeric price",
			req:      uploadRequest(t, map[string]string{"title": "Chair", "price": "cheap"}, "a.png", "image/png", pngBytes),
			wantCode: apperr.ValidationErrorCode,
		},
		{
			name:     "missing file",
			req:      uploadRequest(t, map[string]string{"title": "Chair", "price": "1"}, "", "", nil),
			wantCode: apperr.ValidationErrorCode,
		},
		{
			name:     "text file",
			req:      uploadRequest(t, map[string]string{"title": "Chair", "price": "1"}, "notes.txt", "text/plain", []byte("hi")),
			wantCode: apperr.UnsupportedMediaTypeCode,
		},
		{
			name:     "not multipart",
			req:      jsonRequest(http.MethodPost, "/upload", `{}`),
			wantCode: apperr.ValidationErrorCode,
		},
	}

	for _, tt := range tests {
		t.Run("Should reject "+tt.name, func(t *testing.T) {
			resp := srv.do(t, tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantCode, decode[api.ErrorResponse](t, resp).Code)
		})
	}

	t.Run("Should not have created any product", func(t *testing.T) {
		resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.JSONEq(t, `[]`, resp.Body.String())
	})
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Should reject a malformed JSON body", func(t *testing.T) {
		resp := srv.do(t, jsonRequest(http.MethodPost, "/products", `{"title":`))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should reject an image that was never uploaded", func(t *testing.T) {
		resp := srv.do(t, jsonRequest(http.MethodPost, "/products", `{"title":"Chair","price":1,"image":"http://elsewhere/x.png"}`))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, apperr.ImageReferenceInvalidCode, decode[api.ErrorResponse](t, resp).Code)
	})

	t.Run("Should return not found for a missing asset", func(t *testing.T) {
		resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, apperr.AssetNotFoundCode, decode[api.ErrorResponse](t, resp).Code)
	})

	t.Run("Should echo the correlation id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set(correlationid.Header, "corr-7")
		resp := srv.do(t, req)
		assert.Equal(t, "corr-7", resp.Header().Get(correlationid.Header))
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Should report ok while storage is readable", func(t *testing.T) {
		resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
	})

	t.Run("Should report storage unavailable for a corrupt document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(srv.dbPath, []byte("{"), 0o644))

		resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		assert.Equal(t, apperr.StorageUnavailableCode, decode[api.ErrorResponse](t, resp).Code)

		resp = srv.do(t, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, httptest.NewRequest(http.MethodGet, "/products", nil))

	resp := srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `catalog_http_requests_total{method="GET",route="/products",status="200"} 1`)
}
