package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	httpapi "github.com/tuanvumaihuynh/product-catalog/internal/http"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/document"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func newTestApp(t *testing.T) (*app, *bytes.Buffer, string) {
	t.Helper()

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	db, err := document.Open(filepath.Join(dir, "db.json"))
	require.NoError(t, err)
	store := repository.NewDocumentStore(db)

	blobs, err := blob.NewStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	assetSvc := service.NewAssetService(config.Assets{PublicBaseURL: srv.URL, MaxBytes: 1 << 20, SniffContent: true}, blobs)

	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := httpapi.New(config.HTTP{AllowedOrigins: []string{"*"}, MaxUploadBytes: 2 << 20}, logger,
		service.NewProductService(store, assetSvc, v, false), assetSvc, store)
	handler, err = svc.Handler()
	require.NoError(t, err)

	imagePath := filepath.Join(dir, "chair.png")
	require.NoError(t, os.WriteFile(imagePath, pngBytes, 0o644))

	out := &bytes.Buffer{}
	a := newApp(config.Client{
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		FavoritesPath: filepath.Join(dir, "local.json"),
	}, out, logger)

	return a, out, imagePath
}

func decodeOutput[T any](t *testing.T, out *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	out.Reset()
	return v
}

func TestApp(t *testing.T) {
	ctx := context.Background()
	a, out, imagePath := newTestApp(t)

	require.NoError(t, a.run(ctx, []string{"upload", "-title", "Chair", "-price", "49.99", "-file", imagePath}))
	chair := decodeOutput[model.Product](t, out)
	assert.Equal(t, "1", chair.ID)
	assert.Equal(t, "Chair", chair.Title)

	t.Run("Should create a product for an uploaded image", func(t *testing.T) {
		require.NoError(t, a.run(ctx, []string{"create", "-title", "Stool", "-price", "12.5", "-image", chair.Image}))
		stool := decodeOutput[model.Product](t, out)
		assert.Equal(t, "2", stool.ID)
		assert.Equal(t, chair.Image, stool.Image)
	})

	t.Run("Should list and get products", func(t *testing.T) {
		require.NoError(t, a.run(ctx, []string{"list"}))
		assert.Len(t, decodeOutput[[]model.Product](t, out), 2)

		require.NoError(t, a.run(ctx, []string{"get", "1"}))
		assert.Equal(t, chair, decodeOutput[model.Product](t, out))
	})

	t.Run("Should update a product", func(t *testing.T) {
		require.NoError(t, a.run(ctx, []string{"update", "-title", "Tall stool", "-price", "15", "-image", chair.Image, "2"}))
		assert.Equal(t, "Tall stool", decodeOutput[model.Product](t, out).Title)
	})

	t.Run("Should toggle favorites and filter by them", func(t *testing.T) {
		require.NoError(t, a.run(ctx, []string{"fav", "2"}))
		toggled := decodeOutput[struct {
			ID       string `json:"id"`
			Favorite bool   `json:"favorite"`
		}](t, out)
		assert.True(t, toggled.Favorite)

		require.NoError(t, a.run(ctx, []string{"list", "-favorites"}))
		favorites := decodeOutput[[]model.Product](t, out)
		require.Len(t, favorites, 1)
		assert.Equal(t, "2", favorites[0].ID)
	})

	t.Run("Should delete a product", func(t *testing.T) {
		require.NoError(t, a.run(ctx, []string{"delete", "1"}))

		err := a.run(ctx, []string{"get", "1"})
		assert.Error(t, err)
	})

	t.Run("Should reject invalid usage", func(t *testing.T) {
		for _, args := range [][]string{
			{"frobnicate"},
			{"get"},
			{"delete", "1", "2"},
			{"create", "-title", "x", "-price", "abc", "-image", "y"},
			{"upload", "-title", "x", "-price", "1"},
		} {
			assert.ErrorIs(t, a.run(ctx, args), errUsage, args)
		}
	})
}
