package http

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
)

type assetHandler struct {
	assetSvc service.AssetService
}

func newAssetHandler(assetSvc service.AssetService) *assetHandler {
	return &assetHandler{
		assetSvc: assetSvc,
	}
}

// GetAsset serves a stored image read-only.
func (h *assetHandler) GetAsset(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	// chi matches on RawPath when the request path is not canonically
	// escaped, which leaves the parameter escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			return apperr.AssetNotFoundErr.WrapParent(fmt.Errorf("unescape asset name %q: %w", name, err))
		}
		name = unescaped
	}

	content, asset, err := h.assetSvc.OpenAsset(r.Context(), name)
	if err != nil {
		return fmt.Errorf("asset service open asset: %w", err)
	}
	defer content.Close()

	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, asset.Name, asset.UploadedAt, content)
	return nil
}
