package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
)

// AssetsPath is the retrieval path prefix of stored assets.
const AssetsPath = "/uploads/"

// sniffLen is how much of an upload is inspected to detect its real type.
const sniffLen = 3072

var (
	allowedMediaTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/jpg":  {},
		"image/png":  {},
		"image/gif":  {},
		"image/webp": {},
	}
	allowedExtensions = map[string]struct{}{
		".jpeg": {},
		".jpg":  {},
		".png":  {},
		".gif":  {},
		".webp": {},
	}
)

type IngestAssetParams struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// AssetService validates and stores uploaded images and resolves references to them.
type AssetService interface {
	// IngestAsset stores an image and returns it with its retrieval URL.
	IngestAsset(ctx context.Context, params IngestAssetParams) (model.Asset, error)
	// ResolveAssetURL maps an image reference (retrieval URL or bare asset name)
	// to the retrieval URL of an asset that exists in the content area.
	ResolveAssetURL(ctx context.Context, ref string) (string, error)
	// OpenAsset opens a stored asset for reading.
	OpenAsset(ctx context.Context, name string) (io.ReadSeekCloser, model.Asset, error)
}

type assetService struct {
	cfg   config.Assets
	blobs *blob.Store
	now   func() time.Time
}

func NewAssetService(cfg config.Assets, blobs *blob.Store) AssetService {
	return &assetService{
		cfg:   cfg,
		blobs: blobs,
		now:   time.Now,
	}
}

func (s *assetService) IngestAsset(ctx context.Context, params IngestAssetParams) (model.Asset, error) {
	filename := baseName(params.Filename)
	if filename == "" || !blob.ValidName(filename) {
		return model.Asset{}, apperr.ValidationErr.WrapParent(fmt.Errorf("invalid filename %q", params.Filename))
	}
	if params.Content == nil {
		return model.Asset{}, apperr.ValidationErr.WrapParent(errors.New("image file is required"))
	}

	contentType, err := checkDeclaredType(filename, params.ContentType)
	if err != nil {
		return model.Asset{}, err
	}

	content := params.Content
	if s.cfg.SniffContent {
		content, err = checkContent(params.Content)
		if err != nil {
			return model.Asset{}, err
		}
	}

	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), filename)
	size, err := s.blobs.Put(ctx, name, content, s.cfg.MaxBytes)
	if err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			return model.Asset{}, apperr.AssetTooLargeErr.WrapParent(err)
		}
		return model.Asset{}, apperr.IngestionFailedErr.WrapParent(err)
	}

	return model.Asset{
		Name:         name,
		OriginalName: filename,
		ContentType:  contentType,
		Size:         size,
		URL:          s.assetURL(name),
		UploadedAt:   s.now(),
	}, nil
}

func (s *assetService) ResolveAssetURL(_ context.Context, ref string) (string, error) {
	name, ok := s.assetName(strings.TrimSpace(ref))
	if !ok {
		return "", apperr.ImageReferenceInvalidErr.WrapParent(fmt.Errorf("unrecognized image reference %q", ref))
	}

	exists, err := s.blobs.Exists(name)
	if err != nil {
		return "", fmt.Errorf("check asset %s: %w", name, err)
	}
	if !exists {
		return "", apperr.ImageReferenceInvalidErr.WrapParent(fmt.Errorf("asset %q does not exist", name))
	}

	return s.assetURL(name), nil
}

func (s *assetService) OpenAsset(_ context.Context, name string) (io.ReadSeekCloser, model.Asset, error) {
	f, info, err := s.blobs.Open(name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidName) {
			return nil, model.Asset{}, apperr.AssetNotFoundErr.WrapParent(err)
		}
		return nil, model.Asset{}, fmt.Errorf("open asset: %w", err)
	}

	return f, model.Asset{
		Name:        name,
		ContentType: mime.TypeByExtension(strings.ToLower(path.Ext(name))),
		Size:        info.Size(),
		URL:         s.assetURL(name),
		UploadedAt:  info.ModTime(),
	}, nil
}

// assetURL escapes name the way the server canonicalizes request paths, so
// the router sees the decoded name when the URL is fetched.
func (s *assetService) assetURL(name string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + (&url.URL{Path: AssetsPath + name}).EscapedPath()
}

// assetName extracts the asset name from a retrieval URL under the configured
// base URL, or accepts a bare asset name.
func (s *assetService) assetName(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}

	prefix := strings.TrimRight(s.cfg.PublicBaseURL, "/") + AssetsPath
	switch {
	case strings.HasPrefix(ref, prefix):
		ref = strings.TrimPrefix(ref, prefix)
	case strings.HasPrefix(ref, AssetsPath):
		ref = strings.TrimPrefix(ref, AssetsPath)
	case strings.Contains(ref, "://"):
		return "", false
	}

	name, err := url.PathUnescape(ref)
	if err != nil || !blob.ValidName(name) {
		return "", false
	}
	return name, true
}

func checkDeclaredType(filename, contentType string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", apperr.UnsupportedMediaTypeErr.WrapParent(fmt.Errorf("extension %q not allowed", ext))
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", apperr.UnsupportedMediaTypeErr.WrapParent(fmt.Errorf("parse content type %q: %w", contentType, err))
	}
	mediaType = strings.ToLower(mediaType)
	if _, ok := allowedMediaTypes[mediaType]; !ok {
		return "", apperr.UnsupportedMediaTypeErr.WrapParent(fmt.Errorf("media type %q not allowed", mediaType))
	}

	return mediaType, nil
}

// checkContent detects the real type of the upload from its first bytes and
// returns a reader that still yields the whole content.
func checkContent(r io.Reader) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.IngestionFailedErr.WrapParent(fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	for t := range allowedMediaTypes {
		if detected.Is(t) {
			return io.MultiReader(bytes.NewReader(head), r), nil
		}
	}

	return nil, apperr.UnsupportedMediaTypeErr.WrapParent(fmt.Errorf("content detected as %s", detected.String()))
}

func baseName(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, "/")
	name := path.Base(filename)
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSpace(name)
}
