package apperr

import "github.com/tuanvumaihuynh/product-catalog/pkg/zerror"

const (
	ValidationErrorCode       = "VALIDATION_FAILED"
	UnsupportedMediaTypeCode  = "UNSUPPORTED_MEDIA_TYPE"
	ProductNotFoundCode       = "PRODUCT_NOT_FOUND"
	AssetNotFoundCode         = "ASSET_NOT_FOUND"
	StorageUnavailableCode    = "STORAGE_UNAVAILABLE"
	IngestionFailedCode       = "INGESTION_FAILED"
	AssetTooLargeCode         = "ASSET_TOO_LARGE"
	ImageReferenceInvalidCode = "IMAGE_REFERENCE_INVALID"
)

var (
	ValidationErr            = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	UnsupportedMediaTypeErr  = zerror.NewValidationFailed(UnsupportedMediaTypeCode, "only jpeg, png, gif and webp images can be uploaded")
	AssetTooLargeErr         = zerror.NewValidationFailed(AssetTooLargeCode, "image exceeds the maximum upload size")
	ImageReferenceInvalidErr = zerror.NewValidationFailed(ImageReferenceInvalidCode, "image must reference an uploaded asset")
	PriceOutOfRangeErr       = zerror.NewValidationFailed(ValidationErrorCode, "price must be below 10000000000 with at most 2 decimal places")
	ProductNotFoundErr       = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	AssetNotFoundErr         = zerror.NewNotFound(AssetNotFoundCode, "asset not found")
	StorageUnavailableErr    = zerror.NewServiceUnavailable(StorageUnavailableCode, "catalog storage is unavailable")
	IngestionFailedErr       = zerror.NewInternalServerError(IngestionFailedCode, "failed to store uploaded image")
)
