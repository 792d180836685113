package apierr

import (
	"errors"
	"net/http"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/tuanvumaihuynh/product-catalog/internal/apperr"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/api"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
	"github.com/tuanvumaihuynh/product-catalog/pkg/zerror"
)

// ErrorResponse is the error response for the API.
type ErrorResponse struct {
	api.ErrorResponse

	// StatusCode is the status code for the error response.
	StatusCode int `json:"-"`
}

func New(err error) ErrorResponse {
	return errorToErrorResponse(err)
}

var InternalServerErr = ErrorResponse{
	ErrorResponse: api.ErrorResponse{
		Code:    "internalServerError",
		Message: "an unknown error occurred",
	},
	StatusCode: http.StatusInternalServerError,
}

func errorToErrorResponse(err error) ErrorResponse {
	var validationErrs govalidator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]api.FieldError, len(validationErrs))
		for i, fe := range validationErrs {
			details[i] = api.FieldError{
				Field:   fe.Field(),
				Message: validator.ValidationErrorMessage(fe),
			}
		}

		return ErrorResponse{
			ErrorResponse: api.ErrorResponse{
				Code:    apperr.ValidationErrorCode,
				Message: "validation error",
				Details: &details,
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fromZError(apperr.AssetTooLargeErr)
	}

	var zErr zerror.ZError
	if errors.As(err, &zErr) {
		return fromZError(zErr)
	}

	if isRequestErr(err) {
		return ErrorResponse{
			ErrorResponse: api.ErrorResponse{
				Code:    apperr.ValidationErrorCode,
				Message: err.Error(),
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	return InternalServerErr
}

func fromZError(zErr zerror.ZError) ErrorResponse {
	return ErrorResponse{
		ErrorResponse: api.ErrorResponse{
			Code:    zErr.Code(),
			Message: zErr.Msg(),
		},
		StatusCode: ZErrorStatusToHTTPStatus(zErr.Status()),
	}
}

// ZErrorStatusToHTTPStatus maps an error class to its response status code.
func ZErrorStatusToHTTPStatus(status zerror.Status) int {
	switch status {
	case zerror.StatusValidationFailed:
		return http.StatusBadRequest
	case zerror.StatusNotFound:
		return http.StatusNotFound
	case zerror.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isRequestErr(err error) bool {
	var (
		e1 *api.InvalidParamFormatError
		e2 *api.InvalidBodyError
	)

	return errors.As(err, &e1) || errors.As(err, &e2)
}
