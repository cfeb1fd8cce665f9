// Package services provides the business logic layer between handlers and
// the analytics, storage and queue packages.
package services

import (
	"errors"

	"github.com/chaoscast/chaoscast/internal/analytics/forecast"
	"github.com/chaoscast/chaoscast/internal/analytics/predictor"
	"github.com/chaoscast/chaoscast/internal/analytics/preprocess"
	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/ingest"
	"github.com/chaoscast/chaoscast/internal/storage"
)

// Error codes
const (
	CodeProjectNotFound  = "PROJECT_NOT_FOUND"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidCSV       = "INVALID_CSV"
	CodeNoData           = "NO_DATA"
	CodeNoTarget         = "NO_TARGET"
	CodeUnknownColumn    = "UNKNOWN_COLUMN"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeUnknownStrategy  = "UNKNOWN_STRATEGY"
	CodeUnknownEncoding  = "UNKNOWN_ENCODING"
	CodeUnknownModel     = "UNKNOWN_MODEL"
	CodeModelNotTrained  = "MODEL_NOT_TRAINED"
	CodeStorageError     = "STORAGE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsClientError reports whether code describes a problem with the request
// rather than with the service
func IsClientError(code string) bool {
	switch code {
	case CodeStorageError, CodeInternal:
		return false
	default:
		return true
	}
}

// classify maps package sentinel errors to a ServiceError. Errors without a
// known sentinel become fallback.
func classify(err error, fallback string) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	code := fallback
	details := map[string]interface{}{}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = CodeProjectNotFound
	case errors.Is(err, predictor.ErrInsufficientData), errors.Is(err, forecast.ErrInsufficientData):
		code = CodeInsufficientData
	case errors.Is(err, preprocess.ErrUnknownStrategy):
		code = CodeUnknownStrategy
		details["available_strategies"] = []string{preprocess.StrategyCUSUM, preprocess.StrategyRecency}
	case errors.Is(err, timeaxis.ErrUnknownEncoding), errors.Is(err, timeaxis.ErrMissingFormat):
		code = CodeUnknownEncoding
	case errors.Is(err, predictor.ErrUnknownArchitecture):
		code = CodeUnknownModel
		details["available_models"] = predictor.ListArchitectures()
	case errors.Is(err, ingest.ErrUnknownColumn):
		code = CodeUnknownColumn
	case errors.Is(err, ingest.ErrEmptyFile):
		code = CodeInvalidCSV
	}
	if len(details) == 0 {
		details = nil
	}
	return NewServiceErrorWithDetails(code, err.Error(), details)
}
