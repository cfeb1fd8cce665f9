package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chaoscast/chaoscast/internal/analytics/forecast"
	"github.com/chaoscast/chaoscast/internal/analytics/predictor"
	"github.com/chaoscast/chaoscast/internal/analytics/preprocess"
	"github.com/chaoscast/chaoscast/internal/analytics/timeaxis"
	"github.com/chaoscast/chaoscast/internal/ingest"
	"github.com/chaoscast/chaoscast/internal/storage"
)

func TestServiceError_Error(t *testing.T) {
	err := &ServiceError{
		Code:    "TEST_ERROR",
		Message: "Test error message",
	}

	if err.Error() != "Test error message" {
		t.Errorf("Expected 'Test error message', got '%s'", err.Error())
	}
}

func TestNewServiceErrorWithDetails(t *testing.T) {
	details := map[string]interface{}{"field": "window"}
	err := NewServiceErrorWithDetails(CodeInvalidRequest, "bad window", details)

	data, jsonErr := json.Marshal(err)
	if jsonErr != nil {
		t.Fatalf("Failed to marshal: %v", jsonErr)
	}
	if !strings.Contains(string(data), `"code":"INVALID_REQUEST"`) {
		t.Errorf("Expected code in JSON, got %s", data)
	}
	if !strings.Contains(string(data), `"field":"window"`) {
		t.Errorf("Expected details in JSON, got %s", data)
	}

	plain, _ := json.Marshal(NewServiceError(CodeInternal, "x"))
	if strings.Contains(string(plain), "details") {
		t.Errorf("Expected details to be omitted, got %s", plain)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("get: %w", storage.ErrNotFound), CodeProjectNotFound},
		{fmt.Errorf("train: %w", predictor.ErrInsufficientData), CodeInsufficientData},
		{fmt.Errorf("forecast: %w", forecast.ErrInsufficientData), CodeInsufficientData},
		{fmt.Errorf("run: %w", preprocess.ErrUnknownStrategy), CodeUnknownStrategy},
		{fmt.Errorf("axis: %w", timeaxis.ErrUnknownEncoding), CodeUnknownEncoding},
		{timeaxis.ErrMissingFormat, CodeUnknownEncoding},
		{fmt.Errorf("new: %w", predictor.ErrUnknownArchitecture), CodeUnknownModel},
		{fmt.Errorf("sample: %w", ingest.ErrUnknownColumn), CodeUnknownColumn},
		{ingest.ErrEmptyFile, CodeInvalidCSV},
		{errors.New("disk on fire"), CodeInternal},
		{fmt.Errorf("wrapped: %w", NewServiceError(CodeNoData, "no data")), CodeNoData},
	}

	for _, tt := range tests {
		got := classify(tt.err, CodeInternal)
		if got.Code != tt.code {
			t.Errorf("classify(%v) = %s, want %s", tt.err, got.Code, tt.code)
		}
	}

	if d := classify(predictor.ErrUnknownArchitecture, CodeInternal).Details; d["available_models"] == nil {
		t.Error("Expected available models in details")
	}
}

func TestIsClientError(t *testing.T) {
	if IsClientError(CodeInternal) || IsClientError(CodeStorageError) {
		t.Error("Expected server codes not to be client errors")
	}
	if !IsClientError(CodeInsufficientData) || !IsClientError(CodeProjectNotFound) {
		t.Error("Expected input codes to be client errors")
	}
}
