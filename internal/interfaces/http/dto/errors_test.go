package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{ErrCodeLedgerSynced, http.StatusUnprocessableEntity},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeCycleRunning, http.StatusConflict},
		{ErrCodeInvalidWindow, http.StatusBadRequest},
		{ErrCodeSyncUnavailable, http.StatusServiceUnavailable},
		{ErrCodeCredentialUnavailable, http.StatusBadGateway},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"ITEM_NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INSUFFICIENT_STOCK", ErrCodeInsufficientStock},
		{"LEDGER_ALREADY_SYNCED", ErrCodeLedgerSynced},
		{"INVALID_SKU", ErrCodeInvalidInput},
		{"INVALID_QUANTITY", ErrCodeInvalidInput},
		{"ORDER_NOT_FOUND", ErrCodeNotFound},
		// Standard codes pass through unchanged
		{ErrCodeCycleRunning, ErrCodeCycleRunning},
		// Unknown codes pass through unchanged
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorCodesHaveStatus(t *testing.T) {
	for code, status := range ErrorCodeHTTPStatus {
		assert.Contains(t, code, "ERR_", "Error code should start with ERR_")
		assert.GreaterOrEqual(t, status, http.StatusBadRequest, code)
	}
	for legacy, code := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "mapping target of %s has no status", legacy)
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	before := time.Now().UTC()
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Inventory item not found", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.False(t, resp.Error.Timestamp.Before(before))
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "sku", Message: "This field is required"},
		{Field: "quantity", Message: "Must be at least 0"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Equal(t, details, resp.Error.Details)
}

func TestErrorResponseJSON(t *testing.T) {
	data, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeCycleRunning, "inbound cycle running", "req-1"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCycleRunning, errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.NotContains(t, errObj, "details")
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"sku": "ABC-1"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}
