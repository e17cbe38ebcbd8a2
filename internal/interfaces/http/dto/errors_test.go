package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// domain code -> (api code, status) for every code the ledger domain raises
var ledgerCodes = []struct {
	domain string
	api    string
	status int
}{
	{"NOT_FOUND", ErrCodeNotFound, http.StatusNotFound},
	{"INVALID_INPUT", ErrCodeInvalidInput, http.StatusBadRequest},
	{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict, http.StatusConflict},
	{"INVALID_QUANTITY", ErrCodeInvalidQuantity, http.StatusBadRequest},
	{"INVALID_PRICE", ErrCodeInvalidPrice, http.StatusBadRequest},
	{"INVALID_AMOUNT", ErrCodeInvalidAmount, http.StatusBadRequest},
	{"EMPTY_INVOICE", ErrCodeEmptyInvoice, http.StatusBadRequest},
	{"INVOICE_LOCKED", ErrCodeInvoiceLocked, http.StatusConflict},
	{"INVALID_TRANSITION", ErrCodeInvalidTransition, http.StatusConflict},
	{"TEMPLATE_MISMATCH", ErrCodeTemplateMismatch, http.StatusUnprocessableEntity},
	{"NO_DEFAULT_TEMPLATE", ErrCodeNoDefaultTemplate, http.StatusUnprocessableEntity},
	{"DEFAULT_TEMPLATE_LOCKED", ErrCodeDefaultTemplateLocked, http.StatusConflict},
	{"NUMBERING_CONTENTION", ErrCodeNumberingContention, http.StatusServiceUnavailable},
	{"RENDER_TIMEOUT", ErrCodeRenderTimeout, http.StatusGatewayTimeout},
	{"INVALID_PAPER_SIZE", ErrCodeInvalidTemplate, http.StatusUnprocessableEntity},
}

func TestLedgerCodes_NormalizeAndMapStatus(t *testing.T) {
	for _, tc := range ledgerCodes {
		t.Run(tc.domain, func(t *testing.T) {
			api := NormalizeErrorCode(tc.domain)
			assert.Equal(t, tc.api, api)
			assert.Equal(t, tc.status, GetHTTPStatus(api))
		})
	}
}

func TestNormalizeErrorCode_PassThrough(t *testing.T) {
	assert.Equal(t, ErrCodeInvoiceLocked, NormalizeErrorCode(ErrCodeInvoiceLocked))
	assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
}

func TestGetHTTPStatus_Fallback(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, GetHTTPStatus(ErrCodeRequestTooLarge))
	assert.Equal(t, http.StatusUnauthorized, GetHTTPStatus(ErrCodeTokenExpired))
}

func TestErrorCodeHTTPStatus_Consistent(t *testing.T) {
	for code, status := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
		assert.GreaterOrEqual(t, status, 400, code)
	}
	for legacy, code := range LegacyErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "%s maps to %s which has no status", legacy, code)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrCodeNumberingContention))
	assert.True(t, IsRetryable(ErrCodeServiceUnavailable))
	assert.False(t, IsRetryable(ErrCodeInvalidTransition))
	assert.False(t, IsRetryable(ErrCodeRenderTimeout))
}

func TestErrorResponse_Envelope(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponseWithRequestID("INVOICE_LOCKED", "Invoice FAC-2026-00001 is sent", "req-42")

	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, ErrCodeInvoiceLocked, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.False(t, resp.Error.Timestamp.Before(before))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "data")
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, "ERR_INVOICE_LOCKED", errObj["code"])
	assert.NotContains(t, errObj, "details")
}

func TestValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "items[0].quantity", Message: "Must be greater than 0", Tag: "gt"},
		{Field: "row 3: amount", Message: "invalid amount", Tag: "INVALID_AMOUNT", Value: "abc"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-7", details)

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(resp.Error.Code))
	assert.Equal(t, details, resp.Error.Details)
}

func TestErrorResponseWithHelp(t *testing.T) {
	resp := NewErrorResponseWithHelp(ErrCodeNoDefaultTemplate, "No default template", "", "set a default template for INVOICE")
	assert.Equal(t, "set a default template for INVOICE", resp.Error.Help)
	assert.Empty(t, resp.Error.RequestID)
}

func TestSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total     int64
		pageSize  int
		wantPages int
		wantSize  int
	}{
		{total: 0, pageSize: 10, wantPages: 0, wantSize: 10},
		{total: 10, pageSize: 10, wantPages: 1, wantSize: 10},
		{total: 11, pageSize: 10, wantPages: 2, wantSize: 10},
		{total: 41, pageSize: 0, wantPages: 3, wantSize: defaultPageSize},
		{total: 41, pageSize: -5, wantPages: 3, wantSize: defaultPageSize},
	}
	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{}, tt.total, 2, tt.pageSize)
		require.NotNil(t, resp.Meta)
		assert.True(t, resp.Success)
		assert.Equal(t, tt.wantPages, resp.Meta.TotalPages, "total=%d size=%d", tt.total, tt.pageSize)
		assert.Equal(t, tt.wantSize, resp.Meta.PageSize)
		assert.Equal(t, 2, resp.Meta.Page)
	}

	plain := NewSuccessResponse(map[string]string{"number": "FAC-2026-00001"})
	assert.Nil(t, plain.Meta)
	assert.Nil(t, plain.Error)
}
