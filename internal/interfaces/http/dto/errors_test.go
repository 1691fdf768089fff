package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeBodyTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeTooManyStreams, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestFromError_DomainKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", grouporder.ErrGroupNotFound, http.StatusNotFound, "GROUP_NOT_FOUND"},
		{"not authorized", grouporder.ErrNotHost, http.StatusForbidden, "NOT_AUTHORIZED"},
		{"not a member", grouporder.ErrNotAMember, http.StatusForbidden, "NOT_A_MEMBER"},
		{"invalid state", grouporder.ErrGroupNotOpen, http.StatusUnprocessableEntity, "GROUP_NOT_OPEN"},
		{"conflict", grouporder.ErrGroupFull, http.StatusConflict, "GROUP_FULL"},
		{"duplicate", grouporder.ErrDuplicateRequest, http.StatusConflict, "DUPLICATE_REQUEST"},
		{"external", grouporder.NewExternalFailure("payment", errors.New("timeout")), http.StatusBadGateway, "EXTERNAL_FAILURE"},
		{"validation", grouporder.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"wrapped", fmt.Errorf("load: %w", grouporder.ErrItemNotFound), http.StatusNotFound, "ITEM_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err, "req-1")
			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestFromError_CarriesReasonAndDetails(t *testing.T) {
	m := &grouporder.Member{DisplayName: "Linh"}
	status, resp := FromError(grouporder.NewAddressMissingError(m), "")

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "CHECKOUT_BLOCKED", resp.Error.Code)
	assert.Equal(t, grouporder.ReasonAddressMissing, resp.Error.Reason)
	assert.Contains(t, resp.Error.Details, "member_id")
	assert.Contains(t, resp.Error.Message, "Linh")
}

func TestFromError_HidesExternalCause(t *testing.T) {
	_, resp := FromError(grouporder.NewExternalFailure("payment", errors.New("secret upstream body")), "")
	assert.NotContains(t, resp.Error.Message, "secret upstream body")
	assert.Equal(t, "payment", resp.Error.Details["collaborator"])
}

func TestFromError_UnknownError(t *testing.T) {
	status, resp := FromError(errors.New("boom"), "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "boom")
}

func TestStatusForKind_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(shared.ErrorKind("OTHER")))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-2",
		[]ValidationDetail{{Field: "quantity", Message: "Must be at least 1"}})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	errBody := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errBody["code"])
	assert.Equal(t, "req-2", errBody["request_id"])
	assert.Len(t, errBody["fields"], 1)
	assert.NotContains(t, decoded, "data")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		pages    int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		assert.Equal(t, tt.pages, resp.Meta.TotalPages, "total=%d size=%d", tt.total, tt.pageSize)
	}
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p = PageRequest{Page: 3, PageSize: 50}.Normalize()
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PageSize)
}
