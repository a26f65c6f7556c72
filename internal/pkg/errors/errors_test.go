package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  ErrTenantRequired(),
			want: "TENANT_REQUIRED: caller is not bound to a tenant",
		},
		{
			name: "with wrapped error",
			err:  ErrAuditQueryFailedf(fmt.Errorf("db error")),
			want: "AUDIT_QUERY_FAILED: failed to read audit events: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("parse")
	appErr := ErrAuditEntityIDInvalidf("abc", inner)
	assert.True(t, errors.Is(appErr, inner))
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrTenantRequired())

	got, ok := IsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeTenantRequired, got.Code)

	_, ok = IsAppError(fmt.Errorf("lote 3: %w", ErrNotFound))
	assert.False(t, ok)
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"BadRequest", BadRequest("BR", "bad request"), "BR", http.StatusBadRequest},
		{"Unauthorized", Unauthorized(CodeTokenExpired, "token expired"), CodeTokenExpired, http.StatusUnauthorized},
		{"Forbidden", Forbidden(CodeForbidden, "forbidden"), CodeForbidden, http.StatusForbidden},
		{"Internal", Internal(CodeInternal, "internal"), CodeInternal, http.StatusInternalServerError},
		{"TenantRequired", ErrTenantRequired(), CodeTenantRequired, http.StatusForbidden},
		{"EntityType", ErrAuditEntityTypeInvalidf("lote!"), CodeAuditEntityTypeBad, http.StatusBadRequest},
		{"EntityID", ErrAuditEntityIDInvalidf("abc", fmt.Errorf("parse")), CodeAuditEntityIDBad, http.StatusBadRequest},
		{"QueryFailed", ErrAuditQueryFailedf(fmt.Errorf("boom")), CodeAuditQueryFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
		})
	}
}

func TestWithParams(t *testing.T) {
	err := ErrAuditEntityTypeInvalidf("lote!")
	require.NotNil(t, err.Params)
	assert.Equal(t, "lote!", err.Params["tipoEntidad"])

	id := ErrAuditEntityIDInvalidf("abc", nil)
	assert.Equal(t, "abc", id.Params["entidadId"])

	plain := BadRequest("BR", "bad").WithParams(nil)
	assert.Nil(t, plain.Params)

	var nilErr *AppError
	assert.Nil(t, nilErr.WithParams(map[string]interface{}{"k": "v"}))
}
