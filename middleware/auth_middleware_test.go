package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/petroflow/billing-control-plane/auth"
)

type stubValidator struct {
	claims *auth.ParsedClaims
	err    error
}

func (v *stubValidator) ValidateToken(context.Context, string) (*auth.ParsedClaims, error) {
	return v.claims, v.err
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"mixed case scheme", "BeArEr tok", "tok"},
		{"no header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
		{"extra whitespace trimmed", "Bearer   tok  ", "tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())
	handler := m.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	m := NewAuthMiddleware(&stubValidator{err: errors.New("bad signature")}, zap.NewNop())
	handler := m.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAttachesClaims(t *testing.T) {
	tenantID := uuid.New()
	m := NewAuthMiddleware(&stubValidator{
		claims: &auth.ParsedClaims{Sub: "user-7", TenantID: tenantID},
	}, zap.NewNop())

	var got *auth.ParsedClaims
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, got)
	assert.Equal(t, "user-7", got.Sub)
	assert.Equal(t, tenantID, got.TenantID)
}
