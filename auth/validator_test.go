package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaims(t *testing.T) {
	tenantID := uuid.New()

	t.Run("valid claims", func(t *testing.T) {
		parsed, err := ParseClaims(&Claims{
			Sub:      "user-1",
			Email:    "ap@operator.example",
			TenantID: tenantID.String(),
			Role:     "ap_clerk",
		})
		require.NoError(t, err)
		assert.Equal(t, "user-1", parsed.Sub)
		assert.Equal(t, tenantID, parsed.TenantID)
		assert.Equal(t, "ap_clerk", parsed.Role)
	})

	t.Run("missing sub", func(t *testing.T) {
		_, err := ParseClaims(&Claims{TenantID: tenantID.String()})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing tenant_id", func(t *testing.T) {
		_, err := ParseClaims(&Claims{Sub: "user-1"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed tenant_id", func(t *testing.T) {
		_, err := ParseClaims(&Claims{Sub: "user-1", TenantID: "not-a-uuid"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestContainsAudience(t *testing.T) {
	auds := jwt.ClaimStrings{"billing-api", "reporting-api"}
	assert.True(t, containsAudience(auds, "billing-api"))
	assert.False(t, containsAudience(auds, "other-api"))
	assert.False(t, containsAudience(nil, "billing-api"))
}

func TestFetchJWKSCachesResult(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(JWKS{Keys: []JWK{{Kid: "k1", Kty: "RSA", N: "AQAB", E: "AQAB"}}})
	}))
	defer server.Close()

	v := NewValidator(Config{JWKSURL: server.URL, CacheTTL: time.Hour})

	for i := 0; i < 3; i++ {
		jwks, err := v.FetchJWKS(context.Background())
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
	}
	assert.Equal(t, 1, calls)
}

func TestFetchJWKSErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := NewValidator(Config{JWKSURL: server.URL})
	_, err := v.FetchJWKS(context.Background())
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}

func TestValidateTokenEndToEnd(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := JWK{
		Kid: "test-key",
		Kty: "RSA",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JWKS{Keys: []JWK{jwk}})
	}))
	defer server.Close()

	tenantID := uuid.New()
	issuer := "https://auth.petroflow.example"
	v := NewValidator(Config{Issuer: issuer, Audience: "billing-api", JWKSURL: server.URL})

	makeToken := func(mutate func(*Claims)) string {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{"billing-api"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
			Sub:      "user-42",
			TenantID: tenantID.String(),
		}
		if mutate != nil {
			mutate(claims)
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "test-key"
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}

	t.Run("valid token", func(t *testing.T) {
		parsed, err := v.ValidateToken(context.Background(), makeToken(nil))
		require.NoError(t, err)
		assert.Equal(t, "user-42", parsed.Sub)
		assert.Equal(t, tenantID, parsed.TenantID)
	})

	t.Run("expired token", func(t *testing.T) {
		token := makeToken(func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		})
		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := makeToken(func(c *Claims) {
			c.Issuer = "https://attacker.example"
		})
		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := makeToken(func(c *Claims) {
			c.Audience = jwt.ClaimStrings{"other-api"}
		})
		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.ValidateToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
