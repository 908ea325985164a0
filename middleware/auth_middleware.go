package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/petroflow/billing-control-plane/auth"
	"github.com/petroflow/billing-control-plane/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	// ValidateToken validates a bearer token and returns the caller identity
	ValidateToken(ctx context.Context, token string) (*auth.ParsedClaims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
	failures  interface{ Inc() }
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// SetFailureCounter registers a counter incremented on every failed
// authentication attempt. Typically a Prometheus counter.
func (m *AuthMiddleware) SetFailureCounter(counter interface{ Inc() }) {
	m.failures = counter
}

func (m *AuthMiddleware) countFailure() {
	if m.failures != nil {
		m.failures.Inc()
	}
}

// RequireAuth is a middleware that requires a valid bearer token. The token
// is exchanged for caller claims through the identity provider; a missing or
// malformed Authorization header never falls back to a default identity.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := TokenFromRequest(r)
		if token == "" {
			m.logger.Warn("missing bearer token",
				zap.String("request_id", requestID))
			m.countFailure()
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			m.countFailure()
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Sub),
			zap.String("tenant_id", claims.TenantID.String()))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest extracts the bearer token from the Authorization header.
// Returns the empty string when the header is absent or the scheme is not
// "Bearer".
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
