package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/marketplace-engine/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

// serveAuth runs AuthMiddleware over a probe handler and reports the
// response plus whatever claims reached the inner handler.
func serveAuth(jwtService *auth.JWTService, mutate func(*http.Request)) (*httptest.ResponseRecorder, *auth.Claims) {
	var seen *auth.Claims
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetUserFromContext(r.Context()); ok {
			seen = claims
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	AuthMiddleware(jwtService)(probe).ServeHTTP(rec, req)
	return rec, seen
}

// serveRole runs RequireRole over a probe handler with optional claims.
func serveRole(claims *auth.Claims, roles ...string) *httptest.ResponseRecorder {
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), UserContextKey, claims))
	}
	rec := httptest.NewRecorder()
	RequireRole(roles...)(probe).ServeHTTP(rec, req)
	return rec
}

// ====== AuthMiddleware Tests ======

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateAccessToken("user-123", "buyer@example.com", "customer")
	require.NoError(t, err)

	rec, claims := serveAuth(jwtService, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, "customer", claims.Role)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateAccessToken("user-456", "admin@example.com", "admin")
	require.NoError(t, err)

	rec, claims := serveAuth(jwtService, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user-456", claims.UserID)
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	rec, claims := serveAuth(newTestJWTService(), nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
	assert.Nil(t, claims)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	rec, claims := serveAuth(newTestJWTService(), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-jwt")
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
	assert.Nil(t, claims)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	// Sub-millisecond expiry so the token is stale by the time it is used
	jwtService := auth.NewJWTService("test-secret", 1*time.Millisecond, 7*24*time.Hour)
	token, _, err := jwtService.GenerateAccessToken("user-123", "buyer@example.com", "customer")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	rec, claims := serveAuth(jwtService, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, claims)
}

// ====== RequireRole Tests ======

func TestRequireRole_Allowed(t *testing.T) {
	rec := serveRole(&auth.Claims{UserID: "staff-1", Role: "staff"}, "staff", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	rec := serveRole(&auth.Claims{UserID: "customer-1", Role: "customer"}, "staff", "admin")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")
}

func TestRequireRole_NoClaims(t *testing.T) {
	rec := serveRole(nil, "staff")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ====== Context Helper Tests ======

func TestGetUserID_MissingClaims(t *testing.T) {
	assert.Equal(t, "", GetUserID(context.Background()))
}
