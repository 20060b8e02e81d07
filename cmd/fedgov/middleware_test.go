package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/config"
	"github.com/fedgovio/fedgov/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- SecurityHeaders ---

func TestSecurityHeaders(t *testing.T) {
	handler := Chain(okHandler(), SecurityHeaders())

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	handler := Chain(okHandler(),
		Recovery(zap.NewNop()),
		RequestID(),
		SecurityHeaders(),
	)

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// --- RequestID ---

func TestRequestID_PreservesClientProvidedID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	})
	handler := Chain(inner, RequestID())

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("X-Request-ID", "req-from-client")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-from-client", seen)
	assert.Equal(t, "req-from-client", rec.Header().Get("X-Request-ID"))
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	handler := Chain(okHandler(), RequestID())

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// --- Recovery ---

func TestRecovery_TurnsPanicInto500(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(panicking, Recovery(zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- CORS ---

func TestCORS(t *testing.T) {
	tests := []struct {
		name          string
		allowedOrigin string
		requestOrigin string
		wantAllow     string
	}{
		{"wildcard allows any origin", "*", "https://app.example.org", "*"},
		{"exact match allowed", "https://app.example.org", "https://app.example.org", "https://app.example.org"},
		{"mismatch gets no headers", "https://app.example.org", "https://evil.example.org", ""},
		{"empty config rejects cross-origin", "", "https://app.example.org", ""},
		{"same-origin request untouched", "https://app.example.org", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Chain(okHandler(), CORS(tt.allowedOrigin))
			req := httptest.NewRequest(http.MethodGet, "/groups", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_PreflightForbiddenForForeignOrigin(t *testing.T) {
	handler := Chain(okHandler(), CORS("https://app.example.org"))

	req := httptest.NewRequest(http.MethodOptions, "/groups", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORS_PreflightAllowed(t *testing.T) {
	handler := Chain(okHandler(), CORS("https://app.example.org"))

	req := httptest.NewRequest(http.MethodOptions, "/groups", nil)
	req.Header.Set("Origin", "https://app.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- MemberAuth ---

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func memberEcho(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if member, ok := types.MemberID(r.Context()); ok {
			*captured = member
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMemberAuth_DisabledTrustsHeader(t *testing.T) {
	var captured string
	handler := Chain(memberEcho(&captured),
		MemberAuth(config.AuthConfig{Enabled: false}, nil, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("X-Member-ID", "hospital-alpha")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hospital-alpha", captured)
}

func TestMemberAuth_ValidToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret", Leeway: time.Minute}
	var captured string
	handler := Chain(memberEcho(&captured), MemberAuth(cfg, nil, zap.NewNop()))

	token := signToken(t, "test-secret", jwt.MapClaims{
		"member_id": "hospital-beta",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hospital-beta", captured)
}

func TestMemberAuth_SubjectFallback(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	var captured string
	handler := Chain(memberEcho(&captured), MemberAuth(cfg, nil, zap.NewNop()))

	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub": "hospital-gamma",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hospital-gamma", captured)
}

func TestMemberAuth_RejectsBadToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	handler := Chain(okHandler(), MemberAuth(cfg, nil, zap.NewNop()))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.MapClaims{
			"member_id": "x",
			"exp":       time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", "Bearer " + signToken(t, "test-secret", jwt.MapClaims{
			"member_id": "x",
			"exp":       time.Now().Add(-time.Hour).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/groups", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestMemberAuth_SkipPaths(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	handler := Chain(okHandler(), MemberAuth(cfg, []string{"/health"}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- normalizePath ---

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/health", "/health"},
		{"/groups", "/groups"},
		{"/groups/0d4e8f2a-1b3c-4d5e-8f9a-0b1c2d3e4f5a", "/groups/:id"},
		{"/proposals/0d4e8f2a-1b3c-4d5e-8f9a-0b1c2d3e4f5a/votes", "/proposals/:id/votes"},
		{"/proposals/0d4e8f2a-1b3c-4d5e-8f9a-0b1c2d3e4f5a/votes/42", "/proposals/:id/votes/:id"},
		{"/training_sessions", "/training_sessions"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), "path %s", tt.in)
	}
}
