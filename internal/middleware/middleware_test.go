package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

// signToken issues an HS256 token in the identity service's format.
func signToken(t *testing.T, secret []byte, userID, role string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", GetUserID(r.Context()))
		w.Header().Set("X-Role", GetRole(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}

func TestJWTMiddleware(t *testing.T) {
	auth := NewJWTAuth(testSecret)

	valid := signToken(t, auth.Secret, "reader-1", "", time.Minute)
	expired := signToken(t, auth.Secret, "reader-1", "", -time.Minute)
	foreign := signToken(t, []byte("other-secret"), "reader-1", "", time.Minute)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no user id", "Bearer " + noUser, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			auth.Middleware(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantErr != "" {
				if code := decodeErrorCode(t, rec); code != tt.wantErr {
					t.Fatalf("expected error code %s, got %s", tt.wantErr, code)
				}
				return
			}
			if got := rec.Header().Get("X-User"); got != "reader-1" {
				t.Fatalf("expected user id in context, got %q", got)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	handler := auth.Middleware(RequireAdmin(okHandler()))

	reader := signToken(t, auth.Secret, "reader-1", "", time.Minute)
	admin := signToken(t, auth.Secret, "admin-1", RoleAdmin, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for reader, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	if rec.Header().Get("X-Role") != RoleAdmin {
		t.Fatalf("expected admin role in context")
	}
}

func TestParseTokenEmpty(t *testing.T) {
	if _, err := NewJWTAuth(testSecret).ParseToken(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	handler := rl.Middleware(okHandler())

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("10.0.0.1:1111") != http.StatusOK || do("10.0.0.1:2222") != http.StatusOK {
		t.Fatal("expected burst to be allowed")
	}
	if code := do("10.0.0.1:3333"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := do("10.0.0.2:1111"); code != http.StatusOK {
		t.Fatalf("expected other client to be unaffected, got %d", code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.getLimiter("ip:10.0.0.1")
	rl.getLimiter("ip:10.0.0.2")

	rl.mu.Lock()
	rl.visitors["ip:10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	if removed := rl.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 idle bucket removed, got %d", removed)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-123" || rec.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("expected inbound request id to be reused, got %q", seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-123" {
		t.Fatalf("expected a fresh request id, got %q", seen)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS("http://localhost:5173")(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("expected allowed origin to be echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected unknown origin to be ignored")
	}
}
