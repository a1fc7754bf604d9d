package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"readtrack-backend/internal/handlers"
	"readtrack-backend/internal/middleware"
	"readtrack-backend/internal/models"
)

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

type noopTracker struct{}

func (noopTracker) StartSession(context.Context, string, string, string, models.Environment) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (noopTracker) RecordScroll(string, int) (int, bool) { return 0, false }
func (noopTracker) SetFocus(string, bool) bool { return false }
func (noopTracker) EndSession(context.Context, string) *models.ReadingSession { return nil }
func (noopTracker) CurrentSession(string) *models.ReadingSession { return nil }

type noopAnalytics struct{}

func (noopAnalytics) GetReadingAnalytics(context.Context, models.DateRange) (*models.ReadingAnalytics, error) {
	return &models.ReadingAnalytics{}, nil
}
func (noopAnalytics) GetUserReadingSessions(context.Context, string, int) ([]*models.ReadingSession, error) {
	return []*models.ReadingSession{}, nil
}
func (noopAnalytics) GetArticleReadingStats(_ context.Context, id string) (*models.ArticleReadingStats, error) {
	return &models.ArticleReadingStats{ArticleID: id}, nil
}
func (noopAnalytics) GetUserReadingProfile(context.Context, string) (*models.UserReadingProfile, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *middleware.JWTAuth) {
	t.Helper()
	auth := middleware.NewJWTAuth("test-secret")
	h := New(
		auth,
		middleware.NewRateLimiter(100, 100),
		handlers.NewHealthHandler(nil, nil, nil, nil, nil),
		handlers.NewReadingHandler(noopTracker{}),
		handlers.NewAnalyticsHandler(noopAnalytics{}, time.UTC),
		nil,
		"http://localhost:5173",
	)
	return h, auth
}

func TestRoutesAuthorization(t *testing.T) {
	h, auth := newTestRouter(t)
	reader := signToken(t, auth.Secret, "reader-1", "", time.Minute)
	admin := signToken(t, auth.Secret, "admin-1", middleware.RoleAdmin, time.Minute)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"tracking needs token", http.MethodGet, "/api/v1/reading/current", "", http.StatusUnauthorized},
		{"reader can track", http.MethodGet, "/api/v1/reading/current", reader, http.StatusOK},
		{"reader cannot read analytics", http.MethodGet, "/api/v1/admin/analytics", reader, http.StatusForbidden},
		{"admin reads analytics", http.MethodGet, "/api/v1/admin/analytics", admin, http.StatusOK},
		{"admin reads article stats", http.MethodGet, "/api/v1/admin/articles/a1/stats", admin, http.StatusOK},
		{"missing profile is 404", http.MethodGet, "/api/v1/admin/users/u1/profile", admin, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Fatal("expected request id header")
			}
		})
	}
}
