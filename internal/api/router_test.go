package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatrix/internal/ai"
	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/handlers"
	"github.com/eldtechnologies/chatrix/internal/models"
	"github.com/eldtechnologies/chatrix/internal/ratelimit"
)

const secret = "router-secret"

type stubUsers struct{ user *models.User }

func (s *stubUsers) Close()                     {}
func (s *stubUsers) Ping(context.Context) error { return nil }
func (s *stubUsers) CreateUser(context.Context, string, string, string) (*models.User, error) {
	return s.user, nil
}
func (s *stubUsers) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return nil, nil
}
func (s *stubUsers) ListUsersExcept(context.Context, uuid.UUID) ([]models.User, error) {
	return []models.User{}, nil
}
func (s *stubUsers) CountUsers(context.Context) (int64, error) { return 1, nil }

type stubReplier struct{}

func (stubReplier) Reply(context.Context, string, []ai.Turn, string) (string, error) {
	return "namaste!", nil
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	user := &models.User{ID: uuid.New(), FullName: "Asha"}
	token, err := middleware.IssueToken([]byte(secret), user.ID, time.Hour)
	require.NoError(t, err)

	limiter := ratelimit.NewTiered(ratelimit.NewMemoryCounter(), zerolog.Nop(), "ai:", ratelimit.AITiers()...)
	router := NewRouter(zerolog.Nop(), Options{
		Handlers: handlers.Deps{
			Users:     &stubUsers{user: user},
			AI:        stubReplier{},
			JWTSecret: secret,
			Logger:    zerolog.Nop(),
		},
		AILimiter:   middleware.NewRateLimiter(limiter, nil, zerolog.Nop(), middleware.RateLimiterConfig{}),
		CORSOrigins: []string{"http://localhost:5173"},
	})
	return router, token
}

func aiRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAIChatRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAIChatBurstLimit(t *testing.T) {
	router, token := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, aiRequest(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "namaste!")
	assert.NotEmpty(t, rec.Header().Get("RateLimit-Limit"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, aiRequest(token))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), ratelimit.Burst.Message)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	// No message store is wired, so the check degrades.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
