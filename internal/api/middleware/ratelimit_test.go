package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatrix/internal/models"
	"github.com/eldtechnologies/chatrix/internal/ratelimit"
)

func newTestRateLimiter(cfg RateLimiterConfig, now *time.Time) http.Handler {
	tiered := ratelimit.NewTiered(ratelimit.NewMemoryCounter(), zerolog.Nop(), "ratelimit:ai:", ratelimit.AITiers()...)
	rl := NewRateLimiter(tiered, nil, zerolog.Nop(), cfg)
	rl.now = func() time.Time { return *now }
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func aiRequest(user *models.User, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	req.RemoteAddr = net.JoinHostPort(ip, "5555")
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), user))
	}
	return req
}

func TestRateLimiter_BurstDenial(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	h := newTestRateLimiter(RateLimiterConfig{}, &now)
	user := &models.User{ID: uuid.New()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, aiRequest(user, "198.51.100.1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))

	now = now.Add(time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, aiRequest(user, "198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("RateLimit-Reset"))
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Second).Unix(), reset)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ratelimit.Burst.Message, body["error"])
}

func TestRateLimiter_KeysByUserNotAddress(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	h := newTestRateLimiter(RateLimiterConfig{}, &now)

	for _, user := range []*models.User{{ID: uuid.New()}, {ID: uuid.New()}} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, aiRequest(user, "198.51.100.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_FallsBackToAddress(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	h := newTestRateLimiter(RateLimiterConfig{}, &now)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, aiRequest(nil, "2001:db8:abcd:1200::1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Same /56 network.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, aiRequest(nil, "2001:db8:abcd:12ff::2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_Whitelist(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	h := newTestRateLimiter(RateLimiterConfig{Whitelist: []string{"10.0.0.0/8"}}, &now)
	user := &models.User{ID: uuid.New()}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, aiRequest(user, "10.1.2.3"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	h := newTestRateLimiter(RateLimiterConfig{Whitelist: []string{"10.0.0.0/8"}}, &now)
	h = NewTrustedProxies(nil, zerolog.Nop()).Middleware(h)
	user := &models.User{ID: uuid.New()}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := aiRequest(user, "203.0.113.9")
		req.Header.Set("X-Forwarded-For", "10.1.2.3")
		req.Header.Set("X-Real-IP", "10.1.2.3")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestTrustedProxies(t *testing.T) {
	tp := NewTrustedProxies([]string{"10.0.0.0/8", "192.0.2.7", "not-an-ip"}, zerolog.Nop())

	var seen string
	h := tp.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
	}))

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct", "198.51.100.1:1234", nil, "198.51.100.1"},
		{"untrusted peer spoofs", "198.51.100.1:1234", map[string]string{"X-Forwarded-For": "10.1.2.3", "Fly-Client-IP": "10.1.2.3"}, "198.51.100.1"},
		{"trusted peer", "10.0.0.2:1234", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"client prepends a fake hop", "10.0.0.2:1234", map[string]string{"X-Forwarded-For": "10.9.9.9, 203.0.113.9, 10.0.0.3"}, "203.0.113.9"},
		{"single trusted ip", "192.0.2.7:80", map[string]string{"X-Real-IP": "203.0.113.5"}, "203.0.113.5"},
		{"fly header", "10.0.0.2:1234", map[string]string{"Fly-Client-IP": "198.51.100.4", "X-Forwarded-For": "203.0.113.9"}, "198.51.100.4"},
		{"garbage header", "10.0.0.2:1234", map[string]string{"X-Forwarded-For": "nonsense"}, "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}
}
