package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	N           int     `json:"n"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(url string) *Gateway {
	return NewGateway(GatewayConfig{APIKey: "test-key", BaseURL: url})
}

const okBody = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  hey there!  "},"finish_reason":"stop"}]}`

func TestReply_AssemblesRequest(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK, okBody, &got)

	history := []Turn{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	reply, err := newTestGateway(srv.URL).Reply(context.Background(), "SYSTEM", history, "how are you?")
	require.NoError(t, err)
	assert.Equal(t, "hey there!", reply)

	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, Temperature, got.Temperature, 0.001)
	assert.InDelta(t, TopP, got.TopP, 0.001)
	assert.Equal(t, MaxOutputTokens, got.MaxTokens)
	assert.Equal(t, 1, got.N)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "SYSTEM", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "how are you?", got.Messages[3].Content)
}

func TestReply_SkipsBlankHistoryTurns(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK, okBody, &got)

	history := SanitizeHistory([]any{
		map[string]any{"role": "assistant"},
		42,
		map[string]any{"role": "user", "content": "earlier"},
	})
	_, err := newTestGateway(srv.URL).Reply(context.Background(), "S", history, "hi")
	require.NoError(t, err)

	require.Len(t, got.Messages, 3)
	for _, m := range got.Messages {
		assert.NotEmpty(t, m.Content, "role %s", m.Role)
	}
	assert.Equal(t, "earlier", got.Messages[1].Content)
	assert.Equal(t, "hi", got.Messages[2].Content)
}

func TestReply_FallbackOnEmpty(t *testing.T) {
	bodies := []string{
		`{"id":"c1","choices":[]}`,
		`{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`,
	}
	for _, body := range bodies {
		srv := completionServer(t, http.StatusOK, body, nil)
		reply, err := newTestGateway(srv.URL).Reply(context.Background(), "s", nil, "hi")
		require.NoError(t, err)
		assert.Equal(t, FallbackReply, reply)
	}
}

func TestReply_RateLimited(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`, nil)

	_, err := newTestGateway(srv.URL).Reply(context.Background(), "s", nil, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestReply_ProviderFailure(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError,
		`{"error":{"message":"boom","type":"server_error"}}`, nil)

	_, err := newTestGateway(srv.URL).Reply(context.Background(), "s", nil, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayFailure))
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestReply_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestGateway(url).Reply(context.Background(), "s", nil, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayFailure))
}

func TestReply_MisconfiguredBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{BaseURL: srv.URL})
	_, err := g.Reply(context.Background(), "s", nil, "hi")
	assert.True(t, errors.Is(err, ErrMisconfigured))
	assert.False(t, called)
}
