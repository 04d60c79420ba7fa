package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/models"
)

func TestRegister(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, nil, http.MethodPost, "/auth/register", RegisterRequest{FullName: "  Ravi\x07 ", Email: "ravi@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Ravi", resp.User.FullName)

	userID, err := middleware.ParseToken([]byte(testSecret), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, nil, http.MethodPost, "/auth/register", RegisterRequest{FullName: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, nil, http.MethodPost, "/auth/register", RegisterRequest{FullName: "Ravi", Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.users.users)
}

func TestMeAndLogout(t *testing.T) {
	me := &models.User{ID: uuid.New(), FullName: "Asha"}
	env := newTestEnv(me)

	rec := env.do(t, me, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, me.ID, got.ID)

	rec = env.do(t, nil, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, me, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestProfileAndStats(t *testing.T) {
	alice := &models.User{ID: uuid.New(), FullName: "Alice"}
	bob := &models.User{ID: uuid.New(), FullName: "Bob"}
	env := newTestEnv(alice, bob)
	env.realtime.online = []string{bob.ID.String()}

	rec := env.do(t, alice, http.MethodGet, "/users/"+bob.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile ProfileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "Bob", profile.FullName)
	assert.True(t, profile.Online)

	rec = env.do(t, alice, http.MethodGet, "/users/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, alice, http.MethodGet, "/users/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, nil, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, 1, stats.OnlineUsers)
}
