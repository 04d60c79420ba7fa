package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatrix/internal/ai"
	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/models"
)

// fakeUsers is an in-memory DataStore.
type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Close()                     {}
func (f *fakeUsers) Ping(context.Context) error { return nil }

func (f *fakeUsers) CreateUser(_ context.Context, fullName, email, pic string) (*models.User, error) {
	u := &models.User{ID: uuid.New(), FullName: fullName, Email: email, ProfilePic: pic}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUsers) ListUsersExcept(_ context.Context, id uuid.UUID) ([]models.User, error) {
	out := []models.User{}
	for uid, u := range f.users {
		if uid != id {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeUsers) CountUsers(context.Context) (int64, error) { return int64(len(f.users)), nil }

// fakeMessages is an in-memory MessageStore.
type fakeMessages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (f *fakeMessages) Ping(context.Context) error { return nil }

func (f *fakeMessages) SaveMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.NewString()
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessages) Conversation(_ context.Context, a, b string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Message{}
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeRealtime records published events.
type fakeRealtime struct {
	mu     sync.Mutex
	events map[string][]models.Event
	online []string
}

func (f *fakeRealtime) Publish(userID string, ev models.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = make(map[string][]models.Event)
	}
	f.events[userID] = append(f.events[userID], ev)
	return 1
}

func (f *fakeRealtime) Online() []string { return f.online }

func (f *fakeRealtime) ServeWS(w http.ResponseWriter, _ *http.Request, _ string) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

// fakeReplier captures the gateway call.
type fakeReplier struct {
	system  string
	history []ai.Turn
	text    string
	reply   string
	err     error
	calls   int
}

func (f *fakeReplier) Reply(_ context.Context, system string, history []ai.Turn, text string) (string, error) {
	f.calls++
	f.system, f.history, f.text = system, history, text
	return f.reply, f.err
}

const testSecret = "test-secret"

type testEnv struct {
	handler  *Handler
	router   chi.Router
	users    *fakeUsers
	messages *fakeMessages
	realtime *fakeRealtime
	replier  *fakeReplier
}

func newTestEnv(users ...*models.User) *testEnv {
	env := &testEnv{
		users:    newFakeUsers(users...),
		messages: &fakeMessages{},
		realtime: &fakeRealtime{},
		replier:  &fakeReplier{reply: "hey!"},
	}
	env.handler = NewHandler(Deps{
		Users:     env.users,
		Messages:  env.messages,
		AI:        env.replier,
		Realtime:  env.realtime,
		JWTSecret: testSecret,
		Logger:    zerolog.Nop(),
	})

	r := chi.NewRouter()
	r.Post("/ai/chat", env.handler.ChatWithAI)
	r.Get("/messages/users", env.handler.GetUsers)
	r.Get("/messages/{id}", env.handler.GetMessages)
	r.Post("/messages/send/{id}", env.handler.SendMessage)
	r.Get("/health", env.handler.Health)
	r.Post("/auth/register", env.handler.Register)
	r.Get("/auth/me", env.handler.Me)
	r.Post("/auth/logout", env.handler.Logout)
	r.Get("/users/{id}", env.handler.Profile)
	r.Get("/stats", env.handler.Stats)
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, as *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), as))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}
