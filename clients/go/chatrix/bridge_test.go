package chatrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-process EventSource.
type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]func(Message)
	offs     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]func(Message))}
}

func (f *fakeSource) On(event string, h func(Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
}

func (f *fakeSource) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offs++
	delete(f.handlers, event)
}

func (f *fakeSource) emit(msg Message) {
	f.mu.Lock()
	h := f.handlers[EventNewMessage]
	f.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

func TestBridgeDeliversFromSelectedPeerOnly(t *testing.T) {
	env := newStoreEnv(t)
	source := newFakeSource()
	bridge := NewRealtimeBridge(source, env.store, NewChime(func() Player { return env.player }))

	bob := PeerFor(User{ID: "u2"})
	env.store.SelectPeer(bob)
	bridge.Subscribe(bob)

	source.emit(Message{ID: "1", SenderID: "u2", Text: "hi"})
	source.emit(Message{ID: "2", SenderID: "u3", Text: "not for this chat"})

	msgs := env.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, 1, env.player.plays)
}

func TestBridgeSkipsAIPeer(t *testing.T) {
	env := newStoreEnv(t)
	source := newFakeSource()
	bridge := NewRealtimeBridge(source, env.store, nil)

	bob := PeerFor(User{ID: "u2"})
	env.store.SelectPeer(bob)
	bridge.Subscribe(bob)

	env.store.SelectPeer(AIPeer)
	bridge.Subscribe(AIPeer)
	assert.Empty(t, source.handlers)

	source.emit(Message{ID: "1", SenderID: "u2", Text: "hi"})
	assert.Empty(t, env.store.Messages())
}

func TestBridgeResubscribeDoesNotDuplicate(t *testing.T) {
	env := newStoreEnv(t)
	source := newFakeSource()
	bridge := NewRealtimeBridge(source, env.store, nil)

	bob := PeerFor(User{ID: "u2"})
	env.store.SelectPeer(bob)
	bridge.Subscribe(bob)
	bridge.Subscribe(bob)

	source.emit(Message{ID: "1", SenderID: "u2"})
	assert.Len(t, env.store.Messages(), 1)
	assert.Equal(t, 2, source.offs)

	bridge.Unsubscribe()
	source.emit(Message{ID: "2", SenderID: "u2"})
	assert.Len(t, env.store.Messages(), 1)
}

func TestSocketDispatchesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		ws, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer ws.Close()

		// Wait for the client to register its handler.
		time.Sleep(50 * time.Millisecond)

		_ = ws.WriteMessage(websocket.TextMessage, []byte("garbage"))
		frame, _ := json.Marshal(map[string]any{
			"type":    EventNewMessage,
			"message": Message{ID: "m1", SenderID: "u2", Text: "pushed"},
		})
		_ = ws.WriteMessage(websocket.TextMessage, frame)
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	sock, err := DialEvents(context.Background(), srv.URL, "tok", zerolog.Nop())
	require.NoError(t, err)
	defer sock.Close()

	got := make(chan Message, 1)
	sock.On(EventNewMessage, func(m Message) { got <- m })

	select {
	case m := <-got:
		assert.Equal(t, "pushed", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}
