package chatrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventNewMessage is the event pushed when a message is delivered to us.
const EventNewMessage = "newMessage"

// EventSource dispatches pushed events to registered handlers. On replaces
// any handler already registered for the event.
type EventSource interface {
	On(event string, handler func(Message))
	Off(event string)
}

// RealtimeBridge routes pushed messages into the store for human peers.
// The AI participant never uses the event stream.
type RealtimeBridge struct {
	source EventSource
	store  *ConversationStore
	chime  *Chime
}

// NewRealtimeBridge creates a bridge. source may be nil when the client
// runs without an event stream.
func NewRealtimeBridge(source EventSource, store *ConversationStore, chime *Chime) *RealtimeBridge {
	return &RealtimeBridge{source: source, store: store, chime: chime}
}

// Subscribe drops any previous subscription and, for realtime peers,
// appends messages sent by peer to the timeline.
func (b *RealtimeBridge) Subscribe(peer Peer) {
	if b.source == nil {
		return
	}
	b.source.Off(EventNewMessage)
	if peer == nil || !peer.RealtimeDelivery() {
		return
	}

	b.chime.Init()
	peerID := peer.ID()
	b.source.On(EventNewMessage, func(msg Message) {
		if msg.SenderID != peerID {
			return
		}
		if b.store.AppendInbound(msg) {
			b.chime.Play()
		}
	})
}

// Unsubscribe stops delivery to the timeline.
func (b *RealtimeBridge) Unsubscribe() {
	if b.source != nil {
		b.source.Off(EventNewMessage)
	}
}

// event is the wire frame of the event stream.
type event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// Socket is an EventSource over the server's WebSocket stream.
type Socket struct {
	ws     *websocket.Conn
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]func(Message)
	done     chan struct{}
}

// DialEvents connects to the event stream of the server at baseURL.
func DialEvents(ctx context.Context, baseURL, token string, logger zerolog.Logger) (*Socket, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		ws:       ws,
		logger:   logger,
		handlers: make(map[string]func(Message)),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Socket) On(event string, handler func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

func (s *Socket) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

// Done is closed when the connection ends.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Close closes the connection.
func (s *Socket) Close() error {
	return s.ws.Close()
}

func (s *Socket) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("event stream closed")
			}
			return
		}

		var ev event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Message == nil {
			continue
		}

		s.mu.RLock()
		handler := s.handlers[ev.Type]
		s.mu.RUnlock()
		if handler != nil {
			handler(*ev.Message)
		}
	}
}
