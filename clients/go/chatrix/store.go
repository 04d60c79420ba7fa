package chatrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxHistory is the number of prior messages sent with an AI request.
const MaxHistory = 20

// Fixed texts shown in the conversation or as notices.
const (
	FallbackReply    = "Sorry, I could not generate a reply."
	ErrorReply       = "I ran into an error. Please try again."
	noticeAIFailed   = "AI request failed"
	noticeSendFailed = "Failed to send"
)

var (
	// ErrNoPeer is returned by Send when no conversation is selected.
	ErrNoPeer = errors.New("chatrix: no conversation selected")
	// ErrSendInFlight is returned by Send while a previous send is pending.
	ErrSendInFlight = errors.New("chatrix: send already in progress")
)

// API is the subset of the server API the store depends on.
type API interface {
	Users(ctx context.Context) ([]User, error)
	Messages(ctx context.Context, peerID string) ([]Message, error)
	Send(ctx context.Context, peerID, text string) (*Message, error)
	ChatAI(ctx context.Context, text string, history []Turn) (string, error)
}

// Notifier shows transient, user-facing notices.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// State is the send state of the store.
type State int

const (
	Idle State = iota
	SendingToAI
	Posting
)

func (s State) String() string {
	switch s {
	case SendingToAI:
		return "sending_to_ai"
	case Posting:
		return "posting"
	default:
		return "idle"
	}
}

// Outcome describes how a Send resolved.
type Outcome int

const (
	// OutcomeIgnored means the text was blank and nothing happened.
	OutcomeIgnored Outcome = iota
	// OutcomeAppended means a human message was accepted and appended.
	OutcomeAppended
	// OutcomeReply means the AI replied.
	OutcomeReply
	// OutcomeRateLimited means the AI request was refused for rate limits
	// and the timeline holds only the outgoing message.
	OutcomeRateLimited
	// OutcomeFailed means the request failed. For the AI peer an apology
	// was appended.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeReply:
		return "reply"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// StoreConfig configures a ConversationStore.
type StoreConfig struct {
	API      API
	Archive  *Archive
	Notifier Notifier
	Chime    *Chime
	Self     User

	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// ConversationStore holds the selected conversation and its timeline. The
// AI peer's timeline lives in the local archive; human timelines come from
// the server.
type ConversationStore struct {
	api      API
	archive  *Archive
	notifier Notifier
	chime    *Chime
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	self     User
	users    []User
	peer     Peer
	epoch    uint64
	messages []Message
	state    State
}

// NewConversationStore creates a store with no peer selected.
func NewConversationStore(cfg StoreConfig) *ConversationStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Archive == nil {
		cfg.Archive = NewArchive(NewMemoryStorage(), zerolog.Nop())
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(func(string) {})
	}
	return &ConversationStore{
		api:      cfg.API,
		archive:  cfg.Archive,
		notifier: cfg.Notifier,
		chime:    cfg.Chime,
		now:      cfg.Now,
		newID:    cfg.NewID,
		self:     cfg.Self,
		messages: []Message{},
	}
}

// SetSelf sets the signed-in user.
func (s *ConversationStore) SetSelf(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = u
}

// LoadUsers fetches the roster and puts the AI participant first unless the
// server already lists it.
func (s *ConversationStore) LoadUsers(ctx context.Context) ([]User, error) {
	list, err := s.api.Users(ctx)
	if err != nil {
		s.notifier.Notify(reason(err, "Failed to load users"))
		return nil, err
	}

	hasAI := false
	for _, u := range list {
		if u.ID == AIAssistantID {
			hasAI = true
			break
		}
	}
	if !hasAI {
		list = append([]User{AIUser()}, list...)
	}

	s.mu.Lock()
	s.users = list
	s.mu.Unlock()
	return list, nil
}

// Users returns the last loaded roster.
func (s *ConversationStore) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.users...)
}

// SelectPeer switches the conversation. The timeline is cleared until
// LoadMessages runs, and any pending send for the previous selection
// becomes stale.
func (s *ConversationStore) SelectPeer(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = p
	s.epoch++
	s.messages = []Message{}
}

// Peer returns the selected peer, or nil.
func (s *ConversationStore) Peer() Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Messages returns a copy of the visible timeline.
func (s *ConversationStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// State returns the current send state.
func (s *ConversationStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadMessages fills the timeline of the selected peer: from the archive
// for the AI participant, from the server otherwise.
func (s *ConversationStore) LoadMessages(ctx context.Context) error {
	s.mu.Lock()
	peer, epoch := s.peer, s.epoch
	if peer == nil {
		s.mu.Unlock()
		return ErrNoPeer
	}
	if peer.LocalOnly() {
		// reconcile saves the archive under the same lock.
		s.messages = s.archive.Load(s.self.ID)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	msgs, err := s.api.Messages(ctx, peer.ID())
	if err != nil {
		s.notifier.Notify(reason(err, "Failed to load messages"))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.messages = append([]Message{}, msgs...)
	}
	return nil
}

// AppendInbound appends a pushed message when it comes from the selected
// human peer and reports whether it did.
func (s *ConversationStore) AppendInbound(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil || !s.peer.RealtimeDelivery() || msg.SenderID != s.peer.ID() {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

// Send sends text to the selected peer. Blank text is ignored. Request
// failures are reported through the Notifier and the Outcome; the returned
// error is only ErrNoPeer or ErrSendInFlight.
func (s *ConversationStore) Send(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.peer == nil {
		s.mu.Unlock()
		return OutcomeIgnored, ErrNoPeer
	}
	if text == "" {
		s.mu.Unlock()
		return OutcomeIgnored, nil
	}
	if s.state != Idle {
		s.mu.Unlock()
		return OutcomeIgnored, ErrSendInFlight
	}

	if s.peer.LocalOnly() {
		p := s.commitLocal(text)
		s.mu.Unlock()
		return s.askAI(ctx, p), nil
	}

	peer, epoch := s.peer, s.epoch
	s.state = Posting
	s.mu.Unlock()
	return s.post(ctx, peer, epoch, text), nil
}

// pendingAI is an outgoing AI message committed locally and awaiting the
// reply.
type pendingAI struct {
	selfID      string
	archiveUser string
	text        string
	history     []Turn
	committed   []Message
}

// commitLocal appends the outgoing message and persists the timeline. The
// caller holds s.mu.
func (s *ConversationStore) commitLocal(text string) pendingAI {
	selfID := s.self.ID
	if selfID == "" {
		selfID = "me"
	}

	mine := Message{
		ID:         s.newID(),
		SenderID:   selfID,
		ReceiverID: AIAssistantID,
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}

	// The archive is the source of truth for the AI conversation; the
	// visible timeline may lag behind it after a reselection.
	base := s.archive.Load(s.self.ID)
	history := ProjectHistory(base, selfID)
	committed := make([]Message, 0, len(base)+1)
	committed = append(committed, base...)
	committed = append(committed, mine)

	s.messages = committed
	s.state = SendingToAI

	p := pendingAI{
		selfID:      selfID,
		archiveUser: s.self.ID,
		text:        text,
		history:     history,
		committed:   committed,
	}
	s.archive.Save(p.archiveUser, committed)
	return p
}

func (s *ConversationStore) askAI(ctx context.Context, p pendingAI) Outcome {
	reply, err := s.api.ChatAI(ctx, p.text, p.history)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			s.finish()
			s.notifier.Notify(s.rateLimitNotice(apiErr))
			return OutcomeRateLimited
		}
		s.notifier.Notify(reason(err, noticeAIFailed))
		s.reconcile(p, ErrorReply)
		return OutcomeFailed
	}

	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}
	s.reconcile(p, reply)
	return OutcomeReply
}

// reconcile appends the AI's message to the committed timeline. The
// archive is always updated; the visible timeline only when the AI
// participant is selected when the reply lands, including after leaving
// and coming back.
func (s *ConversationStore) reconcile(p pendingAI, text string) {
	reply := Message{
		ID:         s.newID(),
		SenderID:   AIAssistantID,
		ReceiverID: p.selfID,
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}
	final := append(append([]Message{}, p.committed...), reply)

	s.mu.Lock()
	s.archive.Save(p.archiveUser, final)
	visible := s.peer != nil && s.peer.LocalOnly() && s.self.ID == p.archiveUser
	if visible {
		s.messages = final
	}
	s.state = Idle
	s.mu.Unlock()

	if visible {
		s.chime.Play()
	}
}

func (s *ConversationStore) post(ctx context.Context, peer Peer, epoch uint64, text string) Outcome {
	msg, err := s.api.Send(ctx, peer.ID(), text)
	if err != nil {
		s.finish()
		s.notifier.Notify(reason(err, noticeSendFailed))
		return OutcomeFailed
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.messages = append(s.messages, *msg)
	}
	s.state = Idle
	s.mu.Unlock()
	return OutcomeAppended
}

func (s *ConversationStore) finish() {
	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
}

func (s *ConversationStore) rateLimitNotice(err *APIError) string {
	if err.Reason != "" {
		return err.Reason
	}
	if secs, ok := err.RetryAfter(s.now()); ok {
		return fmt.Sprintf("AI limit reached. Try again in %ds.", secs)
	}
	return "AI limit reached. Try again shortly."
}

// ProjectHistory converts the most recent MaxHistory messages into AI
// history. Messages sent by selfID are the user's turns.
func ProjectHistory(msgs []Message, selfID string) []Turn {
	if len(msgs) > MaxHistory {
		msgs = msgs[len(msgs)-MaxHistory:]
	}
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := "assistant"
		if m.SenderID == selfID {
			role = "user"
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	return turns
}

// reason returns the server-supplied reason of err, or fallback.
func reason(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr.Reason
	}
	return fallback
}
