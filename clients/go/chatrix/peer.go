package chatrix

import "time"

// AIAssistantID is the reserved identifier of the AI participant.
const AIAssistantID = "ai-assistant"

// User is a chat contact as listed by the server.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	IsAI       bool   `json:"isAI,omitempty"`
}

// Message is one entry of a conversation timeline.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Turn is one entry of the history sent with an AI request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIUser returns the roster entry of the AI participant.
func AIUser() User {
	return User{
		ID:         AIAssistantID,
		FullName:   "Chatrix AI",
		ProfilePic: "/ai.jpg",
		IsAI:       true,
	}
}

// Peer is the other side of the selected conversation.
type Peer interface {
	ID() string
	Name() string
	// LocalOnly peers keep their conversation on this device and answer
	// through the AI endpoint.
	LocalOnly() bool
	// RealtimeDelivery peers push inbound messages over the event stream.
	RealtimeDelivery() bool
}

type aiPeer struct{}

func (aiPeer) ID() string             { return AIAssistantID }
func (aiPeer) Name() string           { return AIUser().FullName }
func (aiPeer) LocalOnly() bool        { return true }
func (aiPeer) RealtimeDelivery() bool { return false }

type humanPeer struct {
	user User
}

func (p humanPeer) ID() string             { return p.user.ID }
func (p humanPeer) Name() string           { return p.user.FullName }
func (p humanPeer) LocalOnly() bool        { return false }
func (p humanPeer) RealtimeDelivery() bool { return true }

// AIPeer is the AI participant.
var AIPeer Peer = aiPeer{}

// PeerFor returns the peer for a roster entry.
func PeerFor(u User) Peer {
	if u.IsAI || u.ID == AIAssistantID {
		return AIPeer
	}
	return humanPeer{user: u}
}
