package models

import "time"

// Message represents a 1-to-1 chat message between two users.
type Message struct {
	ID         string    `json:"_id"` // ULID, assigned on acceptance
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event is pushed to realtime subscribers.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

// EventNewMessage is emitted to the receiver of a newly stored message.
const EventNewMessage = "newMessage"
