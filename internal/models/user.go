package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered chat account.
type User struct {
	ID         uuid.UUID `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email,omitempty"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AIAssistantID is the reserved identity of the synthetic AI participant.
// It never authenticates and owns no server-side conversation.
const AIAssistantID = "ai-assistant"
