package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/eldtechnologies/chatrix/internal/models"
)

// DataStore defines the interface for persistent storage of user accounts.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, fullName, email, profilePic string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsersExcept(ctx context.Context, id uuid.UUID) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// MessageStore persists human-to-human conversations.
// AI conversations are never stored server-side.
type MessageStore interface {
	Ping(ctx context.Context) error
	SaveMessage(ctx context.Context, msg *models.Message) error
	Conversation(ctx context.Context, a, b string, limit int) ([]models.Message, error)
}
