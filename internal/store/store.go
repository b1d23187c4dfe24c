package store

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string // URL, empty if never set
	CreatedAt    time.Time
}

// Message is a persisted direct message between two users.
// Immutable once saved; removed only in bulk per participant pair.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	ImageURL   *string
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsersExcept lists all users except the given one,
	// ordered by full name.
	ListUsersExcept(ctx context.Context, userID int64) ([]*User, error)

	// UpdateProfilePic sets the user's profile picture URL.
	UpdateProfilePic(ctx context.Context, userID int64, url string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation retrieves all messages exchanged between two users
	// in either direction, ordered by creation time ascending.
	ListConversation(ctx context.Context, userA, userB int64) ([]*Message, error)

	// DeleteConversation removes all messages between two users in either
	// direction and reports how many rows were deleted.
	DeleteConversation(ctx context.Context, userA, userB int64) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
