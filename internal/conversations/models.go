package conversations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound signals a topic or message missing for the current identity.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput signals validation errors on topic or message writes.
	ErrInvalidInput = errors.New("invalid input")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r can be stored.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Topic is a named conversation thread owned by one identity.
type Topic struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn inside a topic. Messages are immutable once stored.
type Message struct {
	ID        uuid.UUID `json:"id"`
	TopicID   uuid.UUID `json:"topic_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the persistence layer contract. Every method is scoped to userID.
type Repository interface {
	ListTopics(ctx context.Context, userID uuid.UUID) ([]Topic, error)
	CreateTopic(ctx context.Context, topic Topic) error
	RenameTopic(ctx context.Context, userID, topicID uuid.UUID, name string) error
	DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error
	ListMessages(ctx context.Context, userID, topicID uuid.UUID) ([]Message, error)
	InsertMessage(ctx context.Context, userID uuid.UUID, msg Message) error
	DeleteMessage(ctx context.Context, userID, topicID, messageID uuid.UUID) error
}
