package conversations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storychat/internal/auth"
)

// Service exposes identity-scoped topic and message operations.
// The identity is read from the context; without one every operation is a no-op.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ListTopics returns the caller's topics ordered by name.
func (s *Service) ListTopics(ctx context.Context) ([]Topic, error) {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return []Topic{}, nil
	}
	topics, err := s.repo.ListTopics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// CreateTopic stores a new topic for the caller. The zero Topic is returned for anonymous callers.
func (s *Service) CreateTopic(ctx context.Context, name string) (Topic, error) {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return Topic{}, nil
	}
	name, err := validateName(name)
	if err != nil {
		return Topic{}, err
	}

	topic := Topic{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateTopic(ctx, topic); err != nil {
		return Topic{}, fmt.Errorf("create topic: %w", err)
	}
	return topic, nil
}

// RenameTopic changes the name of one of the caller's topics.
func (s *Service) RenameTopic(ctx context.Context, topicID uuid.UUID, name string) error {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return nil
	}
	name, err := validateName(name)
	if err != nil {
		return err
	}
	if err := s.repo.RenameTopic(ctx, userID, topicID, name); err != nil {
		return fmt.Errorf("rename topic: %w", err)
	}
	return nil
}

// DeleteTopic removes a topic together with all of its messages.
func (s *Service) DeleteTopic(ctx context.Context, topicID uuid.UUID) error {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return nil
	}
	if err := s.repo.DeleteTopic(ctx, userID, topicID); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}

// ListMessages returns a topic's messages in creation order.
func (s *Service) ListMessages(ctx context.Context, topicID uuid.UUID) ([]Message, error) {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return []Message{}, nil
	}
	msgs, err := s.repo.ListMessages(ctx, userID, topicID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// InsertMessage appends a message to one of the caller's topics.
func (s *Service) InsertMessage(ctx context.Context, topicID uuid.UUID, role Role, content string) (Message, error) {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return Message{}, nil
	}
	if !role.Valid() {
		return Message{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	msg := Message{
		ID:        uuid.New(),
		TopicID:   topicID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertMessage(ctx, userID, msg); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// DeleteMessage removes a message only when it belongs to topicID.
func (s *Service) DeleteMessage(ctx context.Context, topicID, messageID uuid.UUID) error {
	userID, ok := auth.UserIDFromCtx(ctx)
	if !ok {
		return nil
	}
	if err := s.repo.DeleteMessage(ctx, userID, topicID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: topic name is required", ErrInvalidInput)
	}
	return name, nil
}
