package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"storychat/internal/conversations"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ConversationRepository persists topics and messages in PostgreSQL.
type ConversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new repository.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ListTopics returns the user's topics ordered by name.
func (r *ConversationRepository) ListTopics(ctx context.Context, userID uuid.UUID) ([]conversations.Topic, error) {
	query, args, err := psql.
		Select("id", "user_id", "name", "created_at").
		From("topics").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select topics: %w", err)
	}
	defer rows.Close()

	topics := []conversations.Topic{}
	for rows.Next() {
		var t conversations.Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return topics, nil
}

// CreateTopic inserts a topic.
func (r *ConversationRepository) CreateTopic(ctx context.Context, topic conversations.Topic) error {
	query, args, err := psql.
		Insert("topics").
		Columns("id", "user_id", "name", "created_at").
		Values(topic.ID, topic.UserID, topic.Name, topic.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

// RenameTopic updates a topic's name. Returns conversations.ErrNotFound when the topic
// does not belong to userID.
func (r *ConversationRepository) RenameTopic(ctx context.Context, userID, topicID uuid.UUID, name string) error {
	query, args, err := psql.
		Update("topics").
		Set("name", name).
		Where(sq.Eq{"id": topicID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return expectAffected(res, "topic")
}

// DeleteTopic deletes the topic's messages and then the topic, in one transaction.
func (r *ConversationRepository) DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockTopic(ctx, tx, userID, topicID, "FOR UPDATE"); err != nil {
		return err
	}

	query, args, err := psql.
		Delete("messages").
		Where(sq.Eq{"topic_id": topicID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	query, args, err = psql.
		Delete("topics").
		Where(sq.Eq{"id": topicID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListMessages returns a topic's messages ordered by creation time.
func (r *ConversationRepository) ListMessages(ctx context.Context, userID, topicID uuid.UUID) ([]conversations.Message, error) {
	query, args, err := psql.
		Select("m.id", "m.topic_id", "m.role", "m.content", "m.created_at").
		From("messages m").
		Join("topics t ON t.id = m.topic_id").
		Where(sq.Eq{"m.topic_id": topicID, "t.user_id": userID}).
		OrderBy("m.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	msgs := []conversations.Message{}
	for rows.Next() {
		var m conversations.Message
		if err := rows.Scan(&m.ID, &m.TopicID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return msgs, nil
}

// InsertMessage stores a message after checking that its topic exists and belongs to userID.
func (r *ConversationRepository) InsertMessage(ctx context.Context, userID uuid.UUID, msg conversations.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockTopic(ctx, tx, userID, msg.TopicID, "FOR SHARE"); err != nil {
		return err
	}

	query, args, err := psql.
		Insert("messages").
		Columns("id", "topic_id", "role", "content", "created_at").
		Values(msg.ID, msg.TopicID, string(msg.Role), msg.Content, msg.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteMessage deletes a message matching both messageID and topicID.
// A mismatched topic leaves the message untouched and yields conversations.ErrNotFound.
func (r *ConversationRepository) DeleteMessage(ctx context.Context, userID, topicID, messageID uuid.UUID) error {
	query, args, err := psql.
		Delete("messages").
		Where(sq.Eq{"id": messageID, "topic_id": topicID}).
		Where(sq.Expr("topic_id IN (SELECT id FROM topics WHERE user_id = ?)", userID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return expectAffected(res, "message")
}

func lockTopic(ctx context.Context, tx *sql.Tx, userID, topicID uuid.UUID, lock string) error {
	query, args, err := psql.
		Select("1").
		From("topics").
		Where(sq.Eq{"id": topicID, "user_id": userID}).
		Suffix(lock).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("topic %s: %w", topicID, conversations.ErrNotFound)
		}
		return fmt.Errorf("select topic: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, conversations.ErrNotFound)
	}
	return nil
}
