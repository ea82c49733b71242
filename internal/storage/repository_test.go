package storage

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"storychat/internal/conversations"
)

func newMock(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationRepository(db), mock
}

func TestListTopicsOrdersByName(t *testing.T) {
	repo, mock := newMock(t)
	userID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}).
		AddRow(uuid.New().String(), userID.String(), "Animals", now).
		AddRow(uuid.New().String(), userID.String(), "Space", now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, created_at FROM topics WHERE user_id = $1 ORDER BY name ASC")).
		WithArgs(userID).
		WillReturnRows(rows)

	topics, err := repo.ListTopics(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Equal(t, "Animals", topics[0].Name)
	require.Equal(t, userID, topics[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTopic(t *testing.T) {
	repo, mock := newMock(t)
	topic := conversations.Topic{ID: uuid.New(), UserID: uuid.New(), Name: "Pirates", CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO topics (id,user_id,name,created_at) VALUES ($1,$2,$3,$4)")).
		WithArgs(topic.ID, topic.UserID, topic.Name, topic.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateTopic(context.Background(), topic))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameTopicNotOwned(t *testing.T) {
	repo, mock := newMock(t)
	userID, topicID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE topics SET name = $1 WHERE id = $2 AND user_id = $3")).
		WithArgs("Renamed", topicID, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RenameTopic(context.Background(), userID, topicID, "Renamed")
	require.ErrorIs(t, err, conversations.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTopicRemovesMessagesFirst(t *testing.T) {
	repo, mock := newMock(t)
	userID, topicID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM topics WHERE id = $1 AND user_id = $2 FOR UPDATE")).
		WithArgs(topicID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE topic_id = $1")).
		WithArgs(topicID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM topics WHERE id = $1 AND user_id = $2")).
		WithArgs(topicID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteTopic(context.Background(), userID, topicID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTopicUnknownRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	userID, topicID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM topics WHERE id = $1 AND user_id = $2 FOR UPDATE")).
		WithArgs(topicID, userID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.DeleteTopic(context.Background(), userID, topicID)
	require.ErrorIs(t, err, conversations.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesScopedToOwner(t *testing.T) {
	repo, mock := newMock(t)
	userID, topicID := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "topic_id", "role", "content", "created_at"}).
		AddRow(uuid.New().String(), topicID.String(), "user", "Tell me a story", now).
		AddRow(uuid.New().String(), topicID.String(), "assistant", "Once upon a time.", now.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT m.id, m.topic_id, m.role, m.content, m.created_at FROM messages m JOIN topics t ON t.id = m.topic_id WHERE m.topic_id = $1 AND t.user_id = $2 ORDER BY m.created_at ASC",
	)).
		WithArgs(topicID, userID).
		WillReturnRows(rows)

	msgs, err := repo.ListMessages(context.Background(), userID, topicID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, conversations.RoleUser, msgs[0].Role)
	require.Equal(t, conversations.RoleAssistant, msgs[1].Role)
	require.Equal(t, "Once upon a time.", msgs[1].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessage(t *testing.T) {
	repo, mock := newMock(t)
	userID := uuid.New()
	msg := conversations.Message{
		ID:        uuid.New(),
		TopicID:   uuid.New(),
		Role:      conversations.RoleUser,
		Content:   "Hello",
		CreatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM topics WHERE id = $1 AND user_id = $2 FOR SHARE")).
		WithArgs(msg.TopicID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages (id,topic_id,role,content,created_at) VALUES ($1,$2,$3,$4,$5)")).
		WithArgs(msg.ID, msg.TopicID, "user", msg.Content, msg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertMessage(context.Background(), userID, msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageIntoForeignTopic(t *testing.T) {
	repo, mock := newMock(t)
	userID := uuid.New()
	msg := conversations.Message{ID: uuid.New(), TopicID: uuid.New(), Role: conversations.RoleUser, Content: "Hi"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM topics WHERE id = $1 AND user_id = $2 FOR SHARE")).
		WithArgs(msg.TopicID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	err := repo.InsertMessage(context.Background(), userID, msg)
	require.ErrorIs(t, err, conversations.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMessageRequiresMatchingTopic(t *testing.T) {
	repo, mock := newMock(t)
	userID, topicID, messageID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(
		"DELETE FROM messages WHERE id = $1 AND topic_id = $2 AND topic_id IN (SELECT id FROM topics WHERE user_id = $3)",
	)).
		WithArgs(messageID, topicID, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteMessage(context.Background(), userID, topicID, messageID)
	require.ErrorIs(t, err, conversations.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
