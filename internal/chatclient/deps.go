package chatclient

import (
	"context"

	"github.com/google/uuid"

	"storychat/internal/chat"
	"storychat/internal/conversations"
	"storychat/internal/sheet"
)

// Store persists topics and messages for the signed-in identity.
type Store interface {
	ListTopics(ctx context.Context) ([]conversations.Topic, error)
	CreateTopic(ctx context.Context, name string) (conversations.Topic, error)
	RenameTopic(ctx context.Context, topicID uuid.UUID, name string) error
	DeleteTopic(ctx context.Context, topicID uuid.UUID) error
	ListMessages(ctx context.Context, topicID uuid.UUID) ([]conversations.Message, error)
	InsertMessage(ctx context.Context, topicID uuid.UUID, role conversations.Role, content string) (conversations.Message, error)
	DeleteMessage(ctx context.Context, topicID, messageID uuid.UUID) error
}

// Gateway reaches the remote completion, speech and sheet endpoints.
type Gateway interface {
	Chat(ctx context.Context, turns []chat.Turn) (chat.Result, error)
	Speech(ctx context.Context, text, language string) ([]byte, error)
	Sheet(ctx context.Context) ([]sheet.Row, error)
}

// Track is a loaded audio clip.
type Track interface {
	// Play blocks until the clip ends or ctx is cancelled.
	Play(ctx context.Context) error
	// Stop halts playback and rewinds to the start.
	Stop()
	// Release frees the clip's resources.
	Release()
}

// AudioOutput turns MP3 clips into playable tracks.
type AudioOutput interface {
	Load(clip []byte) (Track, error)
}

// Renderer draws a View. It is called with the controller lock held and must
// not call back into the controller.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render calls f(v).
func (f RendererFunc) Render(v View) { f(v) }

type tokenKey struct{}

// WithToken attaches a bearer token to ctx for the API client.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromCtx returns the bearer token attached by WithToken.
func TokenFromCtx(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
