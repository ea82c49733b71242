package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storychat/internal/chat"
)

// StubClient implements chat.Completer with deterministic output for development.
type StubClient struct {
	logger *slog.Logger
}

// NewStubClient returns a stubbed LLM client.
func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

// Complete echoes the last user turn. A trailing system turn is treated as a
// suggestion request and answered with a JSON array.
func (s *StubClient) Complete(ctx context.Context, req chat.CompletionRequest) (chat.Completion, error) {
	if len(req.Turns) == 0 {
		return chat.Completion{}, fmt.Errorf("turns required")
	}

	topic := lastUserText(req.Turns)
	if topic == "" {
		topic = "your story"
	}

	var content string
	if req.Turns[len(req.Turns)-1].Role == chat.RoleSystem {
		content = fmt.Sprintf(`["What happens next in %[1]s?", "Who else appears in %[1]s?", "How does %[1]s end?"]`, topic)
	} else {
		content = fmt.Sprintf("Here is a short tale about %s. It begins quietly. It ends well!", topic)
	}

	s.logger.Debug("stub LLM completion",
		slog.Int("turns", len(req.Turns)),
		slog.Int("max_tokens", req.MaxTokens),
	)

	words := len(strings.Fields(content))
	return chat.Completion{
		Content: content,
		Usage: chat.Usage{
			PromptTokens:     len(req.Turns),
			CompletionTokens: words,
			TotalTokens:      len(req.Turns) + words,
		},
	}, nil
}

func lastUserText(turns []chat.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			return strings.TrimSpace(turns[i].Content)
		}
	}
	return ""
}
