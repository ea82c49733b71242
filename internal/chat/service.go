package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	replyTemperature      = 0.7
	replyMaxTokens        = 8000
	suggestionTemperature = 0.65
	suggestionMaxTokens   = 140
)

// Service produces an assistant reply plus follow-up suggestions for a transcript.
type Service struct {
	logger    *slog.Logger
	completer Completer
	now       func() time.Time
}

// NewService wires the service.
func NewService(logger *slog.Logger, completer Completer) *Service {
	return &Service{
		logger:    logger,
		completer: completer,
		now:       time.Now,
	}
}

// Reply asks the model for the next assistant turn and then for three suggestions.
// Suggestion failures are logged and yield empty strings.
func (s *Service) Reply(ctx context.Context, turns []Turn) (Result, error) {
	start := s.now()

	completion, err := s.completer.Complete(ctx, CompletionRequest{
		Turns:       WithStyleDirective(turns),
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("complete reply: %w", err)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return Result{}, ErrEmptyReply
	}
	llmEnd := s.now()

	suggestions := s.suggest(ctx, turns, completion.Content)
	suggEnd := s.now()

	timing := Timing{
		LLMDuration:   llmEnd.Sub(start).Milliseconds(),
		SuggDuration:  suggEnd.Sub(llmEnd).Milliseconds(),
		TotalDuration: suggEnd.Sub(start).Milliseconds(),
	}

	s.logger.Info("chat reply generated",
		slog.Int("turns", len(turns)),
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens),
		slog.Int64("llm_ms", timing.LLMDuration),
		slog.Int64("sugg_ms", timing.SuggDuration),
		slog.Int64("total_ms", timing.TotalDuration),
	)

	return Result{
		Reply:       completion.Content,
		Suggestions: suggestions,
		Usage:       completion.Usage,
		Timing:      timing,
	}, nil
}

func (s *Service) suggest(ctx context.Context, turns []Turn, reply string) []string {
	completion, err := s.completer.Complete(ctx, CompletionRequest{
		Turns:       suggestionTurns(turns, reply),
		Temperature: suggestionTemperature,
		MaxTokens:   suggestionMaxTokens,
	})
	if err != nil {
		s.logger.Warn("suggestion call failed", slog.String("error", err.Error()))
		return PadSuggestions(nil)
	}
	return PadSuggestions(ParseSuggestions(completion.Content))
}
