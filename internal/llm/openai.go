package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"storychat/internal/chat"
)

const defaultModel = "gpt-4.1"

// OpenAIOptions allows overriding HTTP behavior.
type OpenAIOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIClient implements chat.Completer against OpenAI's Chat Completions API.
type OpenAIClient struct {
	logger *slog.Logger
	client *openai.Client
	model  string
}

// NewOpenAIClient constructs a new OpenAIClient.
func NewOpenAIClient(logger *slog.Logger, apiKey, model string, opts *OpenAIOptions) *OpenAIClient {
	if opts == nil {
		opts = &OpenAIOptions{}
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{
			Timeout: 90 * time.Second,
		}
	}

	if model == "" {
		model = defaultModel
	}

	return &OpenAIClient{
		logger: logger,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the turns as a single chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req chat.CompletionRequest) (chat.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns))
	for _, turn := range req.Turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return chat.Completion{}, fmt.Errorf("call openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return chat.Completion{}, fmt.Errorf("openai returned no choices")
	}

	c.logger.Debug("openai completion",
		slog.String("model", resp.Model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return chat.Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
