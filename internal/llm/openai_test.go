package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"storychat/internal/chat"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"model": "gpt-4.1",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello there."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewOpenAIClient(logger, "test-key", "", &OpenAIOptions{BaseURL: srv.URL})

	completion, err := client.Complete(context.Background(), chat.CompletionRequest{
		Turns:       []chat.Turn{{Role: chat.RoleSystem, Content: "be brief"}, {Role: chat.RoleUser, Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   8000,
	})
	require.NoError(t, err)
	require.Equal(t, "Hello there.", completion.Content)
	require.Equal(t, chat.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, completion.Usage)

	require.Equal(t, "gpt-4.1", got.Model)
	require.Equal(t, float32(0.7), got.Temperature)
	require.Equal(t, 8000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
}

func TestOpenAIClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewOpenAIClient(logger, "k", "gpt-4.1", &OpenAIOptions{BaseURL: srv.URL})

	_, err := client.Complete(context.Background(), chat.CompletionRequest{
		Turns: []chat.Turn{{Role: chat.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "slow down")
}
