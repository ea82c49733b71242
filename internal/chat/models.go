package chat

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("empty reply")

// Roles accepted in a transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of a chat transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for the reply call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Timing holds call durations in milliseconds.
type Timing struct {
	LLMDuration   int64 `json:"llmDuration"`
	SuggDuration  int64 `json:"suggDuration"`
	TotalDuration int64 `json:"totalDuration"`
}

// Result is the gateway response for one submitted transcript.
type Result struct {
	Reply       string   `json:"reply"`
	Suggestions []string `json:"suggestions"`
	Usage       Usage    `json:"usage"`
	Timing      Timing   `json:"timing"`
}

// CompletionRequest is a single model call.
type CompletionRequest struct {
	Turns       []Turn
	Temperature float32
	MaxTokens   int
}

// Completion is the model output of a single call.
type Completion struct {
	Content string
	Usage   Usage
}

// Completer performs chat completions against a language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
