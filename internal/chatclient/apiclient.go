package chatclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"storychat/internal/chat"
	"storychat/internal/conversations"
	"storychat/internal/sheet"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

// APIOptions allows overriding HTTP behavior.
type APIOptions struct {
	HTTPClient *http.Client
}

// APIClient implements Store and Gateway over the server's HTTP API.
// The bearer token is taken from the request context (see WithToken).
type APIClient struct {
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient constructs a client for the server at baseURL.
func NewAPIClient(logger *slog.Logger, baseURL string, opts *APIOptions) *APIClient {
	if opts == nil {
		opts = &APIOptions{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 150 * time.Second,
		}
	}
	return &APIClient{
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Messages []chat.Turn `json:"messages"`
}

type speechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type topicRequest struct {
	Name string `json:"name"`
}

type messageRequest struct {
	Role    conversations.Role `json:"role"`
	Content string             `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat posts the transcript to /chat.
func (c *APIClient) Chat(ctx context.Context, turns []chat.Turn) (chat.Result, error) {
	var res chat.Result
	if err := c.doJSON(ctx, http.MethodPost, "/chat", chatRequest{Messages: turns}, &res); err != nil {
		return chat.Result{}, err
	}
	return res, nil
}

// Speech posts text to /tts and returns the MP3 body.
func (c *APIClient) Speech(ctx context.Context, text, language string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/tts", speechRequest{Text: text, Language: language})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// Sheet fetches the imported spreadsheet rows.
func (c *APIClient) Sheet(ctx context.Context) ([]sheet.Row, error) {
	var rows []sheet.Row
	if err := c.doJSON(ctx, http.MethodGet, "/sheet", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTopics returns the caller's topics.
func (c *APIClient) ListTopics(ctx context.Context) ([]conversations.Topic, error) {
	var topics []conversations.Topic
	if err := c.doJSON(ctx, http.MethodGet, "/topics", nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// CreateTopic creates a topic.
func (c *APIClient) CreateTopic(ctx context.Context, name string) (conversations.Topic, error) {
	var topic conversations.Topic
	if err := c.doJSON(ctx, http.MethodPost, "/topics", topicRequest{Name: name}, &topic); err != nil {
		return conversations.Topic{}, err
	}
	return topic, nil
}

// RenameTopic renames a topic.
func (c *APIClient) RenameTopic(ctx context.Context, topicID uuid.UUID, name string) error {
	return c.doJSON(ctx, http.MethodPatch, "/topics/"+topicID.String(), topicRequest{Name: name}, nil)
}

// DeleteTopic deletes a topic with its messages.
func (c *APIClient) DeleteTopic(ctx context.Context, topicID uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/topics/"+topicID.String(), nil, nil)
}

// ListMessages returns a topic's messages.
func (c *APIClient) ListMessages(ctx context.Context, topicID uuid.UUID) ([]conversations.Message, error) {
	var msgs []conversations.Message
	if err := c.doJSON(ctx, http.MethodGet, "/topics/"+topicID.String()+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// InsertMessage appends a message to a topic.
func (c *APIClient) InsertMessage(ctx context.Context, topicID uuid.UUID, role conversations.Role, content string) (conversations.Message, error) {
	var msg conversations.Message
	body := messageRequest{Role: role, Content: content}
	if err := c.doJSON(ctx, http.MethodPost, "/topics/"+topicID.String()+"/messages", body, &msg); err != nil {
		return conversations.Message{}, err
	}
	return msg, nil
}

// DeleteMessage deletes a message of a topic.
func (c *APIClient) DeleteMessage(ctx context.Context, topicID, messageID uuid.UUID) error {
	path := "/topics/" + topicID.String() + "/messages/" + messageID.String()
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses; the caller closes the body.
func (c *APIClient) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		payload, err := sonic.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromCtx(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	if err := sonic.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}

	c.logger.Debug("api request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return nil, apiErr
}
