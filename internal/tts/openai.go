package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"storychat/internal/speech"
)

const defaultSpeechModel = "gpt-4o-mini-tts"

// OpenAIOptions configures optional client behavior.
type OpenAIOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAIClient implements speech.Synthesizer using OpenAI's speech endpoint.
type OpenAIClient struct {
	logger *slog.Logger
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI speech client.
func NewOpenAIClient(logger *slog.Logger, apiKey string, opts *OpenAIOptions) *OpenAIClient {
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
			Timeout: 60 * time.Second,
		}
	}

	model := opts.Model
	if model == "" {
		model = defaultSpeechModel
	}

	return &OpenAIClient{
		logger: logger,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Synthesize requests MP3 audio for the text.
func (c *OpenAIClient) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          req.Speed,
	})
	if err != nil {
		c.logger.Error("openai speech request failed",
			slog.String("voice", req.Voice),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("call openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	c.logger.Debug("openai speech received",
		slog.String("voice", req.Voice),
		slog.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}
