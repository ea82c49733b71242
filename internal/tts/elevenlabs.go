package tts

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

	"storychat/internal/speech"
)

const (
	defaultElevenLabsEndpoint = "https://api.elevenlabs.io/v1/text-to-speech/"
	defaultElevenLabsModel    = "eleven_multilingual_v2"
)

// ElevenLabsOptions configures optional client behavior.
type ElevenLabsOptions struct {
	BaseURL    string
	ModelID    string
	HTTPClient *http.Client
}

// ElevenLabsClient implements speech.Synthesizer using ElevenLabs' API.
// Request.Voice is an ElevenLabs voice id; the configured voice is used when it is empty.
type ElevenLabsClient struct {
	logger     *slog.Logger
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
	baseURL    string
}

// NewElevenLabsClient creates a new ElevenLabs TTS client.
func NewElevenLabsClient(logger *slog.Logger, apiKey, voiceID string, opts *ElevenLabsOptions) *ElevenLabsClient {
	if opts == nil {
		opts = &ElevenLabsOptions{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 60 * time.Second,
		}
	}

	modelID := opts.ModelID
	if modelID == "" {
		modelID = defaultElevenLabsModel
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsEndpoint
	}

	return &ElevenLabsClient{
		logger:     logger,
		apiKey:     apiKey,
		voiceID:    voiceID,
		modelID:    modelID,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type elevenLabsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Speed           float64 `json:"speed,omitempty"`
	} `json:"voice_settings"`
}

// Synthesize converts text into MP3 audio.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, in speech.Request) ([]byte, error) {
	voiceID := in.Voice
	if voiceID == "" {
		voiceID = c.voiceID
	}
	endpoint := c.baseURL + "/" + voiceID

	reqBody := elevenLabsRequest{
		Text:    in.Text,
		ModelID: c.modelID,
	}
	reqBody.VoiceSettings.Stability = 0.5
	reqBody.VoiceSettings.SimilarityBoost = 0.75
	reqBody.VoiceSettings.Speed = in.Speed

	payload, err := sonic.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	c.logger.Debug("calling ElevenLabs API",
		slog.String("voice_id", voiceID),
		slog.String("model_id", c.modelID),
		slog.Int("text_length", len(in.Text)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ElevenLabs HTTP request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("call elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := string(body)
		if readErr != nil {
			bodyStr = fmt.Sprintf("(failed to read body: %v)", readErr)
		}

		c.logger.Error("ElevenLabs API error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", bodyStr),
		)
		return nil, fmt.Errorf("elevenlabs error: status=%d body=%s", resp.StatusCode, bodyStr)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		c.logger.Warn("ElevenLabs returned empty audio response")
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}

	c.logger.Debug("successfully received audio from ElevenLabs",
		slog.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}
