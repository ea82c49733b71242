package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ErrEmptyText is returned for empty or whitespace-only input.
var ErrEmptyText = errors.New("missing text")

const (
	// MaxChars is the largest number of characters sent to the provider in one call.
	MaxChars = 3400
	// FallbackVoice is used for languages without a mapped voice.
	FallbackVoice = "onyx"
	// DefaultSpeed is the speech rate used when none is configured.
	DefaultSpeed = 0.9
)

// DefaultVoices maps UI language names to OpenAI voices.
var DefaultVoices = map[string]string{
	"English": "onyx",
	"Turkce":  "alloy",
	"Dansk":   "nova",
}

// Request is one synthesis call.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Synthesizer converts text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Options configures voice selection and speech rate.
type Options struct {
	Voices   map[string]string
	Fallback string
	Speed    float64
}

// Service validates and truncates text, picks a voice and delegates synthesis.
type Service struct {
	logger   *slog.Logger
	synth    Synthesizer
	voices   map[string]string
	fallback string
	speed    float64
}

// NewService builds a Service. A nil Voices map uses DefaultVoices.
func NewService(logger *slog.Logger, synth Synthesizer, opts Options) *Service {
	voices := opts.Voices
	if voices == nil {
		voices = DefaultVoices
	}
	fallback := opts.Fallback
	if fallback == "" {
		fallback = FallbackVoice
	}
	speed := opts.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	return &Service{
		logger:   logger,
		synth:    synth,
		voices:   voices,
		fallback: fallback,
		speed:    speed,
	}
}

// VoiceFor returns the voice for a language, or the fallback voice.
func (s *Service) VoiceFor(language string) string {
	if v, ok := s.voices[language]; ok && v != "" {
		return v
	}
	return s.fallback
}

// Synthesize returns MP3 audio for at most MaxChars characters of text.
func (s *Service) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	part := Truncate(text, MaxChars)
	voice := s.VoiceFor(language)

	s.logger.Debug("synthesizing speech",
		slog.String("language", language),
		slog.String("voice", voice),
		slog.Int("chars", utf8.RuneCountInString(part)),
		slog.Bool("truncated", len(part) != len(text)),
	)

	audio, err := s.synth.Synthesize(ctx, Request{Text: part, Voice: voice, Speed: s.speed})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	return audio, nil
}

// Truncate cuts text to at most max runes.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	i := 0
	for pos := range text {
		if i == max {
			return text[:pos]
		}
		i++
	}
	return text
}
