package tts

import (
	"context"
	"fmt"

	"storychat/internal/speech"
)

// StubClient simulates speech synthesis for development.
type StubClient struct{}

// NewStubClient constructs StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Synthesize returns a deterministic payload tagged with the voice and text.
func (s *StubClient) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("ID3|%s|%.2f|%s", req.Voice, req.Speed, req.Text)), nil
}
