package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type recordingSynth struct {
	reqs []Request
	err  error
}

func (r *recordingSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("ID3"), nil
}

func newTestService(synth Synthesizer, opts Options) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), synth, opts)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth := &recordingSynth{}
	svc := newTestService(synth, Options{})

	_, err := svc.Synthesize(context.Background(), "  \n\t", "English")
	require.ErrorIs(t, err, ErrEmptyText)
	require.Empty(t, synth.reqs)
}

func TestSynthesizeVoiceSelection(t *testing.T) {
	synth := &recordingSynth{}
	svc := newTestService(synth, Options{})

	for _, tc := range []struct{ lang, voice string }{
		{"English", "onyx"},
		{"Turkce", "alloy"},
		{"Dansk", "nova"},
		{"Klingon", "onyx"},
		{"", "onyx"},
	} {
		_, err := svc.Synthesize(context.Background(), "Hello", tc.lang)
		require.NoError(t, err)
		require.Equal(t, tc.voice, synth.reqs[len(synth.reqs)-1].Voice, tc.lang)
	}
	require.Equal(t, DefaultSpeed, synth.reqs[0].Speed)
}

func TestSynthesizeSingleVoice(t *testing.T) {
	synth := &recordingSynth{}
	svc := newTestService(synth, Options{Voices: map[string]string{}, Fallback: "voice-123", Speed: 1.1})

	_, err := svc.Synthesize(context.Background(), "Hej", "Dansk")
	require.NoError(t, err)
	require.Equal(t, Request{Text: "Hej", Voice: "voice-123", Speed: 1.1}, synth.reqs[0])
}

func TestSynthesizeTruncatesLongText(t *testing.T) {
	synth := &recordingSynth{}
	svc := newTestService(synth, Options{})

	text := strings.Repeat("ä", MaxChars+50)
	_, err := svc.Synthesize(context.Background(), text, "English")
	require.NoError(t, err)
	require.Equal(t, MaxChars, utf8.RuneCountInString(synth.reqs[0].Text))
}

func TestSynthesizeWrapsProviderError(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(&recordingSynth{err: boom}, Options{})

	_, err := svc.Synthesize(context.Background(), "Hello", "English")
	require.ErrorIs(t, err, boom)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 5))
	require.Equal(t, "ab", Truncate("abc", 2))
	require.Equal(t, "çğ", Truncate("çğü", 2))
	require.Equal(t, "", Truncate("abc", 0))
}
