package chatclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DownloadName is the file name offered for downloaded audio.
const DownloadName = "chat-audio.mp3"

type session struct {
	messageID uuid.UUID
	cancel    context.CancelFunc
	done      chan struct{}
}

// Listen reads a message aloud. Any running session is cancelled and fully torn
// down first. Clips are fetched concurrently and played one at a time in order.
// Listen returns when playback ends, fails or is stopped.
func (c *Controller) Listen(ctx context.Context, messageID uuid.UUID) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := &session{messageID: messageID, cancel: cancel, done: make(chan struct{})}
	defer close(s.done)

	text, err := c.startSession(s)
	if err != nil {
		return err
	}
	defer c.endSession(s)

	clips, err := c.fetchClips(c.authed(sctx), text)
	if err != nil {
		if sctx.Err() != nil {
			return nil
		}
		return c.fail(fmt.Errorf("fetch audio: %w", err))
	}

	tracks := make([]Track, 0, len(clips))
	defer func() {
		for _, t := range tracks {
			t.Release()
		}
	}()
	for i, clip := range clips {
		t, err := c.audio.Load(clip)
		if err != nil {
			return c.fail(fmt.Errorf("load clip %d: %w", i, err))
		}
		tracks = append(tracks, t)
	}

	for i, t := range tracks {
		if sctx.Err() != nil {
			return nil
		}
		err := t.Play(sctx)
		if sctx.Err() != nil {
			t.Stop()
			return nil
		}
		if err != nil {
			return c.fail(fmt.Errorf("play clip %d: %w", i, err))
		}
	}
	return nil
}

// StopPlayback cancels the active session and waits for its teardown.
func (c *Controller) StopPlayback() {
	c.mu.Lock()
	s := c.playback
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Download fetches the message audio and concatenates the clips into one MP3.
func (c *Controller) Download(ctx context.Context, messageID uuid.UUID) ([]byte, error) {
	c.mu.Lock()
	text, ok := c.messageContentLocked(messageID)
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("download %s: %w", messageID, ErrUnknownMessage)
	}

	clips, err := c.fetchClips(c.authed(ctx), text)
	if err != nil {
		return nil, c.fail(fmt.Errorf("download audio: %w", err))
	}
	return bytes.Join(clips, nil), nil
}

// startSession tears down every running session and installs s.
func (c *Controller) startSession(s *session) (string, error) {
	c.mu.Lock()
	for c.playback != nil {
		prev := c.playback
		c.mu.Unlock()
		prev.cancel()
		<-prev.done
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	text, ok := c.messageContentLocked(s.messageID)
	if !ok {
		return "", fmt.Errorf("listen %s: %w", s.messageID, ErrUnknownMessage)
	}
	c.playback = s
	c.errMsg = ""
	c.renderLocked()
	return text, nil
}

func (c *Controller) endSession(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playback == s {
		c.playback = nil
	}
	c.renderLocked()
}

func (c *Controller) fetchClips(ctx context.Context, text string) ([][]byte, error) {
	chunks := SplitText(text, c.limit)
	clips := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			clip, err := c.gateway.Speech(gctx, chunk, c.language)
			if err != nil {
				return fmt.Errorf("clip %d: %w", i, err)
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("speech fetch failed", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return clips, nil
}
