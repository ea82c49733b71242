package terminal

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"storychat/internal/chatclient"
)

// PlayerAudio hands clips to an external command line player, one temp file per clip.
// With an empty command clips are only written and Play returns at once.
type PlayerAudio struct {
	dir     string
	command []string
}

// NewPlayerAudio creates a PlayerAudio. An empty dir uses the system temp directory.
func NewPlayerAudio(dir string, command []string) *PlayerAudio {
	return &PlayerAudio{dir: dir, command: command}
}

// Load implements chatclient.AudioOutput.
func (a *PlayerAudio) Load(clip []byte) (chatclient.Track, error) {
	f, err := os.CreateTemp(a.dir, "storychat-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("create clip file: %w", err)
	}
	if _, err := f.Write(clip); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close clip file: %w", err)
	}
	return &playerTrack{path: f.Name(), command: a.command}, nil
}

type playerTrack struct {
	path    string
	command []string
}

func (t *playerTrack) Play(ctx context.Context) error {
	if len(t.command) == 0 {
		return ctx.Err()
	}
	args := append(append([]string(nil), t.command[1:]...), t.path)
	cmd := exec.CommandContext(ctx, t.command[0], args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", t.command[0], err)
	}
	return nil
}

// Stop is a no-op: the player process is killed when the Play context is cancelled,
// and every Play starts from the beginning of the file.
func (t *playerTrack) Stop() {}

func (t *playerTrack) Release() {
	_ = os.Remove(t.path)
}
