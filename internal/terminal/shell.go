package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"storychat/internal/chatclient"
)

var (
	// ErrUnknownCommand is returned for an unrecognised slash command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command is missing arguments.
	ErrUsage = errors.New("usage")
)

const help = `Type a line to send it. Commands (numbers start at 1):
  /new <name>         create a topic       /use <n>      switch topic
  /rename <name>      rename the topic     /drop         delete the topic
  /del <n>            delete message n     /pick <n>     send suggestion n
  /retry              resend a failed turn /import       prepend the sheet to the draft
  /send               send the draft       /listen <n>   read message n aloud
  /stop               stop reading         /save <n> <file>  save message n as MP3
  /help               this text            /quit
`

// Session is the part of the chat controller the shell drives.
type Session interface {
	View() chatclient.View
	SelectTopic(ctx context.Context, i int) error
	AddTopic(ctx context.Context, name string) error
	RenameTopic(ctx context.Context, name string) error
	DeleteTopic(ctx context.Context) error
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	SubmitTurn(ctx context.Context, text string) error
	SelectSuggestion(ctx context.Context, i int) error
	Retry(ctx context.Context) error
	ImportSheet(ctx context.Context) error
	Listen(ctx context.Context, messageID uuid.UUID) error
	StopPlayback()
	Download(ctx context.Context, messageID uuid.UUID) ([]byte, error)
}

// Shell reads commands line by line and applies them to a Session.
type Shell struct {
	logger    *slog.Logger
	session   Session
	out       io.Writer
	writeFile func(name string, data []byte) error

	listening sync.WaitGroup
}

// NewShell creates a Shell writing command feedback to out.
func NewShell(logger *slog.Logger, session Session, out io.Writer) *Shell {
	return &Shell{
		logger:  logger,
		session: session,
		out:     out,
		writeFile: func(name string, data []byte) error {
			return os.WriteFile(name, data, 0o644)
		},
	}
}

// Run executes lines from in until EOF, /quit or ctx cancellation.
// Playback still running on return is stopped.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	defer func() {
		s.session.StopPlayback()
		s.listening.Wait()
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := s.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "! %v\n", err)
		}
		if quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// Exec runs one line. quit is true for /quit.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, s.session.SubmitTurn(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		_, err = io.WriteString(s.out, help)
	case "new":
		if arg == "" {
			return false, fmt.Errorf("%w: /new <name>", ErrUsage)
		}
		err = s.session.AddTopic(ctx, arg)
	case "use":
		var n int
		if n, err = position(arg); err == nil {
			err = s.session.SelectTopic(ctx, n)
		}
	case "rename":
		if arg == "" {
			return false, fmt.Errorf("%w: /rename <name>", ErrUsage)
		}
		err = s.session.RenameTopic(ctx, arg)
	case "drop":
		err = s.session.DeleteTopic(ctx)
	case "del":
		var id uuid.UUID
		if id, err = s.messageAt(arg); err == nil {
			err = s.session.DeleteMessage(ctx, id)
		}
	case "pick":
		var n int
		if n, err = position(arg); err == nil {
			err = s.session.SelectSuggestion(ctx, n)
		}
	case "retry":
		err = s.session.Retry(ctx)
	case "import":
		err = s.session.ImportSheet(ctx)
	case "send":
		draft := s.session.View().Draft
		if strings.TrimSpace(draft) == "" {
			return false, fmt.Errorf("%w: the draft is empty", ErrUsage)
		}
		err = s.session.SubmitTurn(ctx, draft)
	case "listen":
		var id uuid.UUID
		if id, err = s.messageAt(arg); err == nil {
			s.listen(ctx, id)
		}
	case "stop":
		s.session.StopPlayback()
	case "save":
		err = s.save(ctx, arg)
	default:
		err = fmt.Errorf("%w: /%s", ErrUnknownCommand, cmd)
	}
	return false, err
}

// listen plays in the background so /stop and new turns stay responsive.
// Failures are shown by the controller's view.
func (s *Shell) listen(ctx context.Context, id uuid.UUID) {
	s.listening.Add(1)
	go func() {
		defer s.listening.Done()
		if err := s.session.Listen(ctx, id); err != nil {
			s.logger.Warn("playback failed", slog.String("error", err.Error()))
		}
	}()
}

func (s *Shell) save(ctx context.Context, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return fmt.Errorf("%w: /save <n> <file>", ErrUsage)
	}
	id, err := s.messageAt(fields[0])
	if err != nil {
		return err
	}
	audio, err := s.session.Download(ctx, id)
	if err != nil {
		return err
	}
	if err := s.writeFile(fields[1], audio); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}
	fmt.Fprintf(s.out, "saved %d bytes to %s\n", len(audio), fields[1])
	return nil
}

func (s *Shell) messageAt(arg string) (uuid.UUID, error) {
	n, err := position(arg)
	if err != nil {
		return uuid.Nil, err
	}
	msgs := s.session.View().Messages
	if n >= len(msgs) {
		return uuid.Nil, fmt.Errorf("message %d: %w", n+1, chatclient.ErrUnknownMessage)
	}
	return msgs[n].ID, nil
}

// position parses a 1-based number into an index.
func position(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: expected a number from 1, got %q", ErrUsage, arg)
	}
	return n - 1, nil
}
