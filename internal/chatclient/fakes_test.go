package chatclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storychat/internal/chat"
	"storychat/internal/conversations"
	"storychat/internal/sheet"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu        sync.Mutex
	topics    []conversations.Topic
	messages  []conversations.Message
	calls     int
	tokens    []string
	clock     time.Time
	insertErr error
}

func newMemStore(names ...string) *memStore {
	s := &memStore{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, n := range names {
		s.topics = append(s.topics, conversations.Topic{ID: uuid.New(), Name: n})
	}
	return s
}

func (s *memStore) track(ctx context.Context) {
	s.calls++
	s.tokens = append(s.tokens, TokenFromCtx(ctx))
}

func (s *memStore) ListTopics(ctx context.Context) ([]conversations.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	out := append([]conversations.Topic(nil), s.topics...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) CreateTopic(ctx context.Context, name string) (conversations.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	t := conversations.Topic{ID: uuid.New(), Name: name}
	s.topics = append(s.topics, t)
	return t, nil
}

func (s *memStore) RenameTopic(ctx context.Context, topicID uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	for i := range s.topics {
		if s.topics[i].ID == topicID {
			s.topics[i].Name = name
			return nil
		}
	}
	return conversations.ErrNotFound
}

func (s *memStore) DeleteTopic(ctx context.Context, topicID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.TopicID != topicID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	for i := range s.topics {
		if s.topics[i].ID == topicID {
			s.topics = append(s.topics[:i], s.topics[i+1:]...)
			return nil
		}
	}
	return conversations.ErrNotFound
}

func (s *memStore) ListMessages(ctx context.Context, topicID uuid.UUID) ([]conversations.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	var out []conversations.Message
	for _, m := range s.messages {
		if m.TopicID == topicID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) InsertMessage(ctx context.Context, topicID uuid.UUID, role conversations.Role, content string) (conversations.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	if s.insertErr != nil {
		err := s.insertErr
		s.insertErr = nil
		return conversations.Message{}, err
	}
	s.clock = s.clock.Add(time.Second)
	m := conversations.Message{ID: uuid.New(), TopicID: topicID, Role: role, Content: content, CreatedAt: s.clock}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) DeleteMessage(ctx context.Context, topicID, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(ctx)
	for i, m := range s.messages {
		if m.ID == messageID && m.TopicID == topicID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return conversations.ErrNotFound
}

func (s *memStore) add(topicID uuid.UUID, role conversations.Role, content string) conversations.Message {
	m, _ := s.InsertMessage(context.Background(), topicID, role, content)
	return m
}

type fakeGateway struct {
	mu          sync.Mutex
	transcripts [][]chat.Turn
	chatErrs    []error
	suggestions []string
	// entered and release gate Chat when non-nil.
	entered chan struct{}
	release chan struct{}

	speechCalls []string
	speechErr   error
	rows        []sheet.Row
}

func (g *fakeGateway) Chat(ctx context.Context, turns []chat.Turn) (chat.Result, error) {
	g.mu.Lock()
	g.transcripts = append(g.transcripts, turns)
	var err error
	if len(g.chatErrs) > 0 {
		err, g.chatErrs = g.chatErrs[0], g.chatErrs[1:]
	}
	entered, release := g.entered, g.release
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return chat.Result{}, err
	}
	return chat.Result{
		Reply:       "Reply to: " + turns[len(turns)-1].Content,
		Suggestions: g.suggestions,
	}, nil
}

func (g *fakeGateway) Speech(ctx context.Context, text, language string) ([]byte, error) {
	g.mu.Lock()
	g.speechCalls = append(g.speechCalls, language+":"+text)
	err := g.speechErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte("[" + text + "]"), nil
}

func (g *fakeGateway) Sheet(ctx context.Context) ([]sheet.Row, error) {
	return g.rows, nil
}

// fakeAudio records the lifecycle of every track it hands out.
type fakeAudio struct {
	mu     sync.Mutex
	events []string
	// block makes Play wait for cancellation.
	block   bool
	playing chan string
}

type fakeTrack struct {
	audio *fakeAudio
	name  string
}

func (a *fakeAudio) Load(clip []byte) (Track, error) {
	a.record("load " + string(clip))
	return &fakeTrack{audio: a, name: string(clip)}, nil
}

func (a *fakeAudio) record(e string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *fakeAudio) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func (t *fakeTrack) Play(ctx context.Context) error {
	t.audio.record("play " + t.name)
	if t.audio.playing != nil {
		t.audio.playing <- t.name
	}
	if !t.audio.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (t *fakeTrack) Stop()    { t.audio.record("stop " + t.name) }
func (t *fakeTrack) Release() { t.audio.record("release " + t.name) }

type viewRecorder struct {
	mu    sync.Mutex
	views []View
}

func (r *viewRecorder) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *viewRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

var errUpstream = errors.New("upstream unavailable")
