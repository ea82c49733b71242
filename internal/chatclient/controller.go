package chatclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"storychat/internal/chat"
	"storychat/internal/conversations"
	"storychat/internal/sheet"
)

var (
	// ErrTurnInFlight is returned when the current topic is still awaiting a reply.
	ErrTurnInFlight = errors.New("turn already in flight")
	// ErrNoTopic is returned for an out-of-range topic selection.
	ErrNoTopic = errors.New("no such topic")
	// ErrUnknownMessage is returned for a message id missing from the current topic.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNoSuggestion is returned for an empty or missing suggestion slot.
	ErrNoSuggestion = errors.New("no suggestion")
	// ErrEmptySheet is returned when the imported sheet has no rows.
	ErrEmptySheet = errors.New("no data in sheet")
)

// DefaultLanguage is the speech language used when none is configured.
const DefaultLanguage = "English"

// Options configures a Controller.
type Options struct {
	// Language is sent with every speech request.
	Language string
	// ChunkLimit bounds the size of one speech request.
	ChunkLimit int
}

type failedTurn struct {
	topicID uuid.UUID
	text    string
	// persisted is false when the user message itself was not stored.
	persisted bool
}

// Controller owns the chat client state. Every mutation ends with one render.
// Blocking calls run outside the lock.
type Controller struct {
	logger   *slog.Logger
	store    Store
	gateway  Gateway
	audio    AudioOutput
	renderer Renderer
	language string
	limit    int

	mu          sync.Mutex
	token       string
	topics      []conversations.Topic
	active      int
	messages    []conversations.Message
	suggestFor  uuid.UUID
	suggestions []string
	inFlight    map[uuid.UUID]bool
	failed      *failedTurn
	errMsg      string
	draft       string
	playback    *session
}

// NewController wires a controller. It starts signed out.
func NewController(logger *slog.Logger, store Store, gateway Gateway, audio AudioOutput, renderer Renderer, opts Options) *Controller {
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	limit := opts.ChunkLimit
	if limit <= 0 {
		limit = ChunkLimit
	}
	return &Controller{
		logger:   logger,
		store:    store,
		gateway:  gateway,
		audio:    audio,
		renderer: renderer,
		language: language,
		limit:    limit,
		active:   -1,
		inFlight: make(map[uuid.UUID]bool),
	}
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// SignIn stores the identity token and loads topics and messages.
func (c *Controller) SignIn(ctx context.Context, token string) error {
	c.mu.Lock()
	c.token = token
	c.active = 0
	c.errMsg = ""
	c.renderLocked()
	c.mu.Unlock()

	return c.reload(ctx)
}

// SignOut stops playback and clears all state.
func (c *Controller) SignOut() {
	c.StopPlayback()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.topics = nil
	c.active = -1
	c.messages = nil
	c.clearSuggestionsLocked()
	c.inFlight = make(map[uuid.UUID]bool)
	c.failed = nil
	c.errMsg = ""
	c.draft = ""
	c.renderLocked()
}

// SetDraft replaces the text in the input box.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
	c.renderLocked()
}

// SelectTopic makes topic i current and loads its messages.
func (c *Controller) SelectTopic(ctx context.Context, i int) error {
	c.mu.Lock()
	if c.token == "" {
		c.mu.Unlock()
		return nil
	}
	if i < 0 || i >= len(c.topics) {
		c.mu.Unlock()
		return fmt.Errorf("select topic %d: %w", i, ErrNoTopic)
	}
	c.active = i
	c.messages = nil
	c.errMsg = ""
	c.clearSuggestionsLocked()
	topicID := c.topics[i].ID
	c.renderLocked()
	c.mu.Unlock()

	return c.loadMessages(ctx, topicID)
}

// AddTopic creates a topic and makes it current.
func (c *Controller) AddTopic(ctx context.Context, name string) error {
	if !c.signedIn() {
		return nil
	}
	topic, err := c.store.CreateTopic(c.authed(ctx), name)
	if err != nil {
		return c.fail(fmt.Errorf("add topic: %w", err))
	}

	topics, err := c.store.ListTopics(c.authed(ctx))
	if err != nil {
		return c.fail(fmt.Errorf("list topics: %w", err))
	}

	c.mu.Lock()
	c.topics = topics
	c.active = indexOfTopic(topics, topic.ID)
	if c.active < 0 && len(topics) > 0 {
		c.active = len(topics) - 1
	}
	c.messages = nil
	c.errMsg = ""
	c.clearSuggestionsLocked()
	topicID, ok := c.currentTopicIDLocked()
	c.renderLocked()
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.loadMessages(ctx, topicID)
}

// RenameTopic renames the current topic.
func (c *Controller) RenameTopic(ctx context.Context, name string) error {
	topicID, ok := c.currentTopicID()
	if !ok {
		return nil
	}
	if err := c.store.RenameTopic(c.authed(ctx), topicID, name); err != nil {
		return c.fail(fmt.Errorf("rename topic: %w", err))
	}

	topics, err := c.store.ListTopics(c.authed(ctx))
	if err != nil {
		return c.fail(fmt.Errorf("list topics: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = topics
	c.active = indexOfTopic(topics, topicID)
	c.errMsg = ""
	c.renderLocked()
	return nil
}

// DeleteTopic removes the current topic with its messages.
func (c *Controller) DeleteTopic(ctx context.Context) error {
	topicID, ok := c.currentTopicID()
	if !ok {
		return nil
	}
	if err := c.store.DeleteTopic(c.authed(ctx), topicID); err != nil {
		return c.fail(fmt.Errorf("delete topic: %w", err))
	}

	c.mu.Lock()
	if i := indexOfTopic(c.topics, topicID); i >= 0 {
		c.topics = append(c.topics[:i:i], c.topics[i+1:]...)
	}
	if c.active >= len(c.topics) {
		c.active = len(c.topics) - 1
	}
	c.messages = nil
	c.errMsg = ""
	c.clearSuggestionsLocked()
	if c.failed != nil && c.failed.topicID == topicID {
		c.failed = nil
	}
	next, ok := c.currentTopicIDLocked()
	c.renderLocked()
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.loadMessages(ctx, next)
}

// DeleteMessage removes a message of the current topic.
func (c *Controller) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	topicID, ok := c.currentTopicID()
	if !ok {
		return nil
	}
	if err := c.store.DeleteMessage(c.authed(ctx), topicID, messageID); err != nil {
		return c.fail(fmt.Errorf("delete message: %w", err))
	}
	return c.loadMessages(ctx, topicID)
}

// SubmitTurn persists text as a user message, asks the gateway for a reply and
// stores it together with its suggestions.
func (c *Controller) SubmitTurn(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	topicID, ok := c.currentTopicIDLocked()
	if !ok || c.token == "" {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight[topicID] {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.inFlight[topicID] = true
	c.failed = nil
	c.errMsg = ""
	c.draft = ""
	c.renderLocked()
	c.mu.Unlock()
	defer c.settle(topicID)

	if _, err := c.store.InsertMessage(c.authed(ctx), topicID, conversations.RoleUser, text); err != nil {
		return c.failTurn(topicID, text, false, fmt.Errorf("save user message: %w", err))
	}
	return c.converse(ctx, topicID, text)
}

// SelectSuggestion submits suggestion i of the last assistant message as a turn.
func (c *Controller) SelectSuggestion(ctx context.Context, i int) error {
	c.mu.Lock()
	var text string
	if i >= 0 && i < len(c.suggestions) && c.hasMessageLocked(c.suggestFor) {
		text = c.suggestions[i]
	}
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ErrNoSuggestion
	}
	return c.SubmitTurn(ctx, text)
}

// Retry resends the last failed turn of the current topic.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	topicID, ok := c.currentTopicIDLocked()
	if !ok || c.failed == nil || c.failed.topicID != topicID {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight[topicID] {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	failed := *c.failed
	c.failed = nil
	c.errMsg = ""
	c.inFlight[topicID] = true
	c.renderLocked()
	c.mu.Unlock()
	defer c.settle(topicID)

	if !failed.persisted {
		if _, err := c.store.InsertMessage(c.authed(ctx), topicID, conversations.RoleUser, failed.text); err != nil {
			return c.failTurn(topicID, failed.text, false, fmt.Errorf("save user message: %w", err))
		}
	}
	return c.converse(ctx, topicID, failed.text)
}

// ImportSheet prepends the sheet rows as tab-separated text to the draft.
func (c *Controller) ImportSheet(ctx context.Context) error {
	rows, err := c.gateway.Sheet(c.authed(ctx))
	if err != nil {
		return c.fail(fmt.Errorf("import sheet: %w", err))
	}
	if len(rows) == 0 {
		return c.fail(ErrEmptySheet)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = sheet.Format(rows) + "\n" + c.draft
	c.errMsg = ""
	c.renderLocked()
	return nil
}

func (c *Controller) converse(ctx context.Context, topicID uuid.UUID, text string) error {
	msgs, err := c.store.ListMessages(c.authed(ctx), topicID)
	if err != nil {
		return c.failTurn(topicID, text, true, fmt.Errorf("reload messages: %w", err))
	}
	c.setMessages(topicID, msgs)

	res, err := c.gateway.Chat(c.authed(ctx), transcript(msgs))
	if err != nil {
		return c.failTurn(topicID, text, true, fmt.Errorf("chat: %w", err))
	}

	reply, err := c.store.InsertMessage(c.authed(ctx), topicID, conversations.RoleAssistant, res.Reply)
	if err != nil {
		return c.failTurn(topicID, text, true, fmt.Errorf("save reply: %w", err))
	}

	msgs, err = c.store.ListMessages(c.authed(ctx), topicID)
	if err != nil {
		return c.fail(fmt.Errorf("reload messages: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.currentTopicIDLocked(); ok && cur == topicID {
		c.messages = msgs
		c.suggestFor = reply.ID
		c.suggestions = chat.PadSuggestions(res.Suggestions)
		c.renderLocked()
	}

	c.logger.Debug("turn completed",
		slog.String("topic_id", topicID.String()),
		slog.Int("total_tokens", res.Usage.TotalTokens),
		slog.Int64("total_ms", res.Timing.TotalDuration),
	)
	return nil
}

func transcript(msgs []conversations.Message) []chat.Turn {
	turns := make([]chat.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, chat.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

func (c *Controller) settle(topicID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, topicID)
	c.renderLocked()
}

func (c *Controller) failTurn(topicID uuid.UUID, text string, persisted bool, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = &failedTurn{topicID: topicID, text: text, persisted: persisted}
	c.errMsg = err.Error()
	c.renderLocked()

	c.logger.Warn("turn failed",
		slog.String("topic_id", topicID.String()),
		slog.String("error", err.Error()),
	)
	return err
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = err.Error()
	c.renderLocked()
	return err
}

func (c *Controller) reload(ctx context.Context) error {
	if !c.signedIn() {
		return nil
	}
	topics, err := c.store.ListTopics(c.authed(ctx))
	if err != nil {
		return c.fail(fmt.Errorf("list topics: %w", err))
	}

	c.mu.Lock()
	c.topics = topics
	if c.active < 0 || c.active >= len(topics) {
		c.active = 0
	}
	if len(topics) == 0 {
		c.active = -1
	}
	topicID, ok := c.currentTopicIDLocked()
	c.renderLocked()
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.loadMessages(ctx, topicID)
}

func (c *Controller) loadMessages(ctx context.Context, topicID uuid.UUID) error {
	msgs, err := c.store.ListMessages(c.authed(ctx), topicID)
	if err != nil {
		return c.fail(fmt.Errorf("list messages: %w", err))
	}
	c.setMessages(topicID, msgs)
	return nil
}

// setMessages installs msgs only if topicID is still current.
func (c *Controller) setMessages(topicID uuid.UUID, msgs []conversations.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.currentTopicIDLocked(); ok && cur == topicID {
		c.messages = msgs
		c.renderLocked()
	}
}

func (c *Controller) clearSuggestionsLocked() {
	c.suggestFor = uuid.Nil
	c.suggestions = nil
}

func (c *Controller) signedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

func (c *Controller) authed(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WithToken(ctx, c.token)
}

func (c *Controller) currentTopicID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return uuid.Nil, false
	}
	return c.currentTopicIDLocked()
}

func (c *Controller) currentTopicLocked() (conversations.Topic, bool) {
	if c.active < 0 || c.active >= len(c.topics) {
		return conversations.Topic{}, false
	}
	return c.topics[c.active], true
}

func (c *Controller) currentTopicIDLocked() (uuid.UUID, bool) {
	t, ok := c.currentTopicLocked()
	return t.ID, ok
}

func (c *Controller) hasMessageLocked(id uuid.UUID) bool {
	for _, m := range c.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) messageContentLocked(id uuid.UUID) (string, bool) {
	for _, m := range c.messages {
		if m.ID == id {
			return m.Content, true
		}
	}
	return "", false
}

func indexOfTopic(topics []conversations.Topic, id uuid.UUID) int {
	for i, t := range topics {
		if t.ID == id {
			return i
		}
	}
	return -1
}
