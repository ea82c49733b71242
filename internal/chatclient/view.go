package chatclient

import (
	"github.com/google/uuid"

	"storychat/internal/conversations"
)

// MessageView is one transcript entry as drawn.
type MessageView struct {
	ID      uuid.UUID
	Role    conversations.Role
	Content string
	// Suggestions is set only on the last assistant message.
	Suggestions []string
	Playing     bool
}

// View is an immutable snapshot of the controller state.
type View struct {
	SignedIn    bool
	Topics      []string
	ActiveTopic int
	Messages    []MessageView
	Thinking    bool
	Error       string
	CanRetry    bool
	Draft       string
	Playing     bool
}

func (c *Controller) viewLocked() View {
	v := View{
		SignedIn:    c.token != "",
		ActiveTopic: c.active,
		Error:       c.errMsg,
		Draft:       c.draft,
		Playing:     c.playback != nil,
	}

	v.Topics = make([]string, len(c.topics))
	for i, t := range c.topics {
		v.Topics[i] = t.Name
	}

	topic, ok := c.currentTopicLocked()
	if ok {
		v.Thinking = c.inFlight[topic.ID]
		v.CanRetry = c.failed != nil && c.failed.topicID == topic.ID && !v.Thinking
	}

	lastAssistant := -1
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == conversations.RoleAssistant {
			lastAssistant = i
			break
		}
	}

	v.Messages = make([]MessageView, len(c.messages))
	for i, m := range c.messages {
		mv := MessageView{
			ID:      m.ID,
			Role:    m.Role,
			Content: m.Content,
			Playing: c.playback != nil && c.playback.messageID == m.ID,
		}
		if i == lastAssistant && c.suggestFor == m.ID && c.suggestions != nil {
			mv.Suggestions = append([]string(nil), c.suggestions...)
		}
		v.Messages[i] = mv
	}
	return v
}

func (c *Controller) renderLocked() {
	c.renderer.Render(c.viewLocked())
}
