package terminal

import (
	"fmt"
	"io"
	"strings"

	"storychat/internal/chatclient"
	"storychat/internal/conversations"
	"storychat/internal/i18n"
)

// Renderer prints controller views. A view identical to the previous one is skipped.
// It is driven by the controller, which serializes calls.
type Renderer struct {
	w    io.Writer
	lang string
	last string
}

// NewRenderer creates a Renderer using the UI language lang.
func NewRenderer(w io.Writer, lang string) *Renderer {
	if !i18n.Valid(lang) {
		lang = i18n.DefaultLanguage
	}
	return &Renderer{w: w, lang: lang}
}

// Render implements chatclient.Renderer.
func (r *Renderer) Render(v chatclient.View) {
	out := Format(v, r.lang)
	if out == r.last {
		return
	}
	r.last = out
	_, _ = io.WriteString(r.w, out)
}

// Format draws v as plain text.
func Format(v chatclient.View, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n== %s ==\n", i18n.Get(lang, "app_name"))

	if len(v.Topics) == 0 || v.ActiveTopic < 0 {
		b.WriteString(i18n.Get(lang, "no_topic") + "\n")
	} else {
		b.WriteString(i18n.Get(lang, "topic") + ":")
		for i, name := range v.Topics {
			if i == v.ActiveTopic {
				fmt.Fprintf(&b, " *[%d] %s*", i+1, name)
			} else {
				fmt.Fprintf(&b, " [%d] %s", i+1, name)
			}
		}
		b.WriteString("\n")

		if len(v.Messages) == 0 {
			b.WriteString(i18n.Get(lang, "no_messages") + "\n")
		}
	}

	for i, m := range v.Messages {
		label := i18n.Get(lang, "you")
		if m.Role == conversations.RoleAssistant {
			label = i18n.Get(lang, "assistant")
		}
		marker := ""
		if m.Playing {
			marker = " ♪"
		}
		fmt.Fprintf(&b, "%d. %s%s: %s\n", i+1, label, marker, m.Content)

		if len(m.Suggestions) > 0 {
			b.WriteString("   " + i18n.Get(lang, "suggestions") + ":")
			for j, s := range m.Suggestions {
				if s != "" {
					fmt.Fprintf(&b, " (%d) %s", j+1, s)
				}
			}
			b.WriteString("\n")
		}
	}

	if v.Thinking {
		b.WriteString(i18n.Get(lang, "thinking") + "\n")
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "%s: %s\n", i18n.Get(lang, "error"), v.Error)
		if v.CanRetry {
			fmt.Fprintf(&b, "  /retry = %s\n", i18n.Get(lang, "retry"))
		}
	}
	if v.Draft != "" {
		fmt.Fprintf(&b, "> %s\n", v.Draft)
	}
	return b.String()
}
