package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"storychat/internal/conversations"
	"storychat/internal/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Raw HTML in message content is escaped; goldmark only emits markup it generates itself.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ParseTemplates builds the template set with common functions.
func ParseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatTime":  formatTime,
		"shortID":     shortID,
		"currentYear": currentYear,
		"markdown":    Markdown,
		"roleLabel":   roleLabel,
		"t": func(lang, key string) template.HTML {
			return template.HTML(i18n.Get(lang, key))
		},
	}

	root := template.New("base").Funcs(funcMap)
	err := fs.WalkDir(templateFS, "templates", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		raw, err := templateFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		name := strings.TrimPrefix(path, "templates/")
		if _, err := root.New(name).Parse(string(raw)); err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// StaticFiles exposes embedded static assets.
func StaticFiles() http.FileSystem {
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets missing: %v", err))
	}
	return http.FS(fsys)
}

// Markdown renders assistant replies. On a conversion error the text is shown escaped.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// roleLabel returns the translated author label of a message.
func roleLabel(lang string, role conversations.Role) string {
	if role == conversations.RoleAssistant {
		return i18n.Get(lang, "assistant")
	}
	return i18n.Get(lang, "you")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(time.UTC).Format(time.RFC822)
}

func currentYear() int {
	return time.Now().Year()
}

func shortID(v any) string {
	switch val := v.(type) {
	case fmt.Stringer:
		if len(val.String()) >= 8 {
			return val.String()[:8]
		}
		return val.String()
	case string:
		if len(val) >= 8 {
			return val[:8]
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
