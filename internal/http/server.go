package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"storychat/internal/auth"
	"storychat/internal/chat"
	"storychat/internal/conversations"
	"storychat/internal/i18n"
	"storychat/internal/sheet"
	"storychat/internal/speech"
)

const maxBodyBytes = 1 << 20

// Deps are the services the server routes to.
type Deps struct {
	Chat          *chat.Service
	Speech        *speech.Service
	Sheet         *sheet.Fetcher // nil when no sheet is configured
	Conversations *conversations.Service
	Verifier      *auth.Verifier
	Templates     *template.Template
	StaticFS      http.FileSystem

	AllowedOrigins []string
	// GatewayTimeout bounds /chat, /tts and /sheet including upstream calls.
	GatewayTimeout time.Duration
}

// Server wires HTTP routing for the chat gateways and the conversation store.
type Server struct {
	logger        *slog.Logger
	chat          *chat.Service
	speech        *speech.Service
	sheet         *sheet.Fetcher
	conversations *conversations.Service
	templates     *template.Template
}

// NewServer constructs a chi router implementing http.Handler.
func NewServer(logger *slog.Logger, deps Deps) http.Handler {
	srv := &Server{
		logger:        logger,
		chat:          deps.Chat,
		speech:        deps.Speech,
		sheet:         deps.Sheet,
		conversations: deps.Conversations,
		templates:     deps.Templates,
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if deps.StaticFS != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(deps.StaticFS)))
	}
	r.Get("/healthz", srv.handleHealth)
	r.Get("/lang/{lang}", srv.handleSetLanguage)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Verifier, srv.unauthorized))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Post("/chat", srv.handleChat)
			r.Post("/tts", srv.handleSpeech)
			r.Get("/sheet", srv.handleSheet)
		})

		r.Route("/topics", func(r chi.Router) {
			r.Get("/", srv.handleListTopics)
			r.Post("/", srv.handleCreateTopic)
			r.Route("/{topicID}", func(r chi.Router) {
				r.Patch("/", srv.handleRenameTopic)
				r.Delete("/", srv.handleDeleteTopic)
				r.Get("/messages", srv.handleListMessages)
				r.Post("/messages", srv.handleInsertMessage)
				r.Delete("/messages/{messageID}", srv.handleDeleteMessage)
				r.Get("/transcript", srv.handleTranscript)
				r.Get("/export", srv.handleExport)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Messages []chat.Turn `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.decodeError(w, err, "messages must be an array")
		return
	}
	if req.Messages == nil {
		s.clientError(w, http.StatusBadRequest, "messages must be an array")
		return
	}

	res, err := s.chat.Reply(r.Context(), req.Messages)
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type speechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.decodeError(w, err, "invalid request body")
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), req.Text, req.Language)
	if err != nil {
		if errors.Is(err, speech.ErrEmptyText) {
			s.clientError(w, http.StatusBadRequest, "Missing text")
			return
		}
		s.upstreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline;filename=story.mp3")
	_, _ = w.Write(audio)
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	if s.sheet == nil {
		s.upstreamError(w, errors.New("sheet export is not configured"))
		return
	}
	rows, err := s.sheet.Fetch(r.Context())
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	if rows == nil {
		rows = []sheet.Row{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

type topicRequest struct {
	Name string `json:"name"`
}

type messageRequest struct {
	Role    conversations.Role `json:"role"`
	Content string             `json:"content"`
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.conversations.ListTopics(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.decodeError(w, err, "invalid request body")
		return
	}

	topic, err := s.conversations.CreateTopic(r.Context(), req.Name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if topic.ID == uuid.Nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusCreated, topic)
}

func (s *Server) handleRenameTopic(w http.ResponseWriter, r *http.Request) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return
	}
	var req topicRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.decodeError(w, err, "invalid request body")
		return
	}

	if err := s.conversations.RenameTopic(r.Context(), topicID, req.Name); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return
	}
	if err := s.conversations.DeleteTopic(r.Context(), topicID); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return
	}
	msgs, err := s.conversations.ListMessages(r.Context(), topicID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleInsertMessage(w http.ResponseWriter, r *http.Request) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return
	}
	var req messageRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.decodeError(w, err, "invalid request body")
		return
	}

	msg, err := s.conversations.InsertMessage(r.Context(), topicID, req.Role, req.Content)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if msg.ID == uuid.Nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return
	}
	messageID, ok := s.uuidParam(w, r, "messageID")
	if !ok {
		return
	}
	if err := s.conversations.DeleteMessage(r.Context(), topicID, messageID); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadTopic returns one of the caller's topics with its messages.
func (s *Server) loadTopic(w http.ResponseWriter, r *http.Request) (conversations.Topic, []conversations.Message, bool) {
	topicID, ok := s.uuidParam(w, r, "topicID")
	if !ok {
		return conversations.Topic{}, nil, false
	}

	topics, err := s.conversations.ListTopics(r.Context())
	if err != nil {
		s.storeError(w, err)
		return conversations.Topic{}, nil, false
	}
	var topic conversations.Topic
	for _, t := range topics {
		if t.ID == topicID {
			topic = t
			break
		}
	}
	if topic.ID == uuid.Nil {
		s.clientError(w, http.StatusNotFound, "topic not found")
		return conversations.Topic{}, nil, false
	}

	msgs, err := s.conversations.ListMessages(r.Context(), topicID)
	if err != nil {
		s.storeError(w, err)
		return conversations.Topic{}, nil, false
	}
	return topic, msgs, true
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	topic, msgs, ok := s.loadTopic(w, r)
	if !ok {
		return
	}
	lang := s.getLanguage(r)
	s.renderPage(w, lang, i18n.Get(lang, "app_name")+" | "+topic.Name, "transcript.html", map[string]any{
		"Topic":       topic,
		"Messages":    msgs,
		"Lang":        lang,
		"AccessToken": r.URL.Query().Get(auth.QueryParam),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	topic, msgs, ok := s.loadTopic(w, r)
	if !ok {
		return
	}
	lang := s.getLanguage(r)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %s\n", i18n.Get(lang, "topic"), topic.Name)
	buf.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&buf, "%s: %s\n\n", i18n.Get(lang, "exported"), time.Now().UTC().Format(time.RFC822))

	for _, msg := range msgs {
		label := i18n.Get(lang, "you")
		if msg.Role == conversations.RoleAssistant {
			label = i18n.Get(lang, "assistant")
		}
		fmt.Fprintf(&buf, "%s:\n%s\n\n", label, msg.Content)
	}

	filename := fmt.Sprintf("storychat-%s-%s.txt", sanitizeFilename(topic.Name), time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	_, _ = w.Write(buf.Bytes())
}

type pageView struct {
	Title       string
	Body        template.HTML
	Lang        string
	UILanguages []UILanguage
}

type UILanguage struct {
	Code string
	Name string
}

func (s *Server) renderPage(w http.ResponseWriter, lang, title, contentTemplate string, payload any) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, contentTemplate, payload); err != nil {
		s.logger.Error("render template failed", slog.String("template", contentTemplate), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	data := pageView{
		Title:       title,
		Body:        template.HTML(body.String()),
		Lang:        lang,
		UILanguages: s.getUILanguages(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("render template failed", slog.String("template", "base.html"), slog.String("error", err.Error()))
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("encode response failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

// decodeError reports an unreadable body: 413 past maxBodyBytes, otherwise 400 with msg.
func (s *Server) decodeError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.clientError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	s.clientError(w, http.StatusBadRequest, msg)
}

// storeError maps conversation store errors to statuses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversations.ErrInvalidInput):
		s.clientError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversations.ErrNotFound):
		s.clientError(w, http.StatusNotFound, err.Error())
	default:
		s.serverError(w, err)
	}
}

// upstreamError reports a failed gateway call with its message.
func (s *Server) upstreamError(w http.ResponseWriter, err error) {
	s.logger.Error("gateway error", slog.String("error", err.Error()))
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("request error", slog.String("error", err.Error()))
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.clientError(w, http.StatusUnauthorized, "invalid token")
}

func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid "+strings.TrimSuffix(name, "ID")+" id")
		return uuid.Nil, false
	}
	return id, true
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		" ", "_", "/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-", "|", "-",
	)
	name = replacer.Replace(name)
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	return name
}

func (s *Server) getLanguage(r *http.Request) string {
	if cookie, err := r.Cookie("lang"); err == nil && i18n.Valid(cookie.Value) {
		return cookie.Value
	}
	if lang := r.URL.Query().Get("lang"); i18n.Valid(lang) {
		return lang
	}
	if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
		first := strings.TrimSpace(strings.Split(strings.Split(acceptLang, ",")[0], ";")[0])
		if len(first) >= 2 && i18n.Valid(strings.ToLower(first[:2])) {
			return strings.ToLower(first[:2])
		}
	}
	return i18n.DefaultLanguage
}

func (s *Server) getUILanguages() []UILanguage {
	langs := []string{i18n.LangEN, i18n.LangTR, i18n.LangDA}
	result := make([]UILanguage, 0, len(langs))
	for _, code := range langs {
		result = append(result, UILanguage{
			Code: code,
			Name: i18n.LanguageNames[code],
		})
	}
	return result
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	if !i18n.Valid(lang) {
		lang = i18n.DefaultLanguage
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "lang",
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})

	redirect := r.Header.Get("Referer")
	if redirect == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}
