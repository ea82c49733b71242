package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storychat/internal/auth"
	"storychat/internal/chat"
	"storychat/internal/config"
	"storychat/internal/conversations"
	apphttp "storychat/internal/http"
	"storychat/internal/llm"
	"storychat/internal/logging"
	"storychat/internal/sheet"
	"storychat/internal/speech"
	"storychat/internal/storage"
	"storychat/internal/tts"
	"storychat/internal/ui"
	"storychat/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load config failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	if err := run(logger, cfg); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// ensure DB is reachable
	if err := pingDB(ctx, db); err != nil {
		return err
	}

	if err := storage.RunMigrations(ctx, logger, db, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	completer, synth := newProviders(logger, cfg)

	var fetcher *sheet.Fetcher
	if url := cfg.Sheet.CSVURL(); url != "" {
		fetcher = sheet.NewFetcher(logger, url, nil)
	} else {
		logger.Warn("no sheet configured, /sheet will fail")
	}

	speechOpts := speech.Options{Speed: cfg.OpenAI.SpeechSpeed}
	if cfg.TTS.Provider == "elevenlabs" {
		// ElevenLabs voices are account specific; every language uses the configured voice.
		speechOpts.Voices = map[string]string{}
		speechOpts.Fallback = cfg.TTS.ElevenLabsVoice
	}

	tmpl, err := ui.ParseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	handler := apphttp.NewServer(logger, apphttp.Deps{
		Chat:           chat.NewService(logger, completer),
		Speech:         speech.NewService(logger, synth, speechOpts),
		Sheet:          fetcher,
		Conversations:  conversations.NewService(storage.NewConversationRepository(db)),
		Verifier:       auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Templates:      tmpl,
		StaticFS:       ui.StaticFiles(),
		AllowedOrigins: cfg.CORS.Origins(),
		GatewayTimeout: cfg.Server.GatewayTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

// newProviders picks the completion and speech clients. Without an OpenAI key the
// deterministic stubs are used, except that a configured ElevenLabs provider stays real.
func newProviders(logger *slog.Logger, cfg config.Config) (chat.Completer, speech.Synthesizer) {
	var completer chat.Completer
	var synth speech.Synthesizer

	if cfg.UseStubs() {
		logger.Warn("OPENAI_API_KEY not set, using stub LLM and speech clients")
		completer = llm.NewStubClient(logger)
		synth = tts.NewStubClient()
	} else {
		completer = llm.NewOpenAIClient(logger, cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, &llm.OpenAIOptions{
			BaseURL: cfg.OpenAI.BaseURL,
		})
		synth = tts.NewOpenAIClient(logger, cfg.OpenAI.APIKey, &tts.OpenAIOptions{
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.SpeechModel,
		})
	}

	if cfg.TTS.Provider == "elevenlabs" {
		synth = tts.NewElevenLabsClient(logger, cfg.TTS.ElevenLabsAPIKey, cfg.TTS.ElevenLabsVoice, nil)
	}
	return completer, synth
}

func pingDB(ctx context.Context, db *sql.DB) error {
	const (
		maxAttempts = 10
		baseDelay   = time.Second
	)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()

		if err == nil {
			return nil
		}

		// allow caller to abort early
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping db: %w", err)
		case <-time.After(time.Duration(attempt) * baseDelay):
		}
	}

	return fmt.Errorf("ping db: %w", err)
}
