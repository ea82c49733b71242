package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"storychat/internal/chatclient"
	"storychat/internal/config"
	"storychat/internal/i18n"
	"storychat/internal/logging"
	"storychat/internal/terminal"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("load config failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// stdout belongs to the transcript
	logger := logging.NewWithWriter(os.Stderr, cfg.Log)
	if err := run(logger, cfg); err != nil {
		logger.Error("client failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config.ClientConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	language := cfg.SpeechLanguage
	if language == "" {
		language = i18n.SpeechLanguages[cfg.UILang]
	}

	api := chatclient.NewAPIClient(logger, cfg.ServerURL, nil)
	ctrl := chatclient.NewController(logger, api, api,
		terminal.NewPlayerAudio(cfg.AudioDir, strings.Fields(cfg.Player)),
		terminal.NewRenderer(os.Stdout, cfg.UILang),
		chatclient.Options{Language: language},
	)

	if cfg.Token != "" {
		if err := ctrl.SignIn(ctx, cfg.Token); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	} else {
		logger.Warn("STORYCHAT_TOKEN not set, conversations are not saved")
	}

	fmt.Fprintln(os.Stdout, "Type /help for commands.")
	return terminal.NewShell(logger, ctrl, os.Stdout).Run(ctx, os.Stdin)
}
