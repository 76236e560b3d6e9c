package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scribehook/scribehook/internal/airtable"
	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/config"
	"github.com/scribehook/scribehook/internal/gemini"
	"github.com/scribehook/scribehook/internal/journal"
	"github.com/scribehook/scribehook/internal/normalize"
	"github.com/scribehook/scribehook/internal/persist"
	"github.com/scribehook/scribehook/internal/pipeline"
	"github.com/scribehook/scribehook/internal/server"
	"github.com/scribehook/scribehook/internal/signature"
	"github.com/scribehook/scribehook/internal/summarize"
	"github.com/scribehook/scribehook/internal/telemetry"
	"github.com/scribehook/scribehook/internal/webhook"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("scribehook", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store := artifact.NewStore(cfg.Pipeline.WorkDir)
	if err := store.EnsureDir(); err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}

	var geminiOpts []gemini.ClientOption
	if cfg.Gemini.Model != "" {
		geminiOpts = append(geminiOpts, gemini.WithModel(cfg.Gemini.Model))
	}
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	summarizer := summarize.New(gemini.NewClient(cfg.Gemini.APIKey, geminiOpts...), store)

	var airtableOpts []airtable.ClientOption
	if cfg.Airtable.BaseURL != "" {
		airtableOpts = append(airtableOpts, airtable.WithBaseURL(cfg.Airtable.BaseURL))
	}
	persister := persist.New(
		airtable.NewClient(cfg.Airtable.APIKey, airtableOpts...),
		store,
		cfg.Airtable.BaseID,
		cfg.Airtable.MeetingsTable,
		cfg.Airtable.TasksTable,
	)

	p := pipeline.New(pipeline.Config{
		Runner:     pipeline.NewRunner(time.Duration(cfg.Pipeline.StageTimeoutSeconds)*time.Second, os.Stderr),
		Summarizer: summarizer,
		Persister:  persister,
		Store:      store,
		Logger:     logger,
		Credentials: []pipeline.Credential{
			{Name: "GOOGLE_GEMINI_API_KEY", Value: cfg.Gemini.APIKey},
			{Name: "AIRTABLE_API_KEY", Value: cfg.Airtable.APIKey},
			{Name: "AIRTABLE_BASE_ID", Value: cfg.Airtable.BaseID},
		},
	})

	// Journal failures are advisory; run without it rather than refuse to
	// serve deliveries.
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Warn("delivery journal unavailable", slog.String("error", err.Error()))
		j = nil
	} else {
		defer j.Close()
	}

	srv := server.New(cfg.Server.Port, logger)
	handler := webhook.New(
		signature.NewVerifier(cfg.Webhook.Secret, logger),
		normalize.New(logger),
		store,
		p,
		j,
		logger,
	)
	handler.Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("webhook service started",
		slog.Int("port", cfg.Server.Port),
		slog.String("work_dir", cfg.Pipeline.WorkDir),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
