// Command processmeeting runs the processing pipeline for a single
// recording outside the webhook path: re-running a failed delivery,
// backfilling an old recording, or testing stages locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/scribehook/scribehook/internal/airtable"
	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/config"
	"github.com/scribehook/scribehook/internal/fathom"
	"github.com/scribehook/scribehook/internal/gemini"
	"github.com/scribehook/scribehook/internal/persist"
	"github.com/scribehook/scribehook/internal/pipeline"
	"github.com/scribehook/scribehook/internal/summarize"
)

func main() {
	skipPersist := flag.Bool("skip-persist", false, "run summarize only, leave external records untouched")
	cleanup := flag.Bool("cleanup", false, "remove transcript and summary artifacts after a successful run")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <recording-id>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	recordingID := flag.Arg(0)

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

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

	creds := []pipeline.Credential{
		{Name: "GOOGLE_GEMINI_API_KEY", Value: cfg.Gemini.APIKey},
	}

	var persister pipeline.Persister
	if *skipPersist {
		logger.Info("persist stage disabled by flag")
	} else {
		var airtableOpts []airtable.ClientOption
		if cfg.Airtable.BaseURL != "" {
			airtableOpts = append(airtableOpts, airtable.WithBaseURL(cfg.Airtable.BaseURL))
		}
		persister = persist.New(
			airtable.NewClient(cfg.Airtable.APIKey, airtableOpts...),
			store,
			cfg.Airtable.BaseID,
			cfg.Airtable.MeetingsTable,
			cfg.Airtable.TasksTable,
		)
		creds = append(creds,
			pipeline.Credential{Name: "AIRTABLE_API_KEY", Value: cfg.Airtable.APIKey},
			pipeline.Credential{Name: "AIRTABLE_BASE_ID", Value: cfg.Airtable.BaseID},
		)
	}

	// The fetcher is only used when the transcript artifact is absent, so
	// a missing Fathom key is not fatal for re-runs.
	var fetcher pipeline.Fetcher
	if cfg.Fathom.APIKey != "" {
		var fathomOpts []fathom.ClientOption
		if cfg.Fathom.BaseURL != "" {
			fathomOpts = append(fathomOpts, fathom.WithBaseURL(cfg.Fathom.BaseURL))
		}
		fetcher = fathom.NewFetcher(fathom.NewClient(cfg.Fathom.APIKey, fathomOpts...), store)
	}

	p := pipeline.New(pipeline.Config{
		Runner:      pipeline.NewRunner(time.Duration(cfg.Pipeline.StageTimeoutSeconds)*time.Second, os.Stderr),
		Fetcher:     fetcher,
		Summarizer:  summarizer,
		Persister:   persister,
		Store:       store,
		Credentials: creds,
		Logger:      logger,
	})

	if err := p.Process(context.Background(), recordingID); err != nil {
		logger.Error("processing failed",
			slog.String("recording_id", recordingID),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("processing complete",
		slog.String("recording_id", recordingID),
		slog.String("summary", store.SummaryPath(recordingID)),
	)

	if *cleanup {
		if err := store.Remove(recordingID); err != nil {
			logger.Warn("failed to remove artifacts", slog.String("error", err.Error()))
		} else {
			logger.Info("artifacts removed", slog.String("recording_id", recordingID))
		}
	}
}
