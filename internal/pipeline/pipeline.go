// Package pipeline orchestrates the fixed fetch → summarize → persist
// sequence against external collaborators, with fail-fast precondition
// checks and bounded, diagnostic-capturing stage execution.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/domain"
)

// Stage labels, used in error reporting and logs.
const (
	StageFetch     = "fetch"
	StageSummarize = "summarize"
	StagePersist   = "persist"
)

// Fetcher retrieves a transcript from the provider and writes the
// transcript artifact. Only the standalone driver wires one; the webhook
// path already carries the transcript in the event payload.
type Fetcher interface {
	Fetch(ctx context.Context, log *slog.Logger, recordingID string) error
}

// Summarizer reads the transcript artifact and writes the summary
// artifact at its deterministic path.
type Summarizer interface {
	Summarize(ctx context.Context, log *slog.Logger, recordingID, transcriptPath string) error
}

// Persister reads the summary and transcript artifacts and creates the
// linked external records. It needs the raw transcript to recompute
// attendee and transcript-text fields independently of the summary.
type Persister interface {
	Persist(ctx context.Context, log *slog.Logger, recordingID, summaryPath, transcriptPath string) error
}

// Credential is a required configuration value checked before any
// collaborator is invoked.
type Credential struct {
	Name  string
	Value string
}

// Pipeline sequences the collaborator stages. Stages run strictly in
// order; stage N's artifact is stage N+1's required input. There is no
// compensating rollback: a summary artifact left behind by a failed
// persist stage is picked up again on upstream redelivery.
type Pipeline struct {
	runner     *Runner
	fetcher    Fetcher
	summarizer Summarizer
	persister  Persister
	store      *artifact.Store
	creds      []Credential
	log        *slog.Logger
}

// Config assembles a Pipeline.
type Config struct {
	Runner     *Runner
	Fetcher    Fetcher // optional
	Summarizer Summarizer
	Persister  Persister // optional; nil skips the persist stage
	Store      *artifact.Store
	// Credentials are verified present before any stage runs.
	Credentials []Credential
	Logger      *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		runner:     cfg.Runner,
		fetcher:    cfg.Fetcher,
		summarizer: cfg.Summarizer,
		persister:  cfg.Persister,
		store:      cfg.Store,
		creds:      cfg.Credentials,
		log:        cfg.Logger,
	}
}

// Execute runs summarize → persist for a transcript artifact that already
// exists. This is the webhook entry point.
func (p *Pipeline) Execute(ctx context.Context, recordingID, transcriptPath string) error {
	if err := p.preflight(); err != nil {
		return err
	}
	return p.run(ctx, recordingID, transcriptPath)
}

// Process runs the full fetch → summarize → persist sequence for a
// recording identifier. The fetch stage is skipped when the transcript
// artifact is already present. This is the driver entry point.
func (p *Pipeline) Process(ctx context.Context, recordingID string) error {
	if err := p.preflight(); err != nil {
		return err
	}

	transcriptPath := p.store.TranscriptPath(recordingID)
	if p.store.Exists(transcriptPath) {
		p.log.Info("transcript artifact already present, skipping fetch",
			slog.String("recording_id", recordingID))
	} else {
		if p.fetcher == nil {
			return domain.ErrConfig("no transcript fetcher configured and transcript artifact is absent")
		}
		err := p.runner.Run(ctx, StageFetch, func(ctx context.Context, log *slog.Logger) error {
			return p.fetcher.Fetch(ctx, log, recordingID)
		})
		if err != nil {
			return err
		}
		if !p.store.Exists(transcriptPath) {
			return domain.ErrArtifact(fmt.Sprintf("transcript artifact not produced at %s", transcriptPath))
		}
	}

	return p.run(ctx, recordingID, transcriptPath)
}

// preflight verifies every required downstream credential before any
// collaborator runs, so a misconfigured process performs no partial
// external side effects.
func (p *Pipeline) preflight() error {
	for _, cred := range p.creds {
		if cred.Value == "" {
			return domain.ErrConfig(fmt.Sprintf("required credential %s is not set", cred.Name))
		}
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, recordingID, transcriptPath string) error {
	err := p.runner.Run(ctx, StageSummarize, func(ctx context.Context, log *slog.Logger) error {
		return p.summarizer.Summarize(ctx, log, recordingID, transcriptPath)
	})
	if err != nil {
		return err
	}

	// A collaborator reporting success without producing its artifact is
	// still a failure.
	summaryPath := p.store.SummaryPath(recordingID)
	if !p.store.Exists(summaryPath) {
		return domain.ErrArtifact(fmt.Sprintf("summary artifact not produced at %s", summaryPath))
	}

	if p.persister == nil {
		p.log.Info("no persister configured, skipping persist stage",
			slog.String("recording_id", recordingID),
			slog.String("summary", summaryPath),
		)
		return nil
	}

	return p.runner.Run(ctx, StagePersist, func(ctx context.Context, log *slog.Logger) error {
		return p.persister.Persist(ctx, log, recordingID, summaryPath, transcriptPath)
	})
}
