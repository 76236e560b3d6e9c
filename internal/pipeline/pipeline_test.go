package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/domain"
)

type stubSummarizer struct {
	called bool
	err    error
	// writeArtifact controls whether the stub produces the summary file,
	// to exercise the artifact-existence check.
	writeArtifact bool
	store         *artifact.Store
}

func (s *stubSummarizer) Summarize(ctx context.Context, log *slog.Logger, id, transcriptPath string) error {
	s.called = true
	if s.err != nil {
		return s.err
	}
	if s.writeArtifact {
		_, err := s.store.WriteSummary(id, &domain.MeetingSummary{
			MeetingTitle:   "t",
			MeetingPurpose: "p",
			KeyTakeaways:   []string{"k"},
		})
		return err
	}
	return nil
}

type stubPersister struct {
	called bool
	err    error
}

func (p *stubPersister) Persist(ctx context.Context, log *slog.Logger, id, summaryPath, transcriptPath string) error {
	p.called = true
	return p.err
}

type stubFetcher struct {
	called bool
	store  *artifact.Store
}

func (f *stubFetcher) Fetch(ctx context.Context, log *slog.Logger, id string) error {
	f.called = true
	_, err := f.store.WriteRawTranscript(id, []byte(`{"title":"T","transcript":[]}`))
	return err
}

func newTestPipeline(t *testing.T, sum *stubSummarizer, per *stubPersister, creds []Credential) (*Pipeline, *artifact.Store) {
	t.Helper()
	store := artifact.NewStore(t.TempDir())
	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	sum.store = store
	var persister Persister
	if per != nil {
		persister = per
	}
	p := New(Config{
		Runner:      NewRunner(time.Second, io.Discard),
		Summarizer:  sum,
		Persister:   persister,
		Store:       store,
		Credentials: creds,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return p, store
}

func writeTranscript(t *testing.T, store *artifact.Store, id string) string {
	t.Helper()
	path, err := store.WriteTranscript(id, &domain.CanonicalTranscript{
		Title:        "Standup",
		Participants: []string{},
		Transcript:   nil,
	})
	if err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}
	return path
}

func TestExecuteHappyPath(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	per := &stubPersister{}
	p, store := newTestPipeline(t, sum, per, nil)
	path := writeTranscript(t, store, "r1")

	if err := p.Execute(context.Background(), "r1", path); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !sum.called || !per.called {
		t.Errorf("stages called: summarize=%v persist=%v, want both", sum.called, per.called)
	}
}

func TestExecuteMissingCredentialFailsFast(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	per := &stubPersister{}
	creds := []Credential{{Name: "SUMMARIZER_API_KEY", Value: "x"}, {Name: "PERSISTER_API_KEY", Value: ""}}
	p, store := newTestPipeline(t, sum, per, creds)
	path := writeTranscript(t, store, "r1")

	err := p.Execute(context.Background(), "r1", path)
	if got := domain.KindOf(err); got != domain.KindConfig {
		t.Fatalf("kind = %q, want %q", got, domain.KindConfig)
	}
	if sum.called || per.called {
		t.Error("no stage may run when preconditions fail")
	}
}

func TestExecuteSummarizeFailureSkipsPersist(t *testing.T) {
	sum := &stubSummarizer{err: errors.New("model unavailable")}
	per := &stubPersister{}
	p, store := newTestPipeline(t, sum, per, nil)
	path := writeTranscript(t, store, "r1")

	err := p.Execute(context.Background(), "r1", path)
	if got := domain.KindOf(err); got != domain.KindCollaborator {
		t.Fatalf("kind = %q, want %q", got, domain.KindCollaborator)
	}
	if per.called {
		t.Error("persist must not run after a failed summarize stage")
	}
}

func TestExecuteMissingSummaryArtifactIsFailure(t *testing.T) {
	// Summarizer reports success but produces no artifact.
	sum := &stubSummarizer{writeArtifact: false}
	per := &stubPersister{}
	p, store := newTestPipeline(t, sum, per, nil)
	path := writeTranscript(t, store, "r1")

	err := p.Execute(context.Background(), "r1", path)
	if got := domain.KindOf(err); got != domain.KindArtifact {
		t.Fatalf("kind = %q, want %q", got, domain.KindArtifact)
	}
	if per.called {
		t.Error("persist must not run without the summary artifact")
	}
}

func TestExecutePersistFailureLeavesSummaryArtifact(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	per := &stubPersister{err: errors.New("upstream 500")}
	p, store := newTestPipeline(t, sum, per, nil)
	path := writeTranscript(t, store, "r1")

	err := p.Execute(context.Background(), "r1", path)
	if got := domain.KindOf(err); got != domain.KindCollaborator {
		t.Fatalf("kind = %q, want %q", got, domain.KindCollaborator)
	}
	// No rollback: the summary stays for manual re-run or redelivery.
	if !store.Exists(store.SummaryPath("r1")) {
		t.Error("summary artifact must survive a failed persist stage")
	}
}

func TestExecuteWithoutPersisterSkipsPersist(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	p, store := newTestPipeline(t, sum, nil, nil)
	path := writeTranscript(t, store, "r1")

	if err := p.Execute(context.Background(), "r1", path); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestProcessFetchesWhenTranscriptAbsent(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	per := &stubPersister{}
	p, store := newTestPipeline(t, sum, per, nil)
	fetcher := &stubFetcher{store: store}
	p.fetcher = fetcher

	if err := p.Process(context.Background(), "r9"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !fetcher.called {
		t.Error("fetch stage must run when the transcript artifact is absent")
	}
	if !sum.called || !per.called {
		t.Error("summarize and persist must follow fetch")
	}
}

func TestProcessSkipsFetchWhenTranscriptPresent(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	per := &stubPersister{}
	p, store := newTestPipeline(t, sum, per, nil)
	fetcher := &stubFetcher{store: store}
	p.fetcher = fetcher
	writeTranscript(t, store, "r9")

	if err := p.Process(context.Background(), "r9"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if fetcher.called {
		t.Error("fetch stage must be skipped when the transcript artifact exists")
	}
}

func TestProcessWithoutFetcherAndTranscriptIsConfigError(t *testing.T) {
	sum := &stubSummarizer{writeArtifact: true}
	p, _ := newTestPipeline(t, sum, nil, nil)

	err := p.Process(context.Background(), "missing")
	if got := domain.KindOf(err); got != domain.KindConfig {
		t.Fatalf("kind = %q, want %q", got, domain.KindConfig)
	}
}
