package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/scribehook/scribehook/internal/domain"
)

func TestRunnerSuccess(t *testing.T) {
	r := NewRunner(time.Second, io.Discard)

	called := false
	err := r.Run(context.Background(), "summarize", func(ctx context.Context, log *slog.Logger) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("stage func was not called")
	}
}

func TestRunnerWrapsFailureWithDiagnostics(t *testing.T) {
	r := NewRunner(time.Second, io.Discard)

	err := r.Run(context.Background(), "persist", func(ctx context.Context, log *slog.Logger) error {
		log.Error("upstream rejected the record", slog.Int("status", 422))
		return errors.New("create record: status 422")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("error is %T, want *domain.PipelineError", err)
	}
	if perr.Kind != domain.KindCollaborator {
		t.Errorf("kind = %q, want %q", perr.Kind, domain.KindCollaborator)
	}
	if perr.Stage != "persist" {
		t.Errorf("stage = %q, want persist", perr.Stage)
	}
	if !strings.Contains(perr.Detail, "upstream rejected the record") {
		t.Errorf("detail missing captured diagnostics: %q", perr.Detail)
	}
}

func TestRunnerTimeoutIsDistinct(t *testing.T) {
	r := NewRunner(20*time.Millisecond, io.Discard)

	err := r.Run(context.Background(), "summarize", func(ctx context.Context, log *slog.Logger) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if got := domain.KindOf(err); got != domain.KindTimeout {
		t.Fatalf("kind = %q, want %q", got, domain.KindTimeout)
	}
}

func TestRunnerTimeoutWhenStageIgnoresContext(t *testing.T) {
	r := NewRunner(20*time.Millisecond, io.Discard)

	start := time.Now()
	err := r.Run(context.Background(), "summarize", func(ctx context.Context, log *slog.Logger) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	if got := domain.KindOf(err); got != domain.KindTimeout {
		t.Fatalf("kind = %q, want %q", got, domain.KindTimeout)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Error("Run did not return at the budget boundary")
	}
}

func TestRunnerForwardsDiagnosticsToOperatorStream(t *testing.T) {
	var out strings.Builder
	r := NewRunner(time.Second, &out)

	_ = r.Run(context.Background(), "fetch", func(ctx context.Context, log *slog.Logger) error {
		log.Info("fetched 12 segments")
		return nil
	})
	if !strings.Contains(out.String(), "fetched 12 segments") {
		t.Errorf("operator stream missing stage output: %q", out.String())
	}
}
