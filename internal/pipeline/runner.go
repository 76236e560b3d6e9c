package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/scribehook/scribehook/internal/domain"
)

// DefaultStageBudget is the wall-clock budget for one stage. It reserves
// margin under the hosting environment's 300 s hard kill so a slow stage
// is reported by this layer as a timeout rather than surfacing upstream
// as a generic crash.
const DefaultStageBudget = 270 * time.Second

// maxDiagnostic bounds how much captured stage output rides on a failure.
const maxDiagnostic = 2048

// StageFunc is one collaborator invocation. Diagnostics written through
// the supplied logger are captured for the failure report and forwarded
// to the operator stream either way.
type StageFunc func(ctx context.Context, log *slog.Logger) error

// Runner executes a single stage with a bounded time budget and captured
// diagnostics. Any non-success outcome becomes a typed error; no partial
// silent success is possible.
type Runner struct {
	budget time.Duration
	out    io.Writer
}

// NewRunner creates a Runner. A non-positive budget falls back to
// DefaultStageBudget; out is the operator diagnostic stream.
func NewRunner(budget time.Duration, out io.Writer) *Runner {
	if budget <= 0 {
		budget = DefaultStageBudget
	}
	return &Runner{budget: budget, out: out}
}

// Run executes fn under the stage budget. The budget expiring yields a
// timeout failure distinct from a collaborator failure; once expired the
// stage's in-flight effects are not rolled back.
func (r *Runner) Run(ctx context.Context, label string, fn StageFunc) error {
	var captured syncBuffer
	stageLog := slog.New(slog.NewTextHandler(io.MultiWriter(&captured, r.out), nil)).
		With(slog.String("stage", label))

	stageLog.Info("stage starting")

	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx, stageLog)
	}()

	select {
	case err := <-done:
		if err == nil {
			stageLog.Info("stage completed")
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrTimeout(label)
		}
		stageLog.Error("stage failed", slog.String("error", err.Error()))
		return domain.ErrCollaborator(label, err.Error()).WithDetail(captured.tail(maxDiagnostic))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.ErrTimeout(label)
		}
		return domain.ErrCollaborator(label, ctx.Err().Error())
	}
}

// syncBuffer guards the capture buffer: the stage goroutine may still be
// writing when a timed-out Run reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
