// Package webhook exposes the HTTP surface: signature verification,
// payload normalization, transcript capture, and synchronous pipeline
// execution within the delivery window.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/domain"
	"github.com/scribehook/scribehook/internal/journal"
	"github.com/scribehook/scribehook/internal/normalize"
	"github.com/scribehook/scribehook/internal/pipeline"
	"github.com/scribehook/scribehook/internal/server"
	"github.com/scribehook/scribehook/internal/signature"
)

// Handler wires the webhook endpoint to its collaborators.
type Handler struct {
	verifier   *signature.Verifier
	normalizer *normalize.Normalizer
	store      *artifact.Store
	pipeline   *pipeline.Pipeline
	journal    *journal.Journal
	log        *slog.Logger
}

// New creates a Handler. The journal may be nil; delivery journaling is
// advisory and never affects responses.
func New(verifier *signature.Verifier, normalizer *normalize.Normalizer, store *artifact.Store, p *pipeline.Pipeline, j *journal.Journal, log *slog.Logger) *Handler {
	return &Handler{
		verifier:   verifier,
		normalizer: normalizer,
		store:      store,
		pipeline:   p,
		journal:    j,
		log:        log,
	}
}

// Register mounts the webhook routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleHealth)
	r.Get("/health", h.handleHealth)
	r.Post("/", h.handleEvent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The raw body is read exactly once: the same bytes feed signature
	// verification and JSON decoding.
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Empty body"})
		return
	}

	if !h.verifier.Verify(body, r.Header) {
		server.AddLogField(ctx, "verification", "failed")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	var payload normalize.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		server.AddError(ctx, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed JSON"})
		return
	}

	transcript, recordingID := h.normalizer.Normalize(payload)
	server.AddLogField(ctx, "recording_id", recordingID)
	server.AddLogField(ctx, "title", transcript.Title)

	if err := h.store.EnsureDir(); err != nil {
		server.AddError(ctx, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save transcript"})
		return
	}
	transcriptPath, err := h.store.WriteTranscript(recordingID, transcript)
	if err != nil {
		server.AddError(ctx, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save transcript"})
		return
	}

	h.log.Info("transcript saved",
		slog.String("recording_id", recordingID),
		slog.String("path", transcriptPath),
		slog.Int("segments", len(transcript.Transcript)),
	)

	if err := h.pipeline.Execute(ctx, recordingID, transcriptPath); err != nil {
		server.AddError(ctx, err)
		h.record(r, recordingID, transcript.Title, "failed", err.Error())
		h.writePipelineError(w, err)
		return
	}

	h.record(r, recordingID, transcript.Title, "ok", "")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"recording_id": recordingID,
		"title":        transcript.Title,
	})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP status
// codes. Anything untyped is treated as an internal failure.
func (h *Handler) writePipelineError(w http.ResponseWriter, err error) {
	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}
	msg := perr.Message
	if perr.Kind == domain.KindTimeout {
		msg = "Processing timed out"
	}
	writeJSON(w, perr.HTTPStatusCode(), map[string]string{"error": msg})
}

func (h *Handler) record(r *http.Request, recordingID, title, status, detail string) {
	if h.journal == nil {
		return
	}
	entry := journal.Entry{
		DeliveryID:  r.Header.Get(signature.HeaderID),
		RecordingID: recordingID,
		Title:       title,
		Status:      status,
		Detail:      detail,
	}
	if err := h.journal.Record(entry); err != nil {
		h.log.Warn("failed to journal delivery", slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
