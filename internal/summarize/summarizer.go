// Package summarize implements the summarization stage: it turns a
// transcript artifact into a validated structured summary artifact via
// the Gemini collaborator.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/domain"
	"github.com/scribehook/scribehook/internal/gemini"
)

// Summarizer is the summarize-stage collaborator adapter.
type Summarizer struct {
	client *gemini.Client
	store  *artifact.Store
}

// New creates a Summarizer.
func New(client *gemini.Client, store *artifact.Store) *Summarizer {
	return &Summarizer{client: client, store: store}
}

// Summarize reads the transcript artifact, generates the structured
// summary, validates it, and writes summary_{id}.json.
func (s *Summarizer) Summarize(ctx context.Context, log *slog.Logger, recordingID, transcriptPath string) error {
	ct, err := s.store.ReadTranscript(transcriptPath)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	log.Info("loaded transcript",
		slog.String("title", ct.Title),
		slog.Int("segments", len(ct.Transcript)),
	)

	text, err := s.client.GenerateContent(ctx, BuildPrompt(ct))
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	log.Info("received model response", slog.String("model", s.client.Model()))

	var sum domain.MeetingSummary
	if err := json.Unmarshal([]byte(StripFences(text)), &sum); err != nil {
		return fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if err := sum.Validate(); err != nil {
		return fmt.Errorf("model response failed validation: %w", err)
	}

	path, err := s.store.WriteSummary(recordingID, &sum)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	log.Info("summary saved",
		slog.String("path", path),
		slog.Int("action_items", len(sum.ActionItems)),
	)
	return nil
}

// FormatTranscript renders the canonical transcript as the readable text
// block embedded in the prompt.
func FormatTranscript(ct *domain.CanonicalTranscript) string {
	participants := "Not specified"
	if len(ct.Participants) > 0 {
		participants = strings.Join(ct.Participants, ", ")
	}
	date := ct.Date
	if date == "" {
		date = "Unknown date"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MEETING: %s\n", ct.Title)
	fmt.Fprintf(&sb, "DATE: %s\n", date)
	fmt.Fprintf(&sb, "PARTICIPANTS: %s\n", participants)
	sb.WriteString("\nTRANSCRIPT:\n")
	sb.WriteString(strings.Repeat("=", 80))
	sb.WriteString("\n\n")
	for _, seg := range ct.Transcript {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", seg.Timestamp, seg.Speaker.DisplayName, seg.Text)
	}
	return sb.String()
}

// BuildPrompt assembles the summarization prompt. The output language is
// Hebrew by product requirement; owner names, dates, and priority levels
// stay untranslated so they match external records.
func BuildPrompt(ct *domain.CanonicalTranscript) string {
	return fmt.Sprintf(`You are Convobot — a professional meeting & conversation summarizer.

Your job is to turn raw, messy, or unstructured conversation transcripts into clear and concise summaries — written in **Hebrew only**.
The tone should be natural, professional, and easy to read — as if written by a human native speaker.

%s

Behavior guidelines:
- Never translate or explain — output must always be written natively in Hebrew
- Focus on signal, not noise: remove chit-chat, filler, and irrelevant side talk
- Keep the language fluent, clear, and professional — no slang, no formal bureaucracy
- Structure the summary for someone who wasn't in the meeting and needs to quickly understand what happened and what's next
- Don't mention the transcript or that you're summarizing — just write the summary directly, like a human would

Return your analysis as valid JSON with the following structure (all text fields in Hebrew):

{
  "meeting_title": "...",
  "meeting_purpose": "...",
  "key_takeaways": ["..."],
  "topics": [{"title": "...", "description": "..."}],
  "action_items": [{"title": "...", "description": "...", "owner": "name or null", "priority": "High|Medium|Low", "due_date": "YYYY-MM-DD or null", "context": "..."}],
  "participants_mentioned": ["..."]
}

CRITICAL: Return ONLY valid JSON, no markdown code blocks or formatting. All text content must be in Hebrew except for: owner names, dates, and priority levels.
`, FormatTranscript(ct))
}

// StripFences removes a surrounding markdown code fence, which models
// emit despite instructions.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
