// Package persist implements the persistence stage: it maps a validated
// summary and its transcript onto linked Airtable records — one meeting
// record plus one task record per action item.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scribehook/scribehook/internal/airtable"
	"github.com/scribehook/scribehook/internal/artifact"
	"github.com/scribehook/scribehook/internal/domain"
)

// Option configures a Persister.
type Option func(*Persister)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) {
		p.now = now
	}
}

// Persister is the persist-stage collaborator adapter.
type Persister struct {
	client        *airtable.Client
	store         *artifact.Store
	baseID        string
	meetingsTable string
	tasksTable    string
	now           func() time.Time
}

// New creates a Persister targeting the given base and tables.
func New(client *airtable.Client, store *artifact.Store, baseID, meetingsTable, tasksTable string, opts ...Option) *Persister {
	p := &Persister{
		client:        client,
		store:         store,
		baseID:        baseID,
		meetingsTable: meetingsTable,
		tasksTable:    tasksTable,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist reads the summary and transcript artifacts and creates the
// meeting record, the task records, and the task→meeting links. A single
// failing task does not abort the remaining tasks; creating the meeting
// record failing does.
func (p *Persister) Persist(ctx context.Context, log *slog.Logger, recordingID, summaryPath, transcriptPath string) error {
	sum, err := p.store.ReadSummary(summaryPath)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}
	ct, err := p.store.ReadTranscript(transcriptPath)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	meeting, err := p.client.CreateRecord(ctx, p.baseID, p.meetingsTable, p.meetingFields(sum, ct, recordingID))
	if err != nil {
		return fmt.Errorf("create meeting record: %w", err)
	}
	log.Info("meeting record created",
		slog.String("record_id", meeting.ID),
		slog.String("title", sum.MeetingTitle),
	)

	taskIDs := p.createTasks(ctx, log, sum.ActionItems, meeting.ID)
	if len(sum.ActionItems) > 0 && len(taskIDs) == 0 {
		return fmt.Errorf("all %d task records failed to create", len(sum.ActionItems))
	}

	// The base may have bidirectional linking configured; treat the
	// reverse link as best effort.
	if len(taskIDs) > 0 {
		if _, err := p.client.UpdateRecord(ctx, p.baseID, p.meetingsTable, meeting.ID, map[string]any{
			"Tasks": taskIDs,
		}); err != nil {
			log.Warn("could not update meeting->tasks link (may be automatic)",
				slog.String("error", err.Error()))
		}
	}

	log.Info("persist complete",
		slog.String("meeting_record", meeting.ID),
		slog.Int("tasks_created", len(taskIDs)),
		slog.Int("tasks_total", len(sum.ActionItems)),
	)
	return nil
}

func (p *Persister) meetingFields(sum *domain.MeetingSummary, ct *domain.CanonicalTranscript, recordingID string) map[string]any {
	title := sum.MeetingTitle
	if title == "" {
		title = "פגישה ללא שם"
	}
	return map[string]any{
		"Call Name":            title,
		"Date/Time":            p.now().Format("2006-01-02"),
		"Attendees Emails":     FormatAttendees(ct),
		"Fathom URL":           "https://app.fathom.video/recordings/" + recordingID,
		"Raw Transcript":       FormatPlainTranscript(ct),
		"Professional Summary": FormatRichSummary(sum),
		"Status":               "Completed",
	}
}

func (p *Persister) createTasks(ctx context.Context, log *slog.Logger, items []domain.Task, meetingID string) []string {
	ids := make([]string, 0, len(items))
	for _, task := range items {
		title := task.Title
		if title == "" {
			title = "משימה ללא כותרת"
		}
		fields := map[string]any{
			"Task Description": title,
			"Priority":         MapPriority(task.Priority),
			"Status":           NormalizeStatus("To-Do"),
			"Source Meeting":   []string{meetingID},
		}
		if task.DueDate != "" {
			fields["Due Date"] = task.DueDate
		}

		rec, err := p.client.CreateRecord(ctx, p.baseID, p.tasksTable, fields)
		if err != nil {
			log.Error("failed to create task record",
				slog.String("task", title),
				slog.String("error", err.Error()),
			)
			continue
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

// FormatAttendees derives the attendee list from per-segment speaker
// data, deduplicated by display name and preferring the matched calendar
// invitee email when one exists.
func FormatAttendees(ct *domain.CanonicalTranscript) string {
	order := make([]string, 0, len(ct.Transcript))
	best := make(map[string]string)
	for _, seg := range ct.Transcript {
		name := seg.Speaker.DisplayName
		if _, ok := best[name]; !ok {
			order = append(order, name)
			best[name] = name
		}
		// An email upgrades the entry; it is never downgraded back.
		if seg.Speaker.Email != "" {
			best[name] = seg.Speaker.Email
		}
	}
	if len(order) == 0 {
		return "No attendees"
	}
	attendees := make([]string, len(order))
	for i, name := range order {
		attendees[i] = best[name]
	}
	return strings.Join(attendees, ", ")
}

// FormatPlainTranscript renders the transcript as speaker-labelled plain
// text without timestamps.
func FormatPlainTranscript(ct *domain.CanonicalTranscript) string {
	lines := make([]string, 0, len(ct.Transcript))
	for _, seg := range ct.Transcript {
		lines = append(lines, fmt.Sprintf("%s: %s", seg.Speaker.DisplayName, seg.Text))
	}
	return strings.Join(lines, "\n\n")
}

// FormatRichSummary renders the summary as sectioned rich text. English
// fragments (owner names, dates) go on their own lines so RTL rendering
// does not garble them.
func FormatRichSummary(sum *domain.MeetingSummary) string {
	var sections []string

	sections = append(sections, "**תכלית הפגישה:** "+sum.MeetingPurpose)

	if len(sum.KeyTakeaways) > 0 {
		sections = append(sections, "\n**מסקנות עיקריות:**")
		for _, item := range sum.KeyTakeaways {
			sections = append(sections, "• "+item)
		}
	}

	if len(sum.Topics) > 0 {
		sections = append(sections, "\n**נושאים:**")
		for _, topic := range sum.Topics {
			sections = append(sections, fmt.Sprintf("\n**%s**\n%s", topic.Title, topic.Description))
		}
	}

	if len(sum.ActionItems) > 0 {
		sections = append(sections, "\n**פעולות:**")
		for _, task := range sum.ActionItems {
			line := "• " + task.Title
			if task.Owner != "" {
				line += "\n  אחראי: " + task.Owner
			}
			if task.DueDate != "" {
				line += "\n  מועד: " + task.DueDate
			}
			sections = append(sections, line)
		}
	}

	return strings.Join(sections, "\n")
}

// MapPriority maps High/Medium/Low onto the P1/P2/P3 select options.
func MapPriority(priority string) string {
	switch strings.TrimSpace(priority) {
	case "High":
		return "P1"
	case "Low":
		return "P3"
	default:
		return "P2"
	}
}

// NormalizeStatus coerces a status string onto the exact select options
// the Tasks table defines. Select fields are case- and
// character-sensitive.
func NormalizeStatus(status string) string {
	normalized := strings.TrimSpace(status)
	switch normalized {
	case "To-Do", "In Progress", "Done":
		return normalized
	}
	switch strings.ToLower(normalized) {
	case "to do", "todo":
		return "To-Do"
	case "in progress", "inprogress":
		return "In Progress"
	case "done", "completed":
		return "Done"
	default:
		return "To-Do"
	}
}
