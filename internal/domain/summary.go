package domain

import "fmt"

// Task is an actionable item extracted from the meeting.
type Task struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date,omitempty"`
	Context     string `json:"context"`
}

// Topic is one discussion topic from the meeting.
type Topic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MeetingSummary is the structured summary produced by the summarize stage
// and consumed by the persist stage. Text fields are in the summary
// language the collaborator was prompted for; owner names, dates, and
// priorities stay as-is.
type MeetingSummary struct {
	MeetingTitle          string   `json:"meeting_title"`
	MeetingPurpose        string   `json:"meeting_purpose"`
	KeyTakeaways          []string `json:"key_takeaways"`
	Topics                []Topic  `json:"topics"`
	ActionItems           []Task   `json:"action_items"`
	ParticipantsMentioned []string `json:"participants_mentioned"`
}

// Validate checks the fields the schema requires. A collaborator response
// that fails validation is a stage failure, not a partial success.
func (m *MeetingSummary) Validate() error {
	if m.MeetingTitle == "" {
		return fmt.Errorf("summary missing meeting_title")
	}
	if m.MeetingPurpose == "" {
		return fmt.Errorf("summary missing meeting_purpose")
	}
	if len(m.KeyTakeaways) == 0 {
		return fmt.Errorf("summary has no key_takeaways")
	}
	return nil
}
