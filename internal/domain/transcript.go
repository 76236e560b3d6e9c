package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultTitle is used when the provider omits a meeting title.
const DefaultTitle = "Untitled Meeting"

// unknownSpeaker is used when a structured speaker carries no display name.
const unknownSpeaker = "Unknown"

// Speaker is a segment's speaker descriptor. Providers send either a
// structured object or a bare display-name string; the union is resolved
// here, once, at decode time. The original bytes are retained so segments
// round-trip verbatim through the transcript artifact.
type Speaker struct {
	DisplayName string
	// Email is the matched calendar invitee email, when the provider
	// supplied one. Empty otherwise.
	Email string

	raw json.RawMessage
}

type speakerObject struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"matched_calendar_invitee_email,omitempty"`
}

// UnmarshalJSON accepts a string, a structured object, or any other scalar
// (resolved to its textual form).
func (s *Speaker) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		s.DisplayName = unknownSpeaker
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.DisplayName = name
		return nil
	}

	var obj speakerObject
	if err := json.Unmarshal(data, &obj); err == nil {
		s.DisplayName = obj.DisplayName
		s.Email = obj.Email
		if s.DisplayName == "" {
			s.DisplayName = unknownSpeaker
		}
		return nil
	}

	s.DisplayName = strings.TrimSpace(string(data))
	return nil
}

// MarshalJSON re-emits the provider's original bytes when available.
func (s Speaker) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(speakerObject{DisplayName: s.DisplayName, Email: s.Email})
}

// Segment is one transcript entry. Downstream consumers need the full
// nested speaker object, so the record is passed through verbatim: the
// decoded fields exist for in-process use and the original bytes are what
// get written back out.
type Segment struct {
	Speaker   Speaker
	Text      string
	Timestamp string

	raw json.RawMessage
}

// UnmarshalJSON decodes the fields the pipeline reads while retaining the
// segment's original bytes.
func (s *Segment) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)

	var aux struct {
		Speaker   Speaker `json:"speaker"`
		Text      string  `json:"text"`
		Timestamp string  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Speaker = aux.Speaker
	s.Text = aux.Text
	s.Timestamp = aux.Timestamp
	// An absent speaker key never reaches Speaker.UnmarshalJSON, so the
	// unknown-speaker default is applied here as well.
	if s.Speaker.DisplayName == "" {
		s.Speaker.DisplayName = unknownSpeaker
	}
	return nil
}

// MarshalJSON re-emits the provider's original bytes when available.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	buf, err := json.Marshal(struct {
		Speaker   Speaker `json:"speaker"`
		Text      string  `json:"text"`
		Timestamp string  `json:"timestamp,omitempty"`
	}{s.Speaker, s.Text, s.Timestamp})
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf), nil
}

// CanonicalTranscript is the pipeline's transcript representation, written
// to the transcript artifact and read by the summarize and persist stages.
//
// Invariant: Participants is exactly the deduplicated, order-preserving
// projection of segment speaker display names.
type CanonicalTranscript struct {
	Title        string    `json:"title"`
	Date         string    `json:"date"`
	Participants []string  `json:"participants"`
	Transcript   []Segment `json:"transcript"`
}
