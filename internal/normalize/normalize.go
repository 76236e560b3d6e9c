// Package normalize converts the provider's webhook event payload into
// the pipeline's canonical transcript representation.
package normalize

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scribehook/scribehook/internal/domain"
)

// Payload is the provider's event body. Fields the pipeline does not read
// are dropped here; transcript segments are retained verbatim inside
// domain.Segment.
type Payload struct {
	MeetingTitle string           `json:"meeting_title"`
	CreatedAt    string           `json:"created_at"`
	URL          string           `json:"url"`
	Transcript   []domain.Segment `json:"transcript"`
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for fallback identifiers.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// Normalizer derives canonical transcripts and recording identifiers from
// event payloads. Pure apart from diagnostics and the fallback clock.
type Normalizer struct {
	log *slog.Logger
	now func() time.Time
}

// New creates a Normalizer.
func New(log *slog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{log: log, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps an event payload to the canonical transcript and its
// recording identifier. It never fails: missing fields degrade to
// defaults so partial payloads still produce a usable artifact.
func (n *Normalizer) Normalize(p Payload) (*domain.CanonicalTranscript, string) {
	id := n.recordingID(p.URL)

	segments := p.Transcript
	if segments == nil {
		segments = []domain.Segment{}
	}

	// Deduplicate speaker display names, preserving first-seen order.
	seen := make(map[string]struct{}, len(segments))
	participants := make([]string, 0, len(segments))
	for _, seg := range segments {
		name := seg.Speaker.DisplayName
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		participants = append(participants, name)
	}

	title := p.MeetingTitle
	if title == "" {
		title = domain.DefaultTitle
	}

	return &domain.CanonicalTranscript{
		Title:        title,
		Date:         p.CreatedAt,
		Participants: participants,
		Transcript:   segments,
	}, id
}

// recordingID extracts the identifier from the event URL. Supported
// shapes:
//
//	https://app.fathom.video/recordings/{id}
//	https://fathom.video/calls/{id}
//
// When the URL is absent or unparseable the current epoch second is used;
// collisions under that fallback are an accepted limitation of the
// single-actor usage pattern.
func (n *Normalizer) recordingID(rawURL string) string {
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			segments := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(segments) >= 2 {
				parent, last := segments[len(segments)-2], segments[len(segments)-1]
				if (parent == "recordings" || parent == "calls") && last != "" {
					n.log.Info("extracted recording id", slog.String("recording_id", last))
					return last
				}
			}
		}
	}

	fallback := strconv.FormatInt(n.now().Unix(), 10)
	n.log.Warn("could not parse recording id from url, using fallback",
		slog.String("url", rawURL),
		slog.String("fallback", fallback),
	)
	return fallback
}
