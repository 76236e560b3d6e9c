// Package artifact manages the working-directory files that bridge
// pipeline stages: transcript_{id}.json and summary_{id}.json.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scribehook/scribehook/internal/domain"
)

// Store is the shared artifact area for one working directory. It is
// owned by the orchestrator; one stage writes each artifact and the next
// stage reads it. No locking is provided: concurrent runs for the same
// recording identifier race on the same paths.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is not created
// until EnsureDir is called.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the working directory path.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the working directory. Safe to call repeatedly.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// TranscriptPath returns the deterministic transcript artifact path for a
// recording identifier.
func (s *Store) TranscriptPath(recordingID string) string {
	return filepath.Join(s.dir, "transcript_"+recordingID+".json")
}

// SummaryPath returns the deterministic summary artifact path for a
// recording identifier.
func (s *Store) SummaryPath(recordingID string) string {
	return filepath.Join(s.dir, "summary_"+recordingID+".json")
}

// Exists reports whether the artifact at path is present.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteTranscript writes the canonical transcript artifact and returns
// its path.
func (s *Store) WriteTranscript(recordingID string, ct *domain.CanonicalTranscript) (string, error) {
	path := s.TranscriptPath(recordingID)
	if err := s.writeJSON(path, ct); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRawTranscript writes provider-fetched transcript bytes as the
// transcript artifact, re-indented but otherwise untouched.
func (s *Store) WriteRawTranscript(recordingID string, data []byte) (string, error) {
	path := s.TranscriptPath(recordingID)
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("transcript is not valid JSON: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadTranscript reads a transcript artifact.
func (s *Store) ReadTranscript(path string) (*domain.CanonicalTranscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ct domain.CanonicalTranscript
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", path, err)
	}
	return &ct, nil
}

// WriteSummary writes the structured summary artifact and returns its
// path.
func (s *Store) WriteSummary(recordingID string, sum *domain.MeetingSummary) (string, error) {
	path := s.SummaryPath(recordingID)
	if err := s.writeJSON(path, sum); err != nil {
		return "", err
	}
	return path, nil
}

// ReadSummary reads a summary artifact.
func (s *Store) ReadSummary(path string) (*domain.MeetingSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sum domain.MeetingSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return &sum, nil
}

// Remove deletes both artifacts for a recording identifier. Missing files
// are not an error.
func (s *Store) Remove(recordingID string) error {
	for _, path := range []string{s.TranscriptPath(recordingID), s.SummaryPath(recordingID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// writeJSON writes v as human-readable UTF-8 JSON. HTML escaping is
// disabled so non-ASCII text stays unescaped in the artifact.
func (s *Store) writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
