// Package domain holds the canonical data types and error taxonomy shared
// across the ingestion pipeline.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes a pipeline failure. Every non-success outcome of a
// run maps to exactly one kind, and every kind maps to exactly one HTTP
// status at the ingress boundary.
type ErrorKind string

const (
	// KindConfig indicates a required credential or setting is absent.
	// Not recoverable without operator intervention.
	KindConfig ErrorKind = "config"

	// KindMalformedInput indicates the event body could not be parsed.
	KindMalformedInput ErrorKind = "malformed_input"

	// KindArtifact indicates an expected intermediate file is missing or
	// could not be written.
	KindArtifact ErrorKind = "artifact"

	// KindCollaborator indicates a downstream stage reported failure.
	KindCollaborator ErrorKind = "collaborator"

	// KindTimeout indicates a stage exceeded its wall-clock budget. Kept
	// distinct from KindCollaborator so "too slow" is never conflated
	// with "rejected".
	KindTimeout ErrorKind = "timeout"
)

// PipelineError is the typed failure carried out of every pipeline
// component. The ingress endpoint performs the kind-to-status mapping in
// one place; components only ever classify.
type PipelineError struct {
	// Kind is the failure category.
	Kind ErrorKind

	// Stage is the label of the stage that failed, when applicable.
	Stage string

	// Message is the single-line operator-facing description.
	Message string

	// Detail carries captured stage diagnostics, truncated.
	Detail string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: stage %s: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatusCode returns the status code this failure surfaces as.
func (e *PipelineError) HTTPStatusCode() int {
	switch e.Kind {
	case KindMalformedInput:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail attaches captured diagnostics to the error.
func (e *PipelineError) WithDetail(detail string) *PipelineError {
	e.Detail = detail
	return e
}

// KindOf returns the kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// ErrConfig creates a configuration failure.
func ErrConfig(message string) *PipelineError {
	return &PipelineError{Kind: KindConfig, Message: message}
}

// ErrMalformedInput creates a malformed-input failure.
func ErrMalformedInput(message string) *PipelineError {
	return &PipelineError{Kind: KindMalformedInput, Message: message}
}

// ErrArtifact creates an artifact failure.
func ErrArtifact(message string) *PipelineError {
	return &PipelineError{Kind: KindArtifact, Message: message}
}

// ErrCollaborator creates a stage failure for the named stage.
func ErrCollaborator(stage, message string) *PipelineError {
	return &PipelineError{Kind: KindCollaborator, Stage: stage, Message: message}
}

// ErrTimeout creates a timeout failure for the named stage.
func ErrTimeout(stage string) *PipelineError {
	return &PipelineError{Kind: KindTimeout, Stage: stage, Message: "stage exceeded its time budget"}
}
