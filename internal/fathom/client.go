// Package fathom is a minimal client for the Fathom external API, used
// to re-fetch a recording's transcript outside the webhook path.
package fathom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/scribehook/scribehook/internal/artifact"
)

const defaultBaseURL = "https://api.fathom.ai/external/v1"

var (
	// ErrUnauthorized indicates a rejected API key.
	ErrUnauthorized = errors.New("fathom: unauthorized")
	// ErrNotFound indicates an unknown recording ID.
	ErrNotFound = errors.New("fathom: recording not found")
	// ErrRateLimited indicates the API asked us to back off.
	ErrRateLimited = errors.New("fathom: rate limited")
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the Fathom external API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Fathom API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcript fetches the raw transcript JSON for a recording.
func (c *Client) Transcript(ctx context.Context, recordingID string) ([]byte, error) {
	url := fmt.Sprintf("%s/recordings/%s/transcript", c.baseURL, recordingID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, recordingID)
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
}

// Fetcher is the fetch-stage collaborator adapter: it pulls the
// transcript from the Fathom API and writes the transcript artifact.
type Fetcher struct {
	client *Client
	store  *artifact.Store
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *Client, store *artifact.Store) *Fetcher {
	return &Fetcher{client: client, store: store}
}

// Fetch downloads the transcript for a recording and stores it as
// transcript_{id}.json.
func (f *Fetcher) Fetch(ctx context.Context, log *slog.Logger, recordingID string) error {
	raw, err := f.client.Transcript(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}
	path, err := f.store.WriteRawTranscript(recordingID, raw)
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	log.Info("transcript fetched",
		slog.String("path", path),
		slog.Int("bytes", len(raw)),
	)
	return nil
}
