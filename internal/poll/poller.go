// Package poll implements waiting on asynchronous jobs exposed through a
// status endpoint. A poller repeatedly fetches the job's status URL, extracts
// the status from the response body, and stops at the first terminal state.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultMaxAttempts bounds a poll loop when the request does not override it.
const DefaultMaxAttempts = 60

// Static errors for poll outcomes.
var (
	// ErrURLRequired is returned when the request carries no status URL.
	ErrURLRequired = errors.New("poll: status URL is required")
	// ErrExtractorRequired is returned when the request carries no extractor.
	ErrExtractorRequired = errors.New("poll: status extractor is required")
	// ErrTransport is returned when a status request fails at the HTTP layer.
	// Status requests are sent exactly once per attempt; the first transport
	// failure aborts the whole poll.
	ErrTransport = errors.New("poll: status request failed")
	// ErrJobFailed is returned when the job reaches the failed state.
	ErrJobFailed = errors.New("poll: job failed")
	// ErrJobCancelled is returned when the job reaches the cancelled state.
	ErrJobCancelled = errors.New("poll: job cancelled")
	// ErrAttemptsExhausted is returned when the job is still not terminal
	// after MaxAttempts status requests.
	ErrAttemptsExhausted = errors.New("poll: attempts exhausted")
)

// Request describes one job to wait on.
type Request struct {
	// URL is the vendor status endpoint for the job.
	URL string
	// Header holds the headers sent on every status request (API key, bearer token).
	Header http.Header
	// Extract locates the status in each response body.
	Extract Extractor
	// Terminal overrides the set of states that stop the loop.
	// Nil means succeeded, failed and cancelled.
	Terminal []Status
	// Backoff overrides the wait policy. The zero value means DefaultBackoff.
	Backoff Backoff
	// MaxAttempts bounds the number of status requests. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Result is the outcome of a poll.
type Result struct {
	// Status is the terminal status the job reached.
	Status Status
	// Body is the raw body of the final status response.
	Body json.RawMessage
	// Attempts is the number of status requests performed.
	Attempts int
}

// Poller waits on asynchronous jobs by repeatedly fetching their status URL.
// A single Poller is safe for concurrent use; every Wait call keeps its own
// attempt counter.
type Poller struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option is a function that configures a Poller.
type Option func(*Poller)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) {
		p.httpClient = c
	}
}

// WithLogger sets the logger used for the per-attempt status line.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

// New creates a Poller.
func New(opts ...Option) *Poller {
	p := &Poller{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the status URL until the job reaches a terminal state, the
// context expires, or MaxAttempts status requests have been made. Each
// iteration sleeps per the backoff policy and then performs exactly one GET;
// a network error or non-2xx response aborts immediately with ErrTransport.
//
// A terminal failed status yields ErrJobFailed and a cancelled status yields
// ErrJobCancelled; in both cases the result still carries the final body.
// Waiting on an already-terminal job returns after a single request.
func (p *Poller) Wait(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		return Result{}, ErrURLRequired
	}
	if req.Extract == nil {
		return Result{}, ErrExtractorRequired
	}

	terminal := req.Terminal
	if terminal == nil {
		terminal = []Status{StatusSucceeded, StatusFailed, StatusCancelled}
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		delay := req.Backoff.Delay(attempt)
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt}, fmt.Errorf("poll: wait interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}

		body, err := p.fetch(ctx, req)
		if err != nil {
			return Result{Attempts: attempt + 1}, err
		}

		status, err := req.Extract(body)
		if err != nil {
			return Result{Attempts: attempt + 1, Body: body}, err
		}

		p.logger.Info("job status",
			slog.String("url", req.URL),
			slog.String("status", string(status)),
			slog.Int("attempt", attempt+1),
		)

		if !statusIn(status, terminal) {
			continue
		}

		result := Result{Status: status, Body: body, Attempts: attempt + 1}
		switch status {
		case StatusFailed:
			return result, fmt.Errorf("%w: %s", ErrJobFailed, req.URL)
		case StatusCancelled:
			return result, fmt.Errorf("%w: %s", ErrJobCancelled, req.URL)
		default:
			return result, nil
		}
	}

	return Result{Attempts: maxAttempts}, fmt.Errorf("%w after %d attempts: %s", ErrAttemptsExhausted, maxAttempts, req.URL)
}

// fetch performs a single status request.
func (p *Poller) fetch(ctx context.Context, req Request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("poll: create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(body))
	}

	return body, nil
}

// statusIn reports whether s is in the terminal set.
func statusIn(s Status, set []Status) bool {
	for _, t := range set {
		if s == t {
			return true
		}
	}
	return false
}
