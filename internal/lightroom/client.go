// Package lightroom provides an HTTP client for the Lightroom enhancement
// APIs. Jobs are asynchronous: a submit answers with a _links.self.href job
// URL whose per-output statuses are polled to completion.
package lightroom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mirovado/firefly-gateway/internal/poll"
)

const (
	defaultBaseURL = "https://image.adobe.io/lrService"
	defaultTimeout = 60 * time.Second

	defaultStorage   = "external"
	defaultMediaType = "image/jpeg"
)

var (
	// ErrAPIKeyRequired is returned when constructing a client without an API key.
	ErrAPIKeyRequired = errors.New("lightroom: API key is required")

	// ErrTokenRequired is returned when a call is made without an access token.
	ErrTokenRequired = errors.New("lightroom: access token is required")

	// ErrJobIDRequired is returned when a status operation is missing the job ID.
	ErrJobIDRequired = errors.New("lightroom: job ID is required")

	// ErrRequestFailed is returned when the API responds with a non-2xx status.
	ErrRequestFailed = errors.New("lightroom: request failed")

	// ErrNoJobLink is returned when a submit response carries no job link.
	ErrNoJobLink = errors.New("lightroom: submit response has no job link")
)

// terminal is the terminal status set of the lrService pipeline, which has
// no cancel operation.
var terminal = []poll.Status{poll.StatusSucceeded, poll.StatusFailed}

// FileRef identifies an image in external storage by signed URL.
type FileRef struct {
	Href    string `json:"href" validate:"required,url"`
	Storage string `json:"storage,omitempty"`
	Type    string `json:"type,omitempty"`
}

// AutoToneRequest is the payload for lrService/autoTone. The service takes a
// single input and writes one enhanced asset per output.
type AutoToneRequest struct {
	Inputs  FileRef   `json:"inputs"`
	Outputs []FileRef `json:"outputs" validate:"min=1,dive"`
}

// JobRef is the job reference parsed from a submit response.
type JobRef struct {
	ID   string
	Href string

	// Raw is the unmodified submit response body.
	Raw json.RawMessage
}

// Client is the interface for the Lightroom enhancement API.
type Client interface {
	AutoTone(ctx context.Context, token string, req AutoToneRequest) (JobRef, error)
	Status(ctx context.Context, token, jobID string) (json.RawMessage, error)
	AwaitJob(ctx context.Context, token, jobID string) (poll.Result, error)
}

// HTTPClient implements Client against the Lightroom REST API.
type HTTPClient struct {
	baseURL         string
	apiKey          string
	httpClient      *http.Client
	poller          *poll.Poller
	pollBackoff     poll.Backoff
	pollMaxAttempts int
}

// ClientOption configures the HTTP client.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// WithPoller sets a custom status poller.
func WithPoller(p *poll.Poller) ClientOption {
	return func(c *HTTPClient) {
		c.poller = p
	}
}

// WithPollBackoff sets the backoff schedule used by AwaitJob.
func WithPollBackoff(b poll.Backoff) ClientOption {
	return func(c *HTTPClient) {
		c.pollBackoff = b
	}
}

// WithPollMaxAttempts caps the number of status checks made by AwaitJob.
func WithPollMaxAttempts(n int) ClientOption {
	return func(c *HTTPClient) {
		c.pollMaxAttempts = n
	}
}

// NewClient creates a Lightroom API client.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.poller == nil {
		c.poller = poll.New(poll.WithHTTPClient(c.httpClient))
	}

	return c, nil
}

// AutoTone submits an auto tone enhancement that writes the corrected image
// to the output signed URLs.
func (c *HTTPClient) AutoTone(ctx context.Context, token string, req AutoToneRequest) (JobRef, error) {
	if req.Inputs.Storage == "" {
		req.Inputs.Storage = defaultStorage
	}
	for i := range req.Outputs {
		if req.Outputs[i].Storage == "" {
			req.Outputs[i].Storage = defaultStorage
		}
		if req.Outputs[i].Type == "" {
			req.Outputs[i].Type = defaultMediaType
		}
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/autoTone", token, req)
	if err != nil {
		return JobRef{}, err
	}

	var resp struct {
		Links struct {
			Self struct {
				Href string `json:"href"`
			} `json:"self"`
		} `json:"_links"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return JobRef{}, fmt.Errorf("lightroom: unmarshal submit response: %w", err)
	}

	href := resp.Links.Self.Href
	if href == "" {
		return JobRef{}, fmt.Errorf("%w: %s", ErrNoJobLink, string(body))
	}

	segments := strings.Split(strings.TrimRight(href, "/"), "/")
	return JobRef{
		ID:   segments[len(segments)-1],
		Href: href,
		Raw:  body,
	}, nil
}

// Status fetches the status body of an enhancement job.
func (c *HTTPClient) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodGet, c.statusURL(jobID), token, nil)
}

// AwaitJob polls an enhancement job until it succeeds or fails. The service
// reports per-output statuses, so the first output decides.
func (c *HTTPClient) AwaitJob(ctx context.Context, token, jobID string) (poll.Result, error) {
	if jobID == "" {
		return poll.Result{}, ErrJobIDRequired
	}
	if token == "" {
		return poll.Result{}, ErrTokenRequired
	}

	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("Authorization", "Bearer "+token)

	return c.poller.Wait(ctx, poll.Request{
		URL:         c.statusURL(jobID),
		Header:      h,
		Extract:     poll.FirstOutputStatus,
		Terminal:    terminal,
		Backoff:     c.pollBackoff,
		MaxAttempts: c.pollMaxAttempts,
	})
}

func (c *HTTPClient) statusURL(jobID string) string {
	return c.baseURL + "/status/" + jobID
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, token string, payload any) ([]byte, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("lightroom: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("lightroom: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightroom: execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lightroom: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return body, nil
}
