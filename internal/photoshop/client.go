package photoshop

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
	defaultBaseURL = "https://image.adobe.io"
	defaultTimeout = 60 * time.Second

	defaultStorage   = "external"
	defaultMediaType = "image/jpeg"
	defaultSizeUnit  = "Pixels"
)

var (
	// ErrAPIKeyRequired is returned when constructing a client without an API key.
	ErrAPIKeyRequired = errors.New("photoshop: API key is required")

	// ErrTokenRequired is returned when a call is made without an access token.
	ErrTokenRequired = errors.New("photoshop: access token is required")

	// ErrJobIDRequired is returned when a status operation is missing the job ID.
	ErrJobIDRequired = errors.New("photoshop: job ID is required")

	// ErrRequestFailed is returned when the API responds with a non-2xx status.
	ErrRequestFailed = errors.New("photoshop: request failed")

	// ErrNoJobID is returned when a submit response carries no job ID.
	ErrNoJobID = errors.New("photoshop: submit response has no job ID")

	// ErrNoJobLink is returned when a submit response carries no job link.
	ErrNoJobLink = errors.New("photoshop: submit response has no job link")
)

// senseiTerminal is the terminal status set of the sensei and psdService
// pipelines, which have no cancel operation.
var senseiTerminal = []poll.Status{poll.StatusSucceeded, poll.StatusFailed}

// Client is the interface for the Photoshop imaging APIs.
type Client interface {
	RemoveBackground(ctx context.Context, token string, req RemoveBackgroundRequest) (Submission, error)
	Cutout(ctx context.Context, token string, req CutoutRequest) (JobRef, error)
	ProductCrop(ctx context.Context, token string, req ProductCropRequest) (JobRef, error)
	SenseiStatus(ctx context.Context, token, jobID string) (json.RawMessage, error)
	PSDStatus(ctx context.Context, token, jobID string) (json.RawMessage, error)
	AwaitCutout(ctx context.Context, token, jobID string) (poll.Result, error)
	AwaitProductCrop(ctx context.Context, token, jobID string) (poll.Result, error)
}

// HTTPClient implements Client against the Photoshop REST API.
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

// WithPollBackoff sets the backoff schedule used by the await methods.
func WithPollBackoff(b poll.Backoff) ClientOption {
	return func(c *HTTPClient) {
		c.pollBackoff = b
	}
}

// WithPollMaxAttempts caps the number of status checks made by the await
// methods.
func WithPollMaxAttempts(n int) ClientOption {
	return func(c *HTTPClient) {
		c.pollMaxAttempts = n
	}
}

// NewClient creates a Photoshop API client.
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

// RemoveBackground submits a background removal job. Optional fields left
// unset are filled with the service defaults.
func (c *HTTPClient) RemoveBackground(ctx context.Context, token string, req RemoveBackgroundRequest) (Submission, error) {
	body, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v2/remove-background", token, req.withDefaults())
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return Submission{}, fmt.Errorf("photoshop: unmarshal submit response: %w", err)
	}
	if sub.JobID == "" {
		return Submission{}, fmt.Errorf("%w: %s", ErrNoJobID, string(body))
	}
	sub.Raw = body

	return sub, nil
}

// Cutout submits a sensei cutout job that writes the cut-out subject to the
// output signed URL.
func (c *HTTPClient) Cutout(ctx context.Context, token string, req CutoutRequest) (JobRef, error) {
	if req.Input.Storage == "" {
		req.Input.Storage = defaultStorage
	}
	if req.Output.Storage == "" {
		req.Output.Storage = defaultStorage
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/sensei/cutout", token, req)
	if err != nil {
		return JobRef{}, err
	}
	return parseJobRef(body)
}

// ProductCrop submits a psdService product crop job.
func (c *HTTPClient) ProductCrop(ctx context.Context, token string, req ProductCropRequest) (JobRef, error) {
	for i := range req.Inputs {
		fillFileRef(&req.Inputs[i])
	}
	for i := range req.Outputs {
		fillFileRef(&req.Outputs[i])
	}
	if req.Options.Unit == "" {
		req.Options.Unit = defaultSizeUnit
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/pie/psdService/productCrop", token, req)
	if err != nil {
		return JobRef{}, err
	}
	return parseJobRef(body)
}

// SenseiStatus fetches the status body of a sensei job.
func (c *HTTPClient) SenseiStatus(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodGet, c.senseiStatusURL(jobID), token, nil)
}

// PSDStatus fetches the status body of a psdService job.
func (c *HTTPClient) PSDStatus(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodGet, c.psdStatusURL(jobID), token, nil)
}

// AwaitCutout polls a sensei job until it succeeds or fails. Sensei status
// bodies carry the status at the top level.
func (c *HTTPClient) AwaitCutout(ctx context.Context, token, jobID string) (poll.Result, error) {
	if jobID == "" {
		return poll.Result{}, ErrJobIDRequired
	}
	return c.await(ctx, token, c.senseiStatusURL(jobID), poll.TopLevelStatus)
}

// AwaitProductCrop polls a psdService job until it succeeds or fails. The
// psdService reports per-output statuses, so the first output decides.
func (c *HTTPClient) AwaitProductCrop(ctx context.Context, token, jobID string) (poll.Result, error) {
	if jobID == "" {
		return poll.Result{}, ErrJobIDRequired
	}
	return c.await(ctx, token, c.psdStatusURL(jobID), poll.FirstOutputStatus)
}

func (c *HTTPClient) await(ctx context.Context, token, statusURL string, extract poll.Extractor) (poll.Result, error) {
	if token == "" {
		return poll.Result{}, ErrTokenRequired
	}

	return c.poller.Wait(ctx, poll.Request{
		URL:         statusURL,
		Header:      c.authHeader(token),
		Extract:     extract,
		Terminal:    senseiTerminal,
		Backoff:     c.pollBackoff,
		MaxAttempts: c.pollMaxAttempts,
	})
}

func (c *HTTPClient) senseiStatusURL(jobID string) string {
	return c.baseURL + "/sensei/status/" + jobID
}

func (c *HTTPClient) psdStatusURL(jobID string) string {
	return c.baseURL + "/pie/psdService/status/" + jobID
}

func fillFileRef(ref *FileRef) {
	if ref.Storage == "" {
		ref.Storage = defaultStorage
	}
	if ref.Type == "" {
		ref.Type = defaultMediaType
	}
}

func parseJobRef(body []byte) (JobRef, error) {
	var resp struct {
		Links struct {
			Self struct {
				Href string `json:"href"`
			} `json:"self"`
		} `json:"_links"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return JobRef{}, fmt.Errorf("photoshop: unmarshal submit response: %w", err)
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

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, token string, payload any) ([]byte, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("photoshop: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("photoshop: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photoshop: execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("photoshop: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *HTTPClient) authHeader(token string) http.Header {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("Authorization", "Bearer "+token)
	return h
}
