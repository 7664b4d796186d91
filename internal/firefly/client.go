package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mirovado/firefly-gateway/internal/poll"
)

const (
	defaultBaseURL = "https://firefly-api.adobe.io"
	defaultTimeout = 60 * time.Second

	imageModelVersion = "image3"
	videoModelVersion = "video1_standard"
)

var (
	// ErrAPIKeyRequired is returned when constructing a client without an API key.
	ErrAPIKeyRequired = errors.New("firefly: API key is required")

	// ErrTokenRequired is returned when a call is made without an access token.
	ErrTokenRequired = errors.New("firefly: access token is required")

	// ErrJobIDRequired is returned when a job operation is missing the job ID.
	ErrJobIDRequired = errors.New("firefly: job ID is required")

	// ErrRequestFailed is returned when the API responds with a non-2xx status.
	ErrRequestFailed = errors.New("firefly: request failed")

	// ErrNoJobID is returned when a submit response carries no job ID.
	ErrNoJobID = errors.New("firefly: submit response has no job ID")

	// ErrNoResultURL is returned when a terminal status body has no image URL.
	ErrNoResultURL = errors.New("firefly: no image URL in result")
)

// Client is the interface for the Firefly generation API.
type Client interface {
	GenerateImage(ctx context.Context, token string, req GenerateImageRequest) (Submission, error)
	GenerateObjectComposite(ctx context.Context, token string, req ObjectCompositeRequest) (Submission, error)
	ExpandImage(ctx context.Context, token string, req ExpandImageRequest) (Submission, error)
	GenerateSimilar(ctx context.Context, token string, req SimilarImageRequest) (Submission, error)
	GenerateVideo(ctx context.Context, token string, req GenerateVideoRequest) (Submission, error)
	UploadImage(ctx context.Context, token, contentType string, data io.Reader) (json.RawMessage, error)
	ListCustomModels(ctx context.Context, token, requestID string, limit int) (json.RawMessage, error)
	Status(ctx context.Context, token, jobID string) (json.RawMessage, error)
	CancelJob(ctx context.Context, token, jobID string) (json.RawMessage, error)
	AwaitJob(ctx context.Context, token, statusURL string) (poll.Result, error)
	StatusURL(jobID string) string
}

// HTTPClient implements Client against the Firefly REST API.
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

// NewClient creates a Firefly API client.
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

// GenerateImage submits a text-to-image generation, optionally steered by a
// style reference.
func (c *HTTPClient) GenerateImage(ctx context.Context, token string, req GenerateImageRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v3/images/generate-async", token, req, imageModelVersion)
}

// GenerateObjectComposite submits an object composite generation that places
// a product image into a generated scene.
func (c *HTTPClient) GenerateObjectComposite(ctx context.Context, token string, req ObjectCompositeRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v3/images/generate-object-composite-async", token, req, imageModelVersion)
}

// ExpandImage submits a generative expand of an uploaded image to the
// requested size.
func (c *HTTPClient) ExpandImage(ctx context.Context, token string, req ExpandImageRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v3/images/expand-async", token, req, "")
}

// GenerateSimilar submits a generation of variations similar to an uploaded
// image.
func (c *HTTPClient) GenerateSimilar(ctx context.Context, token string, req SimilarImageRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v3/images/generate-similar-async", token, req, "")
}

// GenerateVideo submits a text-to-video generation.
func (c *HTTPClient) GenerateVideo(ctx context.Context, token string, req GenerateVideoRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v3/videos/generate", token, req, videoModelVersion)
}

// UploadImage stores raw image bytes with the API and returns the upload
// response, which carries the upload ID referenced by later generations.
func (c *HTTPClient) UploadImage(ctx context.Context, token, contentType string, data io.Reader) (json.RawMessage, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/storage/image", data)
	if err != nil {
		return nil, fmt.Errorf("firefly: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req)
}

// ListCustomModels returns the custom models available to the account, sorted
// by asset name. The request ID is relayed for upstream tracing.
func (c *HTTPClient) ListCustomModels(ctx context.Context, token, requestID string, limit int) (json.RawMessage, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	q := url.Values{}
	q.Set("sortBy", "assetName")
	q.Set("start", "0")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("publishedState", "all")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/custom-models?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("firefly: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if requestID != "" {
		req.Header.Set("x-request-id", requestID)
	}

	return c.do(req)
}

// Status fetches the status body of a generation job.
func (c *HTTPClient) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodGet, c.StatusURL(jobID), token, nil, "")
}

// CancelJob requests cancellation of a running generation job. The API may
// answer with an empty body, in which case the returned payload is empty.
func (c *HTTPClient) CancelJob(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodPut, c.StatusURL(jobID)+"/cancel", token, nil, "")
}

// AwaitJob polls a status URL until the job reaches a terminal state.
func (c *HTTPClient) AwaitJob(ctx context.Context, token, statusURL string) (poll.Result, error) {
	if token == "" {
		return poll.Result{}, ErrTokenRequired
	}

	return c.poller.Wait(ctx, poll.Request{
		URL:         statusURL,
		Header:      c.authHeader(token),
		Extract:     poll.TopLevelStatus,
		Backoff:     c.pollBackoff,
		MaxAttempts: c.pollMaxAttempts,
	})
}

// StatusURL returns the status URL for a job ID.
func (c *HTTPClient) StatusURL(jobID string) string {
	return c.baseURL + "/v3/status/" + jobID
}

// ResultImageURL digs the first generated image URL out of a terminal status
// body. Newer responses nest outputs under result; older ones carry them at
// the top level.
func ResultImageURL(body []byte) (string, error) {
	type output struct {
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	}
	var resp struct {
		Result *struct {
			Outputs []output `json:"outputs"`
		} `json:"result"`
		Outputs []output `json:"outputs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("firefly: decode result: %w", err)
	}

	if resp.Result != nil && len(resp.Result.Outputs) > 0 && resp.Result.Outputs[0].Image.URL != "" {
		return resp.Result.Outputs[0].Image.URL, nil
	}
	if len(resp.Outputs) > 0 && resp.Outputs[0].Image.URL != "" {
		return resp.Outputs[0].Image.URL, nil
	}
	return "", ErrNoResultURL
}

func (c *HTTPClient) submit(ctx context.Context, endpoint, token string, payload any, modelVersion string) (Submission, error) {
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, token, payload, modelVersion)
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return Submission{}, fmt.Errorf("firefly: unmarshal submit response: %w", err)
	}
	if sub.JobID == "" {
		return Submission{}, fmt.Errorf("%w: %s", ErrNoJobID, string(body))
	}
	sub.Raw = body

	return sub, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, token string, payload any, modelVersion string) ([]byte, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("firefly: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("firefly: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if modelVersion != "" {
		req.Header.Set("x-model-version", modelVersion)
	}

	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firefly: execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("firefly: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *HTTPClient) authHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("x-api-key", c.apiKey)
	h.Set("Authorization", "Bearer "+token)
	return h
}
