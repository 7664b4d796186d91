package audiovideo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mirovado/firefly-gateway/internal/poll"
)

const (
	defaultBaseURL = "https://audio-video-api.adobe.io"
	defaultTimeout = 60 * time.Second

	defaultScriptMediaType = "text/plain"
	defaultScriptLocale    = "en-US"
	defaultSpeechMediaType = "audio/wav"
	defaultAvatarMediaType = "video/mp4"
	defaultVideoMediaType  = "video/mp4"
)

var (
	// ErrAPIKeyRequired is returned when constructing a client without an API key.
	ErrAPIKeyRequired = errors.New("audiovideo: API key is required")

	// ErrTokenRequired is returned when a call is made without an access token.
	ErrTokenRequired = errors.New("audiovideo: access token is required")

	// ErrJobIDRequired is returned when a status operation is missing the job ID.
	ErrJobIDRequired = errors.New("audiovideo: job ID is required")

	// ErrRequestFailed is returned when the API responds with a non-2xx status.
	ErrRequestFailed = errors.New("audiovideo: request failed")

	// ErrNoJobID is returned when a submit response carries no job ID.
	ErrNoJobID = errors.New("audiovideo: submit response has no job ID")
)

// Client is the interface for the audio and video generation APIs.
type Client interface {
	Voices(ctx context.Context, token string) (json.RawMessage, error)
	Avatars(ctx context.Context, token string) (json.RawMessage, error)
	GenerateSpeech(ctx context.Context, token string, req SpeechRequest) (Submission, error)
	GenerateAvatar(ctx context.Context, token string, req AvatarRequest) (Submission, error)
	Dub(ctx context.Context, token string, req DubRequest) (Submission, error)
	Reframe(ctx context.Context, token string, req ReframeRequest) (Submission, error)
	Status(ctx context.Context, token, jobID string) (json.RawMessage, error)
	AwaitJob(ctx context.Context, token, jobID string) (poll.Result, error)
}

// HTTPClient implements Client against the audio-video REST API.
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

// NewClient creates an audio-video API client.
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

// Voices lists the text-to-speech voices available to the account.
func (c *HTTPClient) Voices(ctx context.Context, token string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/voices", token, nil)
}

// Avatars lists the avatars available to the account.
func (c *HTTPClient) Avatars(ctx context.Context, token string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/avatars", token, nil)
}

// GenerateSpeech submits a text-to-speech generation. Script and output
// fields left unset are filled with the service defaults.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, token string, req SpeechRequest) (Submission, error) {
	req.Script = fillScript(req.Script)
	if req.Output == nil {
		req.Output = &MediaOutput{MediaType: defaultSpeechMediaType}
	}
	return c.submit(ctx, c.baseURL+"/v1/generate-speech", token, req)
}

// GenerateAvatar submits an avatar video generation.
func (c *HTTPClient) GenerateAvatar(ctx context.Context, token string, req AvatarRequest) (Submission, error) {
	req.Script = fillScript(req.Script)
	if req.Output == nil {
		req.Output = &MediaOutput{MediaType: defaultAvatarMediaType}
	}
	return c.submit(ctx, c.baseURL+"/v1/generate-avatar", token, req)
}

// Dub submits a dubbing job that translates the video audio into the target
// locales. Lip sync is on unless the request disables it.
func (c *HTTPClient) Dub(ctx context.Context, token string, req DubRequest) (Submission, error) {
	if req.Video.MediaType == "" {
		req.Video.MediaType = defaultVideoMediaType
	}
	if req.LipSync == nil {
		lipSync := true
		req.LipSync = &lipSync
	}
	return c.submit(ctx, c.baseURL+"/v1/dub", token, req)
}

// Reframe submits a reframe job that recomposes the video into the requested
// aspect ratios.
func (c *HTTPClient) Reframe(ctx context.Context, token string, req ReframeRequest) (Submission, error) {
	return c.submit(ctx, c.baseURL+"/v2/reframe", token, req)
}

// Status fetches the status body of a generation job.
func (c *HTTPClient) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	return c.doJSON(ctx, http.MethodGet, c.statusURL(jobID), token, nil)
}

// AwaitJob polls a generation job until it reaches a terminal state.
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
		Extract:     poll.TopLevelStatus,
		Backoff:     c.pollBackoff,
		MaxAttempts: c.pollMaxAttempts,
	})
}

func (c *HTTPClient) statusURL(jobID string) string {
	return c.baseURL + "/v2/status/" + jobID
}

func fillScript(s Script) Script {
	if s.MediaType == "" {
		s.MediaType = defaultScriptMediaType
	}
	if s.LocaleCode == "" {
		s.LocaleCode = defaultScriptLocale
	}
	return s
}

func (c *HTTPClient) submit(ctx context.Context, endpoint, token string, payload any) (Submission, error) {
	body, err := c.doJSON(ctx, http.MethodPost, endpoint, token, payload)
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return Submission{}, fmt.Errorf("audiovideo: unmarshal submit response: %w", err)
	}
	if sub.JobID == "" {
		return Submission{}, fmt.Errorf("%w: %s", ErrNoJobID, string(body))
	}
	sub.Raw = body

	return sub, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint, token string, payload any) ([]byte, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("audiovideo: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("audiovideo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audiovideo: execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("audiovideo: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	return body, nil
}
