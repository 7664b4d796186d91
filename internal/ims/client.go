// Package ims provides an HTTP client for the Adobe IMS token service.
// The gateway exchanges its client credentials here and forwards the
// resulting bearer token on every upstream call.
package ims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultScopes is the scope list requested for Firefly Services tokens.
const DefaultScopes = "openid,AdobeID,session,additional_info,read_organizations,firefly_api,ff_apis"

const defaultBaseURL = "https://ims-na1.adobelogin.com"

// Static errors for IMS client operations.
var (
	// ErrClientIDRequired is returned when the client ID is not provided.
	ErrClientIDRequired = errors.New("ims: client ID is required")
	// ErrClientSecretRequired is returned when the client secret is not provided.
	ErrClientSecretRequired = errors.New("ims: client secret is required")
	// ErrTokenRequestFailed is returned when the token exchange fails with a non-2xx status.
	ErrTokenRequestFailed = errors.New("ims: token request failed")
)

// Token is an access token issued by IMS.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`

	// Raw is the unmodified token response body, relayed to callers.
	Raw json.RawMessage `json:"-"`
}

// Client defines the IMS operations used by the gateway.
type Client interface {
	// AccessToken exchanges the client credentials for an access token.
	AccessToken(ctx context.Context) (Token, error)
}

// HTTPClient is the HTTP implementation of the IMS Client interface.
type HTTPClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	scopes       string
	httpClient   *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL sets a custom base URL for the IMS service.
func WithBaseURL(url string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithScopes sets the scope list requested on token exchange.
// An empty value keeps DefaultScopes.
func WithScopes(scopes string) ClientOption {
	return func(c *HTTPClient) {
		if scopes != "" {
			c.scopes = scopes
		}
	}
}

// NewClient creates a new IMS HTTP client for the given credentials.
func NewClient(clientID, clientSecret string, opts ...ClientOption) (*HTTPClient, error) {
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	if clientSecret == "" {
		return nil, ErrClientSecretRequired
	}

	c := &HTTPClient{
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       DefaultScopes,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AccessToken performs the client-credentials exchange at /ims/token/v3.
func (c *HTTPClient) AccessToken(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", c.scopes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ims/token/v3", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("ims: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("ims: token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("ims: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, fmt.Errorf("%w with status %d: %s", ErrTokenRequestFailed, resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, fmt.Errorf("ims: unmarshal response: %w", err)
	}
	token.Raw = body

	return token, nil
}
