package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mirovado/firefly-gateway/internal/audiovideo"
	"github.com/mirovado/firefly-gateway/internal/firefly"
	"github.com/mirovado/firefly-gateway/internal/ims"
	"github.com/mirovado/firefly-gateway/internal/lightroom"
	"github.com/mirovado/firefly-gateway/internal/media"
	"github.com/mirovado/firefly-gateway/internal/photoshop"
	"github.com/mirovado/firefly-gateway/internal/poll"
	"github.com/mirovado/firefly-gateway/internal/storage"
	"github.com/mirovado/firefly-gateway/internal/workflow"
)

// accessTokenCookie is the cookie the token exchange sets and every
// authenticated route reads.
const accessTokenCookie = "access_token"

// tokenTypeCookie accompanies the access token cookie.
const tokenTypeCookie = "token_type"

// defaultBucket is the bucket used when a request names none.
const defaultBucket = "firefly-images-demo-bucket"

// defaultPollTimeout bounds a single await request.
const defaultPollTimeout = 10 * time.Minute

// Dependencies are the clients and services the handlers dispatch to.
type Dependencies struct {
	IMS        ims.Client
	Firefly    firefly.Client
	Photoshop  photoshop.Client
	Lightroom  lightroom.Client
	AudioVideo audiovideo.Client
	Store      storage.Storage

	// Thumbnailer runs the gallery thumbnail pass.
	Thumbnailer *media.Thumbnailer

	// Workflows executes the product shot pipeline.
	Workflows *workflow.Service

	// Poller waits on status URLs for the await endpoint.
	Poller *poll.Poller

	// APIKey is the client ID sent as x-api-key on status polls.
	APIKey string
}

// Handlers contains the HTTP handlers for the gateway.
type Handlers struct {
	deps      Dependencies
	validator *validator.Validate
	logger    *slog.Logger

	bucket          string
	pollBackoff     poll.Backoff
	pollMaxAttempts int
	pollTimeout     time.Duration
	asyncWorkflows  bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDefaultBucket sets the bucket used when a request names none. The
// image proxy and the workflow routes fall back to it.
func WithDefaultBucket(bucket string) HandlerOption {
	return func(h *Handlers) {
		if bucket != "" {
			h.bucket = bucket
		}
	}
}

// WithPollBackoff sets the wait policy of the await endpoint.
func WithPollBackoff(b poll.Backoff) HandlerOption {
	return func(h *Handlers) {
		h.pollBackoff = b
	}
}

// WithPollMaxAttempts bounds the status requests of the await endpoint.
func WithPollMaxAttempts(n int) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.pollMaxAttempts = n
		}
	}
}

// WithPollTimeout bounds the total duration of the await endpoint.
func WithPollTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.pollTimeout = d
		}
	}
}

// WithAsyncWorkflows enables or disables background run execution.
// When disabled, creating a run only records it; nothing executes it.
func WithAsyncWorkflows(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.asyncWorkflows = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Dependencies, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		deps:            deps,
		validator:       validator.New(),
		logger:          logger,
		bucket:          defaultBucket,
		pollBackoff:     poll.DefaultBackoff(),
		pollMaxAttempts: poll.DefaultMaxAttempts,
		pollTimeout:     defaultPollTimeout,
		asyncWorkflows:  true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GenerateAccessToken handles POST /generate-access-token requests. The
// credentials are exchanged for an access token, set as httponly cookies
// scoped to the token lifetime, and the raw token body is relayed.
func (h *Handlers) GenerateAccessToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.deps.IMS.AccessToken(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token.AccessToken,
		Path:     "/",
		MaxAge:   token.ExpiresIn,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     tokenTypeCookie,
		Value:    token.TokenType,
		Path:     "/",
		MaxAge:   token.ExpiresIn,
		HttpOnly: true,
	})

	h.logger.Info("access token issued",
		slog.Int("expires_in", token.ExpiresIn),
	)

	writeRaw(w, http.StatusOK, token.Raw)
}

// CompleteImageCallback handles GET /complete-image-callback requests. It
// blocks until the job behind the given status URL reaches a terminal state
// and relays the final status body. Jobs across the generation services
// disagree on where the status lives, so the lookup tries every known shape.
func (h *Handlers) CompleteImageCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	statusURL := r.URL.Query().Get("statusUrl")
	if statusURL == "" {
		writeError(w, http.StatusBadRequest, "statusUrl query parameter is required", "MISSING_STATUS_URL")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.pollTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("x-api-key", h.deps.APIKey)
	header.Set("Authorization", "Bearer "+token)

	res, err := h.deps.Poller.Wait(ctx, poll.Request{
		URL:         statusURL,
		Header:      header,
		Extract:     poll.AnyStatus,
		Backoff:     h.pollBackoff,
		MaxAttempts: h.pollMaxAttempts,
	})
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("job completed",
		slog.String("status", string(res.Status)),
		slog.Int("attempts", res.Attempts),
	)

	writeRaw(w, http.StatusOK, res.Body)
}

// requireToken extracts the access token cookie. On a missing token it
// writes the 401 response and returns false.
func (h *Handlers) requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(accessTokenCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "access token is missing or expired", "TOKEN_MISSING")
		return "", false
	}
	return cookie.Value, true
}

// decodeJSON decodes and validates a request body. On failure it writes the
// error response and returns false.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}

	return true
}

// writeUpstreamError maps vendor client and poll errors onto HTTP responses.
func (h *Handlers) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("upstream request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, poll.ErrJobFailed):
		writeError(w, http.StatusBadGateway, err.Error(), "JOB_FAILED")
	case errors.Is(err, poll.ErrJobCancelled):
		writeError(w, http.StatusConflict, err.Error(), "JOB_CANCELLED")
	case errors.Is(err, poll.ErrAttemptsExhausted), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error(), "POLL_TIMEOUT")
	default:
		writeError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeRaw relays a raw upstream JSON body.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response body", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
